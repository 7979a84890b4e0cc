// Package transcript renders a visitor's conversation to a printable PDF.
package transcript

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf/v2"

	"chatfunnel/internal/playback"
	"chatfunnel/internal/script"
)

const (
	pageW      = 595.28
	pageH      = 841.89
	margin     = 40
	bubbleW    = 360.0
	padding    = 8.0
	lineH      = 13.0
	nameH      = 12.0
	gap        = 10.0
	fontSize   = 10
	titleSize  = 16
	fontFamily = "transcript"
)

type Options struct {
	Title string
	Cast  script.Cast
	// FontPath is a UTF-8 TrueType font. Without one the core Helvetica font
	// is used and characters outside Latin-1 are lost.
	FontPath    string
	GeneratedAt time.Time
}

// Generate returns PDF bytes for items in display order. Partially typed
// items are rendered with their full text.
func Generate(items []playback.DisplayItem, opts Options) ([]byte, error) {
	pdf, err := render(items, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func render(items []playback.DisplayItem, opts Options) (*gofpdf.Fpdf, error) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(opts.Title, true)

	family, tr := "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
	if opts.FontPath != "" {
		pdf.AddUTF8Font(fontFamily, "", opts.FontPath)
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("load font %s: %w", opts.FontPath, err)
		}
		family, tr = fontFamily, func(s string) string { return s }
	}

	pdf.AddPage()
	pdf.SetTextColor(30, 30, 30)
	pdf.SetFont(family, "", titleSize)
	pdf.SetXY(margin, margin)
	pdf.CellFormat(pageW-2*margin, 20, tr(opts.Title), "", 1, "L", false, 0, "")
	if !opts.GeneratedAt.IsZero() {
		pdf.SetFont(family, "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(pageW-2*margin, 12, opts.GeneratedAt.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	}
	y := pdf.GetY() + gap

	pdf.SetFont(family, "", fontSize)
	for _, it := range items {
		lines := pdf.SplitText(tr(it.FullText), bubbleW-2*padding)
		h := nameH + float64(len(lines))*lineH + 2*padding

		if y+h > pageH-margin {
			pdf.AddPage()
			y = margin
		}

		x := float64(margin)
		if it.Speaker == script.SpeakerB {
			x = pageW - margin - bubbleW
		}

		pdf.SetTextColor(110, 110, 110)
		pdf.SetFont(family, "", 8)
		pdf.SetXY(x, y)
		pdf.CellFormat(bubbleW, nameH, tr(opts.Cast.Name(it.Speaker)), "", 0, speakerAlign(it.Speaker), false, 0, "")

		top := y + nameH
		fillFor(pdf, it)
		pdf.RoundedRect(x, top, bubbleW, h-nameH, 6, "1234", "F")

		pdf.SetFont(family, "", fontSize)
		pdf.SetTextColor(20, 20, 20)
		for i, line := range lines {
			pdf.SetXY(x+padding, top+padding+float64(i)*lineH)
			pdf.CellFormat(bubbleW-2*padding, lineH, line, "", 0, "L", false, 0, "")
		}
		y += h + gap
	}
	return pdf, pdf.Error()
}

func speakerAlign(s script.Speaker) string {
	if s == script.SpeakerB {
		return "R"
	}
	return "L"
}

func fillFor(pdf *gofpdf.Fpdf, it playback.DisplayItem) {
	switch {
	case it.Branch:
		pdf.SetFillColor(255, 243, 214)
	case it.Speaker == script.SpeakerB:
		pdf.SetFillColor(214, 240, 238)
	default:
		pdf.SetFillColor(235, 235, 240)
	}
}
