package html

import (
	"fmt"
	"strconv"

	"github.com/maragudk/gomponents-heroicons/v2/outline"
	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"chatfunnel/internal/playback"
	"chatfunnel/internal/script"
	"chatfunnel/internal/viewport"
)

// ChatView is the visitor state the chat fragment is drawn from.
type ChatView struct {
	Title       string
	Cast        script.Cast
	Snapshot    playback.Snapshot
	Viewport    viewport.State
	Follow      bool // scroll to the bottom after this render
	CTAAccepted bool
}

// ChatPage is the landing page: header, live chat region, form slot and
// footer. The chat region re-renders from the stream; the form slot does not,
// so typed input survives playback updates.
func ChatPage(v ChatView, form *LeadForm) Node {
	return page(v.Title,
		header(v.Title, "마케팅전문가 상담 중"),
		Main(
			ID("scroller"),
			Class("flex-1 overflow-y-auto px-4 py-6"),
			Div(
				Class("max-w-2xl mx-auto"),
				Div(
					ID("chat"),
					Attr("hx-ext", "sse"),
					Attr("sse-connect", "/chat/stream"),
					Attr("sse-swap", "chat"),
					Attr("hx-swap", "innerHTML"),
					ChatFragment(v),
				),
				Div(
					ID("lead-slot"),
					Iff(form != nil, func() Node { return LeadFormFragment(*form) }),
				),
			),
		),
		footer(),
	)
}

// ChatFragment renders the inner chat region.
func ChatFragment(v ChatView) Node {
	s := v.Snapshot
	return Div(
		ID("chat-body"),
		Class("space-y-4"),
		Data("follow", strconv.FormatBool(v.Follow)),
		Data("phase", string(s.Phase)),
		If(!s.Started, startPrompt()),
		Map(s.Items, func(it playback.DisplayItem) Node { return bubble(v.Cast, it) }),
		If(s.Typing, typingIndicator(v.Cast, s.TypingSpeaker)),
		If(s.AwaitingChoice, choiceButtons(s.Choices)),
		If(s.Complete && !v.CTAAccepted, cta()),
		If(s.Complete, transcriptLink()),
		If(s.Playing(), speedControl(s.Speed)),
		If(v.Viewport.ShowJump, jumpButton()),
	)
}

func sideClasses(sp script.Speaker) (row, bubble, name string) {
	if sp == script.SpeakerA {
		return "flex-row",
			"bg-gradient-to-br from-amber-500/20 to-orange-500/20 border border-amber-400/30 rounded-tl-sm",
			"text-amber-400"
	}
	return "flex-row-reverse",
		"bg-gradient-to-br from-cyan-500/20 to-blue-500/20 border border-cyan-400/30 rounded-tr-sm",
		"text-cyan-400"
}

func avatar(sp script.Speaker) Node {
	if sp == script.SpeakerA {
		return Div(
			Class("w-10 h-10 rounded-full flex items-center justify-center border-2 shrink-0 border-amber-400/50 bg-amber-500/20"),
			Span(Class("w-5 h-5 text-amber-400"), outline.Heart()),
		)
	}
	return Div(
		Class("w-10 h-10 rounded-full flex items-center justify-center border-2 shrink-0 border-cyan-400/50 bg-cyan-500/20"),
		Span(Class("w-5 h-5 text-cyan-400"), outline.Briefcase()),
	)
}

func bubble(cast script.Cast, it playback.DisplayItem) Node {
	row, box, name := sideClasses(it.Speaker)
	return Div(
		ID(it.ID),
		Class("flex gap-3 "+row),
		Data("message", strconv.Itoa(it.MessageID)),
		If(it.Branch, Data("branch", "true")),
		avatar(it.Speaker),
		Div(
			Class("max-w-[80%]"),
			Span(Class("text-xs font-medium mb-1 block "+name), Text(cast.Name(it.Speaker))),
			Div(
				Class("px-4 py-3 rounded-2xl "+box),
				P(
					Class("leading-relaxed whitespace-pre-line text-sm md:text-base"),
					Text(it.VisibleText),
					If(!it.Done(), Span(Class("typing-caret"))),
				),
			),
		),
	)
}

func typingIndicator(cast script.Cast, sp script.Speaker) Node {
	row, box, _ := sideClasses(sp)
	return Div(
		ID("typing"),
		Class("flex gap-3 "+row),
		Attr("aria-label", cast.Name(sp)+" 입력 중"),
		avatar(sp),
		Div(
			Class("px-4 py-3 rounded-2xl "+box),
			Div(
				Class("flex gap-1"),
				Span(Class("dot w-2 h-2 bg-white/60 rounded-full animate-bounce")),
				Span(Class("dot w-2 h-2 bg-white/60 rounded-full animate-bounce")),
				Span(Class("dot w-2 h-2 bg-white/60 rounded-full animate-bounce")),
			),
		),
	)
}

func choiceButtons(choices []script.Choice) Node {
	buttons := make([]Node, 0, len(choices))
	for i, c := range choices {
		buttons = append(buttons, Button(
			Type("button"),
			Class("choice px-5 py-3 rounded-xl bg-white/10 border border-white/20 hover:bg-white/20 transition-all text-left"),
			Attr("hx-post", "/chat/choice"),
			Attr("hx-vals", fmt.Sprintf(`{"index":"%d"}`, i)),
			Attr("hx-target", "#chat"),
			Text(c.Label),
		))
	}
	return Div(ID("choices"), Class("flex flex-col gap-2 items-start pl-14"), Group(buttons))
}

func startPrompt() Node {
	return Div(
		Class("text-center py-12"),
		Button(
			Type("button"),
			Class("px-8 py-3 bg-gradient-to-r from-teal-500 to-cyan-400 font-bold rounded-xl"),
			Attr("hx-post", "/chat/start"),
			Attr("hx-target", "#chat"),
			Text("상담 시작하기"),
		),
	)
}

func cta() Node {
	return Div(
		ID("cta"),
		Class("mt-6 p-6 text-center max-w-md mx-auto rounded-2xl bg-white/5 border border-white/10"),
		H3(Class("text-xl font-bold mb-4"), Text("데모시연과 상담을 원하십니까?")),
		Div(
			Class("flex gap-4 justify-center"),
			Button(
				Type("button"),
				Class("px-8 py-3 bg-gradient-to-r from-cyan-500 to-blue-500 font-bold rounded-xl"),
				Attr("hx-post", "/chat/cta"),
				Attr("hx-target", "#lead-slot"),
				Text("상담 받아볼게요"),
			),
			Button(
				Type("button"),
				Class("px-8 py-3 bg-white/10 font-medium rounded-xl border border-white/20"),
				Attr("hx-post", "/chat/cta/decline"),
				Text("아니오"),
			),
		),
	)
}

func transcriptLink() Node {
	return Div(
		Class("text-center"),
		A(
			Href("/chat/transcript.pdf"),
			Class("inline-flex items-center gap-2 text-xs text-gray-400 hover:text-white"),
			Span(Class("w-4 h-4"), outline.DocumentArrowDown()),
			Text("대화 내용 PDF로 저장"),
		),
	)
}

func speedControl(speed playback.Speed) Node {
	label, tone := "2배속", "bg-white/10 border-white/20"
	if speed == playback.SpeedFast {
		label, tone = "일반", "bg-yellow-500/20 border-yellow-400/50 text-yellow-300"
	}
	return Div(
		ID("controls"),
		Class("fixed bottom-6 right-6 flex flex-col gap-2 z-50"),
		Button(
			Type("button"),
			Class("flex items-center gap-2 px-4 py-2 rounded-xl backdrop-blur-md border "+tone),
			Attr("hx-post", "/chat/speed"),
			Attr("hx-vals", fmt.Sprintf(`{"speed":%q}`, speed.Toggle())),
			Attr("hx-target", "#chat"),
			Span(Class("w-4 h-4"), outline.Bolt()),
			Span(Class("text-sm font-medium"), Text(label)),
		),
		Button(
			Type("button"),
			Class("flex items-center gap-2 px-4 py-2 rounded-xl backdrop-blur-md bg-white/10 border border-white/20"),
			Attr("hx-post", "/chat/skip"),
			Attr("hx-target", "#chat"),
			Span(Class("w-4 h-4"), outline.BookOpen()),
			Span(Class("text-sm font-medium"), Text("전체보기")),
		),
	)
}

func jumpButton() Node {
	return Button(
		ID("jump"),
		Type("button"),
		Class("fixed bottom-24 left-1/2 -translate-x-1/2 flex items-center gap-2 px-4 py-2 rounded-full bg-cyan-500/80 border border-cyan-400/50 animate-bounce z-50"),
		Attr("hx-post", "/chat/viewport/jump"),
		Attr("hx-target", "#chat"),
		Span(Class("w-4 h-4"), outline.ChevronDown()),
		Span(Class("text-sm font-medium"), Text("새 메시지")),
	)
}
