package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"chatfunnel/internal/playback"
)

// Stream plays e as plain text to w, one finished turn per line. At each
// choice it prints the options and reads a 1-based number from in; an empty
// line, a bad answer or EOF selects the first option.
func Stream(ctx context.Context, e *playback.Engine, in io.Reader, w io.Writer) error {
	updates, stop := e.Subscribe()
	defer stop()

	cast := e.Graph().Cast()
	lines := bufio.NewScanner(in)
	printed := 0

	if !e.Snapshot().Started {
		if err := e.Start(); err != nil {
			return err
		}
	}
	for {
		s := e.Snapshot()
		for printed < len(s.Items) && s.Items[printed].Done() {
			it := s.Items[printed]
			prefix := cast.Name(it.Speaker)
			if it.Branch {
				prefix += " ↳"
			}
			if _, err := fmt.Fprintf(w, "%s: %s\n", prefix, it.FullText); err != nil {
				return err
			}
			printed++
		}
		if s.Complete {
			return nil
		}
		if s.AwaitingChoice {
			for i, c := range s.Choices {
				fmt.Fprintf(w, "  [%d] %s\n", i+1, c.Label)
			}
			if err := e.SelectChoiceAt(readChoice(lines, len(s.Choices))); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-updates:
			if !ok {
				return playback.ErrClosed
			}
		}
	}
}

func readChoice(lines *bufio.Scanner, n int) int {
	if !lines.Scan() {
		return 0
	}
	i, err := strconv.Atoi(strings.TrimSpace(lines.Text()))
	if err != nil || i < 1 || i > n {
		return 0
	}
	return i - 1
}
