package playback

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"chatfunnel/internal/clock"
	"chatfunnel/internal/script"
)

func tinyGraph(t *testing.T) *script.Graph {
	t.Helper()
	g, err := script.Build(script.Document{
		Title:    "Tiny",
		Cast:     script.Cast{A: script.Role{Name: "Alice"}, B: script.Role{Name: "Bob"}},
		Chooser:  script.SpeakerA,
		MainFlow: []int{1, 2, 3},
		Messages: []script.Message{
			{ID: 1, Speaker: script.SpeakerA, Text: "Hi"},
			{ID: 2, Speaker: script.SpeakerB, Text: "Pick", Choices: []script.Choice{
				{Label: "Go on", Target: 3},
				{Label: "Detour", Target: 9},
			}},
			{ID: 3, Speaker: script.SpeakerA, Text: "Bye"},
			{ID: 9, Speaker: script.SpeakerA, Text: "Detour"},
		},
		Branches:       []script.Branch{{Trigger: 9, Messages: []int{90}, Rejoin: 3}},
		BranchMessages: []script.Message{{ID: 90, Speaker: script.SpeakerB, Text: "Side note"}},
	})
	if err != nil {
		t.Fatalf("Build tiny script: %v", err)
	}
	return g
}

func defaultGraph(t *testing.T) *script.Graph {
	t.Helper()
	g, err := script.Default()
	if err != nil {
		t.Fatalf("Default script: %v", err)
	}
	return g
}

type harness struct {
	e    *Engine
	clk  *clock.Manual
	done []Completion
}

func newHarness(t *testing.T, g *script.Graph) *harness {
	t.Helper()
	h := &harness{clk: clock.NewManual()}
	h.e = New(g, Options{
		Clock:      h.clk,
		OnComplete: func(c Completion) { h.done = append(h.done, c) },
	})
	t.Cleanup(h.e.Close)
	return h
}

// runUntil advances the clock in small steps until cond holds.
func (h *harness) runUntil(t *testing.T, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	for elapsed := time.Duration(0); elapsed < 10*time.Minute; elapsed += 10 * time.Millisecond {
		if s := h.e.Snapshot(); cond(s) {
			return s
		}
		h.clk.Advance(10 * time.Millisecond)
	}
	t.Fatalf("Condition not reached; snapshot: %+v", h.e.Snapshot())
	return Snapshot{}
}

func awaiting(s Snapshot) bool { return s.AwaitingChoice }
func complete(s Snapshot) bool { return s.Complete }

func TestStart_IndicatorThenRuneReveal(t *testing.T) {
	h := newHarness(t, tinyGraph(t))
	if err := h.e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	s := h.e.Snapshot()
	if !s.Typing || s.TypingSpeaker != script.SpeakerA || len(s.Items) != 0 {
		t.Fatalf("Expected indicator for A with no items, got %+v", s)
	}

	h.clk.Advance(499 * time.Millisecond)
	if n := len(h.e.Snapshot().Items); n != 0 {
		t.Fatalf("Expected no items before the indicator delay, got %d", n)
	}
	h.clk.Advance(time.Millisecond)
	s = h.e.Snapshot()
	if s.Typing || len(s.Items) != 1 || s.Items[0].VisibleText != "H" {
		t.Fatalf("Expected first rune revealed, got %+v", s)
	}
	if s.Items[0].ID != "turn-1" {
		t.Errorf("Expected id turn-1, got %q", s.Items[0].ID)
	}

	h.clk.Advance(30 * time.Millisecond)
	if got := h.e.Snapshot().Items[0].VisibleText; got != "Hi" {
		t.Errorf("Expected 'Hi' after one typing tick, got %q", got)
	}
}

func TestStart_Twice(t *testing.T) {
	h := newHarness(t, tinyGraph(t))
	if err := h.e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.e.Start(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
}

func TestReveal_MonotonicPrefix(t *testing.T) {
	h := newHarness(t, defaultGraph(t))
	if err := h.e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	prev := map[string]int{}
	for i := 0; i < 20000 && !h.e.Snapshot().AwaitingChoice; i++ {
		h.clk.Advance(5 * time.Millisecond)
		for _, it := range h.e.Snapshot().Items {
			if !strings.HasPrefix(it.FullText, it.VisibleText) {
				t.Fatalf("%s: visible text is not a prefix of the full text", it.ID)
			}
			n := utf8.RuneCountInString(it.VisibleText)
			if n < prev[it.ID] {
				t.Fatalf("%s: visible text shrank from %d to %d runes", it.ID, prev[it.ID], n)
			}
			if n > prev[it.ID]+1 {
				t.Fatalf("%s: revealed %d runes in one step", it.ID, n-prev[it.ID])
			}
			prev[it.ID] = n
		}
	}
	s := h.e.Snapshot()
	if !s.AwaitingChoice {
		t.Fatal("Expected to reach the first choice")
	}
	if len(s.Items) != 7 {
		t.Errorf("Expected 7 items before the first choice, got %d", len(s.Items))
	}
	for _, it := range s.Items {
		if !it.Done() {
			t.Errorf("%s not fully revealed", it.ID)
		}
	}
}

func TestChoice_HaltsPlayback(t *testing.T) {
	h := newHarness(t, tinyGraph(t))
	_ = h.e.Start()
	s := h.runUntil(t, awaiting)

	if s.Phase != PhaseChoice || len(s.Choices) != 2 {
		t.Fatalf("Expected two choices offered, got %+v", s)
	}
	if h.clk.Pending() != 0 {
		t.Errorf("Expected no pending timers while awaiting a choice, got %d", h.clk.Pending())
	}
	h.clk.Advance(time.Hour)
	after := h.e.Snapshot()
	if len(after.Items) != len(s.Items) || !after.AwaitingChoice {
		t.Errorf("Expected playback to stay halted, got %+v", after)
	}
}

func TestChoice_SettleDelayIsHalfMessageDelay(t *testing.T) {
	h := newHarness(t, tinyGraph(t))
	_ = h.e.Start()
	s := h.runUntil(t, func(s Snapshot) bool {
		return len(s.Items) == 2 && s.Phase == PhaseSettling
	})
	if s.AwaitingChoice {
		t.Fatal("Expected settling before the choice")
	}
	// runUntil may overshoot the settle start by up to one step.
	h.clk.Advance(450 * time.Millisecond)
	if !h.e.Snapshot().AwaitingChoice {
		t.Error("Expected choice to be offered within half the message delay")
	}
}

func TestSelectChoice_NextMessage(t *testing.T) {
	h := newHarness(t, tinyGraph(t))
	_ = h.e.Start()
	h.runUntil(t, awaiting)

	if err := h.e.SelectChoice(script.Choice{Label: "Go on", Target: 3}); err != nil {
		t.Fatalf("SelectChoice: %v", err)
	}
	s := h.runUntil(t, complete)
	if len(s.Items) != 3 || s.Items[2].MessageID != 3 {
		t.Errorf("Expected Hi, Pick, Bye; got %+v", s.Items)
	}
	if s.Reason != ReasonExhausted {
		t.Errorf("Expected exhausted, got %s", s.Reason)
	}
	if len(h.done) != 1 || h.done[0].Reason != ReasonExhausted {
		t.Errorf("Expected one exhausted completion, got %+v", h.done)
	}
	if h.clk.Pending() != 0 {
		t.Errorf("Expected no pending timers after completion, got %d", h.clk.Pending())
	}
}

func TestSelectChoice_Detour(t *testing.T) {
	h := newHarness(t, tinyGraph(t))
	_ = h.e.Start()
	h.runUntil(t, awaiting)

	if err := h.e.SelectChoiceAt(1); err != nil {
		t.Fatalf("SelectChoiceAt: %v", err)
	}
	s := h.e.Snapshot()
	if len(s.Items) != 4 {
		t.Fatalf("Expected echo and branch items inserted at once, got %d items", len(s.Items))
	}
	echo, branch := s.Items[2], s.Items[3]
	if echo.Speaker != script.SpeakerA || echo.FullText != "Detour" || !echo.Done() || !echo.Branch {
		t.Errorf("Unexpected echo item: %+v", echo)
	}
	if branch.Speaker != script.SpeakerB || branch.MessageID != 90 || !branch.Done() {
		t.Errorf("Unexpected branch item: %+v", branch)
	}
	if !s.Typing || s.Index != 2 {
		t.Errorf("Expected indicator at the rejoin waypoint, got index %d typing %v", s.Index, s.Typing)
	}

	s = h.runUntil(t, complete)
	if len(s.Items) != 5 || s.Items[4].MessageID != 3 {
		t.Errorf("Expected rejoin at Bye, got %+v", s.Items)
	}
}

func TestSelectChoice_Invalid(t *testing.T) {
	h := newHarness(t, tinyGraph(t))
	_ = h.e.Start()

	if err := h.e.SelectChoice(script.Choice{Label: "Go on", Target: 3}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition before the prompt, got %v", err)
	}
	h.runUntil(t, awaiting)
	if err := h.e.SelectChoice(script.Choice{Label: "Nope", Target: 3}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition for unoffered choice, got %v", err)
	}
	if err := h.e.SelectChoiceAt(5); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition for out of range index, got %v", err)
	}
	if !h.e.Snapshot().AwaitingChoice {
		t.Error("Expected the prompt to survive invalid selections")
	}
}

func TestSkipToEnd_ImmediatelyAfterStart(t *testing.T) {
	g := defaultGraph(t)
	h := newHarness(t, g)
	_ = h.e.Start()
	h.e.SkipToEnd()

	s := h.e.Snapshot()
	if len(s.Items) != 18 {
		t.Fatalf("Expected 18 items, got %d", len(s.Items))
	}
	for i, it := range s.Items {
		if !it.Done() {
			t.Errorf("Item %d not fully rendered", i)
		}
		if it.MessageID != g.At(i).ID {
			t.Errorf("Item %d: expected message %d, got %d", i, g.At(i).ID, it.MessageID)
		}
	}
	if s.Typing || s.AwaitingChoice || !s.Complete || s.Reason != ReasonSkipped {
		t.Errorf("Expected complete without indicator or prompt, got %+v", s)
	}
	if h.clk.Pending() != 0 {
		t.Errorf("Expected zero pending timers, got %d", h.clk.Pending())
	}

	h.e.SkipToEnd()
	h.clk.Advance(time.Hour)
	if n := len(h.e.Snapshot().Items); n != 18 {
		t.Errorf("Expected skip to be idempotent, got %d items", n)
	}
	if len(h.done) != 1 || h.done[0].Reason != ReasonSkipped {
		t.Errorf("Expected a single skipped completion, got %+v", h.done)
	}
}

func TestSkipToEnd_MidTyping(t *testing.T) {
	h := newHarness(t, defaultGraph(t))
	_ = h.e.Start()
	h.clk.Advance(560 * time.Millisecond)
	if s := h.e.Snapshot(); len(s.Items) != 1 || s.Items[0].Done() {
		t.Fatalf("Expected first item partially typed, got %+v", s.Items)
	}

	h.e.SkipToEnd()
	s := h.e.Snapshot()
	if len(s.Items) != 18 {
		t.Fatalf("Expected 18 items, got %d", len(s.Items))
	}
	if !s.Items[0].Done() {
		t.Error("Expected the in-progress item to be completed")
	}
	if h.clk.Pending() != 0 {
		t.Errorf("Expected zero pending timers, got %d", h.clk.Pending())
	}
}

func TestSkipToEnd_AfterDetour(t *testing.T) {
	h := newHarness(t, defaultGraph(t))
	_ = h.e.Start()
	h.runUntil(t, awaiting)
	if err := h.e.SelectChoiceAt(1); err != nil {
		t.Fatalf("SelectChoiceAt: %v", err)
	}
	h.e.SkipToEnd()

	s := h.e.Snapshot()
	// 1..7, echo, 120, then 11 and 13..19.
	if len(s.Items) != 17 {
		t.Fatalf("Expected 17 items, got %d", len(s.Items))
	}
	if s.Items[9].MessageID != 11 || s.Items[16].MessageID != 19 {
		t.Errorf("Unexpected tail: %d ... %d", s.Items[9].MessageID, s.Items[16].MessageID)
	}
}

func TestCostChoice_ResumesAtRAGIntro(t *testing.T) {
	g := defaultGraph(t)
	h := newHarness(t, g)
	_ = h.e.Start()
	before := h.runUntil(t, awaiting)

	if err := h.e.SelectChoice(before.Choices[1]); err != nil {
		t.Fatalf("SelectChoice: %v", err)
	}
	s := h.e.Snapshot()
	if len(s.Items) != len(before.Items)+2 {
		t.Fatalf("Expected exactly two inserted items, got %d", len(s.Items)-len(before.Items))
	}
	echo := s.Items[len(s.Items)-2]
	if echo.Speaker != g.Chooser() || echo.FullText != "비용은 얼마 정도야?" {
		t.Errorf("Unexpected echo: %+v", echo)
	}
	if last := s.Items[len(s.Items)-1]; last.MessageID != 120 || last.Speaker != script.SpeakerB {
		t.Errorf("Unexpected branch item: %+v", last)
	}

	s = h.runUntil(t, func(s Snapshot) bool { return len(s.Items) == len(before.Items)+3 })
	if id := s.Items[len(s.Items)-1].MessageID; id != 11 {
		t.Errorf("Expected playback to resume at message 11, got %d", id)
	}
	for _, it := range s.Items {
		if it.MessageID == 8 {
			t.Error("Expected messages 8-10 to be skipped by the detour")
		}
	}
}

func TestFullRun_TrustPath(t *testing.T) {
	h := newHarness(t, defaultGraph(t))
	_ = h.e.Start()
	for {
		s := h.runUntil(t, func(s Snapshot) bool { return s.AwaitingChoice || s.Complete })
		if s.Complete {
			if len(s.Items) != 18 {
				t.Errorf("Expected 18 items on the trust path, got %d", len(s.Items))
			}
			break
		}
		if err := h.e.SelectChoiceAt(0); err != nil {
			t.Fatalf("SelectChoiceAt: %v", err)
		}
	}
	if len(h.done) != 1 {
		t.Errorf("Expected onComplete once, got %d", len(h.done))
	}
}

func TestSetSpeed_QueuedTickKeepsOldRate(t *testing.T) {
	h := newHarness(t, defaultGraph(t))
	_ = h.e.Start()
	h.clk.Advance(520 * time.Millisecond)
	runes := func() int { return utf8.RuneCountInString(h.e.Snapshot().Items[0].VisibleText) }
	if runes() != 1 {
		t.Fatalf("Expected 1 rune, got %d", runes())
	}

	h.e.SetSpeed(SpeedFast)
	if h.e.Snapshot().Speed != SpeedFast {
		t.Fatal("Expected fast speed")
	}
	h.clk.Advance(10 * time.Millisecond)
	if runes() != 2 {
		t.Fatalf("Expected the queued tick to fire at the old rate, got %d runes", runes())
	}
	h.clk.Advance(14 * time.Millisecond)
	if runes() != 2 {
		t.Fatalf("Expected no reveal before the fast interval elapsed, got %d runes", runes())
	}
	h.clk.Advance(time.Millisecond)
	if runes() != 3 {
		t.Errorf("Expected fast reveal after 15ms, got %d runes", runes())
	}

	h.e.SetSpeed(SpeedNormal)
	for i := 0; i < 100; i++ {
		prev := runes()
		h.clk.Advance(7 * time.Millisecond)
		if runes() < prev {
			t.Fatal("Visible text shrank after a speed change")
		}
	}
}

func TestReset(t *testing.T) {
	h := newHarness(t, tinyGraph(t))
	_ = h.e.Start()
	h.runUntil(t, awaiting)

	h.e.Reset()
	s := h.e.Snapshot()
	if s.Started || len(s.Items) != 0 || s.AwaitingChoice || s.Phase != PhaseIdle {
		t.Errorf("Expected idle state after reset, got %+v", s)
	}
	if h.clk.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", h.clk.Pending())
	}
	if err := h.e.Start(); err != nil {
		t.Fatalf("Start after reset: %v", err)
	}
	h.clk.Advance(500 * time.Millisecond)
	if s := h.e.Snapshot(); len(s.Items) != 1 || s.Items[0].ID != "turn-1" {
		t.Errorf("Expected a fresh first turn, got %+v", s.Items)
	}
}

func TestClose(t *testing.T) {
	h := newHarness(t, tinyGraph(t))
	ch, _ := h.e.Subscribe()
	_ = h.e.Start()
	h.e.Close()

	if h.clk.Pending() != 0 {
		t.Errorf("Expected no pending timers after close, got %d", h.clk.Pending())
	}
	for range ch {
	}
	if err := h.e.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	h.e.SkipToEnd()
	if len(h.done) != 0 {
		t.Error("Expected no completion after close")
	}
}

func TestSubscribe(t *testing.T) {
	h := newHarness(t, tinyGraph(t))
	ch, cancel := h.e.Subscribe()
	_ = h.e.Start()

	select {
	case <-ch:
	default:
		t.Fatal("Expected a notification after Start")
	}
	select {
	case <-ch:
		t.Fatal("Expected notifications to coalesce")
	default:
	}

	cancel()
	if _, ok := <-ch; ok {
		t.Error("Expected channel closed after cancel")
	}
	cancel()
}

func TestOnComplete_MayReenter(t *testing.T) {
	clk := clock.NewManual()
	var e *Engine
	var seen Snapshot
	e = New(tinyGraph(t), Options{
		Clock:      clk,
		OnComplete: func(Completion) { seen = e.Snapshot() },
	})
	defer e.Close()

	_ = e.Start()
	e.SkipToEnd()
	if !seen.Complete {
		t.Error("Expected the hook to observe the completed state")
	}
}

func TestParseSpeed(t *testing.T) {
	if s, err := ParseSpeed("fast"); err != nil || s != SpeedFast {
		t.Errorf("Expected fast, got %v %v", s, err)
	}
	if _, err := ParseSpeed("ludicrous"); err == nil {
		t.Error("Expected error for unknown speed")
	}
	if SpeedNormal.Toggle() != SpeedFast || SpeedFast.Toggle() != SpeedNormal {
		t.Error("Toggle did not flip")
	}
}
