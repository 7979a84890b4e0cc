package tui

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatfunnel/internal/clock"
	"chatfunnel/internal/playback"
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
	require.NoError(t, err)
	return g
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func keyRunes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func newModel(t *testing.T, height int) (*Model, *playback.Engine, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual()
	e := playback.New(tinyGraph(t), playback.Options{Clock: clk, Logger: discard()})
	m := New(e, clk)
	t.Cleanup(func() {
		m.Close()
		e.Close()
	})
	m.Init()
	m.Update(tea.WindowSizeMsg{Width: 80, Height: height})
	return m, e, clk
}

func advanceUntil(t *testing.T, clk *clock.Manual, e *playback.Engine, cond func(playback.Snapshot) bool) {
	t.Helper()
	for i := 0; i < 10000; i++ {
		if cond(e.Snapshot()) {
			return
		}
		clk.Advance(10 * time.Millisecond)
	}
	t.Fatalf("Condition not reached: %+v", e.Snapshot())
}

func TestInitStartsPlayback(t *testing.T) {
	_, e, _ := newModel(t, 24)
	assert.True(t, e.Snapshot().Started)
}

func TestSkipKey(t *testing.T) {
	m, e, _ := newModel(t, 24)
	m.Update(keyRunes("s"))

	assert.True(t, e.Snapshot().Complete)
	view := m.View()
	assert.Contains(t, view, "Bye")
	assert.Contains(t, view, "대화가 끝났습니다")
}

func TestChoiceKeys(t *testing.T) {
	m, e, clk := newModel(t, 24)
	advanceUntil(t, clk, e, func(s playback.Snapshot) bool { return s.AwaitingChoice })
	m.Update(changedMsg{})
	assert.Contains(t, m.View(), "[2] Detour")

	m.Update(keyRunes("7"))
	assert.True(t, e.Snapshot().AwaitingChoice, "Expected an out-of-range key to be ignored")

	m.Update(keyRunes("2"))
	assert.Contains(t, m.View(), "Side note")
}

func TestSpeedKey(t *testing.T) {
	m, e, _ := newModel(t, 24)
	m.Update(keyRunes("f"))
	assert.Equal(t, playback.SpeedFast, e.Snapshot().Speed)
	m.Update(keyRunes("f"))
	assert.Equal(t, playback.SpeedNormal, e.Snapshot().Speed)
}

func TestRestartKey(t *testing.T) {
	m, e, _ := newModel(t, 24)
	m.Update(keyRunes("s"))
	m.Update(keyRunes("r"))

	s := e.Snapshot()
	assert.True(t, s.Started)
	assert.False(t, s.Complete)
	assert.Empty(t, s.Items)
}

func TestScrollingUpLocksFollow(t *testing.T) {
	m, _, _ := newModel(t, 5)
	m.Update(keyRunes("s"))
	require.False(t, m.follow.State().Locked)

	for i := 0; i < 8; i++ {
		m.Update(keyRunes("k"))
	}
	assert.True(t, m.follow.State().Locked)
	assert.Contains(t, m.View(), "새 메시지")

	m.Update(keyRunes("G"))
	assert.False(t, m.follow.State().Locked)
}

func TestQuit(t *testing.T) {
	m, _, _ := newModel(t, 24)
	_, cmd := m.Update(keyRunes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestCloseReleasesWaiters(t *testing.T) {
	m, _, _ := newModel(t, 24)
	m.Close()
	m.Close()

	got := make(chan tea.Msg, 1)
	go func() { got <- waitForSnap(m.snaps, m.done)() }()
	select {
	case msg := <-got:
		assert.IsType(t, closedMsg{}, msg)
	case <-time.After(time.Second):
		t.Fatal("Expected the snap wait to return after Close")
	}
}

func TestChoiceKey(t *testing.T) {
	n, ok := choiceKey("1")
	assert.True(t, ok)
	assert.Equal(t, 0, n)
	_, ok = choiceKey("0")
	assert.False(t, ok)
	_, ok = choiceKey("12")
	assert.False(t, ok)
}

func fastEngine(t *testing.T) *playback.Engine {
	t.Helper()
	pace := playback.Pace{Typing: time.Millisecond, Message: 2 * time.Millisecond}
	e := playback.New(tinyGraph(t), playback.Options{
		Timings: &playback.Timings{Indicator: time.Millisecond, Normal: pace, Fast: pace},
		Logger:  discard(),
	})
	t.Cleanup(e.Close)
	return e
}

func TestStreamTakesChoiceFromInput(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out strings.Builder
	require.NoError(t, Stream(ctx, fastEngine(t), strings.NewReader("2\n"), &out))

	assert.Equal(t, strings.Join([]string{
		"Alice: Hi",
		"Bob: Pick",
		"  [1] Go on",
		"  [2] Detour",
		"Alice ↳: Detour",
		"Bob ↳: Side note",
		"Alice: Bye",
	}, "\n")+"\n", out.String())
}

func TestStreamDefaultsToFirstChoice(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out strings.Builder
	require.NoError(t, Stream(ctx, fastEngine(t), strings.NewReader(""), &out))

	assert.NotContains(t, out.String(), "Side note")
	assert.True(t, strings.HasSuffix(out.String(), "Alice: Bye\n"))
}

func TestStreamCancelled(t *testing.T) {
	clk := clock.NewManual()
	e := playback.New(tinyGraph(t), playback.Options{Clock: clk, Logger: discard()})
	t.Cleanup(e.Close)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Stream(ctx, e, strings.NewReader(""), io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}
