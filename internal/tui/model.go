// Package tui plays a script in the terminal: an interactive bubbletea
// player for TTYs and a plain line streamer for pipes.
package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	bubblesvp "github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chatfunnel/internal/clock"
	"chatfunnel/internal/playback"
	"chatfunnel/internal/script"
	"chatfunnel/internal/viewport"
)

// followThreshold is in lines.
const followThreshold = 3

type KeyMap struct {
	Speed   key.Binding
	Skip    key.Binding
	Jump    key.Binding
	Restart key.Binding
	Up      key.Binding
	Down    key.Binding
	Quit    key.Binding
}

var DefaultKeys = KeyMap{
	Speed: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "toggle speed"),
	),
	Skip: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "show all"),
	),
	Jump: key.NewBinding(
		key.WithKeys("end", "G"),
		key.WithHelp("G", "jump to latest"),
	),
	Restart: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "restart"),
	),
	Up: key.NewBinding(
		key.WithKeys("k", "up", "pgup"),
		key.WithHelp("k/↑", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down", "pgdown"),
		key.WithHelp("j/↓", "scroll down"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

var (
	styleA      = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	styleB      = lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true)
	styleBranch = lipgloss.NewStyle().Foreground(lipgloss.Color("221"))
	styleDim    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleChoice = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleJump   = lipgloss.NewStyle().Background(lipgloss.Color("31")).Foreground(lipgloss.Color("15")).Padding(0, 1)
	styleTitle  = lipgloss.NewStyle().Bold(true).MarginBottom(1)
)

// Message types
type changedMsg struct{}
type snapMsg struct{}
type closedMsg struct{}

type Model struct {
	engine *playback.Engine
	graph  *script.Graph
	follow *viewport.Controller
	keys   KeyMap

	updates   <-chan struct{}
	stop      func()
	snaps     chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	vp     bubblesvp.Model
	snap   playback.Snapshot
	width  int
	height int
	ready  bool
}

// New returns a player over e. clk drives the follow controller's idle
// timer; nil selects wall time.
func New(e *playback.Engine, clk clock.Clock) *Model {
	m := &Model{
		engine: e,
		graph:  e.Graph(),
		keys:   DefaultKeys,
		snaps:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	m.follow = viewport.New(viewport.Options{
		Clock:     clk,
		Threshold: followThreshold,
		OnSnap: func() {
			select {
			case m.snaps <- struct{}{}:
			default:
			}
		},
	})
	m.updates, m.stop = e.Subscribe()
	m.snap = e.Snapshot()
	return m
}

// Close detaches the model from the engine. Pending waits return closedMsg.
func (m *Model) Close() {
	m.closeOnce.Do(func() {
		m.stop()
		m.follow.Close()
		close(m.done)
	})
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return closedMsg{}
		}
		return changedMsg{}
	}
}

func waitForSnap(snaps, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-snaps:
			return snapMsg{}
		case <-done:
			return closedMsg{}
		}
	}
}

func (m *Model) Init() tea.Cmd {
	if !m.snap.Started {
		_ = m.engine.Start()
	}
	return tea.Batch(waitForChange(m.updates), waitForSnap(m.snaps, m.done))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := msg.Height - 3
		if h < 1 {
			h = 1
		}
		if !m.ready {
			m.vp = bubblesvp.New(msg.Width, h)
			m.ready = true
		} else {
			m.vp.Width, m.vp.Height = msg.Width, h
		}
		m.refresh()
		return m, nil

	case changedMsg:
		m.refresh()
		return m, waitForChange(m.updates)

	case closedMsg:
		return m, tea.Quit

	case snapMsg:
		if m.ready {
			m.vp.GotoBottom()
		}
		return m, waitForSnap(m.snaps, m.done)

	case tea.MouseMsg:
		m.follow.OnPointerActivity()
		if !m.ready {
			return m, nil
		}
		var cmd tea.Cmd
		m.vp, cmd = m.vp.Update(msg)
		m.reportScroll()
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Speed):
		if m.snap.Playing() {
			m.engine.SetSpeed(m.snap.Speed.Toggle())
		}
	case key.Matches(msg, m.keys.Skip):
		if m.snap.Playing() {
			m.engine.SkipToEnd()
		}
	case key.Matches(msg, m.keys.Jump):
		m.follow.JumpToBottom()
	case key.Matches(msg, m.keys.Restart):
		m.engine.Reset()
		_ = m.engine.Start()
		m.follow.JumpToBottom()
	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.Down):
		if m.ready {
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			m.reportScroll()
			return m, cmd
		}
	default:
		if n, ok := choiceKey(msg.String()); ok && m.snap.AwaitingChoice {
			_ = m.engine.SelectChoiceAt(n)
		}
	}
	m.refresh()
	return m, nil
}

// choiceKey maps "1".."9" to a zero-based choice index.
func choiceKey(s string) (int, bool) {
	if len(s) != 1 || s[0] < '1' || s[0] > '9' {
		return 0, false
	}
	return int(s[0] - '1'), true
}

func (m *Model) reportScroll() {
	m.follow.OnScroll(viewport.Position{
		Top:    float64(m.vp.YOffset),
		Height: float64(m.vp.TotalLineCount()),
		Client: float64(m.vp.Height),
	})
}

func (m *Model) refresh() {
	m.snap = m.engine.Snapshot()
	if !m.ready {
		return
	}
	m.vp.SetContent(m.transcript())
	if m.follow.OnContentChange() {
		m.vp.GotoBottom()
	}
}

func (m *Model) speakerStyle(sp script.Speaker) lipgloss.Style {
	if sp == script.SpeakerA {
		return styleA
	}
	return styleB
}

// transcript renders the scrollable conversation body.
func (m *Model) transcript() string {
	cast := m.graph.Cast()
	wrap := lipgloss.NewStyle().Width(max(m.width-2, 10))
	var b strings.Builder
	b.WriteString(styleTitle.Render(m.graph.Title()))
	b.WriteString("\n")
	for _, it := range m.snap.Items {
		name := m.speakerStyle(it.Speaker).Render(cast.Name(it.Speaker))
		if it.Branch {
			name += styleBranch.Render(" ↳")
		}
		text := it.VisibleText
		if !it.Done() {
			text += "▍"
		}
		fmt.Fprintf(&b, "%s\n%s\n\n", name, wrap.Render(text))
	}
	if m.snap.Typing {
		fmt.Fprintf(&b, "%s\n", styleDim.Render(cast.Name(m.snap.TypingSpeaker)+" 입력 중 …"))
	}
	if m.snap.AwaitingChoice {
		for i, c := range m.snap.Choices {
			fmt.Fprintf(&b, "%s\n", styleChoice.Render(fmt.Sprintf("[%d] %s", i+1, c.Label)))
		}
	}
	if m.snap.Complete {
		b.WriteString(styleDim.Render("대화가 끝났습니다. r: 다시 보기 · q: 종료"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) status() string {
	var parts []string
	if m.snap.Playing() {
		parts = append(parts, fmt.Sprintf("speed: %s", m.snap.Speed))
	}
	parts = append(parts, fmt.Sprintf("%d/%d", min(m.snap.Index, m.snap.Total), m.snap.Total))
	help := []key.Binding{m.keys.Speed, m.keys.Skip, m.keys.Restart, m.keys.Quit}
	for _, k := range help {
		h := k.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return styleDim.Render(strings.Join(parts, " · "))
}

func (m *Model) View() string {
	if !m.ready {
		return "loading…"
	}
	footer := ""
	if m.follow.State().ShowJump {
		footer = styleJump.Render("새 메시지 ↓ (G)")
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.vp.View(), footer, m.status())
}

// Run plays e interactively until the visitor quits.
func Run(e *playback.Engine, opts ...tea.ProgramOption) error {
	m := New(e, nil)
	defer m.Close()
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	return err
}
