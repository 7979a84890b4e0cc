// Package playback walks a script and produces the live sequence of display
// items, typing indicators and choice prompts shown to a visitor.
//
// The engine is a timer-driven state machine. It holds at most one pending
// timer; every transition that changes course goes through cancelTimers,
// which stops that timer and bumps a generation counter so a callback already
// in flight becomes a no-op.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chatfunnel/internal/clock"
	"chatfunnel/internal/script"
)

var (
	// ErrInvalidTransition is a caller contract violation, e.g. selecting a
	// choice while none is offered.
	ErrInvalidTransition = errors.New("invalid playback transition")
	ErrClosed            = errors.New("playback engine closed")
)

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Clock      clock.Clock
	Timings    *Timings
	Speed      Speed
	OnComplete func(Completion)
	Logger     *slog.Logger
}

type Engine struct {
	graph      *script.Graph
	clk        clock.Clock
	timings    Timings
	initSpeed  Speed
	onComplete func(Completion)
	log        *slog.Logger

	mu     sync.Mutex
	st     state
	timer  clock.Timer
	gen    uint64
	active bool
	closed bool
	fire   *Completion

	subs    map[int]chan struct{}
	nextSub int
}

type state struct {
	started   bool
	phase     Phase
	index     int
	indicator bool
	awaiting  bool
	choices   []script.Choice
	complete  bool
	reason    CompletionReason
	fired     bool
	speed     Speed

	items    []DisplayItem
	turns    int
	rendered bool // item for index exists
	cur      int  // in-progress item, -1 when none
	runes    []rune
	revealed int
}

// New returns an idle engine over g.
func New(g *script.Graph, opts Options) *Engine {
	e := &Engine{
		graph:      g,
		clk:        opts.Clock,
		onComplete: opts.OnComplete,
		log:        opts.Logger,
		initSpeed:  opts.Speed,
		subs:       map[int]chan struct{}{},
	}
	if e.clk == nil {
		e.clk = clock.Real()
	}
	if opts.Timings != nil {
		e.timings = *opts.Timings
	} else {
		e.timings = DefaultTimings()
	}
	if e.initSpeed == "" {
		e.initSpeed = SpeedNormal
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.log = e.log.With("component", "playback")
	e.st = e.freshState()
	return e
}

func (e *Engine) freshState() state {
	return state{phase: PhaseIdle, speed: e.initSpeed, cur: -1}
}

// Graph returns the script being played.
func (e *Engine) Graph() *script.Graph { return e.graph }

// Start begins rendering from the first main flow message.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.unlock()
	if e.closed {
		return ErrClosed
	}
	if e.st.started {
		return fmt.Errorf("%w: already started", ErrInvalidTransition)
	}
	e.st.started = true
	e.active = true
	e.log.Debug("playback started", "messages", e.graph.Len())
	e.enterLocked()
	return nil
}

// SelectChoice resolves the pending choice. Taking a choice whose target
// triggers a detour inserts the echo and branch turns and resumes at the
// detour's rejoin waypoint; any other choice resumes at the next message.
func (e *Engine) SelectChoice(c script.Choice) error {
	e.mu.Lock()
	defer e.unlock()
	if e.closed {
		return ErrClosed
	}
	if !e.st.awaiting {
		return fmt.Errorf("%w: not awaiting a choice", ErrInvalidTransition)
	}
	for _, offered := range e.st.choices {
		if offered == c {
			e.selectLocked(c)
			return nil
		}
	}
	return fmt.Errorf("%w: choice %q is not offered", ErrInvalidTransition, c.Label)
}

// SelectChoiceAt selects the i-th offered choice.
func (e *Engine) SelectChoiceAt(i int) error {
	e.mu.Lock()
	defer e.unlock()
	if e.closed {
		return ErrClosed
	}
	if !e.st.awaiting {
		return fmt.Errorf("%w: not awaiting a choice", ErrInvalidTransition)
	}
	if i < 0 || i >= len(e.st.choices) {
		return fmt.Errorf("%w: choice index %d out of range", ErrInvalidTransition, i)
	}
	e.selectLocked(e.st.choices[i])
	return nil
}

func (e *Engine) selectLocked(c script.Choice) {
	e.cancelTimersLocked()
	e.st.awaiting = false
	e.st.choices = nil

	if d, ok := e.graph.Detour(c.Target); ok {
		e.appendFullLocked(e.graph.Chooser(), c.Target, true, c.Label)
		for _, m := range d.Messages {
			e.appendFullLocked(m.Speaker, m.ID, true, m.Text)
		}
		e.log.Debug("detour taken", "trigger", c.Target, "rejoin", d.Rejoin)
		e.st.index = d.RejoinIndex
	} else {
		e.st.index++
	}
	e.enterLocked()
}

// SetSpeed changes the pacing of future reveals and delays. A tick or delay
// already scheduled completes at the rate it was scheduled with.
func (e *Engine) SetSpeed(s Speed) {
	e.mu.Lock()
	defer e.unlock()
	if e.closed || e.st.speed == s {
		return
	}
	e.st.speed = s
	e.changedLocked()
}

// SkipToEnd renders every remaining main flow message in full and marks the
// script complete. Calling it again has no effect.
func (e *Engine) SkipToEnd() {
	e.mu.Lock()
	defer e.unlock()
	if e.closed || e.st.complete {
		return
	}
	e.cancelTimersLocked()
	e.st.started = true

	from := e.st.index
	if e.st.rendered {
		from++
	}
	if e.st.cur >= 0 {
		it := &e.st.items[e.st.cur]
		it.VisibleText = it.FullText
		e.st.cur = -1
	}
	for i := from; i < e.graph.Len(); i++ {
		m := e.graph.At(i)
		e.appendFullLocked(m.Speaker, m.ID, false, m.Text)
	}
	e.st.index = e.graph.Len()
	e.st.indicator = false
	e.st.awaiting = false
	e.st.choices = nil
	e.completeLocked(ReasonSkipped)
}

// Reset returns the engine to its initial idle state, discarding every
// display item. Start may be called again afterwards.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.unlock()
	if e.closed {
		return
	}
	e.cancelTimersLocked()
	e.active = false
	e.st = e.freshState()
	e.changedLocked()
}

// Close cancels all timers and detaches subscribers. The engine is unusable
// afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.cancelTimersLocked()
	e.active = false
	e.closed = true
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Snapshot{
		Started:        e.st.started,
		Phase:          e.st.phase,
		Index:          e.st.index,
		Total:          e.graph.Len(),
		Items:          append([]DisplayItem(nil), e.st.items...),
		Typing:         e.st.indicator,
		AwaitingChoice: e.st.awaiting,
		Choices:        append([]script.Choice(nil), e.st.choices...),
		Complete:       e.st.complete,
		Reason:         e.st.reason,
		Speed:          e.st.speed,
	}
	if s.Typing {
		if m := e.graph.At(e.st.index); m != nil {
			s.TypingSpeaker = m.Speaker
		}
	}
	return s
}

// Subscribe returns a channel that receives a value after state changes.
// Notifications coalesce; read Snapshot after each one. The returned func
// unsubscribes.
func (e *Engine) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(ch)
		return ch, func() {}
	}
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if c, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(c)
		}
	}
}

// --- state machine ---

func (e *Engine) enterLocked() {
	e.st.rendered = false
	e.st.cur = -1
	if e.st.index >= e.graph.Len() {
		e.completeLocked(ReasonExhausted)
		return
	}
	e.st.phase = PhaseIndicator
	e.st.indicator = true
	e.changedLocked()
	e.afterLocked(e.timings.Indicator, e.beginTypingLocked)
}

func (e *Engine) beginTypingLocked() {
	m := e.graph.At(e.st.index)
	e.st.indicator = false
	e.st.runes = []rune(m.Text)
	e.st.revealed = 1
	e.st.turns++
	e.st.items = append(e.st.items, DisplayItem{
		ID:          fmt.Sprintf("turn-%d", e.st.turns),
		Speaker:     m.Speaker,
		MessageID:   m.ID,
		VisibleText: string(e.st.runes[:1]),
		FullText:    m.Text,
	})
	e.st.cur = len(e.st.items) - 1
	e.st.rendered = true
	e.st.phase = PhaseTyping
	e.changedLocked()
	e.afterLocked(e.timings.pace(e.st.speed).Typing, e.tickLocked)
}

func (e *Engine) tickLocked() {
	pace := e.timings.pace(e.st.speed)
	if e.st.revealed < len(e.st.runes) {
		e.st.revealed++
		e.st.items[e.st.cur].VisibleText = string(e.st.runes[:e.st.revealed])
		e.changedLocked()
		e.afterLocked(pace.Typing, e.tickLocked)
		return
	}

	e.st.cur = -1
	e.st.phase = PhaseSettling
	m := e.graph.At(e.st.index)
	if len(m.Choices) > 0 {
		e.afterLocked(pace.Message/2, func() {
			e.st.phase = PhaseChoice
			e.st.awaiting = true
			e.st.choices = append([]script.Choice(nil), m.Choices...)
			e.changedLocked()
		})
		return
	}
	e.afterLocked(pace.Message, func() {
		e.st.index++
		e.enterLocked()
	})
}

func (e *Engine) completeLocked(reason CompletionReason) {
	if e.st.complete {
		return
	}
	e.st.complete = true
	e.st.reason = reason
	e.st.phase = PhaseComplete
	e.st.indicator = false
	if !e.st.fired {
		e.st.fired = true
		e.fire = &Completion{Reason: reason, Items: len(e.st.items)}
	}
	e.log.Debug("playback complete", "reason", reason, "items", len(e.st.items))
	e.changedLocked()
}

func (e *Engine) appendFullLocked(sp script.Speaker, id int, branch bool, text string) {
	e.st.turns++
	e.st.items = append(e.st.items, DisplayItem{
		ID:          fmt.Sprintf("turn-%d", e.st.turns),
		Speaker:     sp,
		MessageID:   id,
		Branch:      branch,
		VisibleText: text,
		FullText:    text,
	})
}

// --- timers ---

func (e *Engine) afterLocked(d time.Duration, step func()) {
	gen := e.gen
	e.timer = e.clk.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.unlock()
		if gen != e.gen || !e.active {
			return
		}
		e.timer = nil
		step()
	})
}

func (e *Engine) cancelTimersLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.gen++
}

func (e *Engine) changedLocked() {
	for _, ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// unlock releases the mutex and then delivers a pending completion, so the
// hook may call back into the engine.
func (e *Engine) unlock() {
	c := e.fire
	e.fire = nil
	e.mu.Unlock()
	if c != nil && e.onComplete != nil {
		e.onComplete(*c)
	}
}
