// Package viewport decides when the chat view follows new content and when it
// stays where a reading visitor scrolled to.
package viewport

import (
	"sync"
	"time"

	"chatfunnel/internal/clock"
)

const (
	DefaultThreshold = 100
	DefaultIdle      = 2 * time.Second
)

// Position is a scroll container measurement, in pixels or lines.
type Position struct {
	Top    float64 // scrollTop
	Height float64 // scrollHeight
	Client float64 // clientHeight
}

// AtBottom reports whether the remaining distance to the end is under
// threshold.
func (p Position) AtBottom(threshold float64) bool {
	return p.Height-p.Top-p.Client < threshold
}

// State is what the renderer needs to draw the viewport.
type State struct {
	Locked   bool
	ShowJump bool
}

type Options struct {
	Clock     clock.Clock
	Threshold float64
	Idle      time.Duration
	// OnSnap is called, outside the controller's lock, whenever the lock is
	// released by idle timeout or JumpToBottom. The renderer scrolls to the
	// bottom in response.
	OnSnap func()
}

type Controller struct {
	clk       clock.Clock
	threshold float64
	idle      time.Duration
	onSnap    func()

	mu     sync.Mutex
	state  State
	timer  clock.Timer
	gen    uint64
	closed bool
}

func New(opts Options) *Controller {
	c := &Controller{
		clk:       opts.Clock,
		threshold: opts.Threshold,
		idle:      opts.Idle,
		onSnap:    opts.OnSnap,
	}
	if c.clk == nil {
		c.clk = clock.Real()
	}
	if c.threshold <= 0 {
		c.threshold = DefaultThreshold
	}
	if c.idle <= 0 {
		c.idle = DefaultIdle
	}
	return c
}

// State returns the current lock state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnScroll records a scroll by the visitor. Leaving the bottom locks the view
// and shows the jump affordance; returning to it releases the lock.
func (c *Controller) OnScroll(p Position) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if !p.AtBottom(c.threshold) {
		c.state = State{Locked: true, ShowJump: true}
		c.armLocked()
		return
	}
	if c.state.Locked {
		c.stopLocked()
		c.state = State{}
	}
}

// OnPointerActivity counts as continued reading and restarts the idle timer
// of a locked view. It has no effect on an unlocked view.
func (c *Controller) OnPointerActivity() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.state.Locked {
		return
	}
	c.armLocked()
}

// OnContentChange reports whether the renderer should scroll to the bottom
// for newly arrived content.
func (c *Controller) OnContentChange() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && !c.state.Locked
}

// JumpToBottom releases the lock immediately.
func (c *Controller) JumpToBottom() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.stopLocked()
	c.state = State{}
	c.mu.Unlock()
	c.snap()
}

// Close stops the idle timer. Later calls are no-ops.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.closed = true
}

func (c *Controller) armLocked() {
	c.stopLocked()
	gen := c.gen
	c.timer = c.clk.AfterFunc(c.idle, func() {
		c.mu.Lock()
		if gen != c.gen || c.closed {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.state = State{}
		c.mu.Unlock()
		c.snap()
	})
}

func (c *Controller) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (c *Controller) snap() {
	if c.onSnap != nil {
		c.onSnap()
	}
}
