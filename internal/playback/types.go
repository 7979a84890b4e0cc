package playback

import (
	"fmt"
	"time"

	"chatfunnel/internal/script"
)

// Speed selects the reveal and inter-message pacing.
type Speed string

const (
	SpeedNormal Speed = "normal"
	SpeedFast   Speed = "fast"
)

// ParseSpeed accepts "normal" and "fast".
func ParseSpeed(s string) (Speed, error) {
	switch Speed(s) {
	case SpeedNormal, SpeedFast:
		return Speed(s), nil
	default:
		return "", fmt.Errorf("unknown speed %q", s)
	}
}

// Toggle flips between normal and fast.
func (s Speed) Toggle() Speed {
	if s == SpeedFast {
		return SpeedNormal
	}
	return SpeedFast
}

// Pace is the speed-dependent part of the timings.
type Pace struct {
	Typing  time.Duration // per revealed character
	Message time.Duration // pause after a fully revealed message
}

// Timings controls every delay the engine schedules.
type Timings struct {
	Indicator time.Duration // typing indicator, independent of speed
	Normal    Pace
	Fast      Pace
}

// DefaultTimings matches the landing page pacing.
func DefaultTimings() Timings {
	return Timings{
		Indicator: 500 * time.Millisecond,
		Normal:    Pace{Typing: 30 * time.Millisecond, Message: 900 * time.Millisecond},
		Fast:      Pace{Typing: 15 * time.Millisecond, Message: 450 * time.Millisecond},
	}
}

func (t Timings) pace(s Speed) Pace {
	if s == SpeedFast {
		return t.Fast
	}
	return t.Normal
}

// Phase is the step of the per-message algorithm the engine is in.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseIndicator Phase = "indicator"
	PhaseTyping    Phase = "typing"
	PhaseSettling  Phase = "settling"
	PhaseChoice    Phase = "choice"
	PhaseComplete  Phase = "complete"
)

// DisplayItem is the rendered record of one conversation turn.
type DisplayItem struct {
	ID          string
	Speaker     script.Speaker
	MessageID   int
	Branch      bool
	VisibleText string
	FullText    string
}

// Done reports whether the item is fully revealed.
func (d DisplayItem) Done() bool { return d.VisibleText == d.FullText }

// CompletionReason says how the script reached its terminal state.
type CompletionReason string

const (
	ReasonExhausted CompletionReason = "exhausted"
	ReasonSkipped   CompletionReason = "skipped"
)

// Completion is delivered once per run to Options.OnComplete.
type Completion struct {
	Reason CompletionReason
	Items  int
}

// Snapshot is a copy of the engine state for renderers.
type Snapshot struct {
	Started        bool
	Phase          Phase
	Index          int
	Total          int
	Items          []DisplayItem
	Typing         bool
	TypingSpeaker  script.Speaker
	AwaitingChoice bool
	Choices        []script.Choice
	Complete       bool
	Reason         CompletionReason
	Speed          Speed
}

// Playing reports whether the speed and skip controls are meaningful.
func (s Snapshot) Playing() bool {
	return s.Started && !s.Complete && !s.AwaitingChoice
}
