// Package player advances one vehicle through a race frame: surface sampling, the
// drift, trick, wheelie and boost state machines, wheel suspension, body collision
// and the rigid body integration that moves it.
//
// A Player is owned by a single goroutine. Every method mutates the player in place
// and nothing in the package keeps state of its own.
package player

// Stage is the race phase a frame belongs to.
type Stage int

const (
	StageIntro Stage = iota
	StageCountdown
	StageRace
)

func (s Stage) String() string {
	switch s {
	case StageIntro:
		return "intro"
	case StageCountdown:
		return "countdown"
	case StageRace:
		return "race"
	default:
		return "unknown"
	}
}

// Frame indices at which a stage begins. The race itself starts after
// FrameRace, so FrameRace+1 is the first race frame.
const (
	FrameIntro     = 0
	FrameCountdown = 172
	FrameRace      = 410
)

// StageAt returns the stage of a frame index.
func StageAt(frame uint32) Stage {
	switch {
	case frame < FrameCountdown:
		return StageIntro
	case frame <= FrameRace:
		return StageCountdown
	default:
		return StageRace
	}
}

// TrickInput is the d-pad direction used for tricks and wheelies.
type TrickInput uint8

const (
	TrickNone TrickInput = iota
	TrickUp
	TrickDown
	TrickLeft
	TrickRight
)

func (t TrickInput) String() string {
	switch t {
	case TrickNone:
		return "none"
	case TrickUp:
		return "up"
	case TrickDown:
		return "down"
	case TrickLeft:
		return "left"
	case TrickRight:
		return "right"
	default:
		return "unknown"
	}
}

// Input is the controller state for one frame. Sticks are in [-1, 1].
type Input struct {
	Accelerate bool       `json:"accelerate"`
	Brake      bool       `json:"brake"`
	UseItem    bool       `json:"useItem"`
	Drift      bool       `json:"drift"`
	StickX     float32    `json:"stickX"`
	StickY     float32    `json:"stickY"`
	Trick      TrickInput `json:"trick"`
}
