package worker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidState is returned for lifecycle calls made in the wrong state.
var ErrInvalidState = errors.New("worker: invalid state transition")

// State is the worker lifecycle state.
type State uint32

const (
	Stopped State = iota
	Starting
	Running
	Paused
	Stopping
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopping:
		return "stopping"
	default:
		return fmt.Sprintf("State(%d)", uint32(s))
	}
}

// Strategy selects how blocks are scheduled.
type Strategy int

const (
	// Pull runs a dedicated goroutine that blocks on the device clock.
	Pull Strategy = iota
	// Push lets the device call back with each block.
	Push
)

func (s Strategy) String() string {
	switch s {
	case Pull:
		return "pull"
	case Push:
		return "push"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses "pull" or "push".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pull":
		return Pull, nil
	case "push":
		return Push, nil
	}
	return Pull, fmt.Errorf("worker: unknown strategy %q", s)
}

// Sanitize selects how device input is cleaned before processing.
type Sanitize int

const (
	// SanitizeNonFinite replaces NaN and infinities with zero.
	SanitizeNonFinite Sanitize = iota
	// SanitizeClamp also clamps samples to [-1, 1].
	SanitizeClamp
	// SanitizeZero replaces any sample outside [-1, 1] with zero.
	SanitizeZero
)

func (s Sanitize) String() string {
	switch s {
	case SanitizeNonFinite:
		return "nonfinite"
	case SanitizeClamp:
		return "clamp"
	case SanitizeZero:
		return "zero"
	default:
		return fmt.Sprintf("Sanitize(%d)", int(s))
	}
}

// ParseSanitize parses a sanitize mode name.
func ParseSanitize(s string) (Sanitize, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nonfinite":
		return SanitizeNonFinite, nil
	case "clamp":
		return SanitizeClamp, nil
	case "zero":
		return SanitizeZero, nil
	}
	return SanitizeNonFinite, fmt.Errorf("worker: unknown sanitize mode %q", s)
}
