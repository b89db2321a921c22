package pfrp

// errors.go defines the error model of the routing table.  Configuration
// and initialization errors are fatal to a run, protocol errors abort one
// update cycle, and everything else is reported to the caller as-is.

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned by every routing or statistics call made
// before the table has been constructed
var ErrNotInitialized = errors.New("pfrp: routing table is not initialized")

// ErrStepRange is returned when a step index falls outside [0, totalStep)
var ErrStepRange = errors.New("pfrp: step index out of range")

// ErrBarrierOverflow is returned when more than nodeNum participants
// signal the same barrier of the same step
var ErrBarrierOverflow = errors.New("pfrp: barrier signaled more than nodeNum times")

// ConfigError reports a malformed configuration, e.g. a probability file
// that is short, holds non-numeric tokens, or assigns a weight to a self-loop
type ConfigError struct {
	Path string // file (or parameter) the problem was found in
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("pfrp: configuration: %v", e.Err)
	}
	return fmt.Sprintf("pfrp: configuration %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ProtocolError reports a reply from the learner that does not fit the
// active simulation mode.  The update cycle it belongs to is abandoned and
// the probability matrix is left untouched.
type ProtocolError struct {
	Mode SimMode
	Step int
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("pfrp: learner protocol desync (mode %s, step %d): %v", e.Mode, e.Step, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func configErrorf(path string, format string, args ...any) error {
	return &ConfigError{Path: path, Err: fmt.Errorf(format, args...)}
}
