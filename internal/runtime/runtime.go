// Package runtime holds the process-scoped state decided during fuzz test
// initialization: the run mode and the optional fuzzing time limit.
//
// A Runtime is created once by the initialization step and handed to whatever
// executes the registered cases. Each value can be set only once.
package runtime

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type RunMode int

const (
	Unset RunMode = iota
	UnitTest
	Fuzz
)

func (m RunMode) String() string {
	switch m {
	case UnitTest:
		return "unit_test"
	case Fuzz:
		return "fuzz"
	default:
		return "unset"
	}
}

var ErrAlreadySet = errors.New("runtime value already set")

type Runtime struct {
	sessionID string

	runMode RunMode

	fuzzTimeLimit    time.Duration
	fuzzTimeLimitSet bool
}

func New() *Runtime {
	return &Runtime{sessionID: uuid.New().String()}
}

// SessionID identifies this process invocation in reports.
func (r *Runtime) SessionID() string {
	return r.sessionID
}

func (r *Runtime) SetRunMode(mode RunMode) error {
	if r.runMode != Unset {
		return ErrAlreadySet
	}
	r.runMode = mode
	return nil
}

// RunMode returns Unset until initialization decided the mode.
func (r *Runtime) RunMode() RunMode {
	return r.runMode
}

func (r *Runtime) SetFuzzTimeLimit(limit time.Duration) error {
	if r.fuzzTimeLimitSet {
		return ErrAlreadySet
	}
	r.fuzzTimeLimit = limit
	r.fuzzTimeLimitSet = true
	return nil
}

// FuzzTimeLimit returns the time limit and whether one was set.
func (r *Runtime) FuzzTimeLimit() (time.Duration, bool) {
	return r.fuzzTimeLimit, r.fuzzTimeLimitSet
}
