package host

import (
	"context"
	"time"

	"fuzztest/internal/corpus"
	"fuzztest/internal/runtime"
	"fuzztest/internal/types"
)

// TestFunc executes one registered case.
type TestFunc func(ctx context.Context, rt *runtime.Runtime) error

// Case is a runnable unit registered with the host.
type Case struct {
	Suite    string
	Name     string // display name: the test name, or <test>/replay/<input>
	Test     string // full name of the declared fuzz test
	Location types.Location
	Variant  types.Variant
	Config   corpus.Configuration
	Run      TestFunc
}

func (c Case) FullName() string {
	return c.Suite + "." + c.Name
}

// IsReplay reports whether the case reproduces a single crashing input.
func (c Case) IsReplay() bool {
	return c.Config.IsReproducing()
}

type Result struct {
	Err      error
	Duration time.Duration
}

func (r Result) Passed() bool {
	return r.Err == nil
}

type Summary struct {
	Total    int
	Passed   int
	Failed   int
	Duration time.Duration
}

func (s *Summary) add(r Result) {
	s.Total++
	if r.Passed() {
		s.Passed++
	} else {
		s.Failed++
	}
}
