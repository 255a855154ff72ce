package types

import (
	"context"
	"fmt"

	"fuzztest/internal/runtime"
)

// where a fuzz test was declared, for diagnostics only
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	if l.File == "" {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Target is a fuzz test body. A returned error or a panic is a failure.
type Target func(data []byte) error

// Runnable is what a fuzz test's factory produces for one configuration.
type Runnable interface {
	// Replays the configured inputs once.
	RunInUnitTestMode(ctx context.Context) error
	// Runs until the engine stops, returning the process exit code the engine
	// reports.
	RunInFuzzingMode(ctx context.Context, rt *runtime.Runtime) int
}

// Fixture is implemented by the runnables of fixture-bound fuzz tests.
type Fixture interface {
	SetUp() error
	TearDown() error
}

// Variant selects how the host instantiates a fuzz test. The set is closed.
type Variant uint8

const (
	Plain Variant = iota
	FixtureBound
)

func VariantOf(usesFixture bool) Variant {
	if usesFixture {
		return FixtureBound
	}
	return Plain
}

func (v Variant) String() string {
	switch v {
	case Plain:
		return "plain"
	case FixtureBound:
		return "fixture"
	default:
		return "unknown"
	}
}
