package engine

import (
	"go.uber.org/zap"

	"fuzztest/internal/corpus"
	"fuzztest/internal/types"
)

// Engine builds the runnable of a fuzz target for one configuration. A
// coverage-guided engine plugs in here; ReplayEngine is the fallback that only
// replays saved inputs.
type Engine interface {
	NewRunnable(fullName string, target types.Target, cfg corpus.Configuration) types.Runnable
}

type ReplayEngine struct {
	Logger *zap.Logger
}

func (e ReplayEngine) NewRunnable(fullName string, target types.Target, cfg corpus.Configuration) types.Runnable {
	return NewSeedReplayer(fullName, target, cfg, e.Logger)
}

// fixtureRunnable is a runnable whose fixture is set up and torn down by the
// host around each invocation.
type fixtureRunnable struct {
	types.Runnable
	fixture types.Fixture
}

func (f *fixtureRunnable) SetUp() error    { return f.fixture.SetUp() }
func (f *fixtureRunnable) TearDown() error { return f.fixture.TearDown() }

// WithFixture attaches a fixture to a runnable, making it usable as a
// fixture-bound test.
func WithFixture(r types.Runnable, fixture types.Fixture) types.Runnable {
	return &fixtureRunnable{Runnable: r, fixture: fixture}
}
