// Package fuzztest declares fuzz tests and runs them either as ordinary Go
// tests replaying a corpus database or as fuzzing targets.
//
// Tests are declared at package initialization:
//
//	func init() {
//		fuzztest.Register("Parser", "ParsesAnything", func(data []byte) error {
//			_, err := parser.Parse(data)
//			return ignoreSyntaxErrors(err)
//		})
//	}
//
// and executed from TestMain after InitFuzzTest decided the run mode.
package fuzztest

import (
	"fmt"
	goruntime "runtime"

	"fuzztest/internal/corpus"
	"fuzztest/internal/engine"
	"fuzztest/internal/host"
	"fuzztest/internal/registry"
	"fuzztest/internal/types"
)

type (
	Target  = types.Target
	Fixture = types.Fixture
)

var (
	defaultRegistry = registry.New()
	defaultSuite    = host.New(nil)

	customEngine engine.Engine
	activeEngine engine.Engine = engine.ReplayEngine{}
)

func DefaultRegistry() *registry.Registry { return defaultRegistry }

func DefaultSuite() *host.Suite { return defaultSuite }

// SetEngine replaces the engine that runs the declared targets. It must be
// called before InitFuzzTest. A nil engine restores the seed replayer.
func SetEngine(e engine.Engine) {
	customEngine = e
	if e == nil {
		activeEngine = engine.ReplayEngine{}
		return
	}
	activeEngine = e
}

// Register declares a plain fuzz test in the default registry. It panics when
// the suite or test name is empty.
func Register(suite, name string, target Target) {
	RegisterIn(defaultRegistry, caller(), suite, name, target)
}

// RegisterIn declares a plain fuzz test in reg.
func RegisterIn(reg *registry.Registry, loc types.Location, suite, name string, target Target) {
	fullName := suite + "." + name
	mustRegister(reg, registry.Descriptor{
		SuiteName: suite,
		TestName:  name,
		Location:  loc,
		Make: func(cfg corpus.Configuration) types.Runnable {
			return activeEngine.NewRunnable(fullName, target, cfg)
		},
	})
}

// RegisterFixture declares a fuzz test whose body needs a fixture. A fresh
// fixture is created for every case run; it is set up before the body and
// torn down after it.
func RegisterFixture[F Fixture](suite, name string, newFixture func() F, body func(fixture F, data []byte) error) {
	RegisterFixtureIn(defaultRegistry, caller(), suite, name, newFixture, body)
}

func RegisterFixtureIn[F Fixture](reg *registry.Registry, loc types.Location, suite, name string, newFixture func() F, body func(fixture F, data []byte) error) {
	fullName := suite + "." + name
	mustRegister(reg, registry.Descriptor{
		SuiteName:   suite,
		TestName:    name,
		Location:    loc,
		UsesFixture: true,
		Make: func(cfg corpus.Configuration) types.Runnable {
			fixture := newFixture()
			target := func(data []byte) error { return body(fixture, data) }
			return engine.WithFixture(activeEngine.NewRunnable(fullName, target, cfg), fixture)
		},
	})
}

// Here returns the location of its caller, for the *In registration variants.
func Here() types.Location {
	return caller()
}

func mustRegister(reg *registry.Registry, d registry.Descriptor) {
	if err := reg.Register(d); err != nil {
		panic(fmt.Sprintf("fuzztest: %v", err))
	}
}

// caller returns the location of the function calling the exported function
// that called caller.
func caller() types.Location {
	_, file, line, ok := goruntime.Caller(2)
	if !ok {
		return types.Location{}
	}
	return types.Location{File: file, Line: line}
}
