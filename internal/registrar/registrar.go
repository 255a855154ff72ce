// Package registrar turns the declared fuzz tests into cases of the host test
// framework: one base case per test plus one replay case per crashing input
// found in the corpus database.
package registrar

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"fuzztest/internal/corpus"
	"fuzztest/internal/host"
	"fuzztest/internal/registry"
	"fuzztest/internal/runtime"
	"fuzztest/internal/types"
)

// ReplayInfix separates a test name from the basename of the crashing input a
// replay case reproduces.
const ReplayInfix = "/replay/"

// RegisterFuzzTests registers every declared test with sink and appends
// listener to the sink's listeners once, after all cases. It returns the
// registered cases in registration order.
func RegisterFuzzTests(reg *registry.Registry, cfg corpus.Configuration, sink host.Sink, listener host.Listener, logger *zap.Logger) []host.Case {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.WithLogger(logger)

	var cases []host.Case
	register := func(c host.Case) {
		sink.RegisterTest(c)
		cases = append(cases, c)
	}

	reg.ForEach(func(d registry.Descriptor) {
		register(newCase(d, d.TestName, cfg))
		for _, c := range replayCases(d, cfg, cfg.GetCrashingInputs(d.FullName()), logger) {
			register(c)
		}
	})

	if listener != nil {
		sink.Listeners().Append(listener)
	}

	logger.Info("fuzz tests registered",
		zap.Int("tests", reg.Len()),
		zap.Int("cases", len(cases)))
	return cases
}

// replayCases returns one case per input, each bound to its input.
func replayCases(d registry.Descriptor, cfg corpus.Configuration, inputs []string, logger *zap.Logger) []host.Case {
	cases := make([]host.Case, 0, len(inputs))
	seen := make(map[string]int)
	for _, input := range inputs {
		name, renamed := replayName(d.TestName, filepath.Base(input), seen)
		if renamed {
			logger.Warn("duplicate crashing input name, renamed replay case",
				zap.String("test", d.FullName()),
				zap.String("input", input),
				zap.String("case", name))
		}
		cases = append(cases, newCase(d, name, cfg.WithCrashingInput(input)))
	}
	return cases
}

// replayName returns test/replay/<base>, suffixing #01, #02, ... for repeated
// basenames.
func replayName(test, base string, seen map[string]int) (string, bool) {
	name := test + ReplayInfix + base
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name, false
	}
	return fmt.Sprintf("%s#%02d", name, n), true
}

func newCase(d registry.Descriptor, name string, cfg corpus.Configuration) host.Case {
	variant := types.VariantOf(d.UsesFixture)
	return host.Case{
		Suite:    d.SuiteName,
		Name:     name,
		Test:     d.FullName(),
		Location: d.Location,
		Variant:  variant,
		Config:   cfg,
		Run:      testFunc(variant, d.Make, cfg),
	}
}

func testFunc(variant types.Variant, factory registry.Factory, cfg corpus.Configuration) host.TestFunc {
	switch variant {
	case types.FixtureBound:
		return func(ctx context.Context, rt *runtime.Runtime) (err error) {
			r := factory(cfg)
			fixture, ok := r.(types.Fixture)
			if !ok {
				return fmt.Errorf("fixture-bound fuzz test built a %T without a fixture", r)
			}
			if err := fixture.SetUp(); err != nil {
				return fmt.Errorf("fixture set up failed: %w", err)
			}
			defer func() {
				if tearDownErr := fixture.TearDown(); tearDownErr != nil && err == nil {
					err = fmt.Errorf("fixture tear down failed: %w", tearDownErr)
				}
			}()
			return execute(ctx, rt, r)
		}
	default:
		return func(ctx context.Context, rt *runtime.Runtime) error {
			return execute(ctx, rt, factory(cfg))
		}
	}
}

func execute(ctx context.Context, rt *runtime.Runtime, r types.Runnable) error {
	if rt != nil && rt.RunMode() == runtime.Fuzz {
		if code := r.RunInFuzzingMode(ctx, rt); code != 0 {
			return fmt.Errorf("fuzzing exited with code %d", code)
		}
		return nil
	}
	return r.RunInUnitTestMode(ctx)
}
