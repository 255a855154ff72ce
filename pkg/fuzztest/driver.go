package fuzztest

import (
	"go.uber.org/zap"

	"fuzztest/internal/corpus"
	"fuzztest/internal/runtime"
	"fuzztest/internal/types"
)

// RunSpecifiedFuzzTest fuzzes the single test selected by name without going
// through the host suite, then exits with the code the engine reported. The
// code is also returned for a custom exit that returns.
func RunSpecifiedFuzzTest(name string, opts ...Option) int {
	o := newOptions(opts)
	logger := o.Logger.Named("fuzztest")

	d := matchingOrExit(o, name)
	if d.Make == nil {
		return 1
	}

	rt := runtime.New()
	if err := rt.SetRunMode(runtime.Fuzz); err != nil {
		logger.Error("failed to set run mode", zap.Error(err))
	}

	activeEngine = o.engine()
	code := fuzz(o, d.Make(corpus.Configuration{}), rt, logger.With(zap.String("test", d.FullName())))

	logger.Info("fuzzing finished", zap.String("test", d.FullName()), zap.Int("exit_code", code))
	o.Exit(code)
	return code
}

func fuzz(o *Options, r types.Runnable, rt *runtime.Runtime, logger *zap.Logger) int {
	fixture, ok := r.(types.Fixture)
	if !ok {
		return r.RunInFuzzingMode(o.Context, rt)
	}

	if err := fixture.SetUp(); err != nil {
		logger.Error("fixture set up failed", zap.Error(err))
		return 1
	}
	defer func() {
		if err := fixture.TearDown(); err != nil {
			logger.Error("fixture tear down failed", zap.Error(err))
		}
	}()
	return r.RunInFuzzingMode(o.Context, rt)
}
