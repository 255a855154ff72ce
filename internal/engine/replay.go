package engine

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"fuzztest/internal/corpus"
	"fuzztest/internal/runtime"
	"fuzztest/internal/types"
)

// CrashError is a target failure on one input.
type CrashError struct {
	Input string
	Err   error
}

func (e *CrashError) Error() string {
	return fmt.Sprintf("input %s: %v", e.Input, e.Err)
}

func (e *CrashError) Unwrap() error {
	return e.Err
}

// SeedReplayer runs a target over the saved inputs of the corpus database. It
// never generates or mutates inputs.
type SeedReplayer struct {
	fullName string
	target   types.Target
	cfg      corpus.Configuration
	logger   *zap.Logger
}

func NewSeedReplayer(fullName string, target types.Target, cfg corpus.Configuration, logger *zap.Logger) *SeedReplayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedReplayer{
		fullName: fullName,
		target:   target,
		cfg:      cfg.WithLogger(logger),
		logger:   logger.With(zap.String("test", fullName)),
	}
}

// RunInUnitTestMode replays the crashing input the configuration is bound to,
// or else every non-crashing input. No inputs is a pass.
func (r *SeedReplayer) RunInUnitTestMode(ctx context.Context) error {
	var inputs []string
	if r.cfg.IsReproducing() {
		inputs = []string{r.cfg.CrashingInputToReproduce}
	} else {
		inputs = r.cfg.GetNonCrashingInputs(r.fullName)
	}

	r.logger.Debug("replaying inputs", zap.Int("inputs", len(inputs)))
	return r.replay(ctx, inputs)
}

// RunInFuzzingMode replays non-crashing and crashing inputs until done or the
// runtime's time limit expires. Returns 1 if any input failed.
func (r *SeedReplayer) RunInFuzzingMode(ctx context.Context, rt *runtime.Runtime) int {
	if rt != nil {
		if limit, ok := rt.FuzzTimeLimit(); ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, limit)
			defer cancel()
		}
	}

	var inputs []string
	if r.cfg.IsReproducing() {
		inputs = []string{r.cfg.CrashingInputToReproduce}
	} else {
		inputs = append(r.cfg.GetNonCrashingInputs(r.fullName), r.cfg.GetCrashingInputs(r.fullName)...)
	}

	r.logger.Info("fuzzing with seed replay", zap.Int("inputs", len(inputs)))
	if err := r.replay(ctx, inputs); err != nil {
		r.logger.Error("fuzz target failed", zap.Error(err))
		return 1
	}
	return 0
}

func (r *SeedReplayer) replay(ctx context.Context, inputs []string) error {
	var errs error
	for i, input := range inputs {
		if ctx.Err() != nil {
			r.logger.Info("stopping replay", zap.Int("replayed", i), zap.Error(ctx.Err()))
			break
		}
		if err := r.replayOne(input); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (r *SeedReplayer) replayOne(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return RunTarget(r.target, path, data)
}

// RunTarget calls target once, turning a returned error or a panic into a
// *CrashError for input.
func RunTarget(target types.Target, input string, data []byte) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &CrashError{Input: input, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	if err := target(data); err != nil {
		return &CrashError{Input: input, Err: err}
	}
	return nil
}
