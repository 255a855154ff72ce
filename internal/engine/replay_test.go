package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"fuzztest/internal/corpus"
	"fuzztest/internal/engine"
	"fuzztest/internal/runtime"
	"fuzztest/internal/types"
)

func writeInput(t *testing.T, db, test string, category corpus.Category, name, content string) string {
	t.Helper()

	dir := filepath.Join(db, test, string(category))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// recordingTarget fails on inputs equal to "bad" and panics on "panic".
func recordingTarget(seen *[]string) types.Target {
	return func(data []byte) error {
		*seen = append(*seen, string(data))
		switch string(data) {
		case "bad":
			return errors.New("bad input")
		case "panic":
			panic("target exploded")
		}
		return nil
	}
}

func TestSeedReplayer_UnitTestModeReplaysNonCrashing(t *testing.T) {
	t.Parallel()

	db := t.TempDir()
	writeInput(t, db, "S.T", corpus.Regression, "r", "regression")
	writeInput(t, db, "S.T", corpus.Coverage, "c", "coverage")
	writeInput(t, db, "S.T", corpus.Crashing, "x", "bad")

	var seen []string
	r := engine.NewSeedReplayer("S.T", recordingTarget(&seen), corpus.NewConfiguration(db, true, true), nil)

	require.NoError(t, r.RunInUnitTestMode(context.Background()))
	assert.Equal(t, []string{"regression", "coverage"}, seen)
}

func TestSeedReplayer_UnitTestModeReproducesOneInput(t *testing.T) {
	t.Parallel()

	db := t.TempDir()
	writeInput(t, db, "S.T", corpus.Regression, "r", "regression")
	crash := writeInput(t, db, "S.T", corpus.Crashing, "x", "bad")

	var seen []string
	cfg := corpus.NewConfiguration(db, false, true).WithCrashingInput(crash)
	r := engine.NewSeedReplayer("S.T", recordingTarget(&seen), cfg, nil)

	err := r.RunInUnitTestMode(context.Background())

	var crashErr *engine.CrashError
	require.ErrorAs(t, err, &crashErr)
	assert.Equal(t, crash, crashErr.Input)
	assert.Equal(t, []string{"bad"}, seen)
}

func TestSeedReplayer_NoInputsPass(t *testing.T) {
	t.Parallel()

	var seen []string
	r := engine.NewSeedReplayer("S.T", recordingTarget(&seen), corpus.NewConfiguration(t.TempDir(), true, true), nil)

	require.NoError(t, r.RunInUnitTestMode(context.Background()))
	assert.Equal(t, 0, r.RunInFuzzingMode(context.Background(), runtime.New()))
	assert.Empty(t, seen)
}

func TestSeedReplayer_AggregatesFailures(t *testing.T) {
	t.Parallel()

	db := t.TempDir()
	writeInput(t, db, "S.T", corpus.Regression, "a", "bad")
	writeInput(t, db, "S.T", corpus.Regression, "b", "ok")
	writeInput(t, db, "S.T", corpus.Regression, "c", "panic")

	var seen []string
	r := engine.NewSeedReplayer("S.T", recordingTarget(&seen), corpus.NewConfiguration(db, false, false), nil)

	err := r.RunInUnitTestMode(context.Background())

	require.Error(t, err)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.ErrorContains(t, errs[0], "bad input")
	assert.ErrorContains(t, errs[1], "target exploded")
	assert.Equal(t, []string{"bad", "ok", "panic"}, seen)
}

func TestSeedReplayer_FuzzingModeExitCode(t *testing.T) {
	t.Parallel()

	db := t.TempDir()
	writeInput(t, db, "S.T", corpus.Regression, "r", "ok")
	writeInput(t, db, "S.T", corpus.Crashing, "x", "bad")

	var seen []string
	passing := engine.NewSeedReplayer("S.T", recordingTarget(&seen), corpus.NewConfiguration(db, false, false), nil)
	assert.Equal(t, 0, passing.RunInFuzzingMode(context.Background(), runtime.New()))

	failing := engine.NewSeedReplayer("S.T", recordingTarget(&seen), corpus.NewConfiguration(db, false, true), nil)
	assert.Equal(t, 1, failing.RunInFuzzingMode(context.Background(), runtime.New()))

	assert.Equal(t, []string{"ok", "ok", "bad"}, seen)
}

func TestSeedReplayer_FuzzingModeStopsAtTimeLimit(t *testing.T) {
	t.Parallel()

	db := t.TempDir()
	writeInput(t, db, "S.T", corpus.Regression, "a", "slow")
	writeInput(t, db, "S.T", corpus.Regression, "b", "bad")

	var seen []string
	target := func(data []byte) error {
		seen = append(seen, string(data))
		if string(data) == "slow" {
			time.Sleep(200 * time.Millisecond)
			return nil
		}
		return errors.New("should not run")
	}

	rt := runtime.New()
	require.NoError(t, rt.SetFuzzTimeLimit(20 * time.Millisecond))

	r := engine.NewSeedReplayer("S.T", target, corpus.NewConfiguration(db, false, false), nil)

	assert.Equal(t, 0, r.RunInFuzzingMode(context.Background(), rt))
	assert.Equal(t, []string{"slow"}, seen)
}

func TestRunTarget(t *testing.T) {
	t.Parallel()

	require.NoError(t, engine.RunTarget(func([]byte) error { return nil }, "in", nil))

	sentinel := errors.New("sentinel")
	err := engine.RunTarget(func([]byte) error { return sentinel }, "in", nil)
	assert.ErrorIs(t, err, sentinel)
	assert.EqualError(t, err, "input in: sentinel")

	err = engine.RunTarget(func([]byte) error { panic("oops") }, "in", nil)
	var crashErr *engine.CrashError
	require.ErrorAs(t, err, &crashErr)
	assert.EqualError(t, crashErr.Err, "panic: oops")
}

type countingFixture struct {
	setUps, tearDowns int
}

func (f *countingFixture) SetUp() error    { f.setUps++; return nil }
func (f *countingFixture) TearDown() error { f.tearDowns++; return nil }

func TestWithFixture(t *testing.T) {
	t.Parallel()

	fixture := &countingFixture{}
	r := engine.WithFixture(engine.ReplayEngine{}.NewRunnable("S.T", func([]byte) error { return nil }, corpus.Configuration{}), fixture)

	f, ok := r.(types.Fixture)
	require.True(t, ok)
	require.NoError(t, f.SetUp())
	require.NoError(t, r.RunInUnitTestMode(context.Background()))
	require.NoError(t, f.TearDown())

	assert.Equal(t, 1, fixture.setUps)
	assert.Equal(t, 1, fixture.tearDowns)
}
