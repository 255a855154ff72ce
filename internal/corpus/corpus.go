// Package corpus maps a fuzz test and an input category to the saved inputs of
// the corpus database.
//
// The on-disk layout is
//
//	<corpus_database>/<Suite.Test>/regression/<input>
//	<corpus_database>/<Suite.Test>/coverage/<input>
//	<corpus_database>/<Suite.Test>/crashing/<input>
//
// Inputs are opaque files consumed by the fuzzing engine; this package only
// enumerates their paths.
package corpus

import (
	"path/filepath"

	"go.uber.org/zap"
)

type Category string

const (
	Regression Category = "regression"
	Coverage   Category = "coverage"
	Crashing   Category = "crashing"
)

// Configuration describes where the corpus lives and which subsets of it are
// replayed. It is a value type: copies are independent, and a copy with
// CrashingInputToReproduce set is how a replay case is bound to one input.
type Configuration struct {
	CorpusDatabase    string
	ReplayNonCrashing bool
	ReplayCrashing    bool

	// When set, replays only this input.
	CrashingInputToReproduce string

	logger *zap.Logger
}

func NewConfiguration(corpusDatabase string, replayNonCrashing, replayCrashing bool) Configuration {
	return Configuration{
		CorpusDatabase:    corpusDatabase,
		ReplayNonCrashing: replayNonCrashing,
		ReplayCrashing:    replayCrashing,
	}
}

// WithLogger returns a copy that reports listing failures to logger.
func (c Configuration) WithLogger(logger *zap.Logger) Configuration {
	c.logger = logger
	return c
}

// WithCrashingInput returns a copy bound to a single crashing input.
func (c Configuration) WithCrashingInput(path string) Configuration {
	c.CrashingInputToReproduce = path
	return c
}

// IsReproducing reports whether the configuration is bound to one crashing input.
func (c Configuration) IsReproducing() bool {
	return c.CrashingInputToReproduce != ""
}

// Dir returns the directory holding the inputs of one category for a test.
func (c Configuration) Dir(fullName string, category Category) string {
	return filepath.Join(c.CorpusDatabase, fullName, string(category))
}

// GetNonCrashingInputs returns the regression inputs of a test, followed by
// its coverage inputs when ReplayNonCrashing is set. Regression inputs are
// assumed to be non-crashing and are always used.
func (c Configuration) GetNonCrashingInputs(fullName string) []string {
	inputs := c.list(fullName, Regression)
	if c.ReplayNonCrashing {
		inputs = append(inputs, c.list(fullName, Coverage)...)
	}
	return inputs
}

// GetCrashingInputs returns the crashing inputs of a test, or nothing unless
// ReplayCrashing is set.
func (c Configuration) GetCrashingInputs(fullName string) []string {
	if !c.ReplayCrashing {
		return nil
	}
	return c.list(fullName, Crashing)
}

func (c Configuration) list(fullName string, category Category) []string {
	// no database: the filesystem root is never scanned for /<test>/<category>
	if c.CorpusDatabase == "" {
		return nil
	}

	dir := c.Dir(fullName, category)
	inputs, err := ListDirectory(dir)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("failed to list corpus directory, treating it as empty",
				zap.String("test", fullName),
				zap.String("category", string(category)),
				zap.String("dir", dir),
				zap.Error(err))
		}
		return nil
	}
	return inputs
}
