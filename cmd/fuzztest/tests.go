package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"fuzztest/config"
	"fuzztest/internal/corpus"
	"fuzztest/internal/resolve"
	"fuzztest/pkg/fuzztest"
)

// The binary fuzzes this module's own parsers.
func init() {
	fuzztest.Register("Resolve", "MatchSelectsContainingName", fuzzMatch)
	fuzztest.Register("Config", "SplitArgsKeepsOtherArgs", fuzzSplitArgs)
	fuzztest.Register("Config", "ParseOptions", fuzzParseOptions)
	fuzztest.RegisterFixture("Corpus", "ListDirectory", newScratchDir, fuzzListDirectory)
}

// fuzzMatch reads a query line followed by candidate names, one per line.
func fuzzMatch(data []byte) error {
	lines := strings.Split(string(data), "\n")
	query, names := lines[0], lines[1:]

	name, err := resolve.Match(query, names)
	if err != nil {
		if !errors.Is(err, resolve.ErrNoMatch) && !errors.Is(err, resolve.ErrAmbiguous) {
			return fmt.Errorf("unexpected error: %w", err)
		}
		return nil
	}
	if !strings.Contains(name, query) {
		return fmt.Errorf("%q does not contain %q", name, query)
	}
	if !slices.Contains(names, name) {
		return fmt.Errorf("%q is not a candidate", name)
	}
	return nil
}

// fuzzSplitArgs reads NUL separated arguments.
func fuzzSplitArgs(data []byte) error {
	args := strings.Split(string(data), "\x00")
	ours, rest := config.SplitArgs(args)

	// rest must be a subsequence of args
	i := 0
	for _, arg := range args {
		if i < len(rest) && rest[i] == arg {
			i++
		}
	}
	if i != len(rest) {
		return fmt.Errorf("rest %q is not a subsequence of %q", rest, args)
	}
	if len(ours)+len(rest) > len(args) {
		return fmt.Errorf("split %d arguments into %d", len(args), len(ours)+len(rest))
	}
	return nil
}

func fuzzParseOptions(data []byte) error {
	options, err := config.ParseOptions(data)
	if err != nil {
		return nil
	}
	_, _ = options.Defaults()
	return nil
}

// scratchDir is a temporary corpus category directory.
type scratchDir struct {
	path string
}

func newScratchDir() *scratchDir {
	return &scratchDir{}
}

func (s *scratchDir) SetUp() error {
	dir, err := os.MkdirTemp("", "fuzztest-corpus-")
	if err != nil {
		return err
	}
	s.path = dir
	return nil
}

func (s *scratchDir) TearDown() error {
	return os.RemoveAll(s.path)
}

// fuzzListDirectory creates one file per line of data and expects to find
// exactly those files listed in name order.
func fuzzListDirectory(scratch *scratchDir, data []byte) error {
	dir, err := os.MkdirTemp(scratch.path, "input-")
	if err != nil {
		return err
	}

	var want []string
	for _, line := range bytes.Split(data, []byte("\n")) {
		name := sanitize(string(line))
		path := filepath.Join(dir, name)
		if name == "" || slices.Contains(want, path) {
			continue
		}
		if err := os.WriteFile(path, line, 0o644); err != nil {
			return err
		}
		want = append(want, path)
	}
	slices.Sort(want)

	got, err := corpus.ListDirectory(dir)
	if err != nil {
		return err
	}
	if !slices.Equal(got, want) {
		return fmt.Errorf("listed %q, want %q", got, want)
	}
	return nil
}

func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, name)
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}
