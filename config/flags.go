package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
)

const (
	FlagListFuzzTests     = "list_fuzz_tests"
	FlagFuzz              = "fuzz"
	FlagFuzzFor           = "fuzz_for"
	FlagCorpusDatabase    = "corpus_database"
	FlagReproduceFindings = "reproduce_findings"
	FlagReplayCorpus      = "replay_corpus"
)

// Unspecified is the sentinel value of --fuzz when no test was selected.
const Unspecified = "<unspecified>"

// InfiniteDuration is the default of --fuzz_for.
const InfiniteDuration = time.Duration(math.MaxInt64)

// Flags holds the command-line flags consumed by the fuzz test initialization.
type Flags struct {
	ListFuzzTests     bool
	Fuzz              string
	FuzzFor           time.Duration
	CorpusDatabase    string
	ReproduceFindings bool
	ReplayCorpus      bool
}

// DefaultFlags returns the flag values used when nothing is passed.
func DefaultFlags() Flags {
	return Flags{
		Fuzz:    Unspecified,
		FuzzFor: InfiniteDuration,
	}
}

// IsTestToFuzzSpecified reports whether --fuzz selected a test. An empty
// string counts as a selection.
func (f Flags) IsTestToFuzzSpecified() bool {
	return f.Fuzz != Unspecified
}

// IsDurationSpecified reports whether --fuzz_for is finite and positive.
func (f Flags) IsDurationSpecified() bool {
	return 0 < f.FuzzFor && f.FuzzFor < InfiniteDuration
}

// NewFlagSet binds every fuzz test flag to the fields of f.
func NewFlagSet(f *Flags) *flag.FlagSet {
	fs := flag.NewFlagSet("fuzztest", flag.ContinueOnError)
	fs.SetOutput(&strings.Builder{}) // discard pflag output, errors are returned

	fs.BoolVar(&f.ListFuzzTests, FlagListFuzzTests, f.ListFuzzTests,
		"Prints (to stdout) the list of all available fuzz tests and exits.")
	fs.StringVar(&f.Fuzz, FlagFuzz, f.Fuzz,
		"Runs a single fuzz test in continuous fuzzing mode. A part of the name is enough "+
			"if it matches only one test, e.g. --fuzz=MyFuzz.")
	fs.Var((*fuzzForValue)(&f.FuzzFor), FlagFuzzFor,
		"Runs all fuzz tests in fuzzing mode for the specified duration (e.g. 30s, 1h).")
	fs.StringVar(&f.CorpusDatabase, FlagCorpusDatabase, f.CorpusDatabase,
		"Root of the corpus database: <corpus_database>/<Suite.Test>/{regression,crashing,coverage}.")
	fs.BoolVar(&f.ReproduceFindings, FlagReproduceFindings, f.ReproduceFindings,
		"When true, the selected tests replay all crashing inputs in the database.")
	fs.BoolVar(&f.ReplayCorpus, FlagReplayCorpus, f.ReplayCorpus,
		"When true, the selected tests replay all non-crashing inputs in the database.")

	return fs
}

// Usage returns the help text of all fuzz test flags.
func Usage() string {
	f := DefaultFlags()
	return NewFlagSet(&f).FlagUsages()
}

// ParseFlags parses the fuzz test flags found in args on top of defaults. The
// arguments that are not fuzz test flags are returned unchanged and in order.
func ParseFlags(args []string, defaults Flags) (Flags, []string, error) {
	ours, rest := SplitArgs(args)

	flags := defaults
	fs := NewFlagSet(&flags)
	if err := fs.Parse(ours); err != nil {
		return Flags{}, nil, err
	}
	if fs.NArg() > 0 {
		return Flags{}, nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}
	return flags, rest, nil
}

var valueFlags = map[string]bool{
	FlagFuzz:           true,
	FlagFuzzFor:        true,
	FlagCorpusDatabase: true,
}

var boolFlags = map[string]bool{
	FlagListFuzzTests:     true,
	FlagReproduceFindings: true,
	FlagReplayCorpus:      true,
}

// SplitArgs separates fuzz test flags from everything else, so the test
// framework can parse its own flags afterwards. Both -name and --name are
// accepted; the extracted flags are normalized to --name form. Nothing after a
// "--" terminator is considered.
func SplitArgs(args []string) (ours, rest []string) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			rest = append(rest, args[i:]...)
			break
		}

		name, value, hasValue, ok := splitFlag(arg)
		if !ok || (!valueFlags[name] && !boolFlags[name]) {
			rest = append(rest, arg)
			continue
		}

		switch {
		case hasValue:
			ours = append(ours, "--"+name+"="+value)
		case boolFlags[name]:
			ours = append(ours, "--"+name)
		case i+1 < len(args):
			ours = append(ours, "--"+name, args[i+1])
			i++
		default:
			// let pflag report the missing argument
			ours = append(ours, "--"+name)
		}
	}
	return ours, rest
}

func splitFlag(arg string) (name, value string, hasValue, ok bool) {
	if len(arg) < 2 || arg[0] != '-' {
		return "", "", false, false
	}
	trimmed := strings.TrimPrefix(arg[1:], "-")
	if trimmed == "" || trimmed[0] == '-' {
		return "", "", false, false
	}
	name, value, hasValue = strings.Cut(trimmed, "=")
	return name, value, hasValue, true
}

// ParseFuzzFor parses a --fuzz_for value. Besides Go durations it accepts
// "inf" and "infinite".
func ParseFuzzFor(s string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inf", "infinite":
		return InfiniteDuration, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid fuzz duration %q: %w", s, err)
	}
	return d, nil
}

type fuzzForValue time.Duration

func (d *fuzzForValue) String() string {
	if time.Duration(*d) == InfiniteDuration {
		return "inf"
	}
	return time.Duration(*d).String()
}

func (d *fuzzForValue) Set(s string) error {
	v, err := ParseFuzzFor(s)
	if err != nil {
		return err
	}
	*d = fuzzForValue(v)
	return nil
}

func (d *fuzzForValue) Type() string {
	return "duration"
}
