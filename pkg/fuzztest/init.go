package fuzztest

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"fuzztest/config"
	"fuzztest/internal/corpus"
	"fuzztest/internal/host"
	"fuzztest/internal/registrar"
	"fuzztest/internal/registry"
	"fuzztest/internal/report"
	"fuzztest/internal/resolve"
	"fuzztest/internal/runtime"
)

// ListLinePrefix starts every line printed by --list_fuzz_tests.
const ListLinePrefix = "[*] Fuzz test: "

// Setup is the outcome of a completed initialization.
type Setup struct {
	Runtime *runtime.Runtime
	Flags   config.Flags
	Config  corpus.Configuration
	Cases   []host.Case
	// Selected is the full name chosen with --fuzz, empty when none was.
	Selected string
	// Args are the arguments that were not fuzz test flags, in order.
	Args []string
}

// ListRegisteredTests prints the full name of every declared test to w.
func ListRegisteredTests(w io.Writer, reg *registry.Registry) {
	reg.ForEach(func(d registry.Descriptor) {
		fmt.Fprintf(w, "%s%s\n", ListLinePrefix, d.FullName())
	})
}

// GetMatchingFuzzTestOrExit returns the declared test selected by name, a full
// name or a part of exactly one. Otherwise it prints the candidates and exits
// with code 1.
func GetMatchingFuzzTestOrExit(name string, opts ...Option) registry.Descriptor {
	o := newOptions(opts)
	return matchingOrExit(o, name)
}

func matchingOrExit(o *Options, name string) registry.Descriptor {
	fullName := resolve.MatchOrExit(name, o.Registry.FullNames(), o.Stderr, o.Exit)
	if fullName == "" {
		return registry.Descriptor{}
	}
	d, _ := o.Registry.Find(fullName)
	return d
}

// InitFuzzTest parses the fuzz test flags in args, registers the declared
// tests with the host suite and decides the run mode. It returns the runtime
// to run the suite with and the arguments that were not fuzz test flags.
//
// With --list_fuzz_tests the declared tests are printed and the process exits
// with code 0. An unresolvable --fuzz exits with code 1 and malformed flags
// with code 2. The returned runtime is nil only if a custom exit returned.
func InitFuzzTest(args []string, opts ...Option) (*runtime.Runtime, []string) {
	setup := Initialize(args, opts...)
	if setup == nil {
		return nil, nil
	}
	return setup.Runtime, setup.Args
}

// Initialize is InitFuzzTest returning everything it decided.
func Initialize(args []string, opts ...Option) *Setup {
	o := newOptions(opts)
	logger := o.Logger.Named("fuzztest")

	defaults, err := o.Defaults.Defaults()
	if err != nil {
		fmt.Fprintf(o.Stderr, "invalid fuzz test options: %v\n", err)
		o.Exit(2)
		return nil
	}
	flags, rest, err := config.ParseFlags(args, defaults)
	if err != nil {
		fmt.Fprintf(o.Stderr, "%v\nUsage:\n%s", err, config.Usage())
		o.Exit(2)
		return nil
	}

	if flags.ListFuzzTests {
		ListRegisteredTests(o.Stdout, o.Registry)
		o.Exit(0)
		return nil
	}

	setup := &Setup{Runtime: runtime.New(), Flags: flags, Args: rest}
	rt := setup.Runtime

	if flags.IsTestToFuzzSpecified() {
		d := matchingOrExit(o, flags.Fuzz)
		if d.Make == nil {
			return nil
		}
		setup.Selected = d.FullName()
		o.Suite.SetFilter(setup.Selected)
		logger.Info("selected fuzz test", zap.String("query", flags.Fuzz), zap.String("test", setup.Selected))
	}

	if flags.IsDurationSpecified() {
		if err := rt.SetFuzzTimeLimit(flags.FuzzFor); err != nil {
			logger.Error("failed to set fuzz time limit", zap.Error(err))
		}
	}

	activeEngine = o.engine()
	setup.Config = corpus.NewConfiguration(flags.CorpusDatabase, flags.ReplayCorpus, flags.ReproduceFindings)
	listener := report.NewListener(o.Context, rt, logger, o.Tracers, o.Sinks...)
	setup.Cases = registrar.RegisterFuzzTests(o.Registry, setup.Config, o.Suite, listener, logger)

	mode := runtime.UnitTest
	if flags.IsTestToFuzzSpecified() || flags.IsDurationSpecified() {
		mode = runtime.Fuzz
	}
	if err := rt.SetRunMode(mode); err != nil {
		logger.Error("failed to set run mode", zap.Error(err))
	}

	logger.Info("fuzz tests initialized",
		zap.String("session", rt.SessionID()),
		zap.String("run_mode", mode.String()),
		zap.String("corpus_database", flags.CorpusDatabase),
		zap.Int("cases", len(setup.Cases)))
	return setup
}
