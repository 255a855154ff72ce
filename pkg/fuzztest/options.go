package fuzztest

import (
	"context"
	"io"
	"os"

	"go.uber.org/zap"

	"fuzztest/config"
	"fuzztest/internal/engine"
	"fuzztest/internal/host"
	"fuzztest/internal/registry"
	"fuzztest/internal/report"
	"fuzztest/pkg/telemetry"
)

type Options struct {
	Registry *registry.Registry
	Suite    *host.Suite
	Logger   *zap.Logger
	Tracers  *telemetry.TracerFactory
	Sinks    []report.Sink

	// Defaults for the flags, usually read from the FUZZTEST_OPTIONS file.
	Defaults *config.Options

	Stdout io.Writer
	Stderr io.Writer
	// Exit terminates the process. Nothing after a call to Exit is executed,
	// even if it returns.
	Exit func(code int)

	Context context.Context
}

type Option func(*Options)

func WithRegistry(reg *registry.Registry) Option {
	return func(o *Options) { o.Registry = reg }
}

func WithSuite(suite *host.Suite) Option {
	return func(o *Options) { o.Suite = suite }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

func WithTracers(tracers *telemetry.TracerFactory) Option {
	return func(o *Options) { o.Tracers = tracers }
}

func WithSinks(sinks ...report.Sink) Option {
	return func(o *Options) { o.Sinks = append(o.Sinks, sinks...) }
}

func WithDefaults(defaults *config.Options) Option {
	return func(o *Options) { o.Defaults = defaults }
}

func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *Options) {
		o.Stdout = stdout
		o.Stderr = stderr
	}
}

func WithExit(exit func(code int)) Option {
	return func(o *Options) { o.Exit = exit }
}

func WithContext(ctx context.Context) Option {
	return func(o *Options) { o.Context = ctx }
}

func newOptions(opts []Option) *Options {
	o := &Options{
		Registry: defaultRegistry,
		Suite:    defaultSuite,
		Logger:   zap.NewNop(),
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Exit:     os.Exit,
		Context:  context.Background(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Options) engine() engine.Engine {
	if customEngine != nil {
		return customEngine
	}
	return engine.ReplayEngine{Logger: o.Logger}
}
