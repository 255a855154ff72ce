package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fuzztest/config"
	"fuzztest/internal/findings"
	"fuzztest/internal/report"
	"fuzztest/internal/runtime"
	"fuzztest/pkg/fuzztest"
	"fuzztest/pkg/mq"
	"fuzztest/pkg/telemetry"
)

// commandLine is the process arguments without the program name.
type commandLine []string

type Runner struct {
	args       commandLine
	config     *config.AppConfig
	logger     *zap.Logger
	tracers    *telemetry.TracerFactory
	db         *gorm.DB
	redis      *redis.Client
	rabbitMQ   mq.RabbitMQ
	shutdowner fx.Shutdowner
	stdout     io.Writer
	stderr     io.Writer
}

type RunnerParams struct {
	fx.In

	Args       commandLine
	Lc         fx.Lifecycle
	Shutdowner fx.Shutdowner
	Config     *config.AppConfig
	Logger     *zap.Logger
	Tracers    *telemetry.TracerFactory
	DB         *gorm.DB      `optional:"true"`
	Redis      *redis.Client `optional:"true"`
	RabbitMQ   mq.RabbitMQ   `optional:"true"`
}

func NewRunner(p RunnerParams) *Runner {
	r := &Runner{
		args:       p.Args,
		config:     p.Config,
		logger:     p.Logger,
		tracers:    p.Tracers,
		db:         p.DB,
		redis:      p.Redis,
		rabbitMQ:   p.RabbitMQ,
		shutdowner: p.Shutdowner,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	}

	runCtx, cancel := context.WithCancel(context.Background())
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				code := r.Execute(runCtx)
				r.logger.Debug("fuzz test run done", zap.Int("exit_code", code))
				if err := r.shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
					r.logger.Error("failed to shut down", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})
	return r
}

type commandFlags struct {
	direct string
	help   bool
}

func parseCommandFlags(args []string) (commandFlags, error) {
	var cf commandFlags
	fs := flag.NewFlagSet("fuzztest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cf.direct, "direct", "", "Fuzzes the single matching test directly, without the test runner, and exits with the engine's code.")
	fs.BoolVarP(&cf.help, "help", "h", false, "Prints this help.")
	if err := fs.Parse(args); err != nil {
		return commandFlags{}, err
	}
	return cf, nil
}

// Execute runs the declared fuzz tests as the command line asks and returns
// the process exit code.
func (r *Runner) Execute(ctx context.Context) int {
	exitCode := 0
	exit := func(code int) { exitCode = code }

	_, rest := config.SplitArgs(r.args)
	cf, err := parseCommandFlags(rest)
	if err != nil {
		fmt.Fprintf(r.stderr, "%v\n", err)
		return 2
	}
	if cf.help {
		fmt.Fprintf(r.stdout, "Usage: fuzztest [flags]\n\n%s  --direct string\tFuzzes the single matching test directly.\n", config.Usage())
		return 0
	}

	defaults, err := config.LoadOptions(r.config.OptionsPath)
	if err != nil {
		r.logger.Error("failed to load fuzz test options", zap.Error(err))
		return 2
	}

	opts := []fuzztest.Option{
		fuzztest.WithLogger(r.logger),
		fuzztest.WithTracers(r.tracers),
		fuzztest.WithSinks(r.sinks()...),
		fuzztest.WithDefaults(defaults),
		fuzztest.WithOutput(r.stdout, r.stderr),
		fuzztest.WithExit(exit),
		fuzztest.WithContext(ctx),
	}

	if cf.direct != "" {
		fuzztest.RunSpecifiedFuzzTest(cf.direct, opts...)
		return exitCode
	}

	setup := fuzztest.Initialize(r.args, opts...)
	if setup == nil {
		return exitCode
	}

	if setup.Runtime.RunMode() == runtime.Fuzz {
		session := r.tracers.NewTracer(ctx, "fuzztest session")
		session.WithAttributes(telemetry.NewSpanAttributes(telemetry.Fuzzing).
			WithSessionID(setup.Runtime.SessionID()).
			WithRunMode(setup.Runtime.RunMode().String()))
		session.Start()
		defer session.End()

		stop := r.watchFindings(ctx, setup, session.Export())
		defer stop()
	}

	summary := fuzztest.DefaultSuite().RunAll(ctx, setup.Runtime)
	if summary.Failed > 0 {
		return 1
	}
	return 0
}

func (r *Runner) sinks() []report.Sink {
	var sinks []report.Sink
	if r.db != nil {
		sinks = append(sinks, report.NewDatabaseSink(r.db))
	}
	if r.rabbitMQ != nil {
		sinks = append(sinks, report.NewQueueSink(r.rabbitMQ, r.config.Queues.Results))
	}
	if r.redis != nil {
		sinks = append(sinks, report.NewRedisSink(r.redis))
	}
	return sinks
}

// watchFindings reports new crashing inputs of the fuzzed tests until the
// returned function is called. Inputs present when it returns are not
// findings. Each finding's span is a child of the exported session span.
func (r *Runner) watchFindings(ctx context.Context, setup *fuzztest.Setup, session string) func() {
	tests := fuzztest.DefaultRegistry().FullNames()
	if setup.Selected != "" {
		tests = []string{setup.Selected}
	}

	p := findings.Params{
		Config:       setup.Config,
		SessionID:    setup.Runtime.SessionID(),
		Logger:       r.logger,
		DB:           r.db,
		Queue:        r.config.Queues.Findings,
		Poll:         r.config.FindingsPoll,
		Tracers:      r.tracers,
		TraceContext: session,
	}
	if r.rabbitMQ != nil {
		p.Publisher = r.rabbitMQ
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w := findings.New(p)
	if err := w.Start(watchCtx, tests); err != nil {
		cancel()
		r.logger.Error("failed to start findings watcher", zap.Error(err))
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(watchCtx); err != nil {
			r.logger.Error("findings watcher stopped", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
