// Package report turns the events of a run into logs, spans and result
// records, and forwards the records to the configured sinks.
package report

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"fuzztest/internal/host"
	"fuzztest/internal/runtime"
	"fuzztest/internal/types"
	"fuzztest/pkg/telemetry"
)

// Sink stores or forwards one result record.
type Sink interface {
	Name() string
	Write(ctx context.Context, msg types.ResultMessage) error
}

// SummarySink is a Sink that also receives the summary of the run.
type SummarySink interface {
	Sink
	WriteSummary(ctx context.Context, sessionID string, runMode runtime.RunMode, summary host.Summary) error
}

// Listener is the result-reporting listener installed by the registrar. Sink
// failures are logged and never fail a case.
type Listener struct {
	ctx     context.Context
	rt      *runtime.Runtime
	logger  *zap.Logger
	tracers *telemetry.TracerFactory
	sinks   []Sink

	spans map[string]telemetry.Tracer
}

func NewListener(ctx context.Context, rt *runtime.Runtime, logger *zap.Logger, tracers *telemetry.TracerFactory, sinks ...Sink) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		ctx:     ctx,
		rt:      rt,
		logger:  logger.Named("report"),
		tracers: tracers,
		sinks:   sinks,
		spans:   make(map[string]telemetry.Tracer),
	}
}

func (l *Listener) OnTestStart(c host.Case) {
	attrs := telemetry.NewSpanAttributes(category(c, l.rt.RunMode())).
		WithTestName(c.Test).
		WithCaseName(c.FullName()).
		WithRunMode(l.rt.RunMode().String()).
		WithCodeFile(c.Location.String()).
		WithSessionID(l.rt.SessionID())
	if c.IsReplay() {
		attrs.WithReplayInput(c.Config.CrashingInputToReproduce)
	}

	tracer := l.tracers.NewTracer(l.ctx, c.FullName())
	tracer.WithAttributes(attrs)
	tracer.Start()
	l.spans[c.FullName()] = tracer

	l.logger.Debug("case started", zap.String("case", c.FullName()))
}

func (l *Listener) OnTestEnd(c host.Case, result host.Result) {
	tracer, ok := l.spans[c.FullName()]
	if !ok {
		tracer = &telemetry.DummyTracer{}
	}
	delete(l.spans, c.FullName())

	msg := types.ResultMessage{
		SessionID:    l.rt.SessionID(),
		Test:         c.Test,
		Case:         c.FullName(),
		RunMode:      l.rt.RunMode().String(),
		Passed:       result.Passed(),
		Duration:     result.Duration,
		ReplayInput:  c.Config.CrashingInputToReproduce,
		TraceContext: tracer.Export(),
	}

	if result.Passed() {
		tracer.SetStatus(codes.Ok, "")
		l.logger.Info("case passed",
			zap.String("case", msg.Case),
			zap.Duration("duration", msg.Duration))
	} else {
		msg.Error = result.Err.Error()
		tracer.AddEvent("case_failed", telemetry.NewEventAttributes(map[string]string{"error": msg.Error}))
		tracer.SetStatus(codes.Error, msg.Error)
		l.logger.Warn("case failed",
			zap.String("case", msg.Case),
			zap.Duration("duration", msg.Duration),
			zap.Error(result.Err))
	}
	tracer.End()

	for _, sink := range l.sinks {
		if err := sink.Write(l.ctx, msg); err != nil {
			l.logger.Error("failed to write result",
				zap.String("sink", sink.Name()),
				zap.String("case", msg.Case),
				zap.Error(err))
		}
	}
}

func (l *Listener) OnRunEnd(summary host.Summary) {
	l.logger.Info("run finished",
		zap.String("session", l.rt.SessionID()),
		zap.String("run_mode", l.rt.RunMode().String()),
		zap.Int("total", summary.Total),
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))

	for _, sink := range l.sinks {
		summarySink, ok := sink.(SummarySink)
		if !ok {
			continue
		}
		if err := summarySink.WriteSummary(l.ctx, l.rt.SessionID(), l.rt.RunMode(), summary); err != nil {
			l.logger.Error("failed to write summary", zap.String("sink", sink.Name()), zap.Error(err))
		}
	}
}

func category(c host.Case, mode runtime.RunMode) telemetry.ActionCategory {
	switch {
	case c.IsReplay():
		return telemetry.Reproducing
	case mode == runtime.Fuzz:
		return telemetry.Fuzzing
	default:
		return telemetry.Testing
	}
}
