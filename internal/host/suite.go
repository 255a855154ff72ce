// Package host is the test execution framework the fuzz tests are registered
// into. It owns case registration, the single-test filter, the listener
// pipeline and the invocation of cases, either as Go subtests or standalone.
package host

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"fuzztest/internal/runtime"
)

// Sink is where the registrar installs cases.
type Sink interface {
	RegisterTest(c Case)
	Listeners() *Listeners
}

type Suite struct {
	logger    *zap.Logger
	cases     []Case
	filter    string
	listeners Listeners
}

func New(logger *zap.Logger) *Suite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Suite{logger: logger}
}

func (s *Suite) RegisterTest(c Case) {
	s.cases = append(s.cases, c)
	s.logger.Debug("test registered",
		zap.String("case", c.FullName()),
		zap.String("variant", c.Variant.String()),
		zap.String("location", c.Location.String()))
}

func (s *Suite) Listeners() *Listeners {
	return &s.listeners
}

// SetFilter restricts execution to the case whose full name equals fullName.
// Other cases stay registered. An empty filter selects everything.
func (s *Suite) SetFilter(fullName string) {
	s.filter = fullName
}

func (s *Suite) Filter() string {
	return s.filter
}

// Cases returns every registered case in registration order.
func (s *Suite) Cases() []Case {
	return append([]Case(nil), s.cases...)
}

// Selected returns the registered cases the filter lets through.
func (s *Suite) Selected() []Case {
	if s.filter == "" {
		return s.Cases()
	}
	var selected []Case
	for _, c := range s.cases {
		if c.FullName() == s.filter {
			selected = append(selected, c)
		}
	}
	return selected
}

// Execute runs one case and notifies the listeners around it. A panic escaping
// the case is reported as its failure.
func (s *Suite) Execute(ctx context.Context, rt *runtime.Runtime, c Case) Result {
	s.listeners.testStart(c)

	start := time.Now()
	err := invoke(ctx, rt, c)
	result := Result{Err: err, Duration: time.Since(start)}

	s.listeners.testEnd(c, result)
	return result
}

func invoke(ctx context.Context, rt *runtime.Runtime, c Case) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("case %s panicked: %v", c.FullName(), r)
		}
	}()
	return c.Run(ctx, rt)
}

// RunAll executes the selected cases in order without a testing.T.
func (s *Suite) RunAll(ctx context.Context, rt *runtime.Runtime) Summary {
	start := time.Now()
	var summary Summary
	for _, c := range s.Selected() {
		if ctx.Err() != nil {
			s.logger.Warn("run cancelled", zap.Int("executed", summary.Total))
			break
		}
		result := s.Execute(ctx, rt, c)
		summary.add(result)
		if result.Err != nil {
			s.logger.Error("case failed", zap.String("case", c.FullName()), zap.Error(result.Err))
		}
	}
	summary.Duration = time.Since(start)

	s.listeners.runEnd(summary)
	return summary
}

// Run executes the selected cases as subtests of t.
func (s *Suite) Run(t *testing.T, rt *runtime.Runtime) {
	t.Helper()

	start := time.Now()
	var summary Summary
	for _, c := range s.Selected() {
		t.Run(c.FullName(), func(t *testing.T) {
			result := s.Execute(context.Background(), rt, c)
			summary.add(result)
			if result.Err != nil {
				t.Fatal(result.Err)
			}
		})
	}
	summary.Duration = time.Since(start)

	s.listeners.runEnd(summary)
}
