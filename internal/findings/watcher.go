// Package findings reports crashing inputs that appear in the corpus database
// while fuzzing. It only reads the corpus.
package findings

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fuzztest/config"
	"fuzztest/internal/corpus"
	"fuzztest/internal/types"
	"fuzztest/pkg/database"
	"fuzztest/pkg/mq"
	"fuzztest/pkg/telemetry"
	"fuzztest/pkg/watchdog"
)

type Watcher struct {
	cfg       corpus.Configuration
	sessionID string
	logger    *zap.Logger
	watchdogs *watchdog.WatchDogFactory

	db           *gorm.DB     // optional
	publisher    mq.Publisher // optional
	queue        string
	poll         time.Duration
	tracers      *telemetry.TracerFactory
	traceContext string

	wd      *watchdog.WatchDog
	created chan string

	dirs    map[string]string // crashing dir -> test full name
	watched map[string]bool
	seen    map[string]struct{}
	pending map[string]fileState
}

type Params struct {
	Config    corpus.Configuration
	SessionID string
	Logger    *zap.Logger
	DB        *gorm.DB
	Publisher mq.Publisher
	Queue     string
	Poll      time.Duration

	// Tracers and TraceContext attach a span per finding as a child of the
	// exported span of the fuzzing session.
	Tracers      *telemetry.TracerFactory
	TraceContext string
}

// fileState is what an input looked like at one rescan.
type fileState struct {
	size    int64
	modTime int64
}

func New(p Params) *Watcher {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	poll := p.Poll
	if poll <= 0 {
		poll = 10 * time.Second
	}
	return &Watcher{
		cfg:          p.Config,
		sessionID:    p.SessionID,
		logger:       logger.Named("findings"),
		watchdogs:    watchdog.NewWatchDogFactory(logger),
		db:           p.DB,
		publisher:    p.Publisher,
		queue:        p.Queue,
		poll:         poll,
		tracers:      p.Tracers,
		traceContext: p.TraceContext,
		dirs:         make(map[string]string),
		watched:      make(map[string]bool),
		seen:         make(map[string]struct{}),
		pending:      make(map[string]fileState),
	}
}

// Watch is Start followed by Run.
func (w *Watcher) Watch(ctx context.Context, tests []string) error {
	if err := w.Start(ctx, tests); err != nil {
		return err
	}
	return w.Run(ctx)
}

// Start records the inputs already present in the crashing directories of
// tests, which are not findings, and starts watching the directories that
// exist. It returns before any input is reported; Run does the reporting.
func (w *Watcher) Start(ctx context.Context, tests []string) error {
	if w.cfg.CorpusDatabase == "" {
		w.logger.Debug("no corpus database, not watching for findings")
		return nil
	}

	created := make(chan string, 64)
	wd, err := w.watchdogs.New(ctx, created, nil)
	if err != nil {
		return err
	}

	for _, test := range tests {
		dir, err := filepath.Abs(w.cfg.Dir(test, corpus.Crashing))
		if err != nil {
			return fmt.Errorf("failed to resolve crashing dir of %s: %w", test, err)
		}
		w.dirs[dir] = test
		for _, input := range w.list(dir) {
			w.seen[input] = struct{}{}
		}
	}
	w.wd, w.created = wd, created
	w.addDirs(ctx)
	w.logger.Info("watching for findings", zap.Int("tests", len(tests)), zap.Int("known_inputs", len(w.seen)))
	return nil
}

// Run reports every input added to the watched crashing directories until ctx
// is done. Directories that do not exist yet are picked up once they appear.
func (w *Watcher) Run(ctx context.Context) error {
	if w.wd == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-w.created:
			if !ok {
				return nil
			}
			if test, ok := w.dirs[filepath.Dir(path)]; ok {
				w.handle(ctx, test, path)
			}
		case <-ticker.C:
			w.addDirs(ctx)
			w.rescan(ctx)
		}
	}
}

func (w *Watcher) addDirs(ctx context.Context) {
	for dir := range w.dirs {
		if w.watched[dir] {
			continue
		}
		if err := w.wd.AddDir(dir); err != nil {
			if !os.IsNotExist(err) {
				w.logger.Warn("failed to watch crashing dir", zap.String("dir", dir), zap.Error(err))
			}
			continue
		}
		w.watched[dir] = true
		// files created before the watch was set up
		w.rescanDir(ctx, dir)
	}
}

func (w *Watcher) rescan(ctx context.Context) {
	for dir := range w.dirs {
		w.rescanDir(ctx, dir)
	}
}

func (w *Watcher) rescanDir(ctx context.Context, dir string) {
	for _, input := range w.list(dir) {
		w.handle(ctx, w.dirs[dir], input)
	}
}

func (w *Watcher) list(dir string) []string {
	inputs, err := corpus.ListDirectory(dir)
	if err != nil {
		w.logger.Warn("failed to list crashing dir", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	return inputs
}

// handle reports path once its size and modification time are the same on two
// consecutive looks, so a writer that is still filling it is waited for.
func (w *Watcher) handle(ctx context.Context, test, path string) {
	if _, ok := w.seen[path]; ok {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	state := fileState{size: info.Size(), modTime: info.ModTime().UnixNano()}
	if prev, ok := w.pending[path]; !ok || prev != state {
		w.pending[path] = state
		return
	}
	delete(w.pending, path)
	w.seen[path] = struct{}{}
	w.report(ctx, test, path)
}

func (w *Watcher) report(ctx context.Context, test, path string) {
	msg := types.FindingMessage{
		SessionID: w.sessionID,
		Test:      test,
		InputPath: path,
		Reproduce: ReproduceHint(w.cfg.CorpusDatabase, test),
	}
	if data, err := os.ReadFile(path); err == nil {
		digest := md5.Sum(data)
		msg.Digest = hex.EncodeToString(digest[:])
	}

	tracer := w.tracers.ContinueTracer(ctx, w.traceContext, "finding "+test)
	tracer.WithAttributes(telemetry.NewSpanAttributes(telemetry.Fuzzing).
		WithTestName(test).
		WithReplayInput(path).
		WithSessionID(w.sessionID))
	tracer.Start()
	defer tracer.End()
	tracer.AddEvent("crashing_input", telemetry.NewEventAttributes(map[string]string{"digest": msg.Digest}))
	tracer.SetStatus(codes.Error, "new crashing input")
	msg.TraceContext = tracer.Export()

	w.logger.Warn("new crashing input",
		zap.String("test", test),
		zap.String("input", path),
		zap.String("digest", msg.Digest),
		zap.String("reproduce", msg.Reproduce))

	if w.db != nil {
		if err := database.AddFinding(ctx, w.db, database.NewFinding(w.sessionID, test, path)); err != nil {
			w.logger.Error("failed to store finding", zap.Error(err))
		}
	}
	if w.publisher != nil {
		if err := w.publisher.PublishJSON(ctx, w.queue, msg); err != nil {
			w.logger.Error("failed to publish finding", zap.Error(err))
		}
	}
}

// ReproduceHint returns the flags that replay the crashing inputs of test.
func ReproduceHint(corpusDatabase, test string) string {
	return fmt.Sprintf("--%s=%s --%s=%s --%s",
		config.FlagFuzz, test,
		config.FlagCorpusDatabase, corpusDatabase,
		config.FlagReproduceFindings)
}
