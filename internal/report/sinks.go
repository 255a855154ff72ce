package report

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"fuzztest/internal/host"
	"fuzztest/internal/runtime"
	"fuzztest/internal/types"
	"fuzztest/pkg/database"
	"fuzztest/pkg/mq"
)

// DatabaseSink stores every result as a case_results row.
type DatabaseSink struct {
	db *gorm.DB
}

func NewDatabaseSink(db *gorm.DB) *DatabaseSink {
	return &DatabaseSink{db: db}
}

func (s *DatabaseSink) Name() string { return "database" }

func (s *DatabaseSink) Write(ctx context.Context, msg types.ResultMessage) error {
	return database.AddCaseResult(ctx, s.db, database.NewCaseResult(
		msg.SessionID,
		msg.Test,
		msg.Case,
		msg.RunMode,
		msg.Passed,
		msg.Error,
		msg.Duration,
		msg.ReplayInput,
	))
}

// QueueSink publishes every result as JSON on a queue.
type QueueSink struct {
	publisher mq.Publisher
	queue     string
}

func NewQueueSink(publisher mq.Publisher, queue string) *QueueSink {
	return &QueueSink{publisher: publisher, queue: queue}
}

func (s *QueueSink) Name() string { return "queue:" + s.queue }

func (s *QueueSink) Write(ctx context.Context, msg types.ResultMessage) error {
	return s.publisher.PublishJSON(ctx, s.queue, msg)
}

// SessionKey is the redis hash holding the counters of a session.
const SessionKey = "fuzztest:session:%s"

// sessions expire a week after their last update
const sessionTTL = 7 * 24 * time.Hour

// RedisSink keeps per-session passed/failed counters in a redis hash and
// records the run summary there.
type RedisSink struct {
	client *redis.Client
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{client: client}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Write(ctx context.Context, msg types.ResultMessage) error {
	key := fmt.Sprintf(SessionKey, msg.SessionID)
	field := "passed"
	if !msg.Passed {
		field = "failed"
	}

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, field, 1)
	pipe.HSet(ctx, key, "run_mode", msg.RunMode, "last_case", msg.Case)
	pipe.Expire(ctx, key, sessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisSink) WriteSummary(ctx context.Context, sessionID string, runMode runtime.RunMode, summary host.Summary) error {
	key := fmt.Sprintf(SessionKey, sessionID)

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"run_mode", runMode.String(),
		"total", summary.Total,
		"duration_ms", summary.Duration.Milliseconds(),
		"finished_at", time.Now().UTC().Format(time.RFC3339))
	pipe.Expire(ctx, key, sessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}
