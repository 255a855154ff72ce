package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type AppConfig struct {
	LogLevel         string
	ServiceName      string
	TelemetryEnabled bool
	DatabaseURL      string // optional, enables the case result / finding tables
	RabbitMQURL      string // optional, enables result and finding publishing
	RedisURL         string // optional, enables the session summary
	OptionsPath      string // optional YAML file with flag defaults
	Queues           QueueConfig
	FindingsPoll     time.Duration
}

type QueueConfig struct {
	Results  string
	Findings string
}

func LoadConfig() *AppConfig {
	// use a temporary logger for now
	logger := zap.NewExample().Named("config")

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env file", zap.Error(err))
	}

	config := &AppConfig{
		LogLevel:         os.Getenv("LOG_LEVEL"),
		ServiceName:      os.Getenv("SERVICE_NAME"),
		TelemetryEnabled: parseBool(os.Getenv("TELEMETRY_ENABLED"), false),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		OptionsPath:      os.Getenv("FUZZTEST_OPTIONS"),
		Queues: QueueConfig{
			Results:  os.Getenv("RESULTS_QUEUE"),
			Findings: os.Getenv("FINDINGS_QUEUE"),
		},
		FindingsPoll: parseDuration(os.Getenv("FINDINGS_POLL_INTERVAL"), 10*time.Second),
	}

	if config.LogLevel == "" {
		config.LogLevel = "info" // Set default log level
	}
	if config.ServiceName == "" {
		config.ServiceName = "fuzztest"
	}
	if config.Queues.Results == "" {
		config.Queues.Results = "fuzztest_results"
	}
	if config.Queues.Findings == "" {
		config.Queues.Findings = "fuzztest_findings"
	}

	return config
}

func parseDuration(val string, defaultVal time.Duration) time.Duration {
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseBool(val string, defaultVal bool) bool {
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
