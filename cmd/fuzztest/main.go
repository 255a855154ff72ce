package main

import (
	"os"

	_ "go.uber.org/automaxprocs"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"fuzztest/config"
	"fuzztest/pkg/database"
	"fuzztest/pkg/logger"
	"fuzztest/pkg/mq"
	"fuzztest/pkg/telemetry"
)

func main() {
	app := fx.New(
		fx.Supply(commandLine(os.Args[1:])),
		fx.Provide(
			config.LoadConfig,          // inject config
			database.NewDBConnection,   // inject db connection
			database.NewRedisClient,    // inject redis client
			logger.NewLogger,           // inject logger
			mq.NewRabbitMQ,             // inject rabbitmq service
			telemetry.NewTelemetry,     // inject telemetry
			telemetry.NewTracerFactory, // inject telemetry tracer factory
		),
		fx.Invoke(NewRunner),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			zlogger := fxevent.ZapLogger{Logger: log}
			zlogger.UseLogLevel(zap.DebugLevel)
			return &zlogger
		}),
	)
	app.Run()
}
