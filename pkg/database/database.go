package database

import (
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"fuzztest/config"
)

// NewDBConnection connects to DATABASE_URL and migrates the result tables.
// Returns a nil *gorm.DB when no database is configured.
func NewDBConnection(appConfig *config.AppConfig, logger *zap.Logger) (*gorm.DB, error) {
	if appConfig.DatabaseURL == "" {
		logger.Debug("no database configured")
		return nil, nil
	}

	db, err := gorm.Open(postgres.Open(appConfig.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Error("failed to connect database", zap.Error(err))
		return nil, err
	}
	if err := Migrate(db); err != nil {
		logger.Error("failed to migrate database", zap.Error(err))
		return nil, err
	}
	logger.Debug("connected to database")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&CaseResult{}, &Finding{})
}
