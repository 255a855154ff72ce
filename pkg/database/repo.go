package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

func AddCaseResult(ctx context.Context, db *gorm.DB, result *CaseResult) error {
	if result == nil {
		return nil
	}
	return db.WithContext(ctx).Create(result).Error
}

// NewCaseResult creates a new CaseResult object with the provided parameters
func NewCaseResult(
	sessionID string,
	testName string,
	caseName string,
	runMode string,
	passed bool,
	errText string,
	duration time.Duration,
	replayInput string,
) *CaseResult {
	return &CaseResult{
		SessionID:   sessionID,
		CreatedAt:   time.Now(),
		TestName:    testName,
		CaseName:    caseName,
		RunMode:     runMode,
		Passed:      passed,
		Error:       errText,
		DurationMs:  duration.Milliseconds(),
		ReplayInput: replayInput,
	}
}

func ListCaseResults(ctx context.Context, db *gorm.DB, sessionID string) ([]CaseResult, error) {
	var results []CaseResult
	err := db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id").Find(&results).Error
	return results, err
}

// AddFinding stores a finding unless the same input was already recorded for
// the session.
func AddFinding(ctx context.Context, db *gorm.DB, finding *Finding) error {
	if finding == nil {
		return nil
	}
	return db.WithContext(ctx).
		Where(Finding{SessionID: finding.SessionID, InputPath: finding.InputPath}).
		FirstOrCreate(finding).Error
}

func NewFinding(sessionID, testName, inputPath string) *Finding {
	return &Finding{
		SessionID: sessionID,
		CreatedAt: time.Now(),
		TestName:  testName,
		InputPath: inputPath,
	}
}

func ListFindings(ctx context.Context, db *gorm.DB, sessionID string) ([]Finding, error) {
	var findings []Finding
	err := db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id").Find(&findings).Error
	return findings, err
}
