package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// CaseResult represents a record in the case_results table
type CaseResult struct {
	ID          int       `gorm:"primaryKey;column:id"`
	SessionID   string    `gorm:"column:session_id;not null;index"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	TestName    string    `gorm:"column:test_name;not null"`
	CaseName    string    `gorm:"column:case_name;not null"`
	RunMode     string    `gorm:"column:run_mode;not null"`
	Passed      bool      `gorm:"column:passed"`
	Error       string    `gorm:"column:error"`
	DurationMs  int64     `gorm:"column:duration_ms"`
	ReplayInput string    `gorm:"column:replay_input"`
	Metadata    Metadata  `gorm:"column:metadata;type:jsonb"`
}

// Finding represents a record in the findings table: a crashing input that
// appeared in the corpus database while fuzzing.
type Finding struct {
	ID        int       `gorm:"primaryKey;column:id"`
	SessionID string    `gorm:"column:session_id;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
	TestName  string    `gorm:"column:test_name;not null"`
	InputPath string    `gorm:"column:input_path;not null"`
}

// Metadata is a free-form jsonb column
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *Metadata) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("unsupported metadata column type")
	}

	return json.Unmarshal(raw, m)
}
