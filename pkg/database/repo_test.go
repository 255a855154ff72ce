package database_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fuzztest/config"
	"fuzztest/pkg/database"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "fuzztest.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestCaseResults(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	pass := database.NewCaseResult("s1", "A.B", "B", "unit_test", true, "", 1500*time.Millisecond, "")
	fail := database.NewCaseResult("s1", "A.B", "B/replay/x", "unit_test", false, "boom", time.Second, "/db/A.B/crashing/x")
	fail.Metadata = database.Metadata{"variant": "plain"}
	other := database.NewCaseResult("s2", "A.C", "C", "fuzz", true, "", 0, "")

	for _, r := range []*database.CaseResult{pass, fail, other, nil} {
		require.NoError(t, database.AddCaseResult(ctx, db, r))
	}

	results, err := database.ListCaseResults(ctx, db, "s1")
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "B", results[0].CaseName)
	assert.True(t, results[0].Passed)
	assert.Equal(t, int64(1500), results[0].DurationMs)

	assert.Equal(t, "B/replay/x", results[1].CaseName)
	assert.False(t, results[1].Passed)
	assert.Equal(t, "boom", results[1].Error)
	assert.Equal(t, "/db/A.B/crashing/x", results[1].ReplayInput)
	assert.Equal(t, database.Metadata{"variant": "plain"}, results[1].Metadata)
}

func TestAddFinding_Deduplicates(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.AddFinding(ctx, db, database.NewFinding("s1", "A.B", "/db/A.B/crashing/x")))
	require.NoError(t, database.AddFinding(ctx, db, database.NewFinding("s1", "A.B", "/db/A.B/crashing/x")))
	require.NoError(t, database.AddFinding(ctx, db, database.NewFinding("s1", "A.B", "/db/A.B/crashing/y")))
	require.NoError(t, database.AddFinding(ctx, db, database.NewFinding("s2", "A.B", "/db/A.B/crashing/x")))

	findings, err := database.ListFindings(ctx, db, "s1")
	require.NoError(t, err)

	var paths []string
	for _, f := range findings {
		paths = append(paths, f.InputPath)
	}
	assert.Equal(t, []string{"/db/A.B/crashing/x", "/db/A.B/crashing/y"}, paths)
}

func TestNewDBConnection_Unconfigured(t *testing.T) {
	t.Parallel()

	db, err := database.NewDBConnection(&config.AppConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, db)
}

func TestNewRedisClient_Unconfigured(t *testing.T) {
	t.Parallel()

	client, err := database.NewRedisClient(database.RedisParams{Config: &config.AppConfig{}, Logger: zap.NewNop()})
	require.NoError(t, err)
	assert.Nil(t, client)
}
