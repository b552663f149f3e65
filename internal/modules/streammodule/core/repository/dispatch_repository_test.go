package repository

import (
	"context"
	"testing"
	"time"

	"github.com/mantonx/streamctl/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// Every pooled connection to :memory: would get its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func record(id, op, output string, issued time.Time) *database.DispatchRecord {
	return &database.DispatchRecord{
		ID:         id,
		Operation:  op,
		Protocol:   "dash",
		OutputPath: output,
		IssuedAt:   issued,
	}
}

func TestDispatchRepository_CreateAndGet(t *testing.T) {
	repo := NewDispatchRepository(setupTestDB(t))
	ctx := context.Background()

	rec := record("req-1", "start", "/out/dash.mpd", time.Now())
	rec.Source = "https://example.com/in.mp4"
	require.NoError(t, rec.SetTiers([]string{"480p"}))
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.GetByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "start", got.Operation)
	assert.Equal(t, "https://example.com/in.mp4", got.Source)

	tiers, err := got.GetTiers()
	require.NoError(t, err)
	assert.Equal(t, []string{"480p"}, tiers)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDispatchRepository_ListRecentAndByOutput(t *testing.T) {
	repo := NewDispatchRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, record("a", "start", "/out/dash.mpd", now.Add(-2*time.Minute))))
	require.NoError(t, repo.Create(ctx, record("b", "stop", "/out/hls.m3u8", now.Add(-time.Minute))))
	require.NoError(t, repo.Create(ctx, record("c", "stop", "/out/dash.mpd", now)))

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].ID)
	assert.Equal(t, "b", recent[1].ID)

	byOutput, err := repo.ListByOutput(ctx, "/out/dash.mpd")
	require.NoError(t, err)
	require.Len(t, byOutput, 2)
	assert.Equal(t, "a", byOutput[0].ID)
	assert.Equal(t, "c", byOutput[1].ID)
}

func TestDispatchRepository_CleanupOlderThan(t *testing.T) {
	repo := NewDispatchRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, record("old", "start", "/out/a.mpd", time.Now().Add(-48*time.Hour))))
	require.NoError(t, repo.Create(ctx, record("new", "start", "/out/a.mpd", time.Now())))

	removed, err := repo.CleanupOlderThan(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].ID)
}
