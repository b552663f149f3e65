package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mantonx/streamctl/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteCreatesDirectoryAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "streamctl.db")

	db, err := Open(config.DatabaseConfig{Type: "sqlite", Path: path})
	require.NoError(t, err)
	defer Close(db)

	assert.FileExists(t, path)
	assert.True(t, db.Migrator().HasTable(&DispatchRecord{}))
}

func TestOpen_UnsupportedType(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Type: "mysql"})
	assert.Error(t, err)
}

func TestDispatchRecord_Tiers(t *testing.T) {
	rec := &DispatchRecord{ID: "a", IssuedAt: time.Now()}

	tiers, err := rec.GetTiers()
	require.NoError(t, err)
	assert.Nil(t, tiers)

	require.NoError(t, rec.SetTiers([]string{"480p", "720p"}))
	assert.Equal(t, `["480p","720p"]`, rec.Tiers)

	tiers, err = rec.GetTiers()
	require.NoError(t, err)
	assert.Equal(t, []string{"480p", "720p"}, tiers)
}
