package repository

import (
	"context"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupService_RunOnce(t *testing.T) {
	repo := NewDispatchRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, record("old", "start", "/out/a.mpd", time.Now().Add(-72*time.Hour))))
	require.NoError(t, repo.Create(ctx, record("new", "stop", "/out/a.mpd", time.Now())))

	cs := NewCleanupService(repo, 24*time.Hour, time.Hour, hclog.NewNullLogger())
	assert.Equal(t, int64(1), cs.RunOnce(ctx))
	assert.Equal(t, int64(0), cs.RunOnce(ctx))

	left, err := repo.ListByOutput(ctx, "/out/a.mpd")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].ID)
}

func TestCleanupService_RunStopsOnCancel(t *testing.T) {
	repo := NewDispatchRepository(setupTestDB(t))
	require.NoError(t, repo.Create(context.Background(), record("old", "start", "/out/a.mpd", time.Now().Add(-72*time.Hour))))

	cs := NewCleanupService(repo, 24*time.Hour, time.Hour, hclog.NewNullLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cs.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		recent, err := repo.ListRecent(context.Background(), 10)
		return err == nil && len(recent) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}
