package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/streamctl/internal/config"
	"github.com/mantonx/streamctl/internal/database"
	"github.com/mantonx/streamctl/internal/modules/streammodule"
	"github.com/mantonx/streamctl/internal/modules/streammodule/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.StaticDir = t.TempDir()
	cfg.Stream.OutputDir = filepath.Join(cfg.Server.StaticDir, "stream")
	cfg.Stream.SourceURL = "https://cdn.example.com/source.mp4"
	// Exits immediately whatever the arguments
	cfg.Stream.FFmpegPath = "true"
	cfg.Stream.WatchManifests = false
	cfg.Database.Path = filepath.Join(t.TempDir(), "streamctl.db")
	return cfg
}

func setupServer(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig(t)
	db, err := database.Open(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	module := streammodule.NewModule(cfg, db, hclog.NewNullLogger())
	require.NoError(t, module.Migrate())
	module.Start()
	t.Cleanup(func() { _ = module.Shutdown() })

	router, err := SetupRouter(cfg, hclog.NewNullLogger(), module)
	require.NoError(t, err)
	return router, cfg
}

func get(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	router, _ := setupServer(t)

	w := get(router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestIndexPage(t *testing.T) {
	router, _ := setupServer(t)

	w := get(router, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `src="/static/video/450.mp4"`)
}

func TestStaticFiles(t *testing.T) {
	router, cfg := setupServer(t)

	videoDir := filepath.Join(cfg.Server.StaticDir, "video")
	require.NoError(t, os.MkdirAll(videoDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(videoDir, "450.mp4"), []byte("mp4"), 0644))

	w := get(router, http.MethodGet, "/static/video/450.mp4")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mp4", w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	router, _ := setupServer(t)

	w := get(router, http.MethodOptions, "/run")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRunStopRecordsDispatches(t *testing.T) {
	router, _ := setupServer(t)

	w := get(router, http.MethodPost, "/run")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	startID := w.Header().Get("X-Stream-Request-ID")
	require.NotEmpty(t, startID)

	w = get(router, http.MethodPost, "/stop")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<h1>Stream is stopped</h1>", w.Body.String())

	// The index page does not depend on earlier start or stop calls
	w = get(router, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `src="/static/video/450.mp4"`)

	w = get(router, http.MethodGet, "/api/v1/stream/dispatches")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Dispatches []api.DispatchView `json:"dispatches"`
		Count      int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)

	ops := map[string]api.DispatchView{}
	for _, d := range body.Dispatches {
		ops[d.Operation] = d
	}
	assert.Equal(t, "dash", ops["start"].Protocol)
	assert.Equal(t, []string{"480p"}, ops["start"].Tiers)
	assert.Equal(t, "hls", ops["stop"].Protocol)
	assert.True(t, ops["stop"].AutoLadder)
	assert.Empty(t, ops["stop"].Source)
	assert.Equal(t, []string{"240p", "360p", "480p", "720p", "1080p"}, ops["stop"].Tiers)

	w = get(router, http.MethodGet, "/api/v1/stream/dispatches/"+startID)
	require.Equal(t, http.StatusOK, w.Code)
	var start api.DispatchView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &start))
	assert.Equal(t, "start", start.Operation)

	w = get(router, http.MethodGet, "/api/v1/stream/dispatches?output=dash.mpd")
	require.Equal(t, http.StatusOK, w.Code)
	body.Dispatches = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Dispatches, 1)
	assert.Equal(t, startID, body.Dispatches[0].ID)
}
