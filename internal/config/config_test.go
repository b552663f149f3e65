package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cm := NewConfigManager()
	require.NoError(t, cm.LoadConfig(""))

	cfg := cm.GetConfig()
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/static/", cfg.Server.StaticURL)
	assert.Equal(t, []string{"480p"}, cfg.Stream.DefaultTiers)
	assert.Equal(t, "dash", cfg.Stream.StartProtocol)
	assert.Equal(t, "hls", cfg.Stream.StopProtocol)
	assert.Equal(t, filepath.Join("./static", "stream"), cfg.Stream.OutputDir)
	assert.Equal(t, filepath.Join("./data", "streamctl.db"), cfg.Database.Path)
	assert.Equal(t, 720*time.Hour, cfg.Database.Retention)
	assert.Equal(t, "/static/video/450.mp4", cfg.SampleVideoURL())
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := writeFile(t, "streamctl.yaml", `
server:
  port: 9090
  static_dir: /srv/www
stream:
  source_url: https://cdn.example.com/in.mp4
  default_tiers: [360p, 720p]
  start_protocol: HLS
  kill_grace: 3s
database:
  type: postgres
  url: postgres://localhost/streamctl
`)

	cm := NewConfigManager()
	require.NoError(t, cm.LoadConfig(path))

	cfg := cm.GetConfig()
	assert.Equal(t, path, cm.ConfigPath())
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "https://cdn.example.com/in.mp4", cfg.Stream.SourceURL)
	assert.Equal(t, []string{"360p", "720p"}, cfg.Stream.DefaultTiers)
	assert.Equal(t, "hls", cfg.Stream.StartProtocol)
	assert.Equal(t, 3*time.Second, cfg.Stream.KillGrace)
	assert.Equal(t, filepath.Join("/srv/www", "stream"), cfg.Stream.OutputDir)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Empty(t, cfg.Database.Path)
}

func TestLoadConfig_JSONFile(t *testing.T) {
	path := writeFile(t, "streamctl.json", `{"stream": {"source_url": "in.mp4", "output_dir": "/tmp/out"}}`)

	cm := NewConfigManager()
	require.NoError(t, cm.LoadConfig(path))

	cfg := cm.GetConfig()
	assert.Equal(t, "in.mp4", cfg.Stream.SourceURL)
	assert.Equal(t, "/tmp/out", cfg.Stream.OutputDir)
}

func TestLoadConfig_UnsupportedExtension(t *testing.T) {
	path := writeFile(t, "streamctl.toml", `port = 1`)

	err := NewConfigManager().LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "streamctl.yaml", "server:\n  port: 9090\n")

	t.Setenv("STREAMCTL_PORT", "7070")
	t.Setenv("STREAMCTL_SOURCE_URL", "rtmp://ingest/live")
	t.Setenv("STREAMCTL_DEFAULT_TIERS", "240p, 1080p")
	t.Setenv("STREAMCTL_KILL_GRACE", "750ms")
	t.Setenv("STREAMCTL_WATCH_MANIFESTS", "false")
	t.Setenv("STREAMCTL_LOG_FORMAT", "json")

	cm := NewConfigManager()
	require.NoError(t, cm.LoadConfig(path))

	cfg := cm.GetConfig()
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "rtmp://ingest/live", cfg.Stream.SourceURL)
	assert.Equal(t, []string{"240p", "1080p"}, cfg.Stream.DefaultTiers)
	assert.Equal(t, 750*time.Millisecond, cfg.Stream.KillGrace)
	assert.False(t, cfg.Stream.WatchManifests)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadConfig_InvalidEnvValue(t *testing.T) {
	t.Setenv("STREAMCTL_PORT", "not-a-number")

	err := NewConfigManager().LoadConfig("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"static url", func(c *Config) { c.Server.StaticURL = "static" }, "server.static_url"},
		{"start protocol", func(c *Config) { c.Stream.StartProtocol = "rtmp" }, "stream.start_protocol"},
		{"stop protocol", func(c *Config) { c.Stream.StopProtocol = "" }, "stream.stop_protocol"},
		{"ffmpeg path", func(c *Config) { c.Stream.FFmpegPath = "" }, "stream.ffmpeg_path"},
		{"database type", func(c *Config) { c.Database.Type = "mysql" }, "database.type"},
		{"postgres url", func(c *Config) { c.Database.Type = "postgres" }, "database.url"},
		{"unknown default tier", func(c *Config) { c.Stream.DefaultTiers = []string{"4k"} }, "stream.default_tiers"},
		{"negative retention", func(c *Config) { c.Database.Retention = -time.Hour }, "database.retention"},
		{"cleanup interval", func(c *Config) { c.Database.CleanupInterval = 0 }, "database.cleanup_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestGetConfig_ReturnsCopy(t *testing.T) {
	cm := NewConfigManager()

	cfg := cm.GetConfig()
	cfg.Stream.DefaultTiers[0] = "1080p"
	cfg.Server.Port = 1

	fresh := cm.GetConfig()
	assert.Equal(t, []string{"480p"}, fresh.Stream.DefaultTiers)
	assert.Equal(t, 8080, fresh.Server.Port)
}
