package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "./feedbase.db", cfg.Database.Path)
	assert.Equal(t, 4, cfg.ETL.Workers)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Schedule.ParseProcessInterval())
	assert.Equal(t, time.Hour, cfg.Schedule.ParseFactsInterval())
	assert.Equal(t, 6*time.Hour, cfg.Schedule.ParseChartsInterval())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /var/lib/feedbase/data.db
etl:
  workers: 8
schedule:
  process_interval: 5m
server:
  port: 9090
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/feedbase/data.db", cfg.Database.Path)
	assert.Equal(t, 8, cfg.ETL.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Schedule.ParseProcessInterval())
	// Unset intervals keep their defaults.
	assert.Equal(t, time.Hour, cfg.Schedule.ParseFactsInterval())
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FEEDBASE_DB_PATH", "/tmp/override.db")
	t.Setenv("FEEDBASE_WORKERS", "16")
	t.Setenv("FEEDBASE_PORT", "7070")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, 16, cfg.ETL.Workers)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestParseInterval_Invalid(t *testing.T) {
	s := ScheduleConfig{ProcessInterval: "not-a-duration"}
	assert.Equal(t, 15*time.Minute, s.ParseProcessInterval())
}
