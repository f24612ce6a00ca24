package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	ETL      ETLConfig      `yaml:"etl"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ETLConfig configures batch processing.
type ETLConfig struct {
	// Workers bounds concurrent fact-extraction sub-windows.
	Workers int `yaml:"workers"`
}

// ScheduleConfig configures the daemon's batch intervals.
type ScheduleConfig struct {
	ProcessInterval string `yaml:"process_interval"`
	FactsInterval   string `yaml:"facts_interval"`
	ChartsInterval  string `yaml:"charts_interval"`
}

// ParseProcessInterval returns the raw-report processing interval.
func (s ScheduleConfig) ParseProcessInterval() time.Duration {
	return parseInterval(s.ProcessInterval, 15*time.Minute)
}

// ParseFactsInterval returns the fact extraction interval.
func (s ScheduleConfig) ParseFactsInterval() time.Duration {
	return parseInterval(s.FactsInterval, time.Hour)
}

// ParseChartsInterval returns the chart computation interval.
func (s ScheduleConfig) ParseChartsInterval() time.Duration {
	return parseInterval(s.ChartsInterval, 6*time.Hour)
}

func parseInterval(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./feedbase.db"},
		ETL:      ETLConfig{Workers: 4},
		Schedule: ScheduleConfig{
			ProcessInterval: "15m",
			FactsInterval:   "1h",
			ChartsInterval:  "6h",
		},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FEEDBASE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FEEDBASE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ETL.Workers = n
		}
	}
	if v := os.Getenv("FEEDBASE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.Port = n
		}
	}
}
