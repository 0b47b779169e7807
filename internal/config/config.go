package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration, loaded from YAML with
// ${ENV_VAR} placeholders expanded.
type Config struct {
	Server struct {
		Port           int     `yaml:"port"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Monitoring struct {
		HealthPort        int  `yaml:"health_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking BookingConfig `yaml:"booking"`
}

// BackupConfig controls the periodic database backup.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// BookingConfig carries the reservation guideline parameters, in days.
type BookingConfig struct {
	MaxReservedDays             int `yaml:"max_reserved_days"`
	MinDaysAheadOfArrival       int `yaml:"min_days_ahead_of_arrival"`
	ReservationMaxDaysInAdvance int `yaml:"reservation_max_days_in_advance"`
}

// Load reads the configuration from path, falling back to
// configs/config.yaml, and applies defaults for omitted values.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimitRPS <= 0 {
		c.Server.RateLimitRPS = 20
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = 40
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/campsite.db"
	}
	if c.Backup.IntervalHours <= 0 {
		c.Backup.IntervalHours = 24
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Backup.RetentionDays <= 0 {
		c.Backup.RetentionDays = 14
	}
	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Booking.MaxReservedDays <= 0 {
		c.Booking.MaxReservedDays = 3
	}
	if c.Booking.MinDaysAheadOfArrival <= 0 {
		c.Booking.MinDaysAheadOfArrival = 1
	}
	if c.Booking.ReservationMaxDaysInAdvance <= 0 {
		c.Booking.ReservationMaxDaysInAdvance = 31
	}
}
