package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
	} `yaml:"server"`

	Database struct {
		Path           string `yaml:"path"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		BusyTimeoutMS  int    `yaml:"busy_timeout_ms"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Channel  string `yaml:"channel"`
	} `yaml:"redis"`

	Telegram struct {
		BotToken    string  `yaml:"bot_token"`
		ManagerChat int64   `yaml:"manager_chat"`
		RatePerSec  float64 `yaml:"rate_per_sec"`
		Burst       int     `yaml:"burst"`
	} `yaml:"telegram"`

	Sheets struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		SheetName       string `yaml:"sheet_name"`
	} `yaml:"sheets"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		SlotMinutes       int  `yaml:"slot_minutes"`
		AutoConfirm       bool `yaml:"auto_confirm"`
		MinAdvanceMinutes int  `yaml:"min_advance_minutes"`
		MaxAdvanceDays    int  `yaml:"max_advance_days"`
	} `yaml:"booking"`

	Report struct {
		Enabled       bool   `yaml:"enabled"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"report"`
}

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
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/quadra.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SlotMinutes returns the configured slot size, defaulting to one hour.
func (c *Config) SlotMinutes() int {
	if c.Booking.SlotMinutes <= 0 {
		return 60
	}
	return c.Booking.SlotMinutes
}

// StoreTimeout bounds every store operation.
func (c *Config) StoreTimeout() time.Duration {
	if c.Database.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Database.TimeoutSeconds) * time.Second
}

// BookingMinAdvance returns the lower booking-window bound. Zero disables it,
// matching how the booking rules treat a zero advance.
func (c *Config) BookingMinAdvance() time.Duration {
	if c.Booking.MinAdvanceMinutes <= 0 {
		return 0
	}
	return time.Duration(c.Booking.MinAdvanceMinutes) * time.Minute
}

// BookingMaxAdvance returns the upper booking-window bound. Zero disables it.
func (c *Config) BookingMaxAdvance() time.Duration {
	if c.Booking.MaxAdvanceDays <= 0 {
		return 0
	}
	return time.Duration(c.Booking.MaxAdvanceDays) * 24 * time.Hour
}
