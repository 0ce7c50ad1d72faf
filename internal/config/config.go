// Package config handles loading and managing notifai configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the notifai configuration.
type Config struct {
	Data     DataConfig     `toml:"data"`
	Device   DeviceConfig   `toml:"device"`
	Ingest   IngestConfig   `toml:"ingest"`
	Contacts ContactsConfig `toml:"contacts"`
	Server   ServerConfig   `toml:"server"`
	Jobs     []JobSchedule  `toml:"jobs"`

	// Computed paths (not from config file)
	HomeDir string `toml:"-"`
}

// DataConfig holds data storage configuration.
type DataConfig struct {
	DataDir  string `toml:"data_dir"`
	Database string `toml:"database"` // SQLite path (default: <data_dir>/notifai.db)
}

// DeviceConfig holds device message source configuration.
type DeviceConfig struct {
	SourcePath  string `toml:"source_path"`  // exported telephony database
	Region      string `toml:"region"`       // ISO region for number parsing (default: US)
	CountryCode int    `toml:"country_code"` // calling code for the heuristic normalizer
}

// IngestConfig holds pipeline tuning.
type IngestConfig struct {
	JobName    string `toml:"job_name"`
	BatchSize  int    `toml:"batch_size"`
	MaxRetries int    `toml:"max_retries"`
}

// ContactsConfig holds contact store sync configuration.
type ContactsConfig struct {
	VCardPath string   `toml:"vcard_path"`
	Debounce  duration `toml:"debounce"`
}

// ServerConfig holds HTTP API server configuration.
type ServerConfig struct {
	APIPort int `toml:"api_port"` // HTTP server port (default: 8080)
}

// JobSchedule defines a cron-scheduled ingestion job.
type JobSchedule struct {
	Name     string `toml:"name"`
	Schedule string `toml:"schedule"` // cron expression (e.g., "*/15 * * * *")
	Enabled  bool   `toml:"enabled"`
}

// duration wraps time.Duration for TOML decoding of strings like "2s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// Duration returns the contacts debounce interval.
func (c ContactsConfig) Duration() time.Duration {
	return time.Duration(c.Debounce)
}

// DefaultHome returns the default notifai home directory.
// Respects the NOTIFAI_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("NOTIFAI_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".notifai"
	}
	return filepath.Join(home, ".notifai")
}

// Load reads the configuration from the specified file.
// If path is empty, uses the default location (~/.notifai/config.toml).
// The config file is optional; defaults apply when it is absent.
func Load(path string) (*Config, error) {
	homeDir := DefaultHome()

	if path == "" {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := &Config{
		HomeDir: homeDir,
		Data: DataConfig{
			DataDir: homeDir,
		},
		Device: DeviceConfig{
			Region:      "US",
			CountryCode: 1,
		},
		Ingest: IngestConfig{
			JobName:    "sms-ingest",
			BatchSize:  100,
			MaxRetries: 3,
		},
		Contacts: ContactsConfig{
			Debounce: duration(2 * time.Second),
		},
		Server: ServerConfig{
			APIPort: 8080,
		},
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyDerived()
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Data.DataDir = expandPath(cfg.Data.DataDir)
	cfg.Data.Database = expandPath(cfg.Data.Database)
	cfg.Device.SourcePath = expandPath(cfg.Device.SourcePath)
	cfg.Contacts.VCardPath = expandPath(cfg.Contacts.VCardPath)
	cfg.applyDerived()

	return cfg, nil
}

// applyDerived fills in paths computed from other settings.
func (c *Config) applyDerived() {
	if c.Data.Database == "" {
		c.Data.Database = filepath.Join(c.Data.DataDir, "notifai.db")
	}
}

// EnsureHomeDir creates the data directory if it does not exist.
func (c *Config) EnsureHomeDir() error {
	return os.MkdirAll(c.Data.DataDir, 0755)
}

// ScheduledJobs returns the enabled cron jobs.
func (c *Config) ScheduledJobs() []JobSchedule {
	var out []JobSchedule
	for _, j := range c.Jobs {
		if j.Enabled && j.Name != "" && j.Schedule != "" {
			out = append(out, j)
		}
	}
	return out
}

// expandPath expands a leading ~ to the user home directory.
func expandPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
