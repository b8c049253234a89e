package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Import     ImportConfig     `yaml:"import"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
// Leaving the keys empty disables push delivery.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	CacheTTLSeconds int      `yaml:"cache_ttl_seconds"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ShutdownSeconds int      `yaml:"shutdown_seconds"`
}

// CacheTTL is the response cache lifetime for read-only views.
func (s ServerConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// DatabaseConfig holds the database connection configuration.
// The DSN must point at an in-memory SQLite database.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	Seed         bool   `yaml:"seed"`
	LogQueries   bool   `yaml:"log_queries"`
}

// JobsConfig holds the delays of the simulated background work.
type JobsConfig struct {
	RegenerateDelayMs int           `yaml:"regenerate_delay_ms"`
	AssistantDelayMs  int           `yaml:"assistant_delay_ms"`
	ImportDelayMs     int           `yaml:"import_delay_ms"`
	RetentionMinutes  int           `yaml:"retention_minutes"`
	RegenerateDelay   time.Duration `yaml:"-"`
	AssistantDelay    time.Duration `yaml:"-"`
	ImportDelay       time.Duration `yaml:"-"`
	Retention         time.Duration `yaml:"-"`
}

// ImportConfig holds the CSV import wizard configuration.
type ImportConfig struct {
	MaxFileBytes      int64         `yaml:"max_file_bytes"`
	PreviewRows       int           `yaml:"preview_rows"`
	SessionTTLMinutes int           `yaml:"session_ttl_minutes"`
	SessionTTL        time.Duration `yaml:"-"`
}

// LogConfig selects the logger mode ("dev" or "prod").
type LogConfig struct {
	Mode string `yaml:"mode"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{Database: DatabaseConfig{Seed: true}}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset values and derives the duration fields.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}
	if cfg.Server.ShutdownSeconds <= 0 {
		cfg.Server.ShutdownSeconds = 5
	}

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:perfdash?mode=memory&cache=shared"
	}
	if cfg.Database.MaxOpenConns <= 0 {
		cfg.Database.MaxOpenConns = 1
	}

	if cfg.Jobs.RegenerateDelayMs <= 0 {
		cfg.Jobs.RegenerateDelayMs = 3000
	}
	if cfg.Jobs.AssistantDelayMs <= 0 {
		cfg.Jobs.AssistantDelayMs = 3000
	}
	if cfg.Jobs.ImportDelayMs <= 0 {
		cfg.Jobs.ImportDelayMs = 3000
	}
	if cfg.Jobs.RetentionMinutes <= 0 {
		cfg.Jobs.RetentionMinutes = 10
	}
	cfg.Jobs.RegenerateDelay = time.Duration(cfg.Jobs.RegenerateDelayMs) * time.Millisecond
	cfg.Jobs.AssistantDelay = time.Duration(cfg.Jobs.AssistantDelayMs) * time.Millisecond
	cfg.Jobs.ImportDelay = time.Duration(cfg.Jobs.ImportDelayMs) * time.Millisecond
	cfg.Jobs.Retention = time.Duration(cfg.Jobs.RetentionMinutes) * time.Minute

	if cfg.Import.MaxFileBytes <= 0 {
		cfg.Import.MaxFileBytes = 10 << 20
	}
	if cfg.Import.PreviewRows <= 0 {
		cfg.Import.PreviewRows = 5
	}
	if cfg.Import.SessionTTLMinutes <= 0 {
		cfg.Import.SessionTTLMinutes = 30
	}
	cfg.Import.SessionTTL = time.Duration(cfg.Import.SessionTTLMinutes) * time.Minute

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Log.Mode == "" {
		cfg.Log.Mode = "dev"
	}
}
