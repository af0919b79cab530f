// Package config loads application configuration from a TOML file with a
// layered override chain: built-in defaults, then the config file, then a
// local .env file, then real environment variables. The config file is
// created with defaults on first run so operators have a template to edit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the full application configuration.
type Config struct {
	Server  Server  `toml:"server"`
	Storage Storage `toml:"storage"`
	Uploads Uploads `toml:"uploads"`
	Metrics Metrics `toml:"metrics"`
}

// Server configures the HTTP listener.
type Server struct {
	Port         int           `toml:"port"`
	ReadTimeout  time.Duration `toml:"-"`
	WriteTimeout time.Duration `toml:"-"`
}

// Storage selects the persistence backend.
type Storage struct {
	Kind string `toml:"kind"`
	DSN  string `toml:"dsn"`
}

// Uploads configures physical file storage.
type Uploads struct {
	Root string `toml:"root"`
}

// Metrics configures the optional Datadog backend.
type Metrics struct {
	Enabled    bool   `toml:"enabled"`
	JobName    string `toml:"job_name"`
	Tags       string `toml:"tags"`
	FlushEvery string `toml:"flush_every"`
}

const defaultTOML = `# Painel configuration.
# Environment variables PORT, DATABASE_URL and UPLOAD_FOLDER override the
# values below.

[server]
port = 8050

[storage]
# kind: "sqlite" or "postgres"
kind = "sqlite"
dsn = "painel.db"

[uploads]
root = "uploads"

[metrics]
enabled = false
job_name = "painel"
tags = ""
flush_every = "60s"
`

func defaults() Config {
	var cfg Config
	// defaultTOML is the single source of default values.
	if _, err := toml.Decode(defaultTOML, &cfg); err != nil {
		panic("config: invalid built-in defaults: " + err.Error())
	}
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 120 * time.Second
	return cfg
}

// Load reads configuration from path, creating the file with defaults when
// it does not exist, then applies .env and environment overrides.
func Load(path string) (Config, error) {
	cfg := defaults()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if dir := filepath.Dir(path); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return cfg, fmt.Errorf("criar diretorio de config: %w", mkErr)
			}
		}
		if wErr := os.WriteFile(path, []byte(defaultTOML), 0o644); wErr != nil {
			return cfg, fmt.Errorf("gravar config padrao: %w", wErr)
		}
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("ler config %s: %w", path, err)
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()
	applyEnv(&cfg)

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Server.Port = p
		}
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.Storage.DSN = v
		// A URL-style DSN implies the postgres backend.
		if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
			cfg.Storage.Kind = "postgres"
		}
	}
	if v := strings.TrimSpace(os.Getenv("UPLOAD_FOLDER")); v != "" {
		cfg.Uploads.Root = v
	}
	if v := strings.TrimSpace(os.Getenv("DD_METRICS_ENABLED")); v != "" {
		cfg.Metrics.Enabled = v == "1" || strings.EqualFold(v, "true")
	}
}

func validate(cfg Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("porta invalida: %d", cfg.Server.Port)
	}
	if cfg.Storage.Kind == "" {
		return fmt.Errorf("storage.kind nao configurado")
	}
	if cfg.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn nao configurado")
	}
	if cfg.Uploads.Root == "" {
		return fmt.Errorf("uploads.root nao configurado")
	}
	return nil
}

// FlushInterval parses the metrics flush interval, defaulting to 60s on an
// empty or malformed value.
func (m Metrics) FlushInterval() time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(m.FlushEvery))
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}
