package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// ServerConfig holds process-level settings for cmd/hydro-server.
type ServerConfig struct {
	Addr               string        `env:"HYDRO_ADDR" envDefault:":5000"`
	DBPath             string        `env:"HYDRO_DB_PATH" envDefault:"data/hydrosim.db"`
	DataDir            string        `env:"HYDRO_DATA_DIR"` // Empty uses the embedded catalog
	TuningPath         string        `env:"HYDRO_TUNING_PATH"`
	MaxSessions        int           `env:"HYDRO_MAX_SESSIONS" envDefault:"256"`
	SimSpeed           time.Duration `env:"HYDRO_SIM_SPEED" envDefault:"2500ms"`
	BackupInterval     time.Duration `env:"HYDRO_BACKUP_INTERVAL" envDefault:"30s"`
	StatusPushInterval time.Duration `env:"HYDRO_STATUS_PUSH_INTERVAL" envDefault:"1s"`
	ClientActionGap    time.Duration `env:"HYDRO_CLIENT_ACTION_GAP" envDefault:"250ms"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServer parses ServerConfig from the environment.
func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	if err := ParseEnv(&cfg); err != nil {
		return ServerConfig{}, err
	}
	if cfg.MaxSessions <= 0 {
		return ServerConfig{}, fmt.Errorf("HYDRO_MAX_SESSIONS must be positive, got %d", cfg.MaxSessions)
	}
	return cfg, nil
}
