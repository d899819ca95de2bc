package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings are the process-level knobs read from the environment.
type Settings struct {
	AssetsDir    string        `env:"LIFESIM_ASSETS_DIR" envDefault:"assets"`
	Addr         string        `env:"LIFESIM_ADDR" envDefault:":8080"`
	LogLevel     string        `env:"LIFESIM_LOG_LEVEL" envDefault:"info"`
	TickInterval time.Duration `env:"LIFESIM_TICK_INTERVAL"`
	Seed         int64         `env:"LIFESIM_SEED"`
	SaveKey      string        `env:"LIFESIM_SAVE_KEY" envDefault:"lifesim_save"`

	DBDialect   string `env:"DB_DIALECT" envDefault:"sqlite"`
	SQLitePath  string `env:"DB_SQLITE_PATH" envDefault:"tmp/lifesim.sqlite"`
	PostgresDSN string `env:"DB_POSTGRES_DSN"`
	DatabaseURL string `env:"DATABASE_URL"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadSettings parses Settings from the environment.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := ParseEnv(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// PostgresURL prefers DB_POSTGRES_DSN over DATABASE_URL.
func (s Settings) PostgresURL() string {
	if s.PostgresDSN != "" {
		return s.PostgresDSN
	}
	return s.DatabaseURL
}
