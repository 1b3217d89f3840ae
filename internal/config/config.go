// Package config reads process settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/okeyhub/okey101/internal/game"
	"github.com/okeyhub/okey101/internal/historian"
	"github.com/sirupsen/logrus"
)

// Prefix is prepended to every variable, e.g. OKEY_PORT.
const Prefix = "OKEY"

type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`

	// Empty disables the Postgres recorder.
	DatabaseURL string `envconfig:"DATABASE_URL"`
	// Empty disables the action log.
	RedisAddr   string `envconfig:"REDIS_ADDR"`
	RedisDB     int    `envconfig:"REDIS_DB" default:"0"`
	ActionQueue string `envconfig:"ACTION_QUEUE" default:"okey_actions"`
	ArchivePath string `envconfig:"ARCHIVE_PATH"`

	EvalCacheSize  int           `envconfig:"EVAL_CACHE_SIZE" default:"1024"`
	TokenTTL       time.Duration `envconfig:"TOKEN_TTL" default:"0s"`
	PrivateKeyPath string        `envconfig:"PRIVATE_KEY_PATH"`
	PublicKeyPath  string        `envconfig:"PUBLIC_KEY_PATH"`

	OpenThreshold       int  `envconfig:"OPEN_THRESHOLD" default:"101"`
	UnopenedPenalty     int  `envconfig:"UNOPENED_PENALTY" default:"202"`
	FinishScore         int  `envconfig:"FINISH_SCORE" default:"-101"`
	AbortOnDisconnect   bool `envconfig:"ABORT_ON_DISCONNECT" default:"true"`
	EndOnStockExhausted bool `envconfig:"END_ON_STOCK_EXHAUSTED" default:"true"`

	BatchSize         int           `envconfig:"HISTORIAN_BATCH_SIZE" default:"20"`
	FlushInterval     time.Duration `envconfig:"HISTORIAN_FLUSH_INTERVAL" default:"500ms"`
	InactivityTimeout time.Duration `envconfig:"GAME_INACTIVITY_TIMEOUT" default:"10m"`
}

// Load processes the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("processing env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.EvalCacheSize <= 0 {
		return fmt.Errorf("eval cache size must be positive, got %d", c.EvalCacheSize)
	}
	if c.OpenThreshold < 1 || c.UnopenedPenalty < 0 {
		return fmt.Errorf("invalid rules: threshold %d, penalty %d", c.OpenThreshold, c.UnopenedPenalty)
	}
	if (c.PrivateKeyPath == "") != (c.PublicKeyPath == "") {
		return fmt.Errorf("private and public key paths must be set together")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Level returns the parsed log level; Validate has already checked it.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Rules returns the default house rules for new lobbies.
func (c Config) Rules() game.HouseRules {
	return game.HouseRules{
		OpenThreshold:       c.OpenThreshold,
		UnopenedPenalty:     c.UnopenedPenalty,
		FinishScore:         c.FinishScore,
		AbortOnDisconnect:   c.AbortOnDisconnect,
		EndOnStockExhausted: c.EndOnStockExhausted,
	}
}

func (c Config) Historian() historian.Config {
	return historian.Config{
		BatchSize:     c.BatchSize,
		FlushInterval: c.FlushInterval,
		Inactivity:    c.InactivityTimeout,
	}
}
