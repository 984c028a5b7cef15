package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Config is read from YAML, then overridden by environment variables.
// Durations are kept as strings and parsed with Duration at the point of use.
type Config struct {
	Server struct {
		Port           string   `yaml:"port" env:"PORT"`
		ReadTimeout    string   `yaml:"readTimeout" env:"SERVER_READ_TIMEOUT"`
		WriteTimeout   string   `yaml:"writeTimeout" env:"SERVER_WRITE_TIMEOUT"`
		AllowedOrigins []string `yaml:"allowedOrigins" env:"SERVER_ALLOWED_ORIGINS" envSeparator:","`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
		Env   string `yaml:"env" env:"APP_ENV"`
	} `yaml:"log"`
	Redis struct {
		Addr          string `yaml:"addr" env:"REDIS_ADDR"`
		Password      string `yaml:"password" env:"REDIS_PASSWORD"`
		DB            int    `yaml:"db" env:"REDIS_DB"`
		TTL           string `yaml:"ttl" env:"REDIS_TTL"`
		ChannelPrefix string `yaml:"channelPrefix" env:"REDIS_CHANNEL_PREFIX"`
		Publish       bool   `yaml:"publish" env:"REDIS_PUBLISH"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	Questions struct {
		File string `yaml:"file" env:"QUESTIONS_FILE"`
		TTL  string `yaml:"ttl" env:"QUESTIONS_TTL"`
	} `yaml:"questions"`
	Game struct {
		RoundDuration      string `yaml:"roundDuration" env:"GAME_ROUND_DURATION"`
		DefaultTotalRounds int    `yaml:"defaultTotalRounds" env:"GAME_DEFAULT_TOTAL_ROUNDS"`
		RosterPreviewLimit int    `yaml:"rosterPreviewLimit" env:"GAME_ROSTER_PREVIEW_LIMIT"`
		AutoAdvanceDelay   string `yaml:"autoAdvanceDelay" env:"GAME_AUTO_ADVANCE_DELAY"`
	} `yaml:"game"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file is not an error; the service then runs on defaults and env alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Env == "" {
		c.Log.Env = "development"
	}
	if c.Game.DefaultTotalRounds <= 0 {
		c.Game.DefaultTotalRounds = 12
	}
	if c.Game.RosterPreviewLimit <= 0 {
		c.Game.RosterPreviewLimit = 15
	}
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
