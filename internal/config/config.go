// Package config provides configuration loading for shihand.
//
// Configuration is loaded from an optional YAML file and overridden by
// environment variables. See Load for precedence rules.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete shihand configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Sentinel SentinelConfig `koanf:"sentinel"`
	Scrolls  ScrollsConfig  `koanf:"scrolls"`
	Critic   CriticConfig   `koanf:"critic"`
	Pager    PagerConfig    `koanf:"pager"`
	Watchdog WatchdogConfig `koanf:"watchdog"`
}

// ServerConfig holds HTTP serve-mode configuration.
type ServerConfig struct {
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" or "console"
}

// SentinelConfig holds log inspection configuration.
type SentinelConfig struct {
	LogPath   string `koanf:"log_path"`
	TailLines int    `koanf:"tail_lines"`
}

// ScrollsConfig holds plan-document configuration.
type ScrollsConfig struct {
	Dir string `koanf:"dir"`
}

// CriticConfig holds scoring-capability configuration.
type CriticConfig struct {
	Provider string   `koanf:"provider"` // "openai" or "anthropic"
	Model    string   `koanf:"model"`
	APIKey   Secret   `koanf:"api_key"`
	BaseURL  string   `koanf:"base_url"`
	Timeout  Duration `koanf:"timeout"`
}

// PagerConfig holds escalation delivery configuration.
type PagerConfig struct {
	PushoverToken Secret   `koanf:"pushover_token"`
	PushoverUser  Secret   `koanf:"pushover_user"`
	Timeout       Duration `koanf:"timeout"`
	FallbackDir   string   `koanf:"fallback_dir"`
}

// WatchdogConfig holds idle-watchdog configuration.
type WatchdogConfig struct {
	Enabled      bool     `koanf:"enabled"`
	TickInterval Duration `koanf:"tick_interval"`
	IdleTimeout  Duration `koanf:"idle_timeout"`
	WatchLog     bool     `koanf:"watch_log"`
}

// Default returns the configuration defaults applied before file and
// environment overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            9092,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Sentinel: SentinelConfig{
			LogPath:   "training.log",
			TailLines: 500,
		},
		Scrolls: ScrollsConfig{
			Dir: ".scrolls",
		},
		Critic: CriticConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Timeout:  Duration(30 * time.Second),
		},
		Pager: PagerConfig{
			Timeout:     Duration(5 * time.Second),
			FallbackDir: ".scrolls",
		},
		Watchdog: WatchdogConfig{
			Enabled:      true,
			TickInterval: Duration(time.Minute),
			IdleTimeout:  Duration(time.Hour),
			WatchLog:     true,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.http_port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Sentinel.TailLines < 1 {
		return fmt.Errorf("sentinel.tail_lines must be positive, got %d", c.Sentinel.TailLines)
	}
	if c.Sentinel.LogPath == "" {
		return errors.New("sentinel.log_path must not be empty")
	}
	if c.Scrolls.Dir == "" {
		return errors.New("scrolls.dir must not be empty")
	}
	switch c.Critic.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("critic.provider must be openai or anthropic, got %q", c.Critic.Provider)
	}
	if c.Critic.Timeout.Duration() <= 0 {
		return errors.New("critic.timeout must be positive")
	}
	if c.Pager.FallbackDir == "" {
		return errors.New("pager.fallback_dir must not be empty")
	}
	if c.Watchdog.Enabled {
		if c.Watchdog.TickInterval.Duration() <= 0 {
			return errors.New("watchdog.tick_interval must be positive")
		}
		if c.Watchdog.IdleTimeout.Duration() <= 0 {
			return errors.New("watchdog.idle_timeout must be positive")
		}
	}
	return nil
}
