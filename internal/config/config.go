// Package config loads the airfoil client configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/airfoil-studio/solverstream/internal/logging"
	"github.com/airfoil-studio/solverstream/internal/solver"
)

// EnvPrefix prefixes every environment override, e.g.
// AIRFOIL_SOLVER_BASE_URL or AIRFOIL_STREAM_RECONNECT_DELAY.
const EnvPrefix = "AIRFOIL"

type Config struct {
	Solver SolverConfig `yaml:"solver" envconfig:"solver"`
	Stream StreamConfig `yaml:"stream" envconfig:"stream"`
	Log    LogConfig    `yaml:"log" envconfig:"log"`
	Mock   MockConfig   `yaml:"mock" envconfig:"mock"`
}

type SolverConfig struct {
	BaseURL string        `yaml:"base_url" envconfig:"base_url"`
	WSURL   string        `yaml:"ws_url" envconfig:"ws_url"` // derived from BaseURL when empty
	UserID  string        `yaml:"user_id" envconfig:"user_id"`
	Timeout time.Duration `yaml:"timeout" envconfig:"timeout"`
}

type StreamConfig struct {
	ReconnectDelay time.Duration `yaml:"reconnect_delay" envconfig:"reconnect_delay"`
	HistoryLimit   int           `yaml:"history_limit" envconfig:"history_limit"`
	// Completion is "auto", "frame" or "close".
	Completion string `yaml:"completion" envconfig:"completion"`
}

type LogConfig struct {
	Level       string   `yaml:"level" envconfig:"level"`
	Development bool     `yaml:"development" envconfig:"development"`
	Output      []string `yaml:"output" envconfig:"output"`
}

// MockConfig drives the bundled mock solver.
type MockConfig struct {
	Host          string        `yaml:"host" envconfig:"host"`
	Port          int           `yaml:"port" envconfig:"port"`
	FrameInterval time.Duration `yaml:"frame_interval" envconfig:"frame_interval"`
	DropAfter     int           `yaml:"drop_after" envconfig:"drop_after"`
	Warnings      bool          `yaml:"warnings" envconfig:"warnings"`
	RejectStatus  int           `yaml:"reject_status" envconfig:"reject_status"`
}

func defaultConfig() *Config {
	return &Config{
		Solver: SolverConfig{
			BaseURL: "http://127.0.0.1:8000",
			UserID:  "local",
			Timeout: 30 * time.Second,
		},
		Stream: StreamConfig{
			ReconnectDelay: solver.DefaultReconnectDelay,
			Completion:     "auto",
		},
		Log: LogConfig{
			Level:  "info",
			Output: []string{"stderr"},
		},
		Mock: MockConfig{
			Host:          "127.0.0.1",
			Port:          8000,
			FrameInterval: 200 * time.Millisecond,
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

// Load reads path over the defaults and then applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Solver.BaseURL == "" {
		return errors.New("solver.base_url is required")
	}
	if c.Stream.ReconnectDelay < 0 {
		return errors.New("stream.reconnect_delay must not be negative")
	}
	if c.Stream.HistoryLimit < 0 {
		return errors.New("stream.history_limit must not be negative")
	}
	if _, err := c.CompletionPolicy(); err != nil {
		return err
	}
	return nil
}

// WSBase returns the WebSocket base URL, deriving it from the HTTP base when
// not set explicitly.
func (c *Config) WSBase() string {
	if c.Solver.WSURL != "" {
		return c.Solver.WSURL
	}
	return solver.WSBaseFromHTTP(c.Solver.BaseURL)
}

// CompletionPolicy maps stream.completion onto a solver policy.
func (c *Config) CompletionPolicy() (solver.CompletionPolicy, error) {
	switch c.Stream.Completion {
	case "", "auto":
		return solver.CompletionByMode, nil
	case "frame":
		return solver.CompleteOnFrame, nil
	case "close":
		return solver.CompleteOnCleanClose, nil
	}
	return solver.CompletionByMode, fmt.Errorf("stream.completion: unknown policy %q", c.Stream.Completion)
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:       c.Log.Level,
		Development: c.Log.Development,
		OutputPaths: c.Log.Output,
	}
}
