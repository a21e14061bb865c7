// Package config loads playground configuration from defaults, an optional
// config.yaml and PLAYGROUND_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Share   ShareConfig   `mapstructure:"share"`
	NATS    NATSConfig    `mapstructure:"nats"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// Worker modes.
const (
	WorkerModeInProcess = "inprocess"
	WorkerModeProcess   = "process"
)

// WorkerConfig controls how engine workers are spawned.
type WorkerConfig struct {
	// Mode is "inprocess" (goroutine behind a pipe) or "process" (child process).
	Mode string `mapstructure:"mode"`
	// Command overrides the child process command line. Empty means
	// "<this executable> worker".
	Command []string `mapstructure:"command"`
	// Codec is the frame encoding: "json" or "msgpack".
	Codec            string `mapstructure:"codec"`
	HandshakeTimeout int    `mapstructure:"handshakeTimeout"` // in seconds
}

// ShareConfig configures the gist relay.
type ShareConfig struct {
	GitHubToken     string `mapstructure:"githubToken"`
	APIBase         string `mapstructure:"apiBase"`
	DefaultFilename string `mapstructure:"defaultFilename"`
	Description     string `mapstructure:"description"`
	// DBPath is the sqlite file recording created shares. Empty keeps the
	// history in memory for the life of the process.
	DBPath string `mapstructure:"dbPath"`
}

// NATSConfig holds NATS messaging configuration. An empty URL selects the in-memory bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// Addr returns host:port.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// HandshakeTimeoutDuration returns the init handshake timeout.
func (w *WorkerConfig) HandshakeTimeoutDuration() time.Duration {
	return time.Duration(w.HandshakeTimeout) * time.Second
}

// Enabled reports whether the relay has credentials.
func (s *ShareConfig) Enabled() bool {
	return s.GitHubToken != ""
}

func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("PLAYGROUND_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.readTimeout", 30)
	// websocket connections outlive any write timeout, so 0 leaves it unset
	v.SetDefault("server.writeTimeout", 0)

	v.SetDefault("worker.mode", WorkerModeInProcess)
	v.SetDefault("worker.command", []string{})
	v.SetDefault("worker.codec", "json")
	v.SetDefault("worker.handshakeTimeout", 10)

	v.SetDefault("share.githubToken", "")
	v.SetDefault("share.apiBase", "https://api.github.com")
	v.SetDefault("share.defaultFilename", "main.ks")
	v.SetDefault("share.description", "Shared via Kast Playground")
	v.SetDefault("share.dbPath", "")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "kast-playground")
	v.SetDefault("nats.maxReconnects", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stderr")
}

// Load reads configuration from the default locations.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration, searching configPath before the default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PLAYGROUND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// the relay historically read these unprefixed
	_ = v.BindEnv("share.githubToken", "PLAYGROUND_SHARE_GITHUBTOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("server.port", "PLAYGROUND_SERVER_PORT", "PORT")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/kast-playground/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	switch cfg.Worker.Mode {
	case WorkerModeInProcess, WorkerModeProcess:
	default:
		errs = append(errs, "worker.mode must be one of: inprocess, process")
	}
	switch cfg.Worker.Codec {
	case "json", "msgpack":
	default:
		errs = append(errs, "worker.codec must be one of: json, msgpack")
	}
	if cfg.Worker.HandshakeTimeout <= 0 {
		errs = append(errs, "worker.handshakeTimeout must be positive")
	}

	if cfg.Share.DefaultFilename == "" {
		errs = append(errs, "share.defaultFilename is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
