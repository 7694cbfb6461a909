package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. CODEIDE_SANDBOX_TIMEOUT_MS.
const EnvPrefix = "CODEIDE"

// Config represents the application configuration
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Sandbox   SandboxConfig       `mapstructure:"sandbox"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Storage   StorageConfig       `mapstructure:"storage"`
	Languages map[string]Language `mapstructure:"languages"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPPort           int      `mapstructure:"http_port"`
	ShutdownTimeoutSec int      `mapstructure:"shutdown_timeout_sec"`
	MaxBodyMB          int      `mapstructure:"max_body_mb"`
	CORSOrigins        []string `mapstructure:"cors_origins"`
	MCPEnabled         bool     `mapstructure:"mcp_enabled"`
}

// SandboxConfig holds sandbox configuration.
// Networking is always disabled and swap is always capped at MemoryMB.
type SandboxConfig struct {
	TimeoutMS         int    `mapstructure:"timeout_ms"`
	MemoryMB          int    `mapstructure:"memory_mb"`
	User              string `mapstructure:"user"`
	Workdir           string `mapstructure:"workdir"`
	WorkspaceRoot     string `mapstructure:"workspace_root"`
	DockerHost        string `mapstructure:"docker_host"`
	PullMissingImages bool   `mapstructure:"pull_missing_images"`
	PullTimeoutSec    int    `mapstructure:"pull_timeout_sec"`
	MaxConcurrent     int    `mapstructure:"max_concurrent"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Mode        string   `mapstructure:"mode"`
	Level       string   `mapstructure:"level"`
	OutputPaths []string `mapstructure:"output_paths"`
}

// StorageConfig holds the file store configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// Language holds per-language overrides
type Language struct {
	Image string `mapstructure:"image"`
}

// New loads the configuration from config.yaml in the working directory or ./config.
func New() (*Config, error) {
	return Load("")
}

// Load reads the configuration from path, or searches the default locations when path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 5000)
	v.SetDefault("server.shutdown_timeout_sec", 10)
	v.SetDefault("server.max_body_mb", 10)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.mcp_enabled", true)

	v.SetDefault("sandbox.timeout_ms", 30000)
	v.SetDefault("sandbox.memory_mb", 128)
	v.SetDefault("sandbox.user", "nobody")
	v.SetDefault("sandbox.workdir", "/code")
	v.SetDefault("sandbox.workspace_root", filepath.Join(os.TempDir(), "codeide"))
	v.SetDefault("sandbox.docker_host", "")
	v.SetDefault("sandbox.pull_missing_images", true)
	v.SetDefault("sandbox.pull_timeout_sec", 300)
	v.SetDefault("sandbox.max_concurrent", 0)

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output_paths", []string{"stderr"})

	v.SetDefault("storage.db_path", filepath.Join("data", "codeide.db"))

	v.SetDefault("languages.python.image", "python:3.11-slim")
	v.SetDefault("languages.cpp.image", "gcc:13")
	v.SetDefault("languages.nodejs.image", "node:20-alpine")
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Server.MaxBodyMB <= 0 {
		return fmt.Errorf("server.max_body_mb must be positive, got: %d", c.Server.MaxBodyMB)
	}

	if c.Sandbox.TimeoutMS <= 0 {
		return fmt.Errorf("sandbox.timeout_ms must be positive, got: %d", c.Sandbox.TimeoutMS)
	}

	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
	}

	if c.Sandbox.PullTimeoutSec < 0 {
		return fmt.Errorf("sandbox.pull_timeout_sec must not be negative, got: %d", c.Sandbox.PullTimeoutSec)
	}

	if c.Sandbox.MaxConcurrent < 0 {
		return fmt.Errorf("sandbox.max_concurrent must not be negative, got: %d", c.Sandbox.MaxConcurrent)
	}

	if !strings.HasPrefix(c.Sandbox.Workdir, "/") {
		return fmt.Errorf("sandbox.workdir must be an absolute path, got: %q", c.Sandbox.Workdir)
	}

	if c.Sandbox.User == "" || c.Sandbox.User == "root" || c.Sandbox.User == "0" {
		return fmt.Errorf("sandbox.user must name a non-root user, got: %q", c.Sandbox.User)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	for name, lang := range c.Languages {
		if strings.TrimSpace(lang.Image) == "" {
			return fmt.Errorf("languages.%s.image must not be empty", name)
		}
	}

	return nil
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutMS) * time.Millisecond
}

// MemoryBytes returns the sandbox memory ceiling in bytes
func (c *Config) MemoryBytes() int64 {
	return int64(c.Sandbox.MemoryMB) * 1024 * 1024
}

// ShutdownTimeout returns the graceful HTTP shutdown budget
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSec) * time.Second
}

// PullTimeout returns the budget for pulling one missing image
func (c *Config) PullTimeout() time.Duration {
	return time.Duration(c.Sandbox.PullTimeoutSec) * time.Second
}
