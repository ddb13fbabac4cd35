package shared

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// containerRoot is the directory whose presence marks a containerized deployment.
var containerRoot = "/app"

// Config represents the application configuration loaded from a TOML file.
//
// It is built once at startup and handed to the components that need it.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Downloads DownloadsConfig `toml:"downloads"`
	Network   NetworkConfig   `toml:"network"`
	Extractor ExtractorConfig `toml:"extractor"`
	Database  DatabaseConfig  `toml:"database"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string  `toml:"host"`
	Port            int     `toml:"port"`
	RateLimit       float64 `toml:"rate_limit"`
	Burst           int     `toml:"burst"`
	ShutdownTimeout int     `toml:"shutdown_timeout_seconds"`
}

// DownloadsConfig locates the directory holding temporary and finished media.
type DownloadsConfig struct {
	Dir string `toml:"dir"`
}

// NetworkConfig lists the egress proxies tried after a direct connection.
type NetworkConfig struct {
	Proxies []string `toml:"proxies"`
}

// ExtractorConfig tunes the yt-dlp invocation.
type ExtractorConfig struct {
	TimeoutSeconds float64 `toml:"timeout_seconds"`
	AudioQuality   string  `toml:"audio_quality"`
	AutoInstall    bool    `toml:"auto_install"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig holds the logger level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Addr joins host and port for [net/http.Server].
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ShutdownGrace returns the graceful shutdown window.
func (s ServerConfig) ShutdownGrace() time.Duration {
	if s.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(s.ShutdownTimeout) * time.Second
}

// Timeout converts the per-attempt socket timeout to a [time.Duration].
func (e ExtractorConfig) Timeout() time.Duration {
	if e.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(e.TimeoutSeconds * float64(time.Second))
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides configuration values from the environment.
//
// lookup is usually [os.LookupEnv].
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q", ErrInvalidConfig, v)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("DOWNLOADS_DIR"); ok && v != "" {
		c.Downloads.Dir = v
	}
	if v, ok := lookup("PROXY_LIST"); ok {
		c.Network.Proxies = ParseProxyList(v)
	}
	if v, ok := lookup("DATABASE_PATH"); ok {
		c.Database.Path = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	return nil
}

// ParseProxyList splits a comma separated proxy list, dropping blanks.
func ParseProxyList(s string) []string {
	proxies := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}

// ResolveDownloadsDir returns the configured downloads directory or the deployment default.
func (c *Config) ResolveDownloadsDir() string {
	if c.Downloads.Dir != "" {
		return filepath.Clean(c.Downloads.Dir)
	}
	if info, err := os.Stat(containerRoot); err == nil && info.IsDir() {
		return filepath.Join(containerRoot, "downloads")
	}
	return "downloads"
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrResource, dir, err)
	}
	return nil
}
