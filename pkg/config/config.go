// pkg/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config is the server configuration. Zero numeric fields take defaults in
// Validate; durations are whole milliseconds.
type Config struct {
	Service string `toml:"service" yaml:"service"` // for logs/metrics tags only
	Listen  string `toml:"listen" yaml:"listen"`

	TLSCert string `toml:"tls_cert" yaml:"tls_cert"`
	TLSKey  string `toml:"tls_key" yaml:"tls_key"`

	QueueSize  int `toml:"queue_size" yaml:"queue_size"`   // actor inbox capacity
	BlockSize  int `toml:"block_size" yaml:"block_size"`   // bytes per read
	BodyBuffer int `toml:"body_buffer" yaml:"body_buffer"` // chunks buffered per response

	ReadTimeoutMS  int `toml:"read_timeout_ms" yaml:"read_timeout_ms"`
	WriteTimeoutMS int `toml:"write_timeout_ms" yaml:"write_timeout_ms"` // 0: no limit on a download
	IdleTimeoutMS  int `toml:"idle_timeout_ms" yaml:"idle_timeout_ms"`

	// Reserved paths; empty disables the endpoint.
	MetricsPath   string `toml:"metrics_path" yaml:"metrics_path"`
	HeartbeatPath string `toml:"heartbeat_path" yaml:"heartbeat_path"`
	StatusPath    string `toml:"status_path" yaml:"status_path"`

	LogDir   string `toml:"log_dir" yaml:"log_dir"` // empty: stdout only
	LogLevel string `toml:"log_level" yaml:"log_level"`

	Files []File `toml:"file" yaml:"files"`
}

// File is a registration applied when the server starts.
type File struct {
	Path   string `toml:"path" yaml:"path"`
	Source string `toml:"source" yaml:"source"`
	Name   string `toml:"name" yaml:"name"`
}

const (
	DefaultListen     = ":4000"
	DefaultQueueSize  = 10
	DefaultBlockSize  = 1024
	DefaultBodyBuffer = 4
)

func Default() Config {
	return Config{
		Service:       "handoff",
		Listen:        DefaultListen,
		QueueSize:     DefaultQueueSize,
		BlockSize:     DefaultBlockSize,
		BodyBuffer:    DefaultBodyBuffer,
		ReadTimeoutMS: 15_000,
		IdleTimeoutMS: 60_000,
		LogLevel:      "info",
	}
}

// Load reads a TOML or YAML file (chosen by extension) over Default, applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	default:
		err = toml.Unmarshal(b, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the process environment. HANDOFF_LISTEN
// wins over the shared SERVER_LISTEN_ADDRESS.
func (c *Config) ApplyEnv() error {
	c.Listen = envOr("HANDOFF_LISTEN", envOr("SERVER_LISTEN_ADDRESS", c.Listen))
	c.TLSCert = envOr("SSL_SERVER_CERTIFICATE", c.TLSCert)
	c.TLSKey = envOr("SSL_SERVER_KEY", c.TLSKey)
	c.MetricsPath = envOr("HANDOFF_METRICS_PATH", c.MetricsPath)
	c.HeartbeatPath = envOr("HANDOFF_HEARTBEAT_PATH", c.HeartbeatPath)
	c.StatusPath = envOr("HANDOFF_STATUS_PATH", c.StatusPath)
	c.LogDir = envOr("HANDOFF_LOG_DIR", c.LogDir)
	c.LogLevel = envOr("HANDOFF_LOG_LEVEL", c.LogLevel)

	for k, dst := range map[string]*int{
		"HANDOFF_QUEUE_SIZE":  &c.QueueSize,
		"HANDOFF_BLOCK_SIZE":  &c.BlockSize,
		"HANDOFF_BODY_BUFFER": &c.BodyBuffer,
	} {
		v := os.Getenv(k)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		*dst = n
	}
	return nil
}

// Validate fills defaults for zero values and rejects inconsistent settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = DefaultListen
	}
	for _, f := range []struct {
		name string
		v    *int
		def  int
	}{
		{"queue_size", &c.QueueSize, DefaultQueueSize},
		{"block_size", &c.BlockSize, DefaultBlockSize},
		{"body_buffer", &c.BodyBuffer, DefaultBodyBuffer},
	} {
		if *f.v == 0 {
			*f.v = f.def
		}
		if *f.v < 0 {
			return fmt.Errorf("%s must be >= 0", f.name)
		}
	}
	for name, v := range map[string]int{
		"read_timeout_ms":  c.ReadTimeoutMS,
		"write_timeout_ms": c.WriteTimeoutMS,
		"idle_timeout_ms":  c.IdleTimeoutMS,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0", name)
		}
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return fmt.Errorf("tls_cert and tls_key must be set together")
	}
	if c.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}

	reserved := map[string]string{}
	for name, p := range map[string]string{
		"metrics_path":   c.MetricsPath,
		"heartbeat_path": c.HeartbeatPath,
		"status_path":    c.StatusPath,
	} {
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s must start with /", name)
		}
		if other, dup := reserved[p]; dup {
			return fmt.Errorf("%s and %s share %q", name, other, p)
		}
		reserved[p] = name
	}

	seen := map[string]struct{}{}
	for i, f := range c.Files {
		if !strings.HasPrefix(f.Path, "/") {
			return fmt.Errorf("file %d: path must start with /", i)
		}
		if strings.TrimSpace(f.Source) == "" {
			return fmt.Errorf("file %d: source required", i)
		}
		if name, ok := reserved[f.Path]; ok {
			return fmt.Errorf("file %d: path %q is reserved for %s", i, f.Path, name)
		}
		if _, dup := seen[f.Path]; dup {
			return fmt.Errorf("file %d: duplicate path %q", i, f.Path)
		}
		seen[f.Path] = struct{}{}
	}
	return nil
}

func (c Config) ReadTimeout() time.Duration  { return ms(c.ReadTimeoutMS) }
func (c Config) WriteTimeout() time.Duration { return ms(c.WriteTimeoutMS) }
func (c Config) IdleTimeout() time.Duration  { return ms(c.IdleTimeoutMS) }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
