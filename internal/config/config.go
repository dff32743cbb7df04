package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultCLIConfigFileName = ".dispatchctl.yaml"
	DefaultServerAddr        = "localhost:8080"
)

// Server configures the dispatchd process. PostgresURL and NATSURL are
// optional: without them the server runs on in-memory stores with the
// retry sweep disabled, which is only suitable for development.
type Server struct {
	ListenAddr      string        `yaml:"listen_addr"`
	PostgresURL     string        `yaml:"postgres_url"`
	NATSURL         string        `yaml:"nats_url"`
	LogFile         string        `yaml:"log_file"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`

	Retry RetrySettings `yaml:"retry"`
}

type RetrySettings struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	InitialBackoff    time.Duration `yaml:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	JitterFactor      float64       `yaml:"jitter_factor"`
}

func DefaultServer() *Server {
	return &Server{
		ListenAddr:      DefaultServerAddr,
		DeliveryTimeout: 30 * time.Second,
		Retry: RetrySettings{
			MaxAttempts:       5,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        5 * time.Minute,
			BackoffMultiplier: 2.0,
			JitterFactor:      0.2,
		},
	}
}

func (c *Server) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}
	if c.DeliveryTimeout <= 0 {
		return fmt.Errorf("delivery_timeout must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	return nil
}

// LoadServer reads the server config file, if present, and applies env
// overrides. A missing file yields the defaults.
func LoadServer(path string) (*Server, error) {
	cfg := DefaultServer()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if addr := os.Getenv("DISPATCHCTL_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if pg := os.Getenv("DISPATCHCTL_POSTGRES_URL"); pg != "" {
		cfg.PostgresURL = pg
	}
	if nats := os.Getenv("DISPATCHCTL_NATS_URL"); nats != "" {
		cfg.NATSURL = nats
	}
	if f := os.Getenv("DISPATCHCTL_LOG_FILE"); f != "" {
		cfg.LogFile = f
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// CLI configures the dispatchctl command.
type CLI struct {
	ServerAddr string `yaml:"server_addr"`
	APIKey     string `yaml:"api_key"`
}

func DefaultCLI() *CLI {
	return &CLI{ServerAddr: DefaultServerAddr}
}

func (c *CLI) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server_addr is required")
	}
	return nil
}

// LoadCLI reads ~/.dispatchctl.yaml (or the given path) and applies env
// overrides. A missing file yields the defaults.
func LoadCLI(path string) (*CLI, error) {
	cfg := DefaultCLI()

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, DefaultCLIConfigFileName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if addr := os.Getenv("DISPATCHCTL_SERVER_ADDR"); addr != "" {
		cfg.ServerAddr = addr
	}
	if key := os.Getenv("DISPATCHCTL_API_KEY"); key != "" {
		cfg.APIKey = key
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
