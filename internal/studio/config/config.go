package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"sigs.k8s.io/yaml"

	"github.com/mixdeskhq/mixdesk/internal/studio/client"
	"github.com/mixdeskhq/mixdesk/internal/util"
)

const (
	// DefaultConfigDir is the default directory where the studio's configuration is stored
	DefaultConfigDir = "/etc/mixdesk"
	// DefaultConfigFile is the default path to the studio's configuration file
	DefaultConfigFile = DefaultConfigDir + "/config.yaml"
	// DefaultDataDir is the default directory where the studio's runtime files are stored,
	// relative to the user's home directory unless configured absolute
	DefaultDataDir = ".mixdesk/data"
	// DefaultListenAddress is the default console bind address
	DefaultListenAddress = "127.0.0.1:3333"
	// DefaultPollInterval is the default interval between two job status polls
	DefaultPollInterval = 3 * time.Second
	// DefaultReachabilityInterval is the default interval between two composer probes
	DefaultReachabilityInterval = 10 * time.Second
)

// DefaultCorsOrigins covers the local UI dev servers.
var DefaultCorsOrigins = []string{"http://localhost:3000", "http://localhost:3003"}

type Config struct {
	// DataDir is the directory where the studio's runtime files are stored
	DataDir string `json:"data-dir,omitempty" envconfig:"MIXDESK_DATA_DIR"`
	// ListenAddress is the address the console listens on
	ListenAddress string `json:"listen-address,omitempty" envconfig:"MIXDESK_LISTEN_ADDRESS"`
	// MetricsAddress is the address the Prometheus endpoint listens on.
	// Empty disables the metrics listener.
	MetricsAddress string `json:"metrics-address,omitempty" envconfig:"MIXDESK_METRICS_ADDRESS"`
	// CorsOrigins are the origins allowed to call the console
	CorsOrigins []string `json:"cors-origins,omitempty" envconfig:"MIXDESK_CORS_ORIGINS"`

	// Composer is the client configuration for connecting to the composer service
	Composer ComposerService `json:"composer,omitempty"`

	// PollInterval is the interval between two job status polls
	PollInterval util.Duration `json:"poll-interval,omitempty" envconfig:"MIXDESK_POLL_INTERVAL"`
	// ReachabilityInterval is the interval between two composer reachability probes
	ReachabilityInterval util.Duration `json:"reachability-interval,omitempty" envconfig:"MIXDESK_REACHABILITY_INTERVAL"`

	// LogLevel is the level of logging. can be: "panic", "fatal", "error", "warn",
	// "info" or "debug", any other will be treated as "info"
	LogLevel string `json:"log-level,omitempty" envconfig:"MIXDESK_LOG_LEVEL"`
}

type ComposerService struct {
	client.Config
}

func NewDefault() *Config {
	return &Config{
		DataDir:              DefaultDataDir,
		ListenAddress:        DefaultListenAddress,
		CorsOrigins:          DefaultCorsOrigins,
		Composer:             ComposerService{Config: *client.NewDefault()},
		PollInterval:         util.Duration{Duration: DefaultPollInterval},
		ReachabilityInterval: util.Duration{Duration: DefaultReachabilityInterval},
		LogLevel:             "info",
	}
}

// Load builds the effective configuration: defaults, overridden by the
// config file when one is found, overridden by environment variables.
func Load(configFile string) (*Config, error) {
	cfg := NewDefault()

	switch {
	case configFile != "":
		if err := cfg.ParseConfigFile(configFile); err != nil {
			return nil, err
		}
	default:
		if _, err := os.Stat(DefaultConfigFile); err == nil {
			if err := cfg.ParseConfigFile(DefaultConfigFile); err != nil {
				return nil, err
			}
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	return cfg, nil
}

// Validate checks that the required fields are set.
func (cfg *Config) Validate() error {
	if err := cfg.Composer.Validate(); err != nil {
		return err
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("data-dir is required")
	}
	if cfg.ListenAddress == "" {
		return fmt.Errorf("listen-address is required")
	}
	if cfg.PollInterval.Duration <= 0 {
		return fmt.Errorf("poll-interval must be positive")
	}
	if cfg.ReachabilityInterval.Duration <= 0 {
		return fmt.Errorf("reachability-interval must be positive")
	}
	return nil
}

// ParseConfigFile reads the config file and unmarshals it into the Config struct
func (cfg *Config) ParseConfigFile(cfgFile string) error {
	contents, err := os.ReadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config file: %w", err)
	}
	return nil
}

// CreateDataDir resolves a relative data dir against the user's home
// directory and creates it.
func (cfg *Config) CreateDataDir() error {
	if !filepath.IsAbs(cfg.DataDir) {
		base, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error getting user home directory: %v", err)
		}
		cfg.DataDir = filepath.Join(base, cfg.DataDir)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", cfg.DataDir, err)
	}
	return nil
}

func (cfg *Config) String() string {
	contents, err := json.Marshal(cfg)
	if err != nil {
		return "<error>"
	}
	return string(contents)
}
