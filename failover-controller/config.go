package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Control plane backends.
const (
	BackendRDS  = "rds"
	BackendMock = "mock"
)

// Parameter names under Config.ParamPrefix.
const (
	ParamPrimaryIdentifier   = "primary-db-identifier"
	ParamPrimaryEndpoint     = "primary-db-endpoint"
	ParamPrimaryUser         = "primary-db-user"
	ParamPrimaryPassword     = "primary-db-password"
	ParamSecondaryIdentifier = "secondary-db-identifier"
	ParamSecondaryEndpoint   = "secondary-db-endpoint"
)

// Config is the bootstrap configuration of the controller process. It tells
// the process where to find the failover parameters, not the parameters
// themselves.
type Config struct {
	PrimaryRegion      string        `yaml:"primary_region"`
	SecondaryRegion    string        `yaml:"secondary_region"`
	ParamPrefix        string        `yaml:"param_prefix"`
	AlertTopicARN      string        `yaml:"alert_topic_arn"`
	ControlPlane       string        `yaml:"control_plane"`
	CheckInterval      time.Duration `yaml:"check_interval"`
	CallTimeout        time.Duration `yaml:"call_timeout"`
	MaxAttempts        int           `yaml:"max_attempts"`
	MetricsAddr        string        `yaml:"metrics_addr"`
	LogLevel           string        `yaml:"log_level"`
	DatabaseURL        string        `yaml:"database_url"`
	StateFile          string        `yaml:"state_file"`
	ResolveCredentials bool          `yaml:"resolve_credentials"`
	AWS                AWSConfig     `yaml:"aws"`
	Mock               MockConfig    `yaml:"mock"`
}

// AWSConfig optionally pins static credentials. When empty the default
// credential chain is used.
type AWSConfig struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// MockConfig drives the mock control plane: the statuses it reports and the
// parameters served in place of the parameter store.
type MockConfig struct {
	PrimaryStatus   string            `yaml:"primary_status"`
	SecondaryStatus string            `yaml:"secondary_status"`
	Parameters      map[string]string `yaml:"parameters"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		PrimaryRegion:   "us-east-1",
		SecondaryRegion: "us-west-2",
		ParamPrefix:     "/SparkApp/prod",
		ControlPlane:    BackendRDS,
		CheckInterval:   time.Minute,
		CallTimeout:     30 * time.Second,
		MaxAttempts:     3,
		MetricsAddr:     ":8080",
		LogLevel:        "info",
		Mock: MockConfig{
			PrimaryStatus:   rdsStatusAvailable,
			SecondaryStatus: rdsStatusAvailable,
		},
	}
}

// LoadConfig reads an optional YAML file over the defaults and then applies
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to cfg.
func LoadFromEnv(cfg *Config) error {
	cfg.PrimaryRegion = GetEnvOrDefault("PRIMARY_REGION", cfg.PrimaryRegion)
	cfg.SecondaryRegion = GetEnvOrDefault("SECONDARY_REGION", cfg.SecondaryRegion)
	cfg.ParamPrefix = GetEnvOrDefault("PARAM_PREFIX", cfg.ParamPrefix)
	cfg.AlertTopicARN = GetEnvOrDefault("ALERT_TOPIC_ARN",
		GetEnvOrDefault("DatabaseEmailsTopic", cfg.AlertTopicARN))
	cfg.ControlPlane = GetEnvOrDefault("CONTROL_PLANE", cfg.ControlPlane)
	cfg.MetricsAddr = GetEnvOrDefault("METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = GetEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.DatabaseURL = GetEnvOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.StateFile = GetEnvOrDefault("STATE_FILE", cfg.StateFile)
	cfg.Mock.PrimaryStatus = GetEnvOrDefault("MOCK_PRIMARY_STATUS", cfg.Mock.PrimaryStatus)
	cfg.Mock.SecondaryStatus = GetEnvOrDefault("MOCK_SECONDARY_STATUS", cfg.Mock.SecondaryStatus)

	if v := os.Getenv("CHECK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CHECK_INTERVAL: %w", err)
		}
		cfg.CheckInterval = d
	}
	if v := os.Getenv("CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CALL_TIMEOUT: %w", err)
		}
		cfg.CallTimeout = d
	}
	if v := os.Getenv("MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse MAX_ATTEMPTS: %w", err)
		}
		cfg.MaxAttempts = n
	}
	if v := os.Getenv("RESOLVE_CREDENTIALS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse RESOLVE_CREDENTIALS: %w", err)
		}
		cfg.ResolveCredentials = b
	}
	return nil
}

// GetEnvOrDefault returns environment variable or default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate checks the bootstrap configuration.
func (c *Config) Validate() error {
	if c.AlertTopicARN == "" {
		return errors.New("config: ALERT_TOPIC_ARN (or DatabaseEmailsTopic) is required")
	}
	if c.PrimaryRegion == "" || c.SecondaryRegion == "" {
		return errors.New("config: primary and secondary regions are required")
	}
	if c.PrimaryRegion == c.SecondaryRegion {
		return fmt.Errorf("config: primary and secondary region are both %s", c.PrimaryRegion)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("config: check interval must be positive, got %s", c.CheckInterval)
	}
	switch c.ControlPlane {
	case BackendRDS, BackendMock:
	default:
		return fmt.Errorf("config: unknown control plane %q", c.ControlPlane)
	}
	return nil
}

// ResolveOptions tells ResolveFailoverConfig what to place around the
// parameters read from the ConfigSource.
func (c *Config) ResolveOptions() ResolveOptions {
	return ResolveOptions{
		PrimaryRegion:      c.PrimaryRegion,
		SecondaryRegion:    c.SecondaryRegion,
		AlertDestination:   c.AlertTopicARN,
		ResolveCredentials: c.ResolveCredentials,
	}
}

// ConfigSource supplies failover parameters. Implementations return errors
// wrapping ErrParameterNotFound or ErrAccessDenied where they apply.
type ConfigSource interface {
	GetValue(ctx context.Context, key string, decrypt bool) (string, error)
}

type ResolveOptions struct {
	PrimaryRegion      string
	SecondaryRegion    string
	AlertDestination   string
	ResolveCredentials bool
}

// Credentials of the primary database. They play no part in the failover
// decision and are never rendered in clear text.
type Credentials struct {
	User     string
	Password string
}

func (c Credentials) String() string {
	return fmt.Sprintf("user=%s password=***", c.User)
}

// FailoverConfig is the resolved input of one invocation.
type FailoverConfig struct {
	Primary          DatabaseIdentity `json:"primary"`
	Secondary        DatabaseIdentity `json:"secondary"`
	AlertDestination string           `json:"alert_destination"`
	Credentials      *Credentials     `json:"-"`
}

// ResolveFailoverConfig materializes a FailoverConfig from src. Every
// failure is reported as a *ConfigError.
func ResolveFailoverConfig(ctx context.Context, src ConfigSource, opts ResolveOptions) (FailoverConfig, error) {
	get := func(key string, decrypt bool) (string, error) {
		v, err := src.GetValue(ctx, key, decrypt)
		if err != nil {
			return "", &ConfigError{Key: key, Err: err}
		}
		if strings.TrimSpace(v) == "" {
			return "", &ConfigError{Key: key, Err: ErrParameterNotFound}
		}
		return v, nil
	}

	cfg := FailoverConfig{
		Primary:          DatabaseIdentity{Region: opts.PrimaryRegion},
		Secondary:        DatabaseIdentity{Region: opts.SecondaryRegion},
		AlertDestination: opts.AlertDestination,
	}

	var err error
	if cfg.Primary.Identifier, err = get(ParamPrimaryIdentifier, false); err != nil {
		return FailoverConfig{}, err
	}
	if cfg.Primary.Endpoint, err = get(ParamPrimaryEndpoint, false); err != nil {
		return FailoverConfig{}, err
	}
	if cfg.Secondary.Identifier, err = get(ParamSecondaryIdentifier, false); err != nil {
		return FailoverConfig{}, err
	}
	if cfg.Secondary.Endpoint, err = get(ParamSecondaryEndpoint, false); err != nil {
		return FailoverConfig{}, err
	}

	if opts.ResolveCredentials {
		var creds Credentials
		if creds.User, err = get(ParamPrimaryUser, false); err != nil {
			return FailoverConfig{}, err
		}
		if creds.Password, err = get(ParamPrimaryPassword, true); err != nil {
			return FailoverConfig{}, err
		}
		cfg.Credentials = &creds
	}

	if err := ValidateTopology(cfg); err != nil {
		return FailoverConfig{}, &ConfigError{Err: err}
	}
	return cfg, nil
}

// MapConfigSource serves parameters from memory. Keys are the bare
// parameter names; decrypt is ignored.
type MapConfigSource map[string]string

func (m MapConfigSource) GetValue(_ context.Context, key string, _ bool) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", ErrParameterNotFound
	}
	return v, nil
}
