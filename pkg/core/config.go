package core

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "https://api.gateio.ws"
	DefaultWSURL   = "wss://api.gateio.ws/ws/v4/"
)

// Credentials holds the API key pair used for signing.
type Credentials struct {
	// APIKey is sent in the KEY header and in the WebSocket auth block.
	APIKey string `json:"api_key" yaml:"api_key"`
	// SecretKey signs requests and is never sent over the wire.
	SecretKey string `json:"secret_key" yaml:"secret_key"`
}

// Config contains all configuration options for a client.
// It includes authentication, networking, rate limiting, caching, and circuit breaker settings.
type Config struct {
	Exchange    string       `json:"exchange" yaml:"exchange" validate:"required"`
	BaseURL     string       `json:"base_url" yaml:"base_url" validate:"required,url"`
	WSURL       string       `json:"ws_url" yaml:"ws_url" validate:"required,url"`
	Credentials *Credentials `json:"credentials,omitempty" yaml:"credentials,omitempty"`

	// Timeout is the connect and read timeout for HTTP requests.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"min=1ms"`

	RateLimitRequests      int           `json:"rate_limit_requests" yaml:"rate_limit_requests" validate:"min=1"`
	RateLimitPeriod        time.Duration `json:"rate_limit_period" yaml:"rate_limit_period" validate:"min=1ms"`
	OrderRateLimitRequests int           `json:"order_rate_limit_requests" yaml:"order_rate_limit_requests" validate:"min=0"`

	CacheEnabled bool          `json:"cache_enabled" yaml:"cache_enabled"`
	CacheTTL     time.Duration `json:"cache_ttl" yaml:"cache_ttl" validate:"min=0"`

	CircuitBreakerEnabled          bool          `json:"circuit_breaker_enabled" yaml:"circuit_breaker_enabled"`
	CircuitBreakerFailThreshold    int           `json:"circuit_breaker_fail_threshold" yaml:"circuit_breaker_fail_threshold"`
	CircuitBreakerSuccessThreshold int           `json:"circuit_breaker_success_threshold" yaml:"circuit_breaker_success_threshold"`
	CircuitBreakerTimeout          time.Duration `json:"circuit_breaker_timeout" yaml:"circuit_breaker_timeout"`

	PingInterval time.Duration `json:"ping_interval" yaml:"ping_interval" validate:"min=0"`

	LogLevel string `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config with the production endpoints, a 30s timeout,
// 900 requests per second, caching off and a 5/2/30s circuit breaker.
func DefaultConfig() *Config {
	return &Config{
		Exchange: "gateio",
		BaseURL:  DefaultBaseURL,
		WSURL:    DefaultWSURL,
		Timeout:  30 * time.Second,

		RateLimitRequests:      900,
		RateLimitPeriod:        time.Second,
		OrderRateLimitRequests: 10,

		CacheEnabled: false,
		CacheTTL:     1 * time.Second,

		CircuitBreakerEnabled:          true,
		CircuitBreakerFailThreshold:    5,
		CircuitBreakerSuccessThreshold: 2,
		CircuitBreakerTimeout:          30 * time.Second,

		PingInterval: 10 * time.Second,

		LogLevel: "info",
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Credentials != nil && c.Credentials.SecretKey == "" {
		return fmt.Errorf("credentials: %w", ErrEmptySecret)
	}
	if c.CircuitBreakerEnabled {
		if c.CircuitBreakerFailThreshold <= 0 {
			return errors.New("CircuitBreakerFailThreshold must be positive when enabled")
		}
		if c.CircuitBreakerSuccessThreshold <= 0 {
			return errors.New("CircuitBreakerSuccessThreshold must be positive when enabled")
		}
		if c.CircuitBreakerTimeout <= 0 {
			return errors.New("CircuitBreakerTimeout must be positive when enabled")
		}
	}
	return nil
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
// Durations are written as Go duration strings ("30s", "500ms").
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML bytes over DefaultConfig and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(creds *Credentials) *Config {
	c.Credentials = creds
	return c
}

// WithBaseURL overrides the REST endpoint, e.g. for the testnet or a local server.
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithWSURL overrides the WebSocket endpoint.
func (c *Config) WithWSURL(url string) *Config {
	c.WSURL = url
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRateLimit sets the rate limiting parameters and returns the config for chaining.
func (c *Config) WithRateLimit(requests int, period time.Duration) *Config {
	c.RateLimitRequests = requests
	c.RateLimitPeriod = period
	return c
}

// WithCache enables or disables caching with the specified TTL and returns the config for chaining.
func (c *Config) WithCache(enabled bool, ttl time.Duration) *Config {
	c.CacheEnabled = enabled
	c.CacheTTL = ttl
	return c
}
