package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	qmath "github.com/michaelpento.lv/swapquote/utils/math"
)

type Config struct {
	// Path of the YAML network catalog, empty for the embedded catalog
	NetworksFile string `json:"networks_file"`

	// Slippage applied when a request does not name one
	DefaultSlippageBasisPoints int64 `json:"default_slippage_bps"`

	// Network id -> RPC endpoint, overriding the catalog
	RPCOverrides map[string]string `json:"rpc_overrides"`

	Server ServerConfig `json:"server"`
	RPC    RPCConfig    `json:"rpc"`
	Cache  CacheConfig  `json:"cache"`
	Log    LogConfig    `json:"log"`
}

type ServerConfig struct {
	ListenAddr      string          `json:"listen_addr"`
	RequestTimeout  time.Duration   `json:"request_timeout"`
	ShutdownTimeout time.Duration   `json:"shutdown_timeout"`
	AllowedOrigins  []string        `json:"allowed_origins"`
	RateLimit       RateLimitConfig `json:"rate_limit"`
}

type RPCConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit"`

	// Per call bound, zero leaves only the request deadline
	CallTimeout time.Duration `json:"call_timeout"`

	// Interval between node health pings, zero disables them
	HealthCheckInterval time.Duration `json:"health_check_interval"`
}

type CacheConfig struct {
	TokenSize     int           `json:"token_size"`
	PairSize      int           `json:"pair_size"`
	ExchangeSize  int           `json:"exchange_size"`
	RedisAddr     string        `json:"redis_addr"`
	RedisPassword string        `json:"redis_password"`
	RedisDB       int           `json:"redis_db"`
	RedisTTL      time.Duration `json:"redis_ttl"`
}

type LogConfig struct {
	Debug       bool     `json:"debug"`
	OutputPaths []string `json:"output_paths"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `json:"requests_per_second"`
	BurstSize         int           `json:"burst_size"`
	WaitTimeout       time.Duration `json:"wait_timeout"`
}

func (c *Config) ValidateConfig() error {
	var errors []string

	if err := qmath.ValidateBasisPoints(c.DefaultSlippageBasisPoints); err != nil {
		errors = append(errors, fmt.Sprintf("default_slippage_bps: %v", err))
	}

	for id, endpoint := range c.RPCOverrides {
		if endpoint == "" {
			errors = append(errors, fmt.Sprintf("rpc override for %s is empty", id))
		}
	}

	if err := c.Server.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("server config error: %v", err))
	}
	if err := c.RPC.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("rpc config error: %v", err))
	}
	if err := c.Cache.Validate(); err != nil {
		errors = append(errors, fmt.Sprintf("cache config error: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if s.ListenAddr == "" {
		return fmt.Errorf("listen address must be specified")
	}
	if s.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	if err := s.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

func (r *RPCConfig) Validate() error {
	if r.CallTimeout < 0 {
		return fmt.Errorf("call timeout must not be negative")
	}
	if r.HealthCheckInterval < 0 {
		return fmt.Errorf("health check interval must not be negative")
	}
	return r.RateLimit.Validate()
}

func (c *CacheConfig) Validate() error {
	if c.TokenSize <= 0 || c.PairSize <= 0 || c.ExchangeSize <= 0 {
		return fmt.Errorf("cache sizes must be positive")
	}
	if c.RedisAddr != "" && c.RedisTTL <= 0 {
		return fmt.Errorf("redis ttl must be positive when redis is enabled")
	}
	return nil
}

func (r *RateLimitConfig) Validate() error {
	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if r.BurstSize <= 0 {
		return fmt.Errorf("burst size must be positive")
	}
	if r.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive")
	}

	return nil
}

// LoadConfig reads a JSON config file over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func LoadConfig(cfgFile string) (*Config, error) {
	config := DefaultConfig()

	if cfgFile != "" {
		file, err := os.Open(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.ValidateConfig(); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv overrides config values from SWAPQUOTE_* environment variables
func (c *Config) ApplyEnv() error {
	c.Server.ListenAddr = GetEnvWithDefault(EnvListenAddr, c.Server.ListenAddr)
	c.NetworksFile = GetEnvWithDefault(EnvNetworksFile, c.NetworksFile)
	c.Cache.RedisAddr = GetEnvWithDefault(EnvRedisAddr, c.Cache.RedisAddr)
	c.Cache.RedisPassword = GetEnvWithDefault(EnvRedisPassword, c.Cache.RedisPassword)

	if v := os.Getenv(EnvDefaultSlippage); v != "" {
		bps, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDefaultSlippage, err)
		}
		c.DefaultSlippageBasisPoints = bps
	}

	for id, endpoint := range rpcOverridesFromEnv() {
		if c.RPCOverrides == nil {
			c.RPCOverrides = make(map[string]string)
		}
		c.RPCOverrides[id] = endpoint
	}

	return nil
}

func DefaultConfig() *Config {
	return &Config{
		DefaultSlippageBasisPoints: 50,
		Server: ServerConfig{
			ListenAddr:      ":8002",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
			AllowedOrigins:  []string{"*"},
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 20,
				BurstSize:         40,
				WaitTimeout:       time.Second,
			},
		},
		RPC: RPCConfig{
			HealthCheckInterval: 30 * time.Second,
			RateLimit: RateLimitConfig{
				RequestsPerSecond: 50,
				BurstSize:         100,
				WaitTimeout:       5 * time.Second,
			},
		},
		Cache: CacheConfig{
			TokenSize:    4096,
			PairSize:     16384,
			ExchangeSize: 256,
			RedisTTL:     24 * time.Hour,
		},
		Log: LogConfig{
			OutputPaths: []string{"stdout"},
		},
	}
}
