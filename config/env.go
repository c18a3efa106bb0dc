package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvListenAddr      = "SWAPQUOTE_LISTEN_ADDR"
	EnvNetworksFile    = "SWAPQUOTE_NETWORKS_FILE"
	EnvRedisAddr       = "SWAPQUOTE_REDIS_ADDR"
	EnvRedisPassword   = "SWAPQUOTE_REDIS_PASSWORD"
	EnvDefaultSlippage = "SWAPQUOTE_DEFAULT_SLIPPAGE_BPS"
	EnvRPCPrefix       = "SWAPQUOTE_RPC_" // SWAPQUOTE_RPC_ETH=https://...
)

// LoadEnv loads environment variables from .env files. A missing file is not
// an error.
func LoadEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func rpcOverridesFromEnv() map[string]string {
	overrides := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" || !strings.HasPrefix(key, EnvRPCPrefix) {
			continue
		}
		network := strings.ToLower(strings.TrimPrefix(key, EnvRPCPrefix))
		if network != "" {
			overrides[network] = value
		}
	}
	return overrides
}
