/**
 * @description
 * Configuration loader for the PolySleuth forensics engine.
 * Responsible for reading environment variables, setting defaults, and performing strict validation.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files
 * - standard "os": For reading env vars
 * - standard "fmt": For error reporting
 *
 * @notes
 * - Fails fast if critical variables (RPC endpoint, database URL) are missing.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	Chain  ChainConfig
	Stream StreamConfig
	Market MarketConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string
	Env  string // "development", "staging" or "production"
}

// DBConfig holds PostgreSQL settings.
type DBConfig struct {
	URL string
}

// RedisConfig holds Redis settings.
type RedisConfig struct {
	URL string
}

// ChainConfig holds Polygon RPC and exchange-address settings.
type ChainConfig struct {
	RPCURL            string
	ExchangeAddresses []string
}

// MarketConfig holds off-chain metadata catalog settings.
type MarketConfig struct {
	GammaURL string
}

// StreamConfig holds Stream Controller and evidence store tuning.
type StreamConfig struct {
	PollInterval  time.Duration
	BlocksPerPoll int64
	Confirmations int64
	RingTrades    int
	RingAlerts    int
}

// defaultExchangeAddress is Polymarket's CTF Exchange on Polygon mainnet.
const defaultExchangeAddress = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"

// Load reads .env (if present) and populates the Config struct.
func Load() (*Config, error) {
	// Attempt to load .env, but don't crash if it fails (containers may inject env vars directly).
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("GO_ENV", "development"),
		},
		DB: DBConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Chain: ChainConfig{
			RPCURL:            sanitizeCredential(getEnv("POLYGON_RPC_URL", "")),
			ExchangeAddresses: splitCSV(getEnv("EXCHANGE_ADDRESSES", defaultExchangeAddress)),
		},
		Stream: StreamConfig{
			PollInterval:  time.Duration(getEnvAsInt("POLL_INTERVAL_SECONDS", 12)) * time.Second,
			BlocksPerPoll: int64(getEnvAsInt("BLOCKS_PER_POLL", 500)),
			Confirmations: int64(getEnvAsInt("CONFIRMATIONS", 3)),
			RingTrades:    getEnvAsInt("RING_TRADES", 50_000),
			RingAlerts:    getEnvAsInt("RING_ALERTS", 1_000),
		},
		Market: MarketConfig{
			GammaURL: getEnv("GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks for required variables.
func validate(cfg *Config) error {
	if cfg.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Chain.RPCURL == "" {
		return fmt.Errorf("POLYGON_RPC_URL is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func sanitizeCredential(value string) string {
	trimmed := strings.TrimSpace(value)
	return strings.Trim(trimmed, "\"")
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
