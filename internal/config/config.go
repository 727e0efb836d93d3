package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the arbitrage engine process.
type Config struct {
	Chain         ChainConfig
	Wallet        WalletConfig
	Engine        EngineConfig
	Risk          RiskConfig
	Aggregator    AggregatorConfig
	Relay         RelayConfig
	Observability ObservabilityConfig
}

// ChainConfig configures the RPC client (C15).
type ChainConfig struct {
	RPCURL     string
	Commitment string
	Timeout    time.Duration
}

// WalletConfig configures the keypair loader (C12).
type WalletConfig struct {
	Path               string
	ForceRealTransactions bool
}

// EngineConfig configures the orchestrator (C11), finder (C4), registry (C3)
// and oracle (C2) timing/sizing parameters.
type EngineConfig struct {
	CyclePause           time.Duration
	BackoffCap           time.Duration
	MidPriceTTL          time.Duration
	QuoteTimeout         time.Duration
	ExecutionTimeout     time.Duration
	TopK                 int
	MaxBundleSize        int
	MultiTokenMode       bool
	VenueListPath        string
	MinTradeLamports     uint64
	MaxTradeLamports     uint64
	MaxTradeSizeConfig   uint64

	// DiscoveryTokenMints seeds §4.3's dynamic discovery step: the registry
	// derives candidate pool PDAs for every pair drawn from this set, against
	// every known venue program, rather than scanning the chain unbounded.
	DiscoveryTokenMints []string
}

// RiskConfig configures the risk engine (C6) and the fee/impact model's
// economic-viability check (C5).
type RiskConfig struct {
	MinProfitBPS              int64
	MarginRatio               int64
	MaxSlippageBPS            int64
	MaxExposureLamports       uint64
	DailyLossLimitLamports    uint64
	MEVProtectionPriorityFee  uint64
	MinProfitThresholdLamports int64
	SimulatedWalletBalanceLamports uint64
}

// AggregatorConfig configures the Jupiter-style quote/swap HTTP client (C2/C8).
type AggregatorConfig struct {
	BaseURL string
}

// RelayConfig configures the private-relay bundle client (C9). Empty BaseURL
// disables MEV-protected submission.
type RelayConfig struct {
	BaseURL string
}

// ObservabilityConfig configures the structured logger and tracer (C14).
type ObservabilityConfig struct {
	ServiceName string
	LogLevel    string
	LogFormat   string
}

// Load builds a Config from environment variables, matching the defaults
// listed in the spec's external-interfaces section.
func Load() (*Config, error) {
	cfg := &Config{
		Chain: ChainConfig{
			RPCURL:     getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
			Commitment: getEnv("SOLANA_COMMITMENT", "confirmed"),
			Timeout:    getDurationEnv("SOLANA_RPC_TIMEOUT", 15*time.Second),
		},
		Wallet: WalletConfig{
			Path:                  getEnv("WALLET_PATH", "wallet.json"),
			ForceRealTransactions: getBoolEnv("FORCE_REAL_TRANSACTIONS", false),
		},
		Engine: EngineConfig{
			CyclePause:         getDurationEnv("ENGINE_CYCLE_PAUSE", 30*time.Second),
			BackoffCap:         getDurationEnv("ENGINE_BACKOFF_CAP", 5*time.Minute),
			MidPriceTTL:        getDurationEnv("ENTERPRISE_CACHE_TTL_SECONDS", 10*time.Second),
			QuoteTimeout:       getDurationEnv("QUOTE_TIMEOUT_SECONDS", 15*time.Second),
			ExecutionTimeout:   getDurationEnv("MAINNET_EXECUTION_TIMEOUT_SECONDS", 30*time.Second),
			TopK:               getIntEnv("TOP_K", 10),
			MaxBundleSize:      getIntEnv("MAX_BUNDLE_SIZE", 5),
			MultiTokenMode:     getBoolEnv("MULTI_TOKEN_MODE", false),
			VenueListPath:      getEnv("VENUE_LIST_PATH", ""),
			MinTradeLamports:   getUint64Env("MIN_TRADE_LAMPORTS", 10_000_000),
			MaxTradeLamports:   getUint64Env("MAX_TRADE_LAMPORTS", 5_000_000_000),
			MaxTradeSizeConfig: getUint64Env("MAX_TRADE_SIZE_CONFIG", 1_000_000_000),
			DiscoveryTokenMints: getListEnv("DISCOVERY_TOKEN_MINTS", nil),
		},
		Risk: RiskConfig{
			MinProfitBPS:                   getInt64Env("MIN_PROFIT_BPS", 50),
			MarginRatio:                    getInt64Env("MARGIN_RATIO", 10),
			MaxSlippageBPS:                 getInt64Env("MAX_SLIPPAGE_BPS", 50),
			MaxExposureLamports:            getUint64Env("MAX_EXPOSURE_LAMPORTS", 20_000_000_000),
			DailyLossLimitLamports:         getUint64Env("DAILY_LOSS_LIMIT_LAMPORTS", 1_000_000_000),
			MEVProtectionPriorityFee:       getUint64Env("MEV_PROTECTION_PRIORITY_FEE", 10_000),
			MinProfitThresholdLamports:     getInt64Env("MIN_PROFIT_THRESHOLD_LAMPORTS", 200_000),
			SimulatedWalletBalanceLamports: getUint64Env("SIMULATED_WALLET_BALANCE_LAMPORTS", 10_000_000_000),
		},
		Aggregator: AggregatorConfig{
			BaseURL: getEnv("AGGREGATOR_BASE_URL", "https://quote-api.jup.ag/v6"),
		},
		Relay: RelayConfig{
			BaseURL: getEnv("RELAY_BASE_URL", ""),
		},
		Observability: ObservabilityConfig{
			ServiceName: getEnv("SERVICE_NAME", "arbengine"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Wallet.ForceRealTransactions && c.Wallet.Path == "" {
		return fmt.Errorf("WALLET_PATH is required when FORCE_REAL_TRANSACTIONS=true")
	}
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("SOLANA_RPC_URL is required")
	}
	if c.Engine.MinTradeLamports == 0 || c.Engine.MaxTradeLamports < c.Engine.MinTradeLamports {
		return fmt.Errorf("invalid trade size bounds: min=%d max=%d", c.Engine.MinTradeLamports, c.Engine.MaxTradeLamports)
	}
	if c.Risk.MarginRatio <= 0 {
		return fmt.Errorf("MARGIN_RATIO must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseInt(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getUint64Env(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getListEnv parses a comma-separated environment variable into a slice,
// trimming whitespace around each entry and dropping empty ones.
func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
