package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/quantfold/polyarb/pkg/fixedpoint"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Chain
	RPCURL         string
	ChainID        int64
	PrivateKey     string
	CTFAddress     string
	CollateralAddr string

	// CLOB API
	CLOBBaseURL    string
	CLOBWSURL      string
	APIKey         string
	Secret         string
	Passphrase     string
	ProxyAddress   string
	SignatureType  int
	RequestsPerSec float64

	// WebSocket
	WSDialTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSMessageBufferSize     int

	// Detection
	MinProfitPct fixedpoint.Amount
	PollInterval time.Duration

	// Execution
	ExecutionMode  string // "paper" or "live"
	Slippage       fixedpoint.Amount
	PositionSize   fixedpoint.Amount // pairs per trade
	MaxTradeCost   fixedpoint.Amount
	MaxDailyTrades int
	SubmitTimeout  time.Duration

	// Transactions
	MaxPendingTxs  int
	StuckAfter     time.Duration
	ConfirmTimeout time.Duration
	SweepInterval  time.Duration

	// Merging
	MergeTolerance fixedpoint.Amount

	// Safety
	BreakerCheckInterval time.Duration
	BreakerMinBalance    fixedpoint.Amount
	WalletPollInterval   time.Duration

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		RPCURL:         getEnvOrDefault("RPC_URL", "https://polygon-rpc.com"),
		ChainID:        int64(getIntOrDefault("CHAIN_ID", 137)),
		PrivateKey:     os.Getenv("PRIVATE_KEY"),
		CTFAddress:     os.Getenv("CTF_ADDRESS"),
		CollateralAddr: os.Getenv("COLLATERAL_ADDRESS"),

		CLOBBaseURL:    getEnvOrDefault("CLOB_BASE_URL", "https://clob.polymarket.com"),
		CLOBWSURL:      getEnvOrDefault("CLOB_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		APIKey:         os.Getenv("CLOB_API_KEY"),
		Secret:         os.Getenv("CLOB_SECRET"),
		Passphrase:     os.Getenv("CLOB_PASSPHRASE"),
		ProxyAddress:   os.Getenv("PROXY_ADDRESS"),
		SignatureType:  getIntOrDefault("SIGNATURE_TYPE", 0),
		RequestsPerSec: getFloat64OrDefault("CLOB_REQUESTS_PER_SECOND", 10),

		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSMessageBufferSize:     getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", 1000),

		MinProfitPct: getAmountOrDefault("MIN_PROFIT_PCT", "0.005"),
		PollInterval: getDurationOrDefault("QUOTE_POLL_INTERVAL", 5*time.Second),

		ExecutionMode:  getEnvOrDefault("EXECUTION_MODE", "paper"),
		Slippage:       getAmountOrDefault("SLIPPAGE_TOLERANCE", "0.001"),
		PositionSize:   getAmountOrDefault("POSITION_SIZE", "10"),
		MaxTradeCost:   getAmountOrDefault("MAX_TRADE_COST", "1000"),
		MaxDailyTrades: getIntOrDefault("MAX_DAILY_TRADES", 0),
		SubmitTimeout:  getDurationOrDefault("ORDER_SUBMIT_TIMEOUT", 30*time.Second),

		MaxPendingTxs:  getIntOrDefault("MAX_PENDING_TXS", 5),
		StuckAfter:     getDurationOrDefault("TX_STUCK_AFTER", 60*time.Second),
		ConfirmTimeout: getDurationOrDefault("TX_CONFIRM_TIMEOUT", 120*time.Second),
		SweepInterval:  getDurationOrDefault("TX_SWEEP_INTERVAL", 15*time.Second),

		MergeTolerance: getAmountOrDefault("MERGE_TOLERANCE", "0.01"),

		BreakerCheckInterval: getDurationOrDefault("BREAKER_CHECK_INTERVAL", 30*time.Second),
		BreakerMinBalance:    getAmountOrDefault("BREAKER_MIN_BALANCE", "10"),
		WalletPollInterval:   getDurationOrDefault("WALLET_POLL_INTERVAL", 60*time.Second),

		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "polyarb"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", ""),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "polyarb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL cannot be empty")
	}

	if c.ExecutionMode != "paper" && c.ExecutionMode != "live" {
		return fmt.Errorf("EXECUTION_MODE must be 'paper' or 'live', got %q", c.ExecutionMode)
	}

	if c.ExecutionMode == "live" && c.PrivateKey == "" {
		return fmt.Errorf("PRIVATE_KEY is required in live mode")
	}

	if c.MinProfitPct <= 0 || c.MinProfitPct >= fixedpoint.One {
		return fmt.Errorf("MIN_PROFIT_PCT must be between 0 and 1, got %s", c.MinProfitPct)
	}

	if c.MaxPendingTxs <= 0 {
		return fmt.Errorf("MAX_PENDING_TXS must be positive, got %d", c.MaxPendingTxs)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getAmountOrDefault(key string, defaultValue string) fixedpoint.Amount {
	value := os.Getenv(key)
	if value == "" {
		value = defaultValue
	}

	amount, err := fixedpoint.Parse(value)
	if err != nil {
		return fixedpoint.MustParse(defaultValue)
	}
	return amount
}
