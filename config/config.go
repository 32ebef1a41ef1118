package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"meanReversionBot/internal/adapters/logger"
	"meanReversionBot/internal/domain"
	"meanReversionBot/internal/strategy"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Market
	Symbol            string
	BaseAsset         string
	QuoteAsset        string
	QuantityPrecision int32

	// Lookback window: candles of KlineInterval from now-LookbackStart to now-LookbackEnd.
	KlineInterval string
	LookbackStart time.Duration
	LookbackEnd   time.Duration
	CycleInterval time.Duration

	// Strategy
	PolicyMode         domain.PolicyMode
	StopLossMultiplier decimal.Decimal
	SafetyFraction     decimal.Decimal
	FeeOption          string
	DryRun             bool

	// Database
	DBPath string

	// Logging
	LogLevel     logger.LogLevel
	LogLevelName string // Raw level, for the zerolog adapter
	LogFormat    string // text | json

	// Metrics endpoint; empty disables it.
	MetricsAddr string

	// Retry of transient failures inside one cycle slot
	MaxFetchRetries int
	ReconnectDelay  time.Duration
}

// StrategyConfig returns the policy configuration.
func (c *Config) StrategyConfig() strategy.Config {
	return strategy.Config{
		Mode:               c.PolicyMode,
		StopLossMultiplier: decimal.NewNullDecimal(c.StopLossMultiplier),
		SafetyFraction:     c.SafetyFraction,
	}
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// A missing .env is fine; plain environment variables still apply.
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true)

	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}

	// Market
	cfg.Symbol = strings.ToUpper(getEnv("SYMBOL", "BTCUSDT"))
	cfg.BaseAsset = strings.ToUpper(getEnv("BASE_ASSET", "BTC"))
	cfg.QuoteAsset = strings.ToUpper(getEnv("QUOTE_ASSET", "USDT"))
	if cfg.BaseAsset == cfg.QuoteAsset {
		errs = append(errs, "BASE_ASSET and QUOTE_ASSET must differ")
	}
	if !strings.HasPrefix(cfg.Symbol, cfg.BaseAsset) || !strings.HasSuffix(cfg.Symbol, cfg.QuoteAsset) {
		errs = append(errs, fmt.Sprintf("SYMBOL %s does not match BASE_ASSET %s and QUOTE_ASSET %s", cfg.Symbol, cfg.BaseAsset, cfg.QuoteAsset))
	}

	precision, err := getEnvAsIntRequired("QUANTITY_PRECISION", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid QUANTITY_PRECISION: %v", err))
	} else if precision < 0 || precision > 18 {
		errs = append(errs, "QUANTITY_PRECISION must be between 0 and 18")
	}
	cfg.QuantityPrecision = int32(precision)

	// Lookback window
	cfg.KlineInterval = getEnv("KLINE_INTERVAL", "1h")
	start, err := getEnvAsIntRequired("LOOKBACK_START_HOURS", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOOKBACK_START_HOURS: %v", err))
	}
	end, err := getEnvAsIntRequired("LOOKBACK_END_HOURS", 1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOOKBACK_END_HOURS: %v", err))
	}
	if end < 0 {
		errs = append(errs, "LOOKBACK_END_HOURS cannot be negative")
	}
	if start <= end {
		errs = append(errs, "LOOKBACK_START_HOURS must be greater than LOOKBACK_END_HOURS")
	}
	cfg.LookbackStart = time.Duration(start) * time.Hour
	cfg.LookbackEnd = time.Duration(end) * time.Hour

	cycleSeconds, err := getEnvAsIntRequired("CYCLE_INTERVAL_SECONDS", 3600)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CYCLE_INTERVAL_SECONDS: %v", err))
	} else if cycleSeconds <= 0 {
		errs = append(errs, "CYCLE_INTERVAL_SECONDS must be positive")
	}
	cfg.CycleInterval = time.Duration(cycleSeconds) * time.Second

	// Strategy
	cfg.PolicyMode, err = strategy.ParseMode(getEnv("POLICY_MODE", string(domain.PolicyLongShort)))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid POLICY_MODE: %v", err))
	}

	cfg.StopLossMultiplier, err = getEnvAsDecimalRequired("STOP_LOSS_MULTIPLIER", strategy.DefaultStopLossMultiplier)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_MULTIPLIER: %v", err))
	} else if cfg.StopLossMultiplier.IsNegative() {
		errs = append(errs, "STOP_LOSS_MULTIPLIER cannot be negative")
	}

	cfg.SafetyFraction, err = getEnvAsDecimalRequired("SAFETY_FRACTION", strategy.DefaultSafetyFraction)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SAFETY_FRACTION: %v", err))
	} else if cfg.SafetyFraction.Sign() <= 0 || cfg.SafetyFraction.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, "SAFETY_FRACTION must be in (0, 1]")
	}

	cfg.FeeOption = getEnv("FEE_OPTION", "feeInNative")
	cfg.DryRun = getEnvAsBool("DRY_RUN", true)

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/strategy_state.db")

	// Logging
	cfg.LogLevelName = getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(cfg.LogLevelName)
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, "LOG_FORMAT must be text or json")
	}

	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")

	// Retries
	cfg.MaxFetchRetries, err = getEnvAsIntRequired("MAX_FETCH_RETRIES", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_FETCH_RETRIES: %v", err))
	} else if cfg.MaxFetchRetries < 0 {
		errs = append(errs, "MAX_FETCH_RETRIES cannot be negative")
	}

	reconnectDelaySeconds := getEnvAsInt("RECONNECT_DELAY_SECONDS", 5)
	if reconnectDelaySeconds <= 0 {
		errs = append(errs, "RECONNECT_DELAY_SECONDS must be positive")
	}
	cfg.ReconnectDelay = time.Duration(reconnectDelaySeconds) * time.Second

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsDecimalRequired(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
