// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Uniswap   UniswapConfig   `mapstructure:"uniswap"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Health    HealthConfig    `mapstructure:"health"`

	// TUIMode is set at runtime from flags.
	TUIMode bool `mapstructure:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds Ethereum node configuration.
type EthereumConfig struct {
	WebSocketURL   string        `mapstructure:"websocket_url"`
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	GasCacheTTL    time.Duration `mapstructure:"gas_cache_ttl"`
}

// UniswapConfig holds Uniswap V3 contract addresses.
type UniswapConfig struct {
	QuoterAddress  string `mapstructure:"quoter_address"`
	RouterAddress  string `mapstructure:"router_address"`
	WETHAddress    string `mapstructure:"weth_address"`
	DefaultFeeTier int    `mapstructure:"default_fee_tier"`
	FeeTiers       []int  `mapstructure:"fee_tiers"`
}

// QuoterAddressHex returns the quoter address as common.Address.
func (c *UniswapConfig) QuoterAddressHex() common.Address {
	return common.HexToAddress(c.QuoterAddress)
}

// RouterAddressHex returns the router address as common.Address.
func (c *UniswapConfig) RouterAddressHex() common.Address {
	return common.HexToAddress(c.RouterAddress)
}

// WETHAddressHex returns the wrapped native token address.
func (c *UniswapConfig) WETHAddressHex() common.Address {
	return common.HexToAddress(c.WETHAddress)
}

// RiskConfig holds the limits the risk governor enforces.
type RiskConfig struct {
	MaxSlippagePercent  float64 `mapstructure:"max_slippage_percent"`
	MaxTransactionValue string  `mapstructure:"max_transaction_value"`
	MaxGasPriceGwei     float64 `mapstructure:"max_gas_price_gwei"`
	DeadlineMinutes     int     `mapstructure:"deadline_minutes"`
	EnableRealTrading   bool    `mapstructure:"enable_real_trading"`
}

// MaxTransactionValueDecimal parses the native-unit value cap.
// An unparsable value yields zero, which blocks every native swap.
func (c *RiskConfig) MaxTransactionValueDecimal() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(c.MaxTransactionValue))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// MaxGasPriceWei converts the gwei cap to wei.
func (c *RiskConfig) MaxGasPriceWei() *big.Int {
	return decimal.NewFromFloat(c.MaxGasPriceGwei).Shift(9).BigInt()
}

// WalletConfig holds the signing key and confirmation settings.
type WalletConfig struct {
	PrivateKey          string        `mapstructure:"private_key"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	GasMarginPercent    uint64        `mapstructure:"gas_margin_percent"`
}

// PricingConfig holds the oracle cross-check settings.
type PricingConfig struct {
	ReferenceCheck  bool              `mapstructure:"reference_check"`
	MaxDeviationBps float64           `mapstructure:"max_deviation_bps"`
	BinanceWSURL    string            `mapstructure:"binance_ws_url"`
	BinanceRESTURL  string            `mapstructure:"binance_rest_url"`
	StaleTimeout    time.Duration     `mapstructure:"stale_timeout"`
	Symbols         map[string]string `mapstructure:"symbols"`
}

// Symbol returns the Binance symbol configured for base/quote, and
// whether the pair is inverted relative to it.
func (c *PricingConfig) Symbol(base, quote string) (symbol string, inverted bool, ok bool) {
	key := strings.ToLower(base + "-" + quote)
	if s, found := c.Symbols[key]; found {
		return strings.ToUpper(s), false, true
	}
	key = strings.ToLower(quote + "-" + base)
	if s, found := c.Symbols[key]; found {
		return strings.ToUpper(s), true, true
	}
	return "", false, false
}

// MonitorConfig holds the watchlist and reaction rules.
type MonitorConfig struct {
	Enabled            bool             `mapstructure:"enabled"`
	WatchAddresses     []string         `mapstructure:"watch_addresses"`
	Tokens             []TokenConfig    `mapstructure:"tokens"`
	Reactions          []ReactionConfig `mapstructure:"reactions"`
	DedupTTL           time.Duration    `mapstructure:"dedup_ttl"`
	MaxConcurrentSwaps int              `mapstructure:"max_concurrent_swaps"`
	SwapTimeout        time.Duration    `mapstructure:"swap_timeout"`
}

// TokenConfig describes a token the registry does not already know.
type TokenConfig struct {
	Address  string `mapstructure:"address"`
	Symbol   string `mapstructure:"symbol"`
	Decimals uint8  `mapstructure:"decimals"`
}

// ReactionConfig maps a classified transaction to a swap.
type ReactionConfig struct {
	Kind      string  `mapstructure:"kind"`
	Token     string  `mapstructure:"token"`
	Direction string  `mapstructure:"direction"`
	AssetIn   string  `mapstructure:"asset_in"`
	AssetOut  string  `mapstructure:"asset_out"`
	Amount    string  `mapstructure:"amount"`
	Slippage  float64 `mapstructure:"slippage"`
	DryRun    bool    `mapstructure:"dry_run"`
}

// NotifyConfig holds the outbound notification channels.
type NotifyConfig struct {
	TelegramToken  string   `mapstructure:"telegram_token"`
	TelegramChatID string   `mapstructure:"telegram_chat_id"`
	TelegramAPIURL string   `mapstructure:"telegram_api_url"`
	DiscordWebhook string   `mapstructure:"discord_webhook"`
	Events         []string `mapstructure:"events"`
	RetryAttempts  uint     `mapstructure:"retry_attempts"`
	BufferSize     int      `mapstructure:"buffer_size"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	ServiceName    string  `mapstructure:"service_name"`
	TraceExporter  string  `mapstructure:"trace_exporter"` // zipkin, otlp-grpc, otlp-http, console, none
	SampleRatio    float64 `mapstructure:"sample_ratio"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string  `mapstructure:"otlp_headers"` // k=v,k2=v2
	OTLPInsecure   bool    `mapstructure:"otlp_insecure"`
	OTLPMetrics    bool    `mapstructure:"otlp_metrics"`
	PrometheusPort int     `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health and admin server settings.
type HealthConfig struct {
	Port         int  `mapstructure:"port"`
	AdminEnabled bool `mapstructure:"admin_enabled"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables
	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "SENTINEL_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "SENTINEL_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "SENTINEL_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	v.BindEnv("ethereum.websocket_url", "SENTINEL_ETH_WS_URL", "ETH_WS_URL")
	v.BindEnv("ethereum.http_url", "SENTINEL_ETH_HTTP_URL", "ETH_HTTP_URL", "RPC_URL")
	v.BindEnv("ethereum.chain_id", "SENTINEL_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	// Uniswap
	v.BindEnv("uniswap.quoter_address", "SENTINEL_UNISWAP_QUOTER", "UNISWAP_QUOTER")
	v.BindEnv("uniswap.router_address", "SENTINEL_UNISWAP_ROUTER", "UNISWAP_ROUTER")
	v.BindEnv("uniswap.weth_address", "SENTINEL_WETH_ADDRESS", "WETH_ADDRESS")

	// Risk
	v.BindEnv("risk.max_slippage_percent", "SENTINEL_MAX_SLIPPAGE_PERCENT", "MAX_SLIPPAGE_PERCENT")
	v.BindEnv("risk.max_transaction_value", "SENTINEL_MAX_TRANSACTION_VALUE", "MAX_TRANSACTION_VALUE")
	v.BindEnv("risk.max_gas_price_gwei", "SENTINEL_MAX_GAS_PRICE", "MAX_GAS_PRICE")
	v.BindEnv("risk.deadline_minutes", "SENTINEL_TRANSACTION_DEADLINE_MINUTES", "TRANSACTION_DEADLINE_MINUTES")
	v.BindEnv("risk.enable_real_trading", "SENTINEL_ENABLE_REAL_TRADING", "ENABLE_REAL_TRADING")

	// Wallet
	v.BindEnv("wallet.private_key", "SENTINEL_PRIVATE_KEY", "PRIVATE_KEY")

	// Pricing
	v.BindEnv("pricing.reference_check", "SENTINEL_PRICE_REFERENCE_CHECK")
	v.BindEnv("pricing.max_deviation_bps", "SENTINEL_PRICE_MAX_DEVIATION_BPS")
	v.BindEnv("pricing.binance_ws_url", "SENTINEL_BINANCE_WS_URL", "BINANCE_WS_URL")
	v.BindEnv("pricing.binance_rest_url", "SENTINEL_BINANCE_REST_URL", "BINANCE_REST_URL")

	// Monitor
	v.BindEnv("monitor.enabled", "SENTINEL_MONITOR_ENABLED")
	v.BindEnv("monitor.watch_addresses", "SENTINEL_WATCH_ADDRESSES", "WATCH_ADDRESSES")

	// Notify
	v.BindEnv("notify.telegram_token", "SENTINEL_TELEGRAM_BOT_TOKEN", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("notify.telegram_chat_id", "SENTINEL_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")
	v.BindEnv("notify.discord_webhook", "SENTINEL_DISCORD_WEBHOOK_URL", "DISCORD_WEBHOOK_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "SENTINEL_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "SENTINEL_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "SENTINEL_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "SENTINEL_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
	v.BindEnv("telemetry.trace_exporter", "SENTINEL_OTEL_TRACE_EXPORTER")

	// Health
	v.BindEnv("health.port", "SENTINEL_HEALTH_PORT", "HEALTH_PORT")
	v.BindEnv("health.admin_enabled", "SENTINEL_ADMIN_ENABLED")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "swap-sentinel")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	// Ethereum defaults
	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.max_reconnects", 0) // infinite
	v.SetDefault("ethereum.initial_backoff", "1s")
	v.SetDefault("ethereum.max_backoff", "30s")
	v.SetDefault("ethereum.gas_cache_ttl", "12s")

	// Uniswap V3 Mainnet defaults
	v.SetDefault("uniswap.quoter_address", "0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
	v.SetDefault("uniswap.router_address", "0xE592427A0AEce92De3Edee1F18E0157C05861564")
	v.SetDefault("uniswap.weth_address", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	v.SetDefault("uniswap.default_fee_tier", 3000) // 0.3%
	v.SetDefault("uniswap.fee_tiers", []int{500, 3000, 10000})

	// Risk defaults
	v.SetDefault("risk.max_slippage_percent", 5)
	v.SetDefault("risk.max_transaction_value", "0.1")
	v.SetDefault("risk.max_gas_price_gwei", 100)
	v.SetDefault("risk.deadline_minutes", 20)
	v.SetDefault("risk.enable_real_trading", false)

	// Wallet defaults
	v.SetDefault("wallet.confirmation_timeout", "3m")
	v.SetDefault("wallet.poll_interval", "2s")
	v.SetDefault("wallet.gas_margin_percent", 20)

	// Pricing defaults
	v.SetDefault("pricing.reference_check", false)
	v.SetDefault("pricing.max_deviation_bps", 200)
	v.SetDefault("pricing.binance_ws_url", "wss://stream.binance.com:9443")
	v.SetDefault("pricing.binance_rest_url", "https://api.binance.com")
	v.SetDefault("pricing.stale_timeout", "10s")
	v.SetDefault("pricing.symbols", map[string]string{"eth-usdc": "ETHUSDC", "eth-usdt": "ETHUSDT"})

	// Monitor defaults
	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.dedup_ttl", "10m")
	v.SetDefault("monitor.max_concurrent_swaps", 2)
	v.SetDefault("monitor.swap_timeout", "5m")

	// Notify defaults
	v.SetDefault("notify.telegram_api_url", "https://api.telegram.org")
	v.SetDefault("notify.events", []string{"swap_executed", "swap_failed", "emergency_stop"})
	v.SetDefault("notify.retry_attempts", 3)
	v.SetDefault("notify.buffer_size", 64)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "swap-sentinel")
	v.SetDefault("telemetry.trace_exporter", "zipkin")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.prometheus_port", 9090)

	// Health defaults
	v.SetDefault("health.port", 8081)
	v.SetDefault("health.admin_enabled", false)
}

// Validate validates the configuration. A missing private key is not an
// error here; the swap module reports it per request.
func (c *Config) Validate() error {
	if c.Ethereum.WebSocketURL == "" && c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.websocket_url or ethereum.http_url is required")
	}
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	for name, addr := range map[string]string{
		"uniswap.quoter_address": c.Uniswap.QuoterAddress,
		"uniswap.router_address": c.Uniswap.RouterAddress,
		"uniswap.weth_address":   c.Uniswap.WETHAddress,
	} {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid %s: %s", name, addr)
		}
	}

	if c.Risk.MaxSlippagePercent < 0 || c.Risk.MaxSlippagePercent > 100 {
		return fmt.Errorf("risk.max_slippage_percent must be within [0, 100], got %v", c.Risk.MaxSlippagePercent)
	}
	if d, err := decimal.NewFromString(strings.TrimSpace(c.Risk.MaxTransactionValue)); err != nil || d.IsNegative() {
		return fmt.Errorf("invalid risk.max_transaction_value: %q", c.Risk.MaxTransactionValue)
	}
	if c.Risk.MaxGasPriceGwei <= 0 {
		return fmt.Errorf("risk.max_gas_price_gwei must be positive, got %v", c.Risk.MaxGasPriceGwei)
	}
	if c.Risk.DeadlineMinutes <= 0 {
		return fmt.Errorf("risk.deadline_minutes must be positive, got %d", c.Risk.DeadlineMinutes)
	}

	if c.Pricing.ReferenceCheck && c.Pricing.MaxDeviationBps <= 0 {
		return fmt.Errorf("pricing.max_deviation_bps must be positive when reference_check is on")
	}

	for _, addr := range c.Monitor.WatchAddresses {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid monitor.watch_addresses entry: %s", addr)
		}
	}
	for _, t := range c.Monitor.Tokens {
		if !common.IsHexAddress(t.Address) || t.Symbol == "" {
			return fmt.Errorf("invalid monitor.tokens entry: %+v", t)
		}
	}
	if c.Monitor.Enabled && len(c.Monitor.WatchAddresses) == 0 {
		return fmt.Errorf("monitor.watch_addresses cannot be empty when monitor is enabled")
	}

	return nil
}
