package config

// BridgeConfig holds the server settings of the bridge process.
type BridgeConfig struct {
	// http configs
	Port int    `toml:"port" mapstructure:"port"`
	Host string `toml:"host" mapstructure:"host"`

	// CORS configs
	AllowedOrigins []string `toml:"allowed_origins" mapstructure:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `toml:"rate_per_minute" mapstructure:"rate_per_minute"`
	MaxConcurrentRequests int `toml:"max_concurrent_requests" mapstructure:"max_concurrent_requests"`
	CallTimeoutSec        int `toml:"call_timeout_sec" mapstructure:"call_timeout_sec"`

	// Solana cluster configs
	Network           string `toml:"network" mapstructure:"network"` // devnet, testnet, mainnet
	RPCURL            string `toml:"rpc_url" mapstructure:"rpc_url"`
	WSURL             string `toml:"ws_url" mapstructure:"ws_url"`
	Commitment        string `toml:"commitment" mapstructure:"commitment"`
	ConfirmTimeoutSec int    `toml:"confirm_timeout_sec" mapstructure:"confirm_timeout_sec"`
	ConfirmPollMs     int    `toml:"confirm_poll_ms" mapstructure:"confirm_poll_ms"`

	// wallet and exchange configs
	SpendingWallet string `toml:"spending_wallet" mapstructure:"spending_wallet"`
	NetworkFee     string `toml:"network_fee" mapstructure:"network_fee"`
	ExchangeConfig string `toml:"exchange_config" mapstructure:"exchange_config"` // local path of the exchange registry
	ExchangeSource string `toml:"exchange_source" mapstructure:"exchange_source"` // optional go-getter source fetched into ExchangeConfig
	QuoteRetries   int    `toml:"quote_retries" mapstructure:"quote_retries"`
	QuoteBackoffMs int    `toml:"quote_backoff_ms" mapstructure:"quote_backoff_ms"`

	// asset watcher
	WatchDebounceMs int `toml:"watch_debounce_ms" mapstructure:"watch_debounce_ms"`

	// OpenTelemetry configs
	ServiceName    string `toml:"service_name" mapstructure:"service_name"`
	ServiceVersion string `toml:"service_version" mapstructure:"service_version"`
	Environment    string `toml:"environment" mapstructure:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing  bool   `toml:"enable_tracing" mapstructure:"enable_tracing"`
	UseOTLPTraces  bool   `toml:"use_otlp_traces" mapstructure:"use_otlp_traces"`
	OTLPTracesURL  string `toml:"otlp_traces_url" mapstructure:"otlp_traces_url"`
	EnableMetrics  bool   `toml:"enable_metrics" mapstructure:"enable_metrics"`
	UsePrometheus  bool   `toml:"use_prometheus" mapstructure:"use_prometheus"`
	UseOTLPMetrics bool   `toml:"use_otlp_metrics" mapstructure:"use_otlp_metrics"`
	OTLPMetricsURL string `toml:"otlp_metrics_url" mapstructure:"otlp_metrics_url"`
	EnableLogs     bool   `toml:"enable_logs" mapstructure:"enable_logs"`
	UseOTLPLogs    bool   `toml:"use_otlp_logs" mapstructure:"use_otlp_logs"`
	OTLPLogsURL    string `toml:"otlp_logs_url" mapstructure:"otlp_logs_url"`

	InsecureOTLP bool `toml:"insecure_otlp" mapstructure:"insecure_otlp"`

	// Development mode uses stdout exporters
	DevelopmentMode bool `toml:"development_mode" mapstructure:"development_mode"`
}

// ExchangeFile is the on-disk layout of the exchange registry.
type ExchangeFile struct {
	QuoteCurrency string               `toml:"quote_currency" json:"quote_currency"`
	Tokens        []TokenEntry         `toml:"tokens" json:"tokens"`
	Pools         []PoolEntry          `toml:"pools" json:"pools"`
	Routes        []RouteEntry         `toml:"routes" json:"routes"`
	Pairs         map[string]PairEntry `toml:"pairs" json:"pairs"`
}

type TokenEntry struct {
	Symbol   string `toml:"symbol" json:"symbol"`
	Mint     string `toml:"mint" json:"mint"`
	Decimals uint8  `toml:"decimals" json:"decimals"`
	Native   bool   `toml:"native" json:"native"`
}

// PoolEntry describes one pool. Fees are numerator/denominator pairs.
type PoolEntry struct {
	Key        string `toml:"key" json:"key"`
	Venue      string `toml:"venue" json:"venue"`
	ProgramID  string `toml:"program_id" json:"program_id"`
	Address    string `toml:"address" json:"address"`
	Authority  string `toml:"authority" json:"authority"`
	TokenA     string `toml:"token_a" json:"token_a"`
	TokenB     string `toml:"token_b" json:"token_b"`
	VaultA     string `toml:"vault_a" json:"vault_a"`
	VaultB     string `toml:"vault_b" json:"vault_b"`
	PoolMint   string `toml:"pool_mint" json:"pool_mint"`
	FeeAccount string `toml:"fee_account" json:"fee_account"`

	TradeFeeNumerator   uint64 `toml:"trade_fee_numerator" json:"trade_fee_numerator"`
	TradeFeeDenominator uint64 `toml:"trade_fee_denominator" json:"trade_fee_denominator"`
	OwnerFeeNumerator   uint64 `toml:"owner_fee_numerator" json:"owner_fee_numerator"`
	OwnerFeeDenominator uint64 `toml:"owner_fee_denominator" json:"owner_fee_denominator"`
}

// RouteEntry lists the pool keys of one route type, primary pool first.
type RouteEntry struct {
	Type  int      `toml:"type" json:"type"`
	Pools []string `toml:"pools" json:"pools"`
}

type PairEntry struct {
	Type int    `toml:"type" json:"type"`
	Dir  string `toml:"dir" json:"dir"`
}
