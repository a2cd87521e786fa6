package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// LoadBridgeConfig loads the bridge server config from the given path, or
// from BRIDGE_* environment variables when the path is nil.
func LoadBridgeConfig(configPath *string) (*BridgeConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == nil {
		// if no file expect envs
		config, err := loadEnv(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load env config: %w", err)
		}
		return config, nil
	}
	config, err := loadFile(v, *configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load file config: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8545)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("rate_per_minute", 300)
	v.SetDefault("max_concurrent_requests", 64)
	v.SetDefault("call_timeout_sec", 90)
	v.SetDefault("network", "devnet")
	v.SetDefault("commitment", string(rpc.CommitmentConfirmed))
	v.SetDefault("confirm_timeout_sec", 60)
	v.SetDefault("confirm_poll_ms", 500)
	v.SetDefault("spending_wallet", "ZCLUB6ueX9iALVEeNPVWQyrgTqvWAHcxozJP2ea2YcC")
	v.SetDefault("network_fee", "0.0000005")
	v.SetDefault("quote_retries", 2)
	v.SetDefault("quote_backoff_ms", 250)
	v.SetDefault("watch_debounce_ms", 500)
	v.SetDefault("service_name", "solana-bridge")
	v.SetDefault("environment", "LOCAL")
}

func loadEnv(v *viper.Viper) (*BridgeConfig, error) {
	// godot might fail if .env file is missing but
	// env can be applied through docker, systemd or other means, so skip error
	_ = godotenv.Load()
	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var config BridgeConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

// bindEnvKeys binds each config key to its env var so Unmarshal sees env values
// when no config file is loaded (env-only mode).
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"port", "host", "allowed_origins",
		"rate_per_minute", "max_concurrent_requests", "call_timeout_sec",
		"network", "rpc_url", "ws_url", "commitment",
		"confirm_timeout_sec", "confirm_poll_ms",
		"spending_wallet", "network_fee", "exchange_config", "exchange_source",
		"quote_retries", "quote_backoff_ms", "watch_debounce_ms",
		"service_name", "service_version", "environment",
		"enable_tracing", "use_otlp_traces", "otlp_traces_url",
		"enable_metrics", "use_prometheus", "use_otlp_metrics", "otlp_metrics_url",
		"enable_logs", "use_otlp_logs", "otlp_logs_url",
		"insecure_otlp", "development_mode",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadFile(v *viper.Viper, configPath string) (*BridgeConfig, error) {
	if !strings.HasSuffix(configPath, ".toml") {
		return nil, fmt.Errorf("config file must be a toml file")
	}

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config BridgeConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}

	return &config, nil
}

func verifyConfig(config *BridgeConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if config.Host == "" {
		return fmt.Errorf("host is required")
	}

	if len(config.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required")
	}

	if config.RPCURL == "" {
		endpoint, ok := clusterEndpoints[strings.ToLower(config.Network)]
		if !ok {
			return fmt.Errorf("unknown network %q, set rpc_url instead", config.Network)
		}
		config.RPCURL = endpoint
	}
	if u, err := url.Parse(config.RPCURL); err != nil || u.Host == "" {
		return fmt.Errorf("rpc_url %q is not a valid url", config.RPCURL)
	}

	switch rpc.CommitmentType(config.Commitment) {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("commitment must be processed, confirmed or finalized")
	}

	if config.ConfirmTimeoutSec <= 0 {
		return fmt.Errorf("confirm_timeout_sec must be positive")
	}

	if config.SpendingWallet == "" {
		return fmt.Errorf("spending_wallet is required")
	}
	if _, err := solana.PublicKeyFromBase58(config.SpendingWallet); err != nil {
		return fmt.Errorf("spending_wallet is not a valid address: %w", err)
	}

	if _, err := decimal.NewFromString(config.NetworkFee); err != nil {
		return fmt.Errorf("network_fee is not a decimal: %w", err)
	}

	if config.ExchangeConfig == "" {
		return fmt.Errorf("exchange_config is required")
	}

	if config.QuoteRetries < 0 {
		return fmt.Errorf("quote_retries must not be negative")
	}

	return nil
}

var clusterEndpoints = map[string]string{
	"devnet":  rpc.DevNet_RPC,
	"testnet": rpc.TestNet_RPC,
	"mainnet": rpc.MainNetBeta_RPC,
	"local":   rpc.LocalNet_RPC,
}

func (c *BridgeConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSec) * time.Second
}

func (c *BridgeConfig) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutSec) * time.Second
}

func (c *BridgeConfig) ConfirmPollInterval() time.Duration {
	return time.Duration(c.ConfirmPollMs) * time.Millisecond
}

func (c *BridgeConfig) QuoteBackoff() time.Duration {
	return time.Duration(c.QuoteBackoffMs) * time.Millisecond
}

func (c *BridgeConfig) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMs) * time.Millisecond
}
