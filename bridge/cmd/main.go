package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"

	"github.com/zclubweb3/solana-bridge/bridge/assets"
	"github.com/zclubweb3/solana-bridge/bridge/chain"
	"github.com/zclubweb3/solana-bridge/bridge/config"
	"github.com/zclubweb3/solana-bridge/bridge/router"
	"github.com/zclubweb3/solana-bridge/bridge/router/pools/orca"
	bridgerpc "github.com/zclubweb3/solana-bridge/bridge/rpc"
	"github.com/zclubweb3/solana-bridge/bridge/wallet"
	"github.com/zclubweb3/solana-bridge/bridge/watcher"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()

	// Share the logger with the RPC package
	bridgerpc.SetLogger(log)
}

func main() {
	configPath := flag.String("config", "./bridge_config.toml", "config file for the bridge server")
	useEnv := flag.Bool("env", false, "read the config from BRIDGE_* environment variables instead of a file")
	tlsCert := flag.String("tls-cert", "", "certificate file, serves https when set with -tls-key")
	tlsKey := flag.String("tls-key", "", "key file, serves https when set with -tls-cert")
	flag.Parse()

	var path *string
	if !*useEnv {
		path = configPath
	}
	cfg, err := config.LoadBridgeConfig(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load bridge config")
	}

	log.Info().
		Str("network", cfg.Network).
		Str("rpc", cfg.RPCURL).
		Str("exchange_config", cfg.ExchangeConfig).
		Msg("Starting Solana bridge")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.ExchangeSource != "" {
		if err := config.FetchExchangeConfig(ctx, cfg.ExchangeSource, cfg.ExchangeConfig); err != nil {
			log.Fatal().Err(err).Msg("Failed to fetch exchange config")
		}
		log.Info().Str("source", cfg.ExchangeSource).Msg("Fetched exchange config")
	}

	// Placeholder pool accounts fail here instead of on the first swap
	registry, err := config.NewExchangeLoader().LoadFromFile(cfg.ExchangeConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load exchange config")
	}
	log.Info().
		Int("pairs", len(registry.Pairs())).
		Int("tokens", len(registry.Tokens().All())).
		Str("quote", registry.QuoteToken().Symbol).
		Msg("Loaded exchange registry")

	gateway := chain.NewGateway(chain.Config{
		RPCURL:         cfg.RPCURL,
		WSURL:          cfg.WSURL,
		Commitment:     rpc.CommitmentType(cfg.Commitment),
		ConfirmTimeout: cfg.ConfirmTimeout(),
		PollInterval:   cfg.ConfirmPollInterval(),
	})

	owner := wallet.NewContext()
	resolver := router.NewResolver(registry, orca.NewVenue(gateway, registry.Tokens()))
	swapRouter := router.NewRouter(registry, resolver, owner, gateway,
		router.WithQuoteRetry(cfg.QuoteRetries, cfg.QuoteBackoff()))

	spending, err := solana.PublicKeyFromBase58(cfg.SpendingWallet)
	if err != nil {
		log.Fatal().Err(err).Str("spending_wallet", cfg.SpendingWallet).Msg("Invalid spending wallet")
	}
	facade := assets.NewFacade(gateway, owner, registry.Tokens(),
		assets.WithSpendingWallet(spending),
		assets.WithNetworkFee(cfg.NetworkFee),
	)

	assetWatcher := watcher.New(watcher.WithDebounce(cfg.WatchDebounce()))
	defer assetWatcher.Stop()

	bridge := bridgerpc.NewBridge(bridgerpc.Dependencies{
		Endpoint: gateway,
		Wallet:   owner,
		Router:   swapRouter,
		Assets:   facade,
		Watcher:  assetWatcher,
		Hub:      bridgerpc.NewEventHub(),
	})

	server, err := bridgerpc.NewServer(ctx, bridgerpc.ServerConfigFrom(cfg), bridge)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bridge server")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		var err error
		if *tlsCert != "" && *tlsKey != "" {
			err = server.StartTLS(*tlsCert, *tlsKey)
		} else {
			err = server.Start()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server error")
			sigCh <- syscall.SIGTERM
		}
	}()

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
}
