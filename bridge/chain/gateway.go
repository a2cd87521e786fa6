// Package chain holds the process-wide connection to the Solana cluster.
//
// The Gateway is created once at startup and can be pointed at another RPC
// endpoint by initWallet. Readers take the current client under a read lock,
// so a replacement never tears an in-flight call.
package chain

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "gateway").Logger()
}

// Config holds the connection settings of the gateway.
type Config struct {
	RPCURL         string
	WSURL          string
	Commitment     rpc.CommitmentType
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		RPCURL:         rpc.DevNet_RPC,
		WSURL:          rpc.DevNet_WS,
		Commitment:     rpc.CommitmentConfirmed,
		ConfirmTimeout: 60 * time.Second,
		PollInterval:   500 * time.Millisecond,
	}
}

type Gateway struct {
	mu     sync.RWMutex
	cfg    Config
	client *rpc.Client
}

func NewGateway(cfg Config) *Gateway {
	def := DefaultConfig()
	if cfg.RPCURL == "" {
		cfg.RPCURL = def.RPCURL
	}
	if cfg.WSURL == "" {
		cfg.WSURL = WebsocketURL(cfg.RPCURL)
	}
	if cfg.Commitment == "" {
		cfg.Commitment = def.Commitment
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = def.ConfirmTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	return &Gateway{cfg: cfg, client: rpc.New(cfg.RPCURL)}
}

// Reconfigure points the gateway at a new RPC endpoint. The websocket
// endpoint is derived from it.
func (g *Gateway) Reconfigure(rpcURL string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if rpcURL == "" || rpcURL == g.cfg.RPCURL {
		return
	}
	g.cfg.RPCURL = rpcURL
	g.cfg.WSURL = WebsocketURL(rpcURL)
	g.client = rpc.New(rpcURL)
	log.Info().Str("rpc", rpcURL).Str("ws", g.cfg.WSURL).Msg("Gateway endpoint replaced")
}

func (g *Gateway) Client() *rpc.Client {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client
}

func (g *Gateway) Endpoint() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg.RPCURL
}

func (g *Gateway) WebsocketURL() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg.WSURL
}

func (g *Gateway) config() Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// WebsocketURL derives the pubsub endpoint of an RPC endpoint.
func WebsocketURL(rpcURL string) string {
	switch {
	case strings.HasPrefix(rpcURL, "https://"):
		return "wss://" + strings.TrimPrefix(rpcURL, "https://")
	case strings.HasPrefix(rpcURL, "http://"):
		return "ws://" + strings.TrimPrefix(rpcURL, "http://")
	default:
		return rpcURL
	}
}
