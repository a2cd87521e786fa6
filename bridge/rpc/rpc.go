// Package rpc serves the bridge methods to the host over HTTP and pushes
// their results on a server-sent event stream.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/zclubweb3/solana-bridge/bridge/config"
	"github.com/zclubweb3/solana-bridge/bridge/models"
)

var Logger zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	Logger = zerolog.New(out).With().Timestamp().Str("component", "rpc").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	Logger = l
}

const maxBodyBytes = 1 << 20

// ServerConfig holds configuration for the bridge server
type ServerConfig struct {
	Address               string
	AllowedOrigins        []string
	EnableMetrics         bool
	RatePerMinute         int
	MaxConcurrentRequests int
	CallTimeout           time.Duration
	OTelConfig            *OTelConfig
}

// DefaultServerConfig returns a default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:               "127.0.0.1:8545",
		AllowedOrigins:        []string{"http://localhost:3000"},
		EnableMetrics:         true,
		MaxConcurrentRequests: 64,
		CallTimeout:           90 * time.Second,
		OTelConfig:            DefaultOTelConfig(),
	}
}

// ServerConfigFrom maps the loaded bridge config.
func ServerConfigFrom(c *config.BridgeConfig) *ServerConfig {
	otelCfg := OTelConfigFrom(c)
	return &ServerConfig{
		Address:               fmt.Sprintf("%s:%d", c.Host, c.Port),
		AllowedOrigins:        c.AllowedOrigins,
		EnableMetrics:         c.EnableMetrics || c.UsePrometheus,
		RatePerMinute:         c.RatePerMinute,
		MaxConcurrentRequests: c.MaxConcurrentRequests,
		CallTimeout:           c.CallTimeout(),
		OTelConfig:            otelCfg,
	}
}

// Server wraps the HTTP server and provides lifecycle management
type Server struct {
	config       *ServerConfig
	bridge       *Bridge
	httpServer   *http.Server
	mux          *chi.Mux
	otelShutdown func(context.Context) error
}

// NewServer creates the bridge server. Telemetry failures are logged and
// the server runs without it.
func NewServer(ctx context.Context, cfg *ServerConfig, bridge *Bridge) (*Server, error) {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	var otelShutdown func(context.Context) error
	if cfg.OTelConfig.enabled() {
		shutdown, err := NewOTelSDK(ctx, cfg.OTelConfig)
		if err != nil {
			Logger.Error().Err(err).Msg("Failed to initialize OpenTelemetry")
		} else {
			otelShutdown = shutdown
		}
	}

	mux := chi.NewMux()
	mux.Use(zerologMiddleware)
	mux.Use(zerologRecoverer)
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(realIPMiddleware)

	if cfg.OTelConfig != nil && cfg.OTelConfig.EnableTracing {
		mux.Use(otelHTTPMiddleware)
	}
	if cfg.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(cfg.RatePerMinute, time.Minute))
	}

	if cfg.EnableMetrics {
		mux.Handle("/server/metrics", promhttp.Handler())
		Logger.Info().Msg("Metrics endpoint enabled: /server/metrics")
	}

	mux.Get("/server/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "solana-bridge"})
	})
	mux.Get("/server/ready", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ready",
			"subscribers": bridge.Hub().Subscribers(),
		})
	})

	// the event stream is long lived, so it stays out of the timeout,
	// throttle and compression middlewares
	mux.Get("/bridge/events", bridge.Hub().ServeHTTP)

	mux.Group(func(r chi.Router) {
		r.Use(noCacheMiddleware)
		r.Use(middleware.Compress(5))
		if cfg.CallTimeout > 0 {
			r.Use(middleware.Timeout(cfg.CallTimeout))
		}
		if cfg.MaxConcurrentRequests > 0 {
			r.Use(middleware.Throttle(cfg.MaxConcurrentRequests))
		}
		r.Get("/bridge", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string][]string{"methods": bridge.Methods()})
		})
		r.Post("/bridge/{method}", bridgeHandler(bridge))
	})

	corsHandler := newCORSHandler(cfg.AllowedOrigins, mux)

	httpServer := &http.Server{
		Addr:              cfg.Address,
		Handler:           h2c.NewHandler(corsHandler, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// no WriteTimeout: the event stream stays open, calls are bounded
		// by the timeout middleware
		IdleTimeout: 120 * time.Second,
	}
	httpServer.RegisterOnShutdown(bridge.Hub().Close)

	return &Server{
		config:       cfg,
		bridge:       bridge,
		httpServer:   httpServer,
		mux:          mux,
		otelShutdown: otelShutdown,
	}, nil
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// bridgeHandler runs one method and writes the same data that was
// published on the event stream.
func bridgeHandler(bridge *Bridge) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "method")
		if !bridge.Has(name) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": fmt.Sprintf("%s: %s", errUnknownMethod, name),
				"code":  "UNKNOWN_METHOD",
			})
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body", "code": "INVALID_REQUEST"})
			return
		}

		result := bridge.Invoke(r.Context(), name, body)

		status := http.StatusOK
		if failure, ok := result.Data.(models.ErrorResponse); ok && result.Failed {
			status = statusOf(failure.Code)
		}
		w.Header().Set("X-Bridge-Event", result.Event)
		writeJSON(w, status, result.Data)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		Logger.Debug().Err(err).Msg("Failed to write response")
	}
}

// Start begins serving without TLS
func (s *Server) Start() error {
	s.logServerInfo("http")
	return s.httpServer.ListenAndServe()
}

// StartTLS begins serving with TLS
func (s *Server) StartTLS(certFile, keyFile string) error {
	s.logServerInfo("https")
	return s.httpServer.ListenAndServeTLS(certFile, keyFile)
}

func (s *Server) logServerInfo(protocol string) {
	Logger.Info().
		Str("address", s.config.Address).
		Str("protocol", protocol).
		Msg("Solana bridge server starting")

	Logger.Info().Msg("Available endpoints:")
	Logger.Info().Msg("\tCalls: POST /bridge/{method}")
	Logger.Info().Msg("\tEvents: GET /bridge/events")
	Logger.Info().Msg("\tHealth: /server/health")
	Logger.Info().Msg("\tReady: /server/ready")
	if s.config.EnableMetrics {
		Logger.Info().Msg("\tMetrics: /server/metrics")
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	Logger.Info().Msg("Shutting down bridge server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		Logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	if s.otelShutdown != nil {
		if err := s.otelShutdown(ctx); err != nil {
			Logger.Error().Err(err).Msg("Error shutting down OpenTelemetry")
			return err
		}
	}

	Logger.Info().Msg("Server shutdown complete")
	return nil
}
