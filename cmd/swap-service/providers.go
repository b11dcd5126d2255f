package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"solswap/pkg/config"
	"solswap/pkg/jupiter"
	"solswap/pkg/metrics"
	"solswap/pkg/swap"
)

func newLogger(cfg config.Service) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = level
	return zc.Build()
}

func newJupiterClient(cfg config.Service) *jupiter.Client {
	return jupiter.NewClient(jupiter.Options{
		BaseURL:      cfg.Jupiter.BaseURL,
		QuoteTimeout: cfg.Jupiter.QuoteTimeout,
		SwapTimeout:  cfg.Jupiter.SwapTimeout,
		RateLimit:    cfg.Jupiter.RateLimit,
	})
}

func newExecutor(cfg config.Service, logger *zap.Logger, client *jupiter.Client, m *metrics.Swap) *swap.Executor {
	return swap.NewExecutor(logger, client, swap.NewSubmitterFactory(cfg.Submit), m)
}

// NewServeMux routes the swap endpoint plus health and metrics.
func NewServeMux(swapHandler *swap.Handler, m *metrics.Swap) *http.ServeMux {
	health := newHealthHandler(time.Now())

	mux := http.NewServeMux()
	mux.Handle("/swap", swapHandler)
	mux.Handle("/{$}", swapHandler)
	mux.Handle("GET /health", health)
	mux.Handle("GET /metrics", m.Handler())
	return mux
}

func NewHttpServer(lc fx.Lifecycle, cfg config.Service, mux *http.ServeMux, logger *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: withMiddleware(mux, logger),
		// The handler's own outbound timeouts (quote, build, submit) must fit.
		WriteTimeout: cfg.Jupiter.QuoteTimeout + cfg.Jupiter.SwapTimeout + cfg.Submit.Timeout + 5*time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("starting HTTP server",
				zap.String("addr", srv.Addr),
				zap.String("jupiter", cfg.Jupiter.BaseURL),
				zap.String("submit_via", cfg.Submit.Via),
			)
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return srv.Shutdown(ctx)
		},
	})

	return srv
}

func withMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger}),
		handlers.PrintRecoveryStack(false),
	)
	withCORS := cors(next)
	return recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only browser preflights belong to the CORS layer; any other OPTIONS
		// reaches the routes and gets their 405.
		if r.Method == http.MethodOptions && !isPreflight(r) {
			next.ServeHTTP(w, r)
			return
		}
		withCORS.ServeHTTP(w, r)
	}))
}

func isPreflight(r *http.Request) bool {
	return r.Header.Get("Origin") != "" && r.Header.Get("Access-Control-Request-Method") != ""
}

// recoveryLogger adapts zap to handlers.RecoveryHandlerLogger.
type recoveryLogger struct {
	*zap.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.Error("recovered from panic", zap.String("panic", fmt.Sprint(v...)))
}

type healthHandler struct {
	started time.Time
}

func newHealthHandler(started time.Time) healthHandler {
	return healthHandler{started: started}
}

func (h healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status: "healthy",
		Uptime: time.Since(h.started).Round(time.Second).String(),
	})
}
