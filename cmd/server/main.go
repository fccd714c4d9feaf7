package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/rentledger/internal/api"
	"github.com/mmynk/rentledger/internal/auth"
	"github.com/mmynk/rentledger/internal/config"
	"github.com/mmynk/rentledger/internal/middleware"
	"github.com/mmynk/rentledger/internal/service"
	"github.com/mmynk/rentledger/internal/storage/sqlite"
	"github.com/mmynk/rentledger/pkg/logging"
)

func main() {
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	svc := service.NewImportService(store, service.Options{
		DefaultCommissionRate: &cfg.DefaultCommissionRate,
		ResolveWorkers:        cfg.ResolveWorkers,
		Actors:                middleware.ContextActor{Fallback: "system"},
	})

	interceptors := []connect.Interceptor{middleware.LoggingInterceptor()}
	if cfg.JWTSecret != "" {
		jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL)
		authn := middleware.RequireAuth(jwtManager)
		if cfg.Env == "development" {
			// Anonymous calls are recorded as "system".
			authn = middleware.OptionalAuth(jwtManager)
			slog.Info("Anonymous RPCs allowed", "env", cfg.Env)
		}
		interceptors = append([]connect.Interceptor{authn}, interceptors...)
	} else {
		slog.Warn("JWT_SECRET not set, RPCs are unauthenticated", "env", cfg.Env)
	}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	api.NewHandler(svc).Register(r.PathPrefix("/api/v1").Subrouter())

	importPath, importHandler := service.NewImportServiceHandler(svc, connect.WithInterceptors(interceptors...))
	r.PathPrefix(importPath).Handler(importHandler)

	// Add logging and CORS middleware
	loggedHandler := loggingMiddleware(corsMiddleware(r))

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	h2cHandler := h2c.NewHandler(loggedHandler, &http2.Server{})

	addr := ":" + cfg.Port
	slog.Info("Server starting", "address", addr, "env", cfg.Env, "url", fmt.Sprintf("http://localhost%s", addr))
	if err := http.ListenAndServe(addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

// loggingMiddleware logs all incoming requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
