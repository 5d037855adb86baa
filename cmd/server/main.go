package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sellerledger/fee-engine/internal/api"
	"github.com/sellerledger/fee-engine/internal/engine"
	"github.com/sellerledger/fee-engine/internal/metrics"
	"github.com/sellerledger/fee-engine/internal/rates"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	resolveTimeout := 10 * time.Second
	if v := os.Getenv("RESOLVE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			resolveTimeout = d
		}
	}

	// --- Initialize rate repository ---
	var repo rates.RateRepository
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		repo = rates.NewPostgresRepository(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })

			ttl := 5 * time.Minute
			if v := os.Getenv("CACHE_TTL"); v != "" {
				if d, err := time.ParseDuration(v); err == nil {
					ttl = d
				}
			}
			repo = rates.NewCachedRepository(repo, rdb, ttl)
			slog.Info("Redis rate-table cache enabled", "ttl", ttl.String())
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory rate tables with demo data")
		mem := rates.NewMemoryRepository()
		rates.SeedDemoRates(mem)
		repo = mem
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Engine and audit feed ---
	eng := engine.New(repo)

	hub := api.NewAuditHub()
	go hub.Run()

	svc := api.NewService(eng, repo, hub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(resolveTimeout))
	r.Use(metrics.Middleware)

	// CORS middleware for dashboard cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"fee-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket audit feed for fee-auditing dashboards.
		r.Get("/ws", hub.HandleWS)

		// Fee resolution.
		r.Post("/fees/resolve", svc.ResolveFees)

		// Rate-table diagnostics.
		r.Get("/tiers", svc.ListTiers)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("fee-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down fee-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("fee-engine stopped")
}
