package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/collegehub/internal/accounts"
	"github.com/geocoder89/collegehub/internal/auth"
	"github.com/geocoder89/collegehub/internal/config"
	"github.com/geocoder89/collegehub/internal/db"
	httpx "github.com/geocoder89/collegehub/internal/http"
	"github.com/geocoder89/collegehub/internal/http/middlewares"
	"github.com/geocoder89/collegehub/internal/observability"
	"github.com/geocoder89/collegehub/internal/redisclient"
	"github.com/geocoder89/collegehub/internal/repo/cached"
	"github.com/geocoder89/collegehub/internal/repo/protected"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const defaultJWTSecret = "dev-secret-change-me"

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if cfg.IsProd() && cfg.JWTSecret == defaultJWTSecret {
		log.Error("JWT_SECRET must be set in prod")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.TracerConfig{
		ServiceName: "collegehub-api",
		Environment: cfg.Env,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Error("tracing disabled", "err", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	store, err := openBackend(ctx, cfg, prom)
	if err != nil {
		log.Error("store setup failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}

	breaker := protected.NewUsersRepo(store.users, protected.Config{}, func(from, to string) {
		log.Warn("user store circuit changed", "from", from, "to", to)
	})
	users := cached.NewUsersRepo(breaker, 30*time.Second)

	// A store that is down at boot is logged, not fatal.
	pingCtx, cancelPing := config.WithTimeout(ctx, 3*time.Second)
	if err := users.Ping(pingCtx); err != nil {
		log.Error("user store unreachable, serving anyway", "driver", cfg.StoreDriver, "err", err)
	} else {
		log.Info("user store connected", "driver", cfg.StoreDriver)
	}
	cancelPing()

	if store.schema != nil {
		go func() {
			if err := db.RetryUntilReady(ctx, log, "user store schema", store.schema); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("user store schema not applied", "err", err)
			}
		}()
	}

	if cfg.SeedDemoUsers {
		go func() {
			seed := func(c context.Context) error { return db.SeedDemoUsers(c, users, db.DemoUsers) }
			if err := db.RetryUntilReady(ctx, log, "seed demo users", seed); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("demo users not seeded", "err", err)
			}
		}()
	}

	tokens := auth.NewManager(cfg.JWTSecret, cfg.TokenTTL())
	svc := accounts.NewService(users, tokens, log, prom)

	var (
		rateCounter middlewares.WindowCounter
		rdb         *redisclient.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		redisCtx, cancelRedis := config.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(redisCtx); err != nil {
			log.Warn("redis unreachable, rate limiter will let requests through", "addr", cfg.RedisAddr, "err", err)
		}
		cancelRedis()

		rateCounter = middlewares.NewRedisCounter(rdb, time.Minute, "collegehub:ratelimit:")
	}

	router := httpx.NewRouter(log, httpx.Deps{
		Config:      cfg,
		Accounts:    svc,
		Tokens:      tokens,
		Ready:       users.Ping,
		Prom:        prom,
		Gatherer:    reg,
		RateCounter: rateCounter,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	stop()
	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	if err := store.close(); err != nil {
		log.Error("close user store", "err", err)
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Error("close redis", "err", err)
		}
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown", "err", err)
	}

	log.Info("shutdown complete")
}
