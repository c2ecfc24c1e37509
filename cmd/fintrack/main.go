package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/services"
)

// Gate lookups hit the store on every authenticated request.
const (
	userCacheSize  = 1024
	userCacheTTL   = 30 * time.Second
	// userCacheSweep bounds how long expired entries stay resident.
	userCacheSweep = time.Minute
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(nil))
	logger := cli.SetupLogger(cfg)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	m := metrics.New()
	directory := cache.NewDirectory(result.Store, userCacheSize, userCacheTTL)
	gate := auth.NewGate(tokens, directory, cfg.AuthPublicPrefix, logger,
		auth.WithObserver(m.ObserveAuthOutcome))

	limit := ratelimit.DefaultConfig()
	limit.RequestsPerSecond = cfg.RateLimitRPS
	limit.Burst = cfg.RateLimitBurst

	srv := apphttp.NewServer(apphttp.Options{
		Addr:         net.JoinHostPort("", cfg.Port),
		Transactions: services.NewTransactionService(result.Store, result.Store, result.Events, logger),
		Accounts:     services.NewAccountService(result.Store, auth.NewPasswordHasher(0), tokens, logger),
		Gate:         gate,
		Ready:        result.Store,
		Metrics:      m,
		RateLimit:    limit,
		ClientIP:     security.NewClientIPResolver(),
		Logger:       logger,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting fintrack server",
			log.FieldOperation, log.OpStartup, "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		directory.Run(gctx, userCacheSweep, logger)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")
		return cli.GracefulShutdown(logger, cfg.ShutdownTimeout,
			cli.ShutdownStep{Name: "http", Run: srv.Shutdown},
			cli.ShutdownStep{Name: "backend", Run: func(context.Context) error { return result.Cleanup() }},
		)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
