package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"loan-rpsn/config"
	httpLayer "loan-rpsn/http"
	"loan-rpsn/observability"
	"loan-rpsn/repository"
	"loan-rpsn/service"
)

func main() {
	app := cli.NewApp()
	app.Name = "rpsn-server"
	app.Usage = "consumer loan installment and RPSN calculator"
	app.Flags = config.Flags()
	app.Action = func(cctx *cli.Context) error {
		cfg := config.FromContext(cctx)
		if err := cfg.Validate(); err != nil {
			return cli.NewExitError(fmt.Sprintf("invalid configuration: %v", err), 2)
		}
		return run(cfg)
	}
	app.RunAndExitOnError()
}

func run(cfg config.Config) error {
	logger := observability.InitLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	metrics := observability.NewMetrics()

	var (
		cache repository.CacheRepository
		deps  = map[string]httpLayer.Pinger{}
	)
	if cfg.RedisAddr != "" {
		redisCache := repository.NewRedisCache(cfg.RedisAddr, "loan-rpsn:")
		defer redisCache.Close()
		cache = redisCache
		deps["redis"] = redisCache
		logger.Info("using redis cache", "addr", cfg.RedisAddr)
	} else {
		cache = repository.NewMemoryCache()
		logger.Info("using in-memory cache")
	}

	loanService := service.NewLoanService(cache,
		service.WithStrategy(cfg.Solver),
		service.WithCacheTTL(cfg.CacheTTL),
		service.WithMetrics(metrics),
		service.WithLogger(logger),
	)
	termRecommendationService := service.NewTermRecommendationService(loanService)

	var rateLimiter *httpLayer.RateLimiter
	if cfg.RateLimit > 0 {
		rateLimiter = httpLayer.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)
		defer rateLimiter.Stop()
	}

	router := httpLayer.NewRouter(httpLayer.RouterConfig{
		Loan:    httpLayer.NewLoanHandler(loanService, logger),
		Term:    httpLayer.NewTermRecommendationHandler(termRecommendationService, logger),
		Health:  httpLayer.NewHealthHandler(deps, logger),
		Limiter: rateLimiter,
		Metrics: metrics,
		Logger:  logger,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.HTTPAddr, "solver", cfg.Solver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("starting server: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}

	logger.Info("server exited")
	return nil
}
