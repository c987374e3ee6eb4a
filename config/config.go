// Package config holds the server settings, read from command-line flags
// with environment variable fallbacks.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli"

	"loan-rpsn/solver"
)

// Config holds all configuration for the RPSN server.
type Config struct {
	HTTPAddr        string
	RedisAddr       string // empty selects the in-process cache
	CacheTTL        time.Duration
	LogLevel        string
	LogFormat       string
	Solver          solver.Strategy
	RateLimit       int // requests per window and client; 0 disables limiting
	RateLimitWindow time.Duration
	ShutdownTimeout time.Duration
}

var (
	httpAddrFlag        = cli.StringFlag{Name: "http-addr", Value: ":8080", Usage: "address the HTTP server listens on", EnvVar: "HTTP_ADDR"}
	redisAddrFlag       = cli.StringFlag{Name: "redis-addr", Usage: "Redis address for the RPSN cache, in-memory cache when empty", EnvVar: "REDIS_ADDR"}
	cacheTTLFlag        = cli.DurationFlag{Name: "cache-ttl", Value: 24 * time.Hour, Usage: "how long a computed RPSN stays cached", EnvVar: "CACHE_TTL"}
	logLevelFlag        = cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error", EnvVar: "LOG_LEVEL"}
	logFormatFlag       = cli.StringFlag{Name: "log-format", Value: "json", Usage: "json or text", EnvVar: "LOG_FORMAT"}
	solverFlag          = cli.StringFlag{Name: "solver", Value: string(solver.StrategyBisection), Usage: "RPSN solver: bisection or linear", EnvVar: "RPSN_SOLVER"}
	rateLimitFlag       = cli.IntFlag{Name: "rate-limit", Value: 60, Usage: "requests per window and client, 0 to disable", EnvVar: "RATE_LIMIT"}
	rateLimitWindowFlag = cli.DurationFlag{Name: "rate-limit-window", Value: time.Minute, Usage: "rate limit window", EnvVar: "RATE_LIMIT_WINDOW"}
	shutdownFlag        = cli.DurationFlag{Name: "shutdown-timeout", Value: 10 * time.Second, Usage: "grace period for in-flight requests", EnvVar: "SHUTDOWN_TIMEOUT"}
)

// Flags lists the flags FromContext reads.
func Flags() []cli.Flag {
	return []cli.Flag{
		httpAddrFlag,
		redisAddrFlag,
		cacheTTLFlag,
		logLevelFlag,
		logFormatFlag,
		solverFlag,
		rateLimitFlag,
		rateLimitWindowFlag,
		shutdownFlag,
	}
}

func FromContext(cctx *cli.Context) Config {
	return Config{
		HTTPAddr:        cctx.String(httpAddrFlag.Name),
		RedisAddr:       cctx.String(redisAddrFlag.Name),
		CacheTTL:        cctx.Duration(cacheTTLFlag.Name),
		LogLevel:        cctx.String(logLevelFlag.Name),
		LogFormat:       cctx.String(logFormatFlag.Name),
		Solver:          solver.Strategy(strings.ToLower(cctx.String(solverFlag.Name))),
		RateLimit:       cctx.Int(rateLimitFlag.Name),
		RateLimitWindow: cctx.Duration(rateLimitWindowFlag.Name),
		ShutdownTimeout: cctx.Duration(shutdownFlag.Name),
	}
}

var (
	logLevels  = []string{"debug", "info", "warn", "warning", "error"}
	logFormats = []string{"json", "text"}
)

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address must be set"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache ttl must be positive, got %s", c.CacheTTL))
	}
	if !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	if !slices.Contains(logFormats, strings.ToLower(c.LogFormat)) {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if !solver.IsKnown(c.Solver) {
		errs = append(errs, fmt.Errorf("unknown solver %q", c.Solver))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate limit must not be negative, got %d", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("rate limit window must be positive, got %s", c.RateLimitWindow))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout))
	}
	return errors.Join(errs...)
}
