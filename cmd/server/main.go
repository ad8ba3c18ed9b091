package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-daybook/internal/config"
	"github.com/jrsteele09/go-daybook/ratelimit"
	"github.com/jrsteele09/go-daybook/server"
	"github.com/jrsteele09/go-daybook/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-daybook/token/refresh/repofake"
	fakeuserrepo "github.com/jrsteele09/go-daybook/users/repofake"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "daybook:"

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c.GetEnv())
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repos, closeRepos, err := newRepos(ctx, c)
	if err != nil {
		return err
	}
	defer closeRepos()

	if email := config.GetEnv("SEED_EMAIL", ""); email != "" {
		if _, err := server.SeedUser(repos.Users, email, config.GetEnv("SEED_USERNAME", "demo"), config.GetEnv("SEED_PASSWORD", "")); err != nil {
			return err
		}
	}

	handler, err := server.New(c, repos)
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(srv) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

// newRepos uses Redis for the refresh tokens and rate limit buckets when
// REDIS_ADDR is set, so that several server instances share them. Users are
// always held in memory.
func newRepos(ctx context.Context, c config.Config) (server.Repos, func(), error) {
	userRepo := fakeuserrepo.NewFakeUserRepo()
	repos := server.Repos{Users: userRepo, ResetTokens: userRepo}

	if addr := c.GetRedisAddr(); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return server.Repos{}, nil, fmt.Errorf("redis ping %s: %w", addr, err)
		}
		log.Info().Str("addr", addr).Msg("using redis for sessions and rate limits")
		repos.RefreshTokens = refresh.NewRedisRepo(rdb, redisKeyPrefix)
		repos.RateLimits = ratelimit.NewRedisStore(rdb, redisKeyPrefix)
		return repos, func() { _ = rdb.Close() }, nil
	}

	log.Warn().Msg("REDIS_ADDR not set, sessions and rate limits are process local")
	buckets := ratelimit.NewMemoryStore()
	buckets.StartSweeper(ctx, c.GetRateLimitSweepInterval())
	repos.RefreshTokens = refreshrepofake.NewFakeRefreshTokenRepo()
	repos.RateLimits = buckets
	return repos, func() {}, nil
}

func setupLogging(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "DEV" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
