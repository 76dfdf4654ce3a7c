package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/quangdang46/talent-passport/services/auth-client/internal/config"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/domain"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/infrastructure/prover"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/infrastructure/sponsor"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/infrastructure/storage"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/infrastructure/sui"
	"github.com/quangdang46/talent-passport/services/auth-client/internal/service"
	"github.com/quangdang46/talent-passport/shared/env"
	"github.com/quangdang46/talent-passport/shared/logging"
	"github.com/quangdang46/talent-passport/shared/metrics"
	"github.com/quangdang46/talent-passport/shared/recovery"
	"github.com/quangdang46/talent-passport/shared/redis"
)

var commands = []*cli.Command{
	{
		Name:  "login",
		Usage: "Sign in with the identity provider and wait for the redirect",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-wait",
				Usage: "Print the authorization URL and exit; finish with `passport callback`",
			},
		},
		Action: loginAction,
	},
	{
		Name:      "callback",
		Usage:     "Complete a login from a pasted redirect URL",
		ArgsUsage: "<url>",
		Action:    callbackAction,
	},
	{
		Name:   "whoami",
		Usage:  "Show the current session",
		Action: whoamiAction,
	},
	{
		Name:      "sign",
		Usage:     "Print the zkLogin signature for base64 transaction bytes",
		ArgsUsage: "<base64-tx>",
		Action:    signAction,
	},
	{
		Name:      "execute",
		Usage:     "Sign and submit base64 transaction bytes",
		ArgsUsage: "<base64-tx>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "sponsored",
				Usage: "Treat the input as transaction kind bytes and let the sponsorship proxy pay gas",
			},
		},
		Action: executeAction,
	},
	{
		Name:   "logout",
		Usage:  "Clear the session and any pending login",
		Action: logoutAction,
	},
	{
		Name:   "nonce",
		Usage:  "Recompute the nonce of the current session",
		Action: nonceAction,
	},
}

func main() {
	app := &cli.App{
		Name:     "passport",
		Usage:    "Talent passport zkLogin client",
		Commands: commands,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load settings from this file",
				Value: ".env",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// application holds everything a command needs
type application struct {
	cfg     *config.Config
	logger  *logging.Logger
	auth    *service.Service
	closers []func() error
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.WithError(err).Warn("Failed to release resource")
		}
	}
}

// withApp builds the application for one command and tears it down afterwards
func withApp(run func(ctx context.Context, c *cli.Context, app *application) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		env.Load(c.String("env-file"))

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := newApplication(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		return run(ctx, c, app)
	}
}

func newApplication(ctx context.Context) (*application, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	logger := logging.NewLogger(&logging.Config{
		Level:       logging.LogLevel(cfg.LogLevel),
		Service:     "passport",
		Environment: cfg.Environment,
		Version:     env.GetString("SERVICE_VERSION", "dev"),
		Output:      os.Stderr,
		PrettyLog:   cfg.Environment == "development",
	})
	if cfg.UsesDevelopmentSalt() {
		logger.Warn("Using the built-in development salt secret; set ZKLOGIN_SALT_SECRET for real accounts")
	}

	app := &application{cfg: cfg, logger: logger}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, store.Close)

	salts, err := service.NewHKDFSaltProvider(cfg.SaltSecret)
	if err != nil {
		app.Close()
		return nil, err
	}

	deps := service.Deps{
		Config:    cfg,
		Durable:   store,
		Ephemeral: store,
		Salts:     salts,
		Deriver:   service.NewZkLoginDeriver(),
		Logger:    logger,
		Rand:      rand.Reader,
	}

	if cfg.Prover.URL != "" {
		deps.Prover = prover.NewClient(cfg.Prover.URL, cfg.Prover.Timeout, logger)
	}
	if cfg.Sui.RPCURL != "" {
		chain, err := sui.Dial(ctx, cfg.Sui.RPCURL, cfg.Sui.Timeout, logger)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, func() error { chain.Close(); return nil })
		deps.Chain = chain
	}
	if cfg.SponsorProxyURL != "" {
		deps.Sponsor = sponsor.NewClient(cfg.SponsorProxyURL, cfg.Sui.Timeout, logger)
	}

	auth, err := service.NewAuthService(deps)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.auth = auth

	if cfg.MetricsAddr != "" {
		app.closers = append(app.closers, serveMetrics(cfg.MetricsAddr, logger))
	}
	return app, nil
}

// openStore returns one store used for both the session and pending logins.
// Pending logins must survive between `login --no-wait` and `callback`.
func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (domain.KeyValueStore, error) {
	switch cfg.Storage.Driver {
	case "bbolt":
		return storage.NewBBoltStore(cfg.Storage.Path, cfg.Storage.Profile, logger)
	case "redis":
		client, err := redis.NewRedis(ctx, cfg.RedisConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return storage.NewRedisStore(client, cfg.Storage.Profile), nil
	default:
		return storage.NewMemoryStore(), nil
	}
}

func serveMetrics(addr string, logger *logging.Logger) func() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	recovery.SafeGoWithContext(context.Background(), logger, func(context.Context) {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("Metrics server stopped")
		}
	})

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}

// exitCode separates operator mistakes from user-recoverable failures
func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return 78
	case errors.Is(err, domain.ErrNoSession), errors.Is(err, domain.ErrSessionExpired):
		return 3
	case domain.IsRetryable(err):
		return 75
	}
	return 1
}
