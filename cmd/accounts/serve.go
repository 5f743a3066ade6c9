// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/accounts/internal/auth"
	"github.com/holomush/accounts/internal/auth/postgres"
	"github.com/holomush/accounts/internal/auth/redis"
	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/logging"
	"github.com/holomush/accounts/internal/notify"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/internal/store"
	"github.com/holomush/accounts/internal/web"
	"github.com/holomush/accounts/pkg/errutil"
)

const readinessPingTimeout = 2 * time.Second

// shutdownBudgets bounds each graceful shutdown phase independently.
type shutdownBudgets struct {
	http          time.Duration
	mailDrain     time.Duration
	observability time.Duration
}

var defaultShutdownBudgets = shutdownBudgets{
	http:          10 * time.Second,
	mailDrain:     30 * time.Second,
	observability: 5 * time.Second,
}

// drainer waits for in-flight background work.
type drainer interface {
	Wait(ctx context.Context) error
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the account HTTP API. Configuration is read from flags,
environment variables, an optional .env file and the --config file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

// runServeWithDeps runs the service until ctx ends or a signal arrives.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()

	cfg, err := deps.ConfigLoader(config.LoadOptions{
		ConfigFile: configFileFlag(cmd),
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return oops.With("operation", "load config").Wrap(err)
	}

	logger := logging.New("accounts", version, logging.Options{
		Format: cfg.LogFormat,
		Level:  slog.LevelInfo,
		Writer: deps.LogWriter,
	})
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting accounts service",
		"addr", cfg.Addr(),
		"environment", cfg.Environment,
		"mail_transport", cfg.Mail.Transport,
	)

	if cfg.AutoMigrate {
		if err := autoMigrate(deps, cfg.DatabaseURL, logger); err != nil {
			return err
		}
	}

	db, err := deps.DatabaseConnector(ctx, cfg.DatabaseURL, store.ConnectOptions{Logger: logger})
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer db.Close()
	logger.Info("connected to database")

	// Metrics exist even without a listener so instrumentation stays unconditional.
	var obsServer ObservabilityServer
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), readinessPingTimeout)
			defer cancel()
			return db.Ping(pingCtx) == nil
		})
		metrics = obsServer.Metrics()
	}

	notifier, err := deps.NotifierFactory(cfg.Mail, logger)
	if err != nil {
		return oops.Code("MAIL_SETUP_FAILED").With("transport", cfg.Mail.Transport).Wrap(err)
	}
	dispatcher := notify.NewDispatcher(notifier,
		notify.WithLogger(logger),
		notify.WithDeliveryCounter(metrics.EmailDeliveries),
	)

	var revoker auth.TokenRevoker
	if cfg.RedisURL != "" {
		client, err := deps.RedisConnector(ctx, cfg.RedisURL)
		if err != nil {
			return oops.With("operation", "connect to redis").Wrap(err)
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("error closing redis client", "error", closeErr)
			}
		}()
		revoker = redis.NewRevoker(client)
		logger.Info("logout revocation enabled")
	}

	svc, err := buildService(cfg, postgres.NewUserRepository(db), dispatcher, revoker, logger)
	if err != nil {
		return err
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := web.NewRouter(svc, web.RouterConfig{
		Production:  cfg.IsProduction(),
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
		Metrics:     metrics,
	})

	listener, err := deps.ListenerFactory("tcp", cfg.Addr())
	if err != nil {
		return oops.Code("LISTEN_FAILED").With("addr", cfg.Addr()).Wrap(err)
	}
	httpServer := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if obsServer != nil {
		obsErrChan, err := obsServer.Start()
		if err != nil {
			_ = listener.Close()
			return oops.With("operation", "start observability server").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	httpErrChan := make(chan error, 1)
	go func() {
		defer close(httpErrChan)
		if serveErr := httpServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrChan <- serveErr
		}
	}()
	go monitorServerErrors(ctx, cancel, httpErrChan, "http")

	cmd.Println("accounts service started")
	logger.Info("http server listening", "addr", listener.Addr().String())

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdown(logger, httpServer, dispatcher, obsServer, defaultShutdownBudgets)

	logger.Info("shutdown complete")
	if cause := context.Cause(ctx); errutil.HasCode(cause, "SERVER_FAILED") {
		return cause
	}
	return nil
}

// shutdown stops the HTTP server, drains pending mail, then stops the
// observability server. Each phase gets a fresh deadline.
func shutdown(logger *slog.Logger, httpServer *http.Server, mail drainer, obsServer ObservabilityServer, budgets shutdownBudgets) {
	httpCtx, httpCancel := context.WithTimeout(context.Background(), budgets.http)
	defer httpCancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), budgets.mailDrain)
	defer drainCancel()
	if err := mail.Wait(drainCtx); err != nil {
		logger.Warn("pending email not delivered before shutdown", "error", err)
	}

	if obsServer == nil {
		return
	}
	obsCtx, obsCancel := context.WithTimeout(context.Background(), budgets.observability)
	defer obsCancel()
	if err := obsServer.Stop(obsCtx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

func buildService(cfg *config.Config, users auth.UserRepository, mailer auth.Mailer, revoker auth.TokenRevoker, logger *slog.Logger) (*auth.Service, error) {
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)

	tokens, err := auth.NewTokenIssuer([]byte(cfg.JWTSecret), auth.WithTokenTTL(cfg.SessionTTL))
	if err != nil {
		return nil, oops.With("operation", "create token issuer").Wrap(err)
	}

	otps, err := auth.NewOTPManager(users, hasher, mailer, auth.WithOTPTTL(cfg.OTPTTL))
	if err != nil {
		return nil, oops.With("operation", "create otp manager").Wrap(err)
	}

	svc, err := auth.NewService(auth.ServiceDeps{
		Users:   users,
		Hasher:  hasher,
		Tokens:  tokens,
		OTPs:    otps,
		Mailer:  mailer,
		Revoker: revoker,
		Logger:  logger,
	})
	if err != nil {
		return nil, oops.With("operation", "create auth service").Wrap(err)
	}
	return svc, nil
}

func autoMigrate(deps *ServeDeps, databaseURL string, logger *slog.Logger) error {
	migrator, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	version, _, err := migrator.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read schema version").Wrap(err)
	}
	logger.Info("schema up to date", "version", version)
	return nil
}

// monitorServerErrors cancels ctx with a SERVER_FAILED cause when a server
// reports an error. It exits when the channel closes or ctx ends.
func monitorServerErrors(ctx context.Context, cancel context.CancelCauseFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel(oops.Code("SERVER_FAILED").With("server", serverName).Wrap(err))
		}
	case <-ctx.Done():
	}
}
