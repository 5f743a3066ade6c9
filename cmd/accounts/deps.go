// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"

	goredis "github.com/redis/go-redis/v9"

	"github.com/holomush/accounts/internal/auth/postgres"
	"github.com/holomush/accounts/internal/auth/redis"
	"github.com/holomush/accounts/internal/config"
	"github.com/holomush/accounts/internal/notify"
	"github.com/holomush/accounts/internal/observability"
	"github.com/holomush/accounts/internal/store"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ConfigLoader builds the effective configuration.
	// Default: config.Load
	ConfigLoader func(opts config.LoadOptions) (*config.Config, error)

	// DatabaseConnector opens the connection pool.
	// Default: store.Connect
	DatabaseConnector func(ctx context.Context, url string, opts store.ConnectOptions) (Database, error)

	// MigratorFactory creates a schema migrator.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)

	// RedisConnector connects to the revocation denylist.
	// Default: redis.Connect
	RedisConnector func(ctx context.Context, url string) (goredis.UniversalClient, error)

	// NotifierFactory builds the email transport.
	// Default: newNotifier
	NotifierFactory func(cfg config.MailConfig, logger *slog.Logger) (notify.Notifier, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// ListenerFactory creates the API listener.
	// Default: net.Listen
	ListenerFactory func(network, address string) (net.Listener, error)

	// LogWriter receives structured logs.
	// Default: os.Stderr
	LogWriter io.Writer
}

func (d *ServeDeps) withDefaults() *ServeDeps {
	out := ServeDeps{}
	if d != nil {
		out = *d
	}
	if out.ConfigLoader == nil {
		out.ConfigLoader = config.Load
	}
	if out.DatabaseConnector == nil {
		out.DatabaseConnector = func(ctx context.Context, url string, opts store.ConnectOptions) (Database, error) {
			return store.Connect(ctx, url, opts)
		}
	}
	if out.MigratorFactory == nil {
		out.MigratorFactory = newMigrator
	}
	if out.RedisConnector == nil {
		out.RedisConnector = func(ctx context.Context, url string) (goredis.UniversalClient, error) {
			return redis.Connect(ctx, url)
		}
	}
	if out.NotifierFactory == nil {
		out.NotifierFactory = newNotifier
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if out.ListenerFactory == nil {
		out.ListenerFactory = net.Listen
	}
	if out.LogWriter == nil {
		out.LogWriter = os.Stderr
	}
	return &out
}

// Database is the pool surface serve uses.
type Database interface {
	postgres.Querier
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Pending() ([]uint, error)
	Close() error
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

func newMigrator(url string) (Migrator, error) {
	return store.NewMigrator(url)
}

// newNotifier selects the email transport named by cfg.Transport.
func newNotifier(cfg config.MailConfig, logger *slog.Logger) (notify.Notifier, error) {
	switch cfg.Transport {
	case config.TransportSMTP:
		return notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.Sender,
		})
	case config.TransportSendGrid:
		return notify.NewSendGridNotifier(cfg.SendGridAPIKey, cfg.Sender)
	default:
		return notify.NewLogNotifier(logger), nil
	}
}
