// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/holomush/accounts/pkg/errutil"
)

// DefaultSendTimeout bounds a single delivery attempt.
const DefaultSendTimeout = 30 * time.Second

// Delivery outcomes reported to the deliveries counter.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Dispatcher sends messages in the background.
type Dispatcher struct {
	notifier   Notifier
	logger     *slog.Logger
	timeout    time.Duration
	deliveries *prometheus.CounterVec
	wg         sync.WaitGroup
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSendTimeout overrides DefaultSendTimeout.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDeliveryCounter records each delivery under an "outcome" label.
func WithDeliveryCounter(counter *prometheus.CounterVec) DispatcherOption {
	return func(d *Dispatcher) {
		d.deliveries = counter
	}
}

// NewDispatcher creates a Dispatcher over notifier.
func NewDispatcher(notifier Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		logger:   slog.Default(),
		timeout:  DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends msg on a new goroutine and returns immediately.
func (d *Dispatcher) Dispatch(msg Message) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.send(msg)
	}()
}

func (d *Dispatcher) send(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Send(ctx, msg); err != nil {
		errutil.LogErrorContext(ctx, d.logger, "email delivery failed", err,
			"to", msg.To,
			"subject", msg.Subject,
		)
		d.record(OutcomeFailed)
		return
	}
	d.record(OutcomeSent)
}

func (d *Dispatcher) record(outcome string) {
	if d.deliveries != nil {
		d.deliveries.WithLabelValues(outcome).Inc()
	}
}

// Wait blocks until every dispatched message has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return oops.Code("NOTIFY_DRAIN_TIMEOUT").Wrap(ctx.Err())
	}
}
