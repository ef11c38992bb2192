package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"govbook/pkg/platform/circuit"
)

// probeAfterSkips is how many sends are short-circuited while the breaker is
// open before a single probe is let through to test recovery.
const probeAfterSkips = 5

// GuardedChannel wraps a delivery channel with a circuit breaker. When the
// downstream provider is failing, sends fail fast and rows stay queued for
// the next sweep instead of hammering a dead endpoint. An occasional probe
// is let through so the circuit can close once the provider recovers.
type GuardedChannel struct {
	inner   Channel
	breaker *circuit.Breaker
	logger  *slog.Logger
	skipped atomic.Int64
}

func Guard(inner Channel, breaker *circuit.Breaker, logger *slog.Logger) *GuardedChannel {
	return &GuardedChannel{inner: inner, breaker: breaker, logger: logger}
}

func (g *GuardedChannel) Name() string { return g.inner.Name() }

func (g *GuardedChannel) Send(ctx context.Context, email, phone string, n Notification) error {
	if g.breaker.IsOpen() && g.skipped.Add(1)%(probeAfterSkips+1) != 0 {
		return fmt.Errorf("channel %s: %w", g.inner.Name(), circuit.ErrOpen)
	}

	if err := g.inner.Send(ctx, email, phone, n); err != nil {
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.logger.WarnContext(ctx, "notification channel circuit opened",
				"channel", g.inner.Name(), "error", err)
		}
		return err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.skipped.Store(0)
		g.logger.InfoContext(ctx, "notification channel recovered", "channel", g.inner.Name())
	}
	return nil
}
