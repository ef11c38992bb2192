// Package worker relays committed audit outbox entries to Kafka. Entries are
// claimed with SKIP LOCKED so multiple replicas can relay concurrently without
// double-publishing under normal operation; consumers must still tolerate
// redelivery after a crash between produce and mark.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sink publishes one relayed payload. Satisfied by publisher.Publisher.
type Sink interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

type Worker struct {
	pool     *pgxpool.Pool
	sink     Sink
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func New(pool *pgxpool.Pool, sink Sink, logger *slog.Logger, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Worker{pool: pool, sink: sink, logger: logger, interval: interval, batch: 100}
}

// Run relays until ctx is cancelled. Relay errors are logged and retried on
// the next tick; they never propagate into request handling.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := w.relayBatch(ctx); err != nil {
				w.logger.ErrorContext(ctx, "audit outbox relay failed", "error", err)
			} else if n > 0 {
				w.logger.DebugContext(ctx, "relayed audit events", "count", n)
			}
		}
	}
}

func (w *Worker) relayBatch(ctx context.Context) (int, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin relay tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_table, aggregate_id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, w.batch)
	if err != nil {
		return 0, fmt.Errorf("claim outbox entries: %w", err)
	}

	type pending struct {
		id      uuid.UUID
		key     string
		payload []byte
	}
	var claimed []pending
	for rows.Next() {
		var (
			p     pending
			table string
			recID int64
		)
		if err := rows.Scan(&p.id, &table, &recID, &p.payload); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox entry: %w", err)
		}
		p.key = fmt.Sprintf("%s:%d", table, recID)
		claimed = append(claimed, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate outbox entries: %w", err)
	}
	if len(claimed) == 0 {
		return 0, nil
	}

	now := time.Now()
	for _, p := range claimed {
		if err := w.sink.Publish(ctx, p.key, p.payload); err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, `UPDATE audit_outbox SET published_at = $1 WHERE id = $2`, now, p.id); err != nil {
			return 0, fmt.Errorf("mark outbox entry published: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit relay tx: %w", err)
	}
	return len(claimed), nil
}
