// Package postgres persists audit entries using the transactional outbox
// pattern. Each entry lands in audit_logs for querying and in the outbox table
// for the relay worker to publish to Kafka; both inserts share the caller's
// transaction so audit and state mutation commit atomically.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	audit "govbook/pkg/platform/audit"
	txcontext "govbook/pkg/platform/tx"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) q(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.pool
}

// outboxPayload is the JSON structure published to Kafka. Field names are part
// of the consumer contract.
type outboxPayload struct {
	ID        string          `json:"id"`
	ActorID   int64           `json:"actor_id,omitempty"`
	Action    string          `json:"action"`
	Table     string          `json:"table"`
	RecordID  int64           `json:"record_id"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Timestamp string          `json:"timestamp"`
}

// Append writes one audit row plus its outbox entry.
func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	q := s.q(ctx)

	var actorID *int64
	if entry.ActorID != 0 {
		actorID = &entry.ActorID
	}

	_, err := q.Exec(ctx, `
		INSERT INTO audit_logs (user_id, action, table_name, record_id, old_values, new_values, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, actorID, string(entry.Action), entry.Table, entry.RecordID,
		nullableJSON(entry.Before), nullableJSON(entry.After),
		entry.IP, entry.UserAgent, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}

	eventID := uuid.New()
	payload, err := json.Marshal(outboxPayload{
		ID:        eventID.String(),
		ActorID:   entry.ActorID,
		Action:    string(entry.Action),
		Table:     entry.Table,
		RecordID:  entry.RecordID,
		Before:    entry.Before,
		After:     entry.After,
		RequestID: entry.RequestID,
		Timestamp: entry.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO audit_outbox (id, aggregate_table, aggregate_id, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, eventID, entry.Table, entry.RecordID, string(entry.Action), payload, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByRecord returns the trail for one entity row, oldest first.
func (s *Store) ListByRecord(ctx context.Context, table string, recordID int64) ([]audit.Entry, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT COALESCE(user_id, 0), action, table_name, record_id,
			   COALESCE(old_values, ''), COALESCE(new_values, ''),
			   COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
		FROM audit_logs
		WHERE table_name = $1 AND record_id = $2
		ORDER BY created_at ASC, id ASC
	`, table, recordID)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListRecent returns the N most recent entries.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Entry, error) {
	rows, err := s.q(ctx).Query(ctx, `
		SELECT COALESCE(user_id, 0), action, table_name, record_id,
			   COALESCE(old_values, ''), COALESCE(new_values, ''),
			   COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// PurgeOlderThan deletes entries past the retention threshold. This is the
// only delete path into audit_logs and runs from the sweeper, never from
// request handling.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.q(ctx).Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit logs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanEntries(rows pgx.Rows) ([]audit.Entry, error) {
	var entries []audit.Entry
	for rows.Next() {
		var (
			e             audit.Entry
			action        string
			before, after string
		)
		if err := rows.Scan(&e.ActorID, &action, &e.Table, &e.RecordID,
			&before, &after, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.Action = audit.Action(action)
		if before != "" {
			e.Before = json.RawMessage(before)
		}
		if after != "" {
			e.After = json.RawMessage(after)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return entries, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
