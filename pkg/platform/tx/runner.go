package tx

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Runner executes fn as one atomic unit of work. Implementations wrap a
// database transaction or, in-memory, a coarse lock.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PgxRunner runs functions inside a pgx transaction. Stores reached through
// the derived context join the transaction via From.
type PgxRunner struct {
	pool *pgxpool.Pool
}

func NewPgxRunner(pool *pgxpool.Pool) *PgxRunner {
	return &PgxRunner{pool: pool}
}

func (r *PgxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Nested calls join the outer transaction; the outer caller commits.
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}

	txn, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	if err := fn(WithTx(ctx, txn)); err != nil {
		_ = txn.Rollback(ctx)
		return err
	}
	return txn.Commit(ctx)
}

// MemoryRunner serializes units of work behind one mutex. It backs unit tests
// where memory stores stand in for PostgreSQL; the coarse lock gives the same
// no-interleaving guarantee row locks give the real store.
type MemoryRunner struct {
	mu sync.Mutex
}

func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if held, ok := ctx.Value(memoryTxKey).(bool); ok && held {
		return fn(ctx)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(context.WithValue(ctx, memoryTxKey, true))
}

type memoryKey struct{}

var memoryTxKey = memoryKey{}
