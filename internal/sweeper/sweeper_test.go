package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	cutoffs []time.Time
	purged  int64
	err     error
}

func (f *fakePurger) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.purged, f.err
}

type fakeCleaner struct {
	cutoffs []time.Time
	err     error
}

func (f *fakeCleaner) DeleteReadOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 0, f.err
}

func TestSweepOncePurgesBothStores(t *testing.T) {
	audits := &fakePurger{purged: 12}
	notes := &fakeCleaner{}
	s := New(audits, notes, time.Hour, 365*24*time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s.SweepOnce(context.Background())

	require.Len(t, audits.cutoffs, 1)
	require.Len(t, notes.cutoffs, 1)
	require.WithinDuration(t, time.Now().Add(-365*24*time.Hour), audits.cutoffs[0], time.Minute)
}

func TestSweepOnceSkipsAuditPurgeWithoutRetention(t *testing.T) {
	audits := &fakePurger{}
	notes := &fakeCleaner{}
	s := New(audits, notes, time.Hour, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s.SweepOnce(context.Background())

	require.Empty(t, audits.cutoffs)
	require.Len(t, notes.cutoffs, 1)
}

func TestSweepOnceToleratesFailures(t *testing.T) {
	audits := &fakePurger{err: errors.New("pg down")}
	notes := &fakeCleaner{err: errors.New("pg down")}
	s := New(audits, notes, time.Hour, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Must not panic; the next tick retries.
	s.SweepOnce(context.Background())
	require.Len(t, audits.cutoffs, 1)
	require.Len(t, notes.cutoffs, 1)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := New(&fakePurger{}, &fakeCleaner{}, time.Hour, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.Run(ctx), context.Canceled)
}
