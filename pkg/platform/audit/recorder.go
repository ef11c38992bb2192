// Package audit appends an immutable record of every mutating decision the
// booking, state machine, and cascade code paths make. Appends happen inside
// the caller's transaction: a failed append fails the whole operation, it
// never degrades to "succeeded without audit".
package audit

import (
	"context"

	"govbook/pkg/requestcontext"
)

// Store persists audit entries. The postgres implementation joins the
// transaction carried in ctx; the memory implementation backs unit tests.
type Store interface {
	Append(ctx context.Context, entry Entry) error
}

// Recorder enriches entries with request metadata before appending. It is the
// single write path into the audit trail.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record fills actor identity, timestamp, and request metadata from context,
// then appends. Cascades call this once per affected row, parent first.
func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = requestcontext.Now(ctx)
	}
	if entry.ActorID == 0 {
		entry.ActorID = requestcontext.Actor(ctx).UserID
	}
	if entry.IP == "" {
		entry.IP = requestcontext.ClientIP(ctx)
	}
	if entry.UserAgent == "" {
		entry.UserAgent = requestcontext.UserAgent(ctx)
	}
	if entry.RequestID == "" {
		entry.RequestID = requestcontext.RequestID(ctx)
	}
	return r.store.Append(ctx, entry)
}
