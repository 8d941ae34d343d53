// internal/store/store.go
package store

import (
	"context"
	"errors"

	"github.com/jmulder/tunequiz/internal/models"
)

var (
	// ErrNotFound indicates a read/join against an unknown session code.
	ErrNotFound = errors.New("session not found")

	// ErrCodeExists indicates a create collided with an existing session code.
	ErrCodeExists = errors.New("session code already exists")

	// ErrUnavailable wraps transient connectivity failures of the backing
	// store. Callers may retry; a failed write never leaves a partially
	// mutated document behind.
	ErrUnavailable = errors.New("session store unavailable")
)

// SnapshotFunc receives the full session document on every change. Snapshots
// for one session arrive in order; the callback must not block for long and
// must not call back into the store.
type SnapshotFunc func(*models.Session)

// Store is the shared, replicated session document store. Update is atomic
// across all listed field paths: subscribers never observe a document with
// some of an update's fields applied and others not.
type Store interface {
	// Create stores the initial document under code. Fails with ErrCodeExists
	// if the code is already taken.
	Create(ctx context.Context, code string, doc *models.Session) error

	// Read returns the current document, or ErrNotFound.
	Read(ctx context.Context, code string) (*models.Session, error)

	// Update applies the given field map as one atomic write. Keys are
	// dot-separated field paths into the JSON document, e.g.
	// "activeRound.guesses.p42"; a nil value deletes the field.
	Update(ctx context.Context, code string, fields map[string]any) error

	// Subscribe registers fn for snapshot delivery. The current document (if
	// any) is delivered first, then every subsequent change, at least once
	// and in order. The returned function cancels the subscription.
	Subscribe(ctx context.Context, code string, fn SnapshotFunc) (func(), error)
}
