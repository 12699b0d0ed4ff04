// Package session persists per-user dialogue state. The store contract is
// get-or-create on load, last-writer-wins upsert on save; durability across
// process restarts is the reason the primary implementation is Postgres.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/maxexpress/maxbot/bot/flow"
)

// ErrUnavailable wraps connectivity failures of the backing store. The
// dispatch engine treats it as transient: the current event degrades to a
// fresh idle session instead of failing the update.
var ErrUnavailable = errors.New("session store unavailable")

// Session is one user's dialogue position.
type Session struct {
	UserID    int64
	State     flow.State
	Data      flow.Data
	UpdatedAt time.Time
}

// New returns a fresh idle session for the user.
func New(userID int64) Session {
	return Session{UserID: userID, State: flow.StateIdle}
}

// Store is the durable session mapping.
//
// Load never fails on a missing row: it materializes a fresh idle session
// instead. Save upserts by user id. Delete removes the row on explicit
// user resets.
type Store interface {
	Load(ctx context.Context, userID int64) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, userID int64) error
}
