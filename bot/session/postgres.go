package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/maxexpress/maxbot/bot/flow"
	"github.com/maxexpress/maxbot/core/logger"
)

const sessionComponent = "service.sessions"

// PostgresStore persists sessions in the sessions table. A row per user,
// state tag as text, payload as JSONB.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type sessionRow struct {
	UserID    int64     `db:"user_id"`
	State     string    `db:"state"`
	Data      []byte    `db:"data"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Load returns the stored session or a fresh idle one when no row exists.
// Connectivity failures surface as ErrUnavailable.
func (s *PostgresStore) Load(ctx context.Context, userID int64) (Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT user_id, state, data, updated_at FROM sessions WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return New(userID), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("%w: load user %d: %v", ErrUnavailable, userID, err)
	}

	sess := Session{
		UserID:    row.UserID,
		State:     flow.State(row.State),
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &sess.Data); err != nil {
			// Corrupt payload: start the user over rather than failing forever.
			logger.Warn(ctx, sessionComponent, "session.payload.corrupt",
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
			return New(userID), nil
		}
	}
	return sess, nil
}

// Save upserts the session, last writer wins.
func (s *PostgresStore) Save(ctx context.Context, sess Session) error {
	payload, err := json.Marshal(sess.Data)
	if err != nil {
		return fmt.Errorf("encode session payload: %w", err)
	}
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (user_id, state, data, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id) DO UPDATE
		 SET state = EXCLUDED.state, data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		sess.UserID, string(sess.State), payload, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: save user %d: %v", ErrUnavailable, sess.UserID, err)
	}

	logger.Debug(ctx, sessionComponent, "session.saved",
		slog.Int64("user_id", sess.UserID),
		slog.String("state", string(sess.State)),
	)
	return nil
}

// Delete removes the session row on an explicit user reset.
func (s *PostgresStore) Delete(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("%w: delete user %d: %v", ErrUnavailable, userID, err)
	}
	return nil
}
