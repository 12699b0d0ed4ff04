// Package users manages registered bot accounts and their client codes.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/maxexpress/maxbot/core/logger"
)

const usersComponent = "service.users"

var (
	// ErrAlreadyRegistered means the Telegram account already has a row.
	ErrAlreadyRegistered = errors.New("user already registered")
	// ErrNotFound means no account exists for the Telegram ID.
	ErrNotFound = errors.New("user not found")
)

// User is a registered account.
type User struct {
	ID          int64  `db:"id"`
	FirstName   string `db:"first_name"`
	LastName    string `db:"last_name"`
	PhoneNumber string `db:"phone_number"`
	TelegramID  int64  `db:"telegram_id"`
	ClientCode  string `db:"client_code"`
}

// Service provides account registration and lookup over Postgres.
type Service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

// Register creates an account and assigns the next sequential client code,
// "MX" + (200 + number of existing users). The code is computed and the
// row inserted in a single statement so concurrent registrations cannot
// read a stale count. Re-registering the same Telegram ID returns
// ErrAlreadyRegistered.
func (s *Service) Register(ctx context.Context, telegramID int64, firstName, lastName, phone string) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u,
		`INSERT INTO users (first_name, last_name, phone_number, telegram_id, client_code)
		 SELECT $1, $2, $3, $4, 'MX' || (200 + COUNT(*))::text FROM users
		 RETURNING id, first_name, last_name, phone_number, telegram_id, client_code`,
		firstName, lastName, phone, telegramID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return User{}, ErrAlreadyRegistered
		}
		return User{}, fmt.Errorf("register user %d: %w", telegramID, err)
	}

	logger.Info(ctx, usersComponent, "user.registered",
		slog.Int64("user_id", telegramID),
		slog.String("client_code", u.ClientCode),
	)
	return u, nil
}

// GetByTelegramID returns the account for the Telegram ID.
func (s *Service) GetByTelegramID(ctx context.Context, telegramID int64) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u,
		`SELECT id, first_name, last_name, phone_number, telegram_id, client_code
		 FROM users WHERE telegram_id = $1`, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user %d: %w", telegramID, err)
	}
	return u, nil
}

// Exists reports whether the Telegram ID is registered.
func (s *Service) Exists(ctx context.Context, telegramID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM users WHERE telegram_id = $1)`, telegramID)
	if err != nil {
		return false, fmt.Errorf("check user %d: %w", telegramID, err)
	}
	return exists, nil
}

// Count returns the number of registered accounts.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
