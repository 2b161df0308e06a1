package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/mpetrenko/taskbot/internal/domain"
	"github.com/mpetrenko/taskbot/internal/store"
)

// UserStore implements the store.UserStore interface using PostgreSQL.
type UserStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewUserStore creates a new UserStore.
func NewUserStore(db store.DBTX, logger *slog.Logger) *UserStore {
	return &UserStore{
		db:     db,
		logger: logger.With("component", "user_store"),
	}
}

// UpsertUser creates the user on first contact and refreshes the profile
// fields on subsequent ones. telegram_id carries a unique constraint, so the
// insert-or-update is a single statement.
func (s *UserStore) UpsertUser(ctx context.Context, telegramID int64, username, firstName string) (*domain.User, error) {
	query := `
		INSERT INTO users (telegram_id, username, first_name, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (telegram_id)
		DO UPDATE SET username = EXCLUDED.username, first_name = EXCLUDED.first_name
		RETURNING id, telegram_id, username, first_name, created_at
	`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, telegramID, username, firstName, time.Now().UTC()))
	if err != nil {
		s.logger.Error("failed to upsert user", "telegram_id", telegramID, "error", err)
		return nil, MapError(err)
	}

	return user, nil
}

// GetUserByTelegramID returns the user with the given chat ID.
func (s *UserStore) GetUserByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	query := `SELECT id, telegram_id, username, first_name, created_at FROM users WHERE telegram_id = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		s.logger.Error("failed to get user", "telegram_id", telegramID, "error", err)
		return nil, MapError(err)
	}

	return user, nil
}

// ListAllOwners returns the telegram IDs of all known users.
func (s *UserStore) ListAllOwners(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT telegram_id FROM users ORDER BY created_at ASC`)
	if err != nil {
		s.logger.Error("failed to list owners", "error", err)
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var owners []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, MapError(err)
		}
		owners = append(owners, id)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return owners, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var username, firstName sql.NullString

	err := row.Scan(&user.ID, &user.TelegramID, &username, &firstName, &user.CreatedAt)
	if err != nil {
		return nil, err
	}

	user.Username = username.String
	user.FirstName = firstName.String
	return &user, nil
}
