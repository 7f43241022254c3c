// Package repository implements Postgres storage for users and their wallets.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/Proton-105/himera-swap/internal/domain"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// FindByID returns sql.ErrNoRows when the user is unknown.
	FindByID(ctx context.Context, telegramID int64) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	UpdateLastActive(ctx context.Context, telegramID int64) error
}

type userRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewUserRepository creates a new SQL-backed user repository.
func NewUserRepository(db *sqlx.DB, log *slog.Logger) UserRepository {
	if log == nil {
		log = slog.Default()
	}

	return &userRepository{
		db:  db,
		log: log,
	}
}

// FindByID retrieves a user from the database by their Telegram identifier.
func (r *userRepository) FindByID(ctx context.Context, telegramID int64) (*domain.User, error) {
	const query = `
		SELECT id, telegram_id, first_name, last_name, username, language_code, last_active_at, created_at
		FROM users
		WHERE telegram_id = $1
	`

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, telegramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		r.log.Error("failed to fetch user by telegram id", slog.Int64("telegram_id", telegramID), slog.Any("error", err))
		return nil, fmt.Errorf("select user by telegram id: %w", err)
	}

	return &user, nil
}

// Create persists a new user record. A concurrent insert of the same user is not an error.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
		INSERT INTO users (telegram_id, first_name, last_name, username, language_code, last_active_at, created_at)
		VALUES (:telegram_id, :first_name, :last_name, :username, :language_code, :last_active_at, :created_at)
		ON CONFLICT (telegram_id) DO NOTHING
	`

	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		r.log.Error("failed to create user", slog.Int64("telegram_id", user.TelegramID), slog.Any("error", err))
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// UpdateLastActive stamps the user's last activity with the database clock.
func (r *userRepository) UpdateLastActive(ctx context.Context, telegramID int64) error {
	const query = `UPDATE users SET last_active_at = NOW() WHERE telegram_id = $1`

	if _, err := r.db.ExecContext(ctx, query, telegramID); err != nil {
		return fmt.Errorf("update last active: %w", err)
	}

	return nil
}
