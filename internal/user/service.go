// Package user registers Telegram users on first contact and tracks their activity.
package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-swap/internal/domain"
	"github.com/Proton-105/himera-swap/internal/repository"
	"github.com/Proton-105/himera-swap/internal/usercache"
)

// activityResolution is the finest granularity at which last_active_at is written.
const activityResolution = time.Minute

// Service provides business operations over users.
type Service struct {
	repo  repository.UserRepository
	cache *usercache.Cache
	now   func() time.Time
	log   *slog.Logger

	touched sync.Map // telegram id -> time.Time of the last write
}

// NewService constructs a new Service instance. cache may be nil.
func NewService(repo repository.UserRepository, cache *usercache.Cache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, cache: cache, now: time.Now, log: log}
}

// GetOrCreate fetches a user by telegram ID or creates a new profile when missing.
// Known users are served from the cache.
func (s *Service) GetOrCreate(ctx context.Context, telegramUser *telebot.User) (*domain.User, error) {
	if telegramUser == nil {
		return nil, errors.New("telegram user is nil")
	}

	if cached, err := s.cache.Get(ctx, telegramUser.ID); err != nil {
		s.log.Warn("user cache unavailable", slog.Int64("telegram_id", telegramUser.ID), slog.Any("error", err))
	} else if cached != nil {
		return cached, nil
	}

	user, err := s.repo.FindByID(ctx, telegramUser.ID)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		now := s.now().UTC()
		user = &domain.User{
			TelegramID:   telegramUser.ID,
			FirstName:    telegramUser.FirstName,
			LastName:     telegramUser.LastName,
			Username:     telegramUser.Username,
			LanguageCode: telegramUser.LanguageCode,
			LastActiveAt: now,
			CreatedAt:    now,
		}
		if err := s.repo.Create(ctx, user); err != nil {
			s.logError("get_or_create.create", telegramUser.ID, err)
			return nil, fmt.Errorf("create user: %w", err)
		}
		s.log.Info("created new user", slog.Int64("telegram_id", telegramUser.ID))
	default:
		s.logError("get_or_create.find", telegramUser.ID, err)
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := s.cache.Set(ctx, user); err != nil {
		s.log.Warn("failed to cache user", slog.Int64("telegram_id", telegramUser.ID), slog.Any("error", err))
	}

	return user, nil
}

// UpdateLastActive refreshes the last_active_at field for the user.
func (s *Service) UpdateLastActive(ctx context.Context, userID int64) error {
	if err := s.repo.UpdateLastActive(ctx, userID); err != nil {
		s.logError("update_last_active", userID, err)
		return err
	}

	return nil
}

// Touch records activity for userID, writing at most once per activityResolution per user.
func (s *Service) Touch(ctx context.Context, userID int64) error {
	now := s.now()
	if last, ok := s.touched.Load(userID); ok && now.Sub(last.(time.Time)) < activityResolution {
		return nil
	}
	if err := s.UpdateLastActive(ctx, userID); err != nil {
		return err
	}
	s.touched.Store(userID, now)
	return nil
}

func (s *Service) logError(operation string, telegramID int64, err error) {
	if s == nil || s.log == nil || err == nil {
		return
	}

	s.log.Error("user service operation failed",
		slog.String("operation", operation),
		slog.Int64("telegram_id", telegramID),
		slog.Any("error", err),
	)
}
