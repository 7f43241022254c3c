package middleware

import (
	"context"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/himera-swap/internal/bot/handlers"
)

// Serial runs at most one update per user at a time. Updates of different users run in parallel.
// A waiting update gives up when its context ends.
type Serial struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	slot chan struct{}
	refs int
}

// NewSerial creates an empty per-user queue.
func NewSerial() *Serial {
	return &Serial{locks: make(map[int64]*userLock)}
}

// Handle is the middleware.
func (s *Serial) Handle(next handlers.Handler) handlers.Handler {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return next(c)
		}

		release, err := s.Acquire(handlers.Context(c), sender.ID)
		if err != nil {
			return err
		}
		defer release()

		return next(c)
	}
}

// Acquire blocks until userID's slot is free or ctx ends. The returned func releases the slot.
func (s *Serial) Acquire(ctx context.Context, userID int64) (func(), error) {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{slot: make(chan struct{}, 1)}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	select {
	case l.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-l.slot
				s.unref(userID, l)
			})
		}, nil
	case <-ctx.Done():
		s.unref(userID, l)
		return nil, ctx.Err()
	}
}

func (s *Serial) unref(userID int64, l *userLock) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(s.locks, userID)
	}
}

// Len reports how many users currently hold or wait for a slot.
func (s *Serial) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
