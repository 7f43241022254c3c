// Package session holds the per-user conversational step, its state machine and its persistence.
package session

import (
	"context"
	"errors"
)

// ErrStepNotFound indicates that no step is stored for the user.
var ErrStepNotFound = errors.New("session step not found")

// Storage persists steps. Writers for the same user are last-write-wins.
type Storage interface {
	Get(ctx context.Context, userID int64) (*Step, error)
	Set(ctx context.Context, userID int64, step *Step) error
	Clear(ctx context.Context, userID int64) error
	// All returns every stored step. It is meant for metrics, not for request paths.
	All(ctx context.Context) ([]*Step, error)
}

// Load returns the stored step or a fresh one when none exists.
func Load(ctx context.Context, storage Storage, userID int64) (*Step, error) {
	step, err := storage.Get(ctx, userID)
	if errors.Is(err, ErrStepNotFound) {
		return New(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return step, nil
}
