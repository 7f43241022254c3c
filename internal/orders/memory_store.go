package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store with the same compare-and-set semantics as the Postgres one.
type MemoryStore struct {
	mu     sync.Mutex
	orders map[string]*Order
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*Order), now: time.Now}
}

func (s *MemoryStore) Create(ctx context.Context, order *Order) error {
	return s.CreateBatch(ctx, []*Order{order})
}

// CreateBatch inserts all orders or, when any id is taken, none of them.
func (s *MemoryStore) CreateBatch(_ context.Context, batch []*Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(batch))
	for _, order := range batch {
		if order.ID == "" {
			continue
		}
		if _, ok := s.orders[order.ID]; ok {
			return fmt.Errorf("create order %s: %w", order.ID, ErrOrderExists)
		}
		if _, ok := seen[order.ID]; ok {
			return fmt.Errorf("create order %s: %w", order.ID, ErrOrderExists)
		}
		seen[order.ID] = struct{}{}
	}

	now := s.now().UTC()
	for _, order := range batch {
		if order.ID == "" {
			order.ID = uuid.NewString()
		}
		if order.Status == "" {
			order.Status = StatusPending
		}
		order.CreatedAt = now
		order.UpdatedAt = now
		s.orders[order.ID] = cloneOrder(order)
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) ListPending(_ context.Context, kind Kind) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Order
	for _, o := range s.orders {
		if o.Kind == kind && o.Status == StatusPending {
			out = append(out, cloneOrder(o))
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID int64, statuses ...Status) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Order
	for _, o := range s.orders {
		if o.UserID == userID && hasStatus(statuses, o.Status) {
			out = append(out, cloneOrder(o))
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *MemoryStore) ListTriggered(_ context.Context, kind Kind, before time.Time) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Order
	for _, o := range s.orders {
		if o.Kind == kind && o.Status == StatusTriggered && o.UpdatedAt.Before(before) {
			out = append(out, cloneOrder(o))
		}
	}
	sortByCreation(out)
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, expected, next Status, upd Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status != expected {
		return ErrConflict
	}

	o.Status = next
	upd.apply(o)
	o.UpdatedAt = s.now().UTC()

	return nil
}

func hasStatus(statuses []Status, status Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func sortByCreation(list []*Order) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}

func cloneOrder(o *Order) *Order {
	c := *o
	if o.NextDueAt != nil {
		t := *o.NextDueAt
		c.NextDueAt = &t
	}
	if o.EndsAt != nil {
		t := *o.EndsAt
		c.EndsAt = &t
	}
	return &c
}
