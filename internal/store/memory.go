package store

import (
	"context"
	"sort"
	"sync"

	"github.com/sai-karthik-k/ecommerce-microservices/internal/orders"
)

// MemoryStore keeps orders in a map. Used for tests and STORE_DRIVER=memory.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	orders map[int64]orders.Order
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[int64]orders.Order)}
}

func (s *MemoryStore) FindAll(ctx context.Context) ([]orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]orders.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id int64) (*orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return &o, nil
}

func (s *MemoryStore) Save(ctx context.Context, order *orders.Order) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o := *order
	if o.ID == 0 {
		s.nextID++
		o.ID = s.nextID
	} else if o.ID > s.nextID {
		s.nextID = o.ID
	}
	s.orders[o.ID] = o
	return &o, nil
}

func (s *MemoryStore) DeleteByID(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.orders, id)
	return nil
}

func (s *MemoryStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.orders[id]
	return ok, nil
}
