package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/phenrril/storefront/internal/domain"
)

type state struct {
	products     map[uuid.UUID]domain.Product
	variants     map[uuid.UUID]domain.Variant
	orders       map[uuid.UUID]domain.Order
	reservations map[uuid.UUID]domain.Reservation
}

func newState() *state {
	return &state{
		products:     map[uuid.UUID]domain.Product{},
		variants:     map[uuid.UUID]domain.Variant{},
		orders:       map[uuid.UUID]domain.Order{},
		reservations: map[uuid.UUID]domain.Reservation{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.variants {
		v.Options = v.Options.Clone()
		c.variants[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = cloneOrder(v)
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	return c
}

// Store keeps everything in process memory. Transactions are serialized by a
// single lock and roll back by restoring a snapshot.
type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store { return &Store{st: newState()} }

func (s *Store) Products() domain.ProductRepo         { return &productRepo{s: s} }
func (s *Store) Orders() domain.OrderRepo             { return &orderRepo{s: s} }
func (s *Store) Reservations() domain.ReservationRepo { return &reservationRepo{s: s} }

func (s *Store) Transaction(ctx context.Context, fn func(r domain.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.st.clone()
	if err := fn(txRepos{s: s}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

type txRepos struct{ s *Store }

func (t txRepos) Products() domain.ProductRepo         { return &productRepo{s: t.s, tx: true} }
func (t txRepos) Orders() domain.OrderRepo             { return &orderRepo{s: t.s, tx: true} }
func (t txRepos) Reservations() domain.ReservationRepo { return &reservationRepo{s: t.s, tx: true} }

// locked runs fn under the store lock unless the caller already holds it
// through Transaction.
func (s *Store) locked(tx bool, fn func(st *state) error) error {
	if !tx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.st)
}

func cloneOrder(o domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(o.Items))
	for i, it := range o.Items {
		it.Options = it.Options.Clone()
		items[i] = it
	}
	o.Items = items
	if o.Address != nil {
		a := *o.Address
		o.Address = &a
	}
	return o
}
