package memory

import (
	"context"
	"sync"

	"github.com/phenrril/storefront/internal/domain"
)

type CartStore struct {
	mu    sync.Mutex
	carts map[string][]domain.CartItem
}

func NewCartStore() *CartStore { return &CartStore{carts: map[string][]domain.CartItem{}} }

func (c *CartStore) Load(ctx context.Context, holder string) ([]domain.CartItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.carts[holder]
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out, nil
}

func (c *CartStore) Save(ctx context.Context, holder string, items []domain.CartItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]domain.CartItem, len(items))
	copy(cp, items)
	c.carts[holder] = cp
	return nil
}

func (c *CartStore) Clear(ctx context.Context, holder string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.carts, holder)
	return nil
}
