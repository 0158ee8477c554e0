package repository

import (
	"context"
	"sync"

	"priskombo/internal/basket"
	"priskombo/internal/models"
)

// MemoryBasketRepository keeps baskets in process memory. Baskets do not
// survive a restart.
type MemoryBasketRepository struct {
	mu      sync.RWMutex
	baskets map[string]basket.Basket
}

func NewMemoryBasketRepository() *MemoryBasketRepository {
	return &MemoryBasketRepository{baskets: make(map[string]basket.Basket)}
}

func (r *MemoryBasketRepository) Load(_ context.Context, sessionID string) (*basket.Basket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.baskets[sessionID]
	if !ok {
		return basket.New(sessionID), nil
	}
	b.Items = cloneItems(b.Items)
	return &b, nil
}

func (r *MemoryBasketRepository) Save(_ context.Context, b *basket.Basket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *b
	stored.Items = cloneItems(b.Items)
	r.baskets[b.SessionID] = stored
	return nil
}

func (r *MemoryBasketRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.baskets, sessionID)
	return nil
}

func cloneItems(items []models.CartItem) []models.CartItem {
	out := make([]models.CartItem, len(items))
	copy(out, items)
	return out
}

func (r *MemoryBasketRepository) Ping(context.Context) error { return nil }
