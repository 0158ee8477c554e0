package basket

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"priskombo/internal/logger"
	"priskombo/internal/models"
)

// Store persists baskets by session id. Load returns an empty basket when
// nothing is stored.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Basket, error)
	Save(ctx context.Context, b *Basket) error
	Delete(ctx context.Context, sessionID string) error
}

// ProductLookup resolves product slugs to catalog products.
type ProductLookup interface {
	ProductBySlug(ctx context.Context, slug string) (*models.ProductDetails, error)
}

// Optimizer computes purchase plans for a basket.
type Optimizer interface {
	Optimize(ctx context.Context, req models.OptimizeRequest) ([]models.PurchasePlan, error)
}

const lockStripes = 64

type Service struct {
	store     Store
	products  ProductLookup
	optimizer Optimizer
	locks     [lockStripes]sync.Mutex
}

func NewService(store Store, products ProductLookup, optimizer Optimizer) *Service {
	return &Service{store: store, products: products, optimizer: optimizer}
}

func (s *Service) Get(ctx context.Context, sessionID string) (*Basket, error) {
	b, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load basket: %w", err)
	}
	b.SessionID = sessionID
	b.normalize()
	return b, nil
}

// AddBySlug looks the product up and adds qty units of it.
func (s *Service) AddBySlug(ctx context.Context, sessionID, slug string, qty int) (*Basket, error) {
	details, err := s.products.ProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, sessionID, func(b *Basket) error {
		b.Add(details.Product, qty)
		return nil
	})
}

func (s *Service) SetQuantity(ctx context.Context, sessionID string, productID, qty int) (*Basket, error) {
	return s.mutate(ctx, sessionID, func(b *Basket) error {
		return b.SetQuantity(productID, qty)
	})
}

func (s *Service) Increment(ctx context.Context, sessionID string, productID int) (*Basket, error) {
	return s.mutate(ctx, sessionID, func(b *Basket) error {
		return b.Increment(productID)
	})
}

func (s *Service) Decrement(ctx context.Context, sessionID string, productID int) (*Basket, error) {
	return s.mutate(ctx, sessionID, func(b *Basket) error {
		return b.Decrement(productID)
	})
}

func (s *Service) Remove(ctx context.Context, sessionID string, productID int) (*Basket, error) {
	return s.mutate(ctx, sessionID, func(b *Basket) error {
		return b.Remove(productID)
	})
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("clear basket: %w", err)
	}
	return nil
}

// Optimize asks the optimizer for plans, cheapest first. The cheapest plan is
// marked recommended and carries its savings against the dearest one.
func (s *Service) Optimize(ctx context.Context, sessionID string) ([]models.PurchasePlan, error) {
	b, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if b.IsEmpty() {
		return nil, ErrEmptyBasket
	}

	plans, err := s.optimizer.Optimize(ctx, b.OptimizeRequest())
	if err != nil {
		return nil, err
	}
	rankPlans(plans)

	logger.Info(ctx, "basket optimized",
		zap.String("session_id", sessionID),
		zap.Int("items", len(b.Items)),
		zap.Int("plans", len(plans)),
	)
	return plans, nil
}

func rankPlans(plans []models.PurchasePlan) {
	if len(plans) == 0 {
		return
	}
	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].TotalCost < plans[j].TotalCost
	})
	for i := range plans {
		plans[i].Recommended = i == 0
		plans[i].Savings = 0
	}
	dearest := plans[len(plans)-1].TotalCost
	plans[0].Savings = math.Round((dearest-plans[0].TotalCost)*100) / 100
}

func (s *Service) mutate(ctx context.Context, sessionID string, fn func(*Basket) error) (*Basket, error) {
	mu := s.lock(sessionID)
	mu.Lock()
	defer mu.Unlock()

	b, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	b.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("save basket: %w", err)
	}
	return b, nil
}

func (s *Service) lock(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &s.locks[h.Sum32()%lockStripes]
}
