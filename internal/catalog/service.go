package catalog

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"priskombo/internal/cache"
	"priskombo/internal/clients"
	"priskombo/internal/logger"
	"priskombo/internal/models"
)

const (
	maxPageSize  = 100
	defaultDeals = 8

	cachePrefix   = "catalog:"
	categoriesKey = cachePrefix + "categories"
)

var ErrCategoryNotFound = errors.New("category not found")

// Backend is the subset of the price API the catalog reads from.
type Backend interface {
	Categories(ctx context.Context) ([]models.Category, error)
	Products(ctx context.Context, q clients.ProductQuery) (*clients.ProductList, error)
	ProductBySlug(ctx context.Context, slug string) (*models.ProductDetails, error)
	Deals(ctx context.Context, limit int) ([]models.Deal, error)
}

// Resolution kinds.
const (
	KindProduct  = "product"
	KindCategory = "category"
)

// Resolution says what a URL slug names.
type Resolution struct {
	Kind     string                 `json:"kind"`
	Product  *models.ProductDetails `json:"product,omitempty"`
	Category *models.Category       `json:"category,omitempty"`
}

// Home is the landing page payload.
type Home struct {
	Deals      []models.Deal         `json:"deals"`
	Categories []models.CategoryNode `json:"categories"`
}

type Service struct {
	backend  Backend
	cache    *cache.Cache
	pageSize int
}

func NewService(backend Backend, c *cache.Cache, pageSize int) *Service {
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = 24
	}
	return &Service{backend: backend, cache: c, pageSize: pageSize}
}

// Categories returns the flat category list, served from cache when fresh.
func (s *Service) Categories(ctx context.Context) ([]models.Category, error) {
	if cached, ok := s.cache.GetValue(categoriesKey); ok {
		return cached.([]models.Category), nil
	}

	categories, err := s.backend.Categories(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(categoriesKey, categories)
	return categories, nil
}

func (s *Service) Tree(ctx context.Context) ([]models.CategoryNode, error) {
	categories, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTree(categories), nil
}

func (s *Service) CategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	categories, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if categories[i].Slug == slug {
			c := categories[i]
			return &c, nil
		}
	}
	return nil, ErrCategoryNotFound
}

// CategoryProducts returns one page of the products in a category and its
// sub-categories.
func (s *Service) CategoryProducts(ctx context.Context, slug string, skip, limit int, sort string) (*models.ProductPage, error) {
	categories, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}

	var category *models.Category
	for i := range categories {
		if categories[i].Slug == slug {
			category = &categories[i]
			break
		}
	}
	if category == nil {
		return nil, ErrCategoryNotFound
	}

	skip, limit = s.ClampPage(skip, limit)
	page := &models.ProductPage{Data: []models.Product{}, Skip: skip, Limit: limit}
	if category.ComingSoon {
		return page, nil
	}

	list, err := s.backend.Products(ctx, clients.ProductQuery{
		CategoryIDs: descendantIDs(categories, category.ID),
		Skip:        skip,
		Limit:       limit,
		Sort:        sort,
	})
	if err != nil {
		return nil, err
	}

	page.Data = list.Data
	page.Total = list.Total
	page.HasMore = skip+len(list.Data) < list.Total
	return page, nil
}

// Resolve decides whether slug names a product or, failing that, a category.
func (s *Service) Resolve(ctx context.Context, slug string) (*Resolution, error) {
	product, err := s.backend.ProductBySlug(ctx, slug)
	if err == nil {
		return &Resolution{Kind: KindProduct, Product: product}, nil
	}
	if !errors.Is(err, clients.ErrNotFound) {
		return nil, fmt.Errorf("resolve %q: %w", slug, err)
	}

	category, err := s.CategoryBySlug(ctx, slug)
	if errors.Is(err, ErrCategoryNotFound) {
		return nil, clients.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", slug, err)
	}
	return &Resolution{Kind: KindCategory, Category: category}, nil
}

func (s *Service) Product(ctx context.Context, slug string) (*models.ProductDetails, error) {
	return s.backend.ProductBySlug(ctx, slug)
}

func (s *Service) Deals(ctx context.Context, limit int) ([]models.Deal, error) {
	switch {
	case limit < 1:
		limit = defaultDeals
	case limit > maxPageSize:
		limit = maxPageSize
	}
	key := fmt.Sprintf("%sdeals:%d", cachePrefix, limit)
	if cached, ok := s.cache.GetValue(key); ok {
		return cached.([]models.Deal), nil
	}

	deals, err := s.backend.Deals(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.cache.Set(key, deals)
	return deals, nil
}

// Home loads deals and the category tree concurrently. A failing half
// degrades to an empty list.
func (s *Service) Home(ctx context.Context, dealsLimit int) *Home {
	home := &Home{Deals: []models.Deal{}, Categories: []models.CategoryNode{}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		deals, err := s.Deals(gctx, dealsLimit)
		if err != nil {
			logger.Warn(ctx, "home: deals unavailable", err)
			return nil
		}
		home.Deals = deals
		return nil
	})
	g.Go(func() error {
		tree, err := s.Tree(gctx)
		if err != nil {
			logger.Warn(ctx, "home: categories unavailable", err)
			return nil
		}
		home.Categories = tree
		return nil
	})
	_ = g.Wait()

	return home
}

// Invalidate drops every cached catalog read.
func (s *Service) Invalidate(ctx context.Context) {
	s.cache.DeleteByPrefix(cachePrefix)
	logger.Info(ctx, "catalog cache purged", zap.Int("remaining", s.cache.Size()))
}

// ClampPage bounds paging: negative skip becomes 0, a missing limit becomes
// the page size and limits above 100 are capped.
func (s *Service) ClampPage(skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if limit < 1 {
		limit = s.pageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return skip, limit
}
