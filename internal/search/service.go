package search

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"priskombo/internal/cache"
	"priskombo/internal/models"
)

const (
	suggestPrefix = "suggest:"
	sharedTimeout = 10 * time.Second
)

// Backend is the subset of the price API search reads from.
type Backend interface {
	Search(ctx context.Context, q string) ([]models.Product, error)
	Suggestions(ctx context.Context, q string) (*models.Suggestions, error)
}

type Service struct {
	backend  Backend
	cache    *cache.Cache
	ttl      time.Duration
	minChars int
	group    singleflight.Group
}

func NewService(backend Backend, c *cache.Cache, ttl time.Duration, minChars int) *Service {
	if minChars < 1 {
		minChars = 1
	}
	return &Service{backend: backend, cache: c, ttl: ttl, minChars: minChars}
}

// Search runs a full product search. A blank query returns no results.
func (s *Service) Search(ctx context.Context, q string) ([]models.Product, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.Product{}, nil
	}
	return s.backend.Search(ctx, q)
}

// Suggestions feeds the search dropdown. Queries shorter than the minimum
// return empty suggestions; identical in-flight queries share one upstream call.
// The shared call outlives any single caller; a caller whose ctx ends stops
// waiting without cancelling it for the others.
func (s *Service) Suggestions(ctx context.Context, q string) (models.Suggestions, error) {
	q = normalize(q)
	if utf8.RuneCountInString(q) < s.minChars {
		return models.EmptySuggestions(), nil
	}

	key := suggestPrefix + q
	if cached, ok := s.cache.GetValue(key); ok {
		return cached.(models.Suggestions), nil
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedTimeout)
		defer cancel()

		res, err := s.backend.Suggestions(sharedCtx, q)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, *res, s.ttl)
		return *res, nil
	})

	select {
	case <-ctx.Done():
		return models.Suggestions{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return models.Suggestions{}, r.Err
		}
		return r.Val.(models.Suggestions), nil
	}
}

func normalize(q string) string {
	return strings.ToLower(strings.Join(strings.Fields(q), " "))
}
