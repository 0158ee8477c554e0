package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"priskombo/internal/models"
)

var (
	// ErrNotFound is returned when the backend answers 404.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable wraps every other failure to get a usable answer.
	ErrUnavailable = errors.New("price backend unavailable")
)

// UpstreamError is any other non-2xx backend answer.
type UpstreamError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s %s: status=%d body=%s", e.Method, e.Path, e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return ErrUnavailable
}

// ProductQuery filters GET /products.
type ProductQuery struct {
	CategoryIDs []int
	Skip        int
	Limit       int
	Search      string
	Sort        string
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if len(q.CategoryIDs) > 0 {
		ids := make([]string, len(q.CategoryIDs))
		for i, id := range q.CategoryIDs {
			ids[i] = strconv.Itoa(id)
		}
		v.Set("category_ids", strings.Join(ids, ","))
	}
	if q.Skip > 0 {
		v.Set("skip", strconv.Itoa(q.Skip))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	return v
}

// ProductList is the raw GET /products envelope.
type ProductList struct {
	Data  []models.Product `json:"data"`
	Total int              `json:"total"`
}

// APIClient talks to the price backend.
type APIClient struct {
	baseURL string
	client  *http.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (a *APIClient) Categories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := a.do(ctx, http.MethodGet, "/categories", nil, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (a *APIClient) Products(ctx context.Context, q ProductQuery) (*ProductList, error) {
	var out ProductList
	if err := a.do(ctx, http.MethodGet, "/products", q.values(), nil, &out); err != nil {
		return nil, err
	}
	out.Data = nonNil(out.Data)
	return &out, nil
}

func (a *APIClient) ProductBySlug(ctx context.Context, slug string) (*models.ProductDetails, error) {
	var out models.ProductDetails
	if err := a.do(ctx, http.MethodGet, "/products/"+url.PathEscape(slug), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *APIClient) Search(ctx context.Context, q string) ([]models.Product, error) {
	var out []models.Product
	if err := a.do(ctx, http.MethodGet, "/search", url.Values{"q": {q}}, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (a *APIClient) Suggestions(ctx context.Context, q string) (*models.Suggestions, error) {
	out := models.EmptySuggestions()
	if err := a.do(ctx, http.MethodGet, "/search/suggestions", url.Values{"q": {q}}, nil, &out); err != nil {
		return nil, err
	}
	out.Categories = nonNil(out.Categories)
	out.Brands = nonNil(out.Brands)
	out.Products = nonNil(out.Products)
	return &out, nil
}

func (a *APIClient) Deals(ctx context.Context, limit int) ([]models.Deal, error) {
	var out []models.Deal
	if err := a.do(ctx, http.MethodGet, "/deals", url.Values{"limit": {strconv.Itoa(limit)}}, nil, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (a *APIClient) Optimize(ctx context.Context, req models.OptimizeRequest) ([]models.PurchasePlan, error) {
	var out []models.PurchasePlan
	if err := a.do(ctx, http.MethodPost, "/optimize", nil, req, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func (a *APIClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := a.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &UpstreamError{Method: method, Path: path, Status: resp.StatusCode, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrUnavailable, method, path, err)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
