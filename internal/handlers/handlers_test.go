package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priskombo/internal/basket"
	"priskombo/internal/cache"
	"priskombo/internal/catalog"
	"priskombo/internal/clients"
	"priskombo/internal/handlers"
	"priskombo/internal/middleware"
	"priskombo/internal/models"
	"priskombo/internal/repository"
	"priskombo/internal/routes"
	"priskombo/internal/search"
)

const (
	cookieName  = "priskombo_session"
	internalKey = "drift-nyckel"
)

const (
	categoriesJSON = `[
		{"id":1,"name":"Mejeri","slug":"mejeri"},
		{"id":2,"name":"Mjölk","slug":"mjolk-och-gradde","parent_id":1},
		{"id":3,"name":"Husdjur","slug":"husdjur","coming_soon":true}
	]`
	mjolkJSON   = `{"id":10,"name":"Mellanmjölk 1,5L","slug":"mellanmjolk","brand":"Arla","offers":[{"price":17.9,"store":"Mathem"},{"price":16.5,"store":"Willys"}]}`
	smorJSON    = `{"id":11,"name":"Bregott 600g","slug":"bregott","offers":[{"price":54,"store":"Willys"}]}`
	plansJSON   = `[{"type":"Samlad leverans","total_cost":140,"stores":1,"details":[]},{"type":"Smart Split","total_cost":118.5,"stores":["Mathem","Willys"],"details":[]}]`
	dealsJSON   = `[{"product_id":10,"name":"Mellanmjölk 1,5L","slug":"mellanmjolk","store":"Willys","price":16.5,"regular_price":19.9,"discount_percent":17}]`
	suggestJSON = `{"categories":[{"id":1,"name":"Mejeri","slug":"mejeri"}],"brands":["Arla"],"products":[]}`
)

type backend struct {
	down          atomic.Bool
	optimizeCalls atomic.Int32
	lastOptimize  atomic.Value
	lastProducts  atomic.Value
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if b.down.Load() {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
		return
	}
	switch {
	case r.URL.Path == "/categories":
		_, _ = w.Write([]byte(categoriesJSON))
	case r.URL.Path == "/products":
		b.lastProducts.Store(r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"data":[` + mjolkJSON + `],"total":30}`))
	case r.URL.Path == "/products/mellanmjolk":
		_, _ = w.Write([]byte(mjolkJSON))
	case r.URL.Path == "/products/bregott":
		_, _ = w.Write([]byte(smorJSON))
	case r.URL.Path == "/products/trasig":
		http.Error(w, "boom", http.StatusInternalServerError)
	case strings.HasPrefix(r.URL.Path, "/products/"):
		w.WriteHeader(http.StatusNotFound)
	case r.URL.Path == "/deals":
		_, _ = w.Write([]byte(dealsJSON))
	case r.URL.Path == "/search":
		_, _ = w.Write([]byte(`[` + mjolkJSON + `]`))
	case r.URL.Path == "/search/suggestions":
		_, _ = w.Write([]byte(suggestJSON))
	case r.URL.Path == "/optimize":
		b.optimizeCalls.Add(1)
		var req models.OptimizeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.lastOptimize.Store(req)
		_, _ = w.Write([]byte(plansJSON))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type failingStore struct{ *repository.MemoryBasketRepository }

func (failingStore) Save(context.Context, *basket.Basket) error { return errors.New("disk full") }

type testApp struct {
	router  *gin.Engine
	backend *backend
	cookie  *http.Cookie
}

func setupApp(t *testing.T, store basket.Store) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	be := &backend{}
	srv := httptest.NewServer(be)
	t.Cleanup(srv.Close)

	api := clients.NewAPIClient(srv.URL, 2*time.Second)
	catalogCache := cache.New(time.Minute)
	suggestCache := cache.New(time.Minute)
	t.Cleanup(catalogCache.Close)
	t.Cleanup(suggestCache.Close)

	if store == nil {
		store = repository.NewMemoryBasketRepository()
	}

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.Session(cookieName, false))
	routes.RegisterRoutes(router, routes.Handlers{
		Health:  handlers.NewHealthHandler(map[string]handlers.Pinger{"basket_store": repository.NewMemoryBasketRepository()}),
		Catalog: handlers.NewCatalogHandler(catalog.NewService(api, catalogCache, 24), 8),
		Search:  handlers.NewSearchHandler(search.NewService(api, suggestCache, time.Minute, 2)),
		Basket:  handlers.NewBasketHandler(basket.NewService(store, api, api)),
	}, internalKey)

	return &testApp{router: router, backend: be}
}

// do sends a request, carrying the session cookie from earlier responses.
func (a *testApp) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			a.cookie = c
		}
	}
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

type basketView struct {
	Items []struct {
		Product  models.Product `json:"product"`
		Quantity int            `json:"quantity"`
	} `json:"items"`
	Count         int     `json:"count"`
	CheapestTotal float64 `json:"cheapest_total"`
}

func TestHealth(t *testing.T) {
	app := setupApp(t, nil)

	w := app.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestCategoriesTree(t *testing.T) {
	app := setupApp(t, nil)

	w := app.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var tree []models.CategoryNode
	decode(t, w, &tree)
	require.Len(t, tree, 2)
	assert.Equal(t, "husdjur", tree[0].Slug)
	assert.Equal(t, "mejeri", tree[1].Slug)
	require.Len(t, tree[1].Children, 1)
	assert.Equal(t, "mjolk-och-gradde", tree[1].Children[0].Slug)
}

func TestCategoriesDegradeWhenBackendDown(t *testing.T) {
	app := setupApp(t, nil)
	app.backend.down.Store(true)

	w := app.do(t, http.MethodGet, "/api/categories", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestCategoryBySlug(t *testing.T) {
	app := setupApp(t, nil)

	w := app.do(t, http.MethodGet, "/api/categories/mjolk-och-gradde", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var category models.Category
	decode(t, w, &category)
	assert.Equal(t, 2, category.ID)
	require.NotNil(t, category.ParentID)
	assert.Equal(t, 1, *category.ParentID)

	w = app.do(t, http.MethodGet, "/api/categories/okand", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategoryProductsPaging(t *testing.T) {
	app := setupApp(t, nil)

	w := app.do(t, http.MethodGet, "/api/categories/mejeri/products?skip=24&limit=24&sort=price_asc", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page models.ProductPage
	decode(t, w, &page)
	assert.Equal(t, 30, page.Total)
	assert.Equal(t, 24, page.Skip)
	assert.Len(t, page.Data, 1)
	assert.True(t, page.HasMore)

	query := app.backend.lastProducts.Load().(string)
	assert.Contains(t, query, "category_ids=1%2C2")
	assert.Contains(t, query, "sort=price_asc")
}

func TestCategoryProductsFallbackIsClamped(t *testing.T) {
	app := setupApp(t, nil)
	app.backend.down.Store(true)

	w := app.do(t, http.MethodGet, "/api/categories/mejeri/products?skip=-5&limit=0", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page models.ProductPage
	decode(t, w, &page)
	assert.Empty(t, page.Data)
	assert.Equal(t, 0, page.Skip)
	assert.Equal(t, 24, page.Limit)
}

func TestCategoryProductsUnknownCategory(t *testing.T) {
	app := setupApp(t, nil)

	w := app.do(t, http.MethodGet, "/api/categories/finns-inte/products", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"category not found"}`, w.Body.String())
}

func TestComingSoonCategoryIsEmpty(t *testing.T) {
	app := setupApp(t, nil)

	w := app.do(t, http.MethodGet, "/api/categories/husdjur/products", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page models.ProductPage
	decode(t, w, &page)
	assert.Empty(t, page.Data)
	assert.Nil(t, app.backend.lastProducts.Load())
}

func TestProductDetail(t *testing.T) {
	app := setupApp(t, nil)

	w := app.do(t, http.MethodGet, "/api/products/mellanmjolk", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var p models.ProductDetails
	decode(t, w, &p)
	assert.Equal(t, "Arla", p.Brand)
	assert.Equal(t, 16.5, p.LowestOffer().Price)

	w = app.do(t, http.MethodGet, "/api/products/okand", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = app.do(t, http.MethodGet, "/api/products/trasig", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestResolve(t *testing.T) {
	app := setupApp(t, nil)

	tests := []struct {
		path string
		code int
		kind string
	}{
		{"/api/resolve/mejeri/mellanmjolk", http.StatusOK, catalog.KindProduct},
		{"/api/resolve/mejeri/mjolk-och-gradde", http.StatusOK, catalog.KindCategory},
		{"/api/resolve/mejeri/", http.StatusOK, catalog.KindCategory},
		{"/api/resolve/ingenting", http.StatusNotFound, ""},
		{"/api/resolve/", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := app.do(t, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.code, w.Code)
			if tt.kind != "" {
				var res catalog.Resolution
				decode(t, w, &res)
				assert.Equal(t, tt.kind, res.Kind)
			}
		})
	}
}

func TestHomeAndDeals(t *testing.T) {
	app := setupApp(t, nil)

	w := app.do(t, http.MethodGet, "/api/home", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var home catalog.Home
	decode(t, w, &home)
	require.Len(t, home.Deals, 1)
	assert.Equal(t, "mellanmjolk", home.Deals[0].Slug)
	assert.Len(t, home.Categories, 2)

	w = app.do(t, http.MethodGet, "/api/deals?limit=4", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"Willys"`)
}

func TestSearchAndSuggestions(t *testing.T) {
	app := setupApp(t, nil)

	w := app.do(t, http.MethodGet, "/api/search?q=mj%C3%B6lk", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var results []models.Product
	decode(t, w, &results)
	require.Len(t, results, 1)

	w = app.do(t, http.MethodGet, "/api/search?q=", nil)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/search/suggestions?q=a", nil)
	assert.JSONEq(t, `{"categories":[],"brands":[],"products":[]}`, w.Body.String())

	w = app.do(t, http.MethodGet, "/api/search/suggestions?q=ar", nil)
	var s models.Suggestions
	decode(t, w, &s)
	assert.Equal(t, []string{"Arla"}, s.Brands)
}

func TestSuggestionsDegradeWhenBackendDown(t *testing.T) {
	app := setupApp(t, nil)
	app.backend.down.Store(true)

	w := app.do(t, http.MethodGet, "/api/search/suggestions?q=arla", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"categories":[],"brands":[],"products":[]}`, w.Body.String())
}

func TestBasketLifecycle(t *testing.T) {
	app := setupApp(t, nil)

	w := app.do(t, http.MethodGet, "/api/basket", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, app.cookie, "session cookie issued")
	assert.JSONEq(t, `{"items":[],"count":0,"cheapest_total":0}`, w.Body.String())

	w = app.do(t, http.MethodPost, "/api/basket/items", gin.H{"slug": "mellanmjolk", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	w = app.do(t, http.MethodPost, "/api/basket/items", gin.H{"slug": "mellanmjolk"})
	require.Equal(t, http.StatusOK, w.Code)
	w = app.do(t, http.MethodPost, "/api/basket/items", gin.H{"slug": "bregott", "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)

	var view basketView
	decode(t, w, &view)
	require.Len(t, view.Items, 2)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, 4, view.Count)
	assert.InDelta(t, 3*16.5+54, view.CheapestTotal, 0.001)

	w = app.do(t, http.MethodPost, "/api/basket/items/11/decrement", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	require.Len(t, view.Items, 1)

	w = app.do(t, http.MethodPatch, "/api/basket/items/10", gin.H{"quantity": 5})
	require.Equal(t, http.StatusOK, w.Code)
	w = app.do(t, http.MethodPost, "/api/basket/items/10/increment", nil)
	decode(t, w, &view)
	assert.Equal(t, 6, view.Count)

	w = app.do(t, http.MethodDelete, "/api/basket/items/10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &view)
	assert.Empty(t, view.Items)

	w = app.do(t, http.MethodDelete, "/api/basket/items/10", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBasketValidation(t *testing.T) {
	app := setupApp(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		code   int
	}{
		{"missing slug", http.MethodPost, "/api/basket/items", gin.H{"quantity": 1}, http.StatusBadRequest},
		{"unknown product", http.MethodPost, "/api/basket/items", gin.H{"slug": "okand"}, http.StatusNotFound},
		{"backend failure", http.MethodPost, "/api/basket/items", gin.H{"slug": "trasig"}, http.StatusBadGateway},
		{"bad id", http.MethodPost, "/api/basket/items/abc/increment", nil, http.StatusBadRequest},
		{"missing quantity", http.MethodPatch, "/api/basket/items/10", gin.H{}, http.StatusBadRequest},
		{"not in basket", http.MethodPatch, "/api/basket/items/10", gin.H{"quantity": 2}, http.StatusNotFound},
		{"add above maximum", http.MethodPost, "/api/basket/items", gin.H{"slug": "bregott", "quantity": int64(math.MaxInt64)}, http.StatusBadRequest},
		{"set above maximum", http.MethodPatch, "/api/basket/items/10", gin.H{"quantity": basket.MaxQuantity + 1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestBasketQuantityNeverOverflows(t *testing.T) {
	app := setupApp(t, nil)

	for i := 0; i < 3; i++ {
		w := app.do(t, http.MethodPost, "/api/basket/items", gin.H{"slug": "bregott", "quantity": basket.MaxQuantity})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := app.do(t, http.MethodPost, "/api/basket/items/11/increment", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view basketView
	decode(t, w, &view)
	require.Len(t, view.Items, 1)
	assert.Equal(t, basket.MaxQuantity, view.Items[0].Quantity)
	assert.Equal(t, basket.MaxQuantity, view.Count)
}

func TestBasketSessionsAreIsolated(t *testing.T) {
	app := setupApp(t, nil)
	w := app.do(t, http.MethodPost, "/api/basket/items", gin.H{"slug": "bregott"})
	require.Equal(t, http.StatusOK, w.Code)

	other := &testApp{router: app.router, backend: app.backend}
	w = other.do(t, http.MethodGet, "/api/basket", nil)
	var view basketView
	decode(t, w, &view)
	assert.Empty(t, view.Items)
	assert.NotEqual(t, app.cookie.Value, other.cookie.Value)
}

func TestBasketSaveFailure(t *testing.T) {
	app := setupApp(t, failingStore{repository.NewMemoryBasketRepository()})

	w := app.do(t, http.MethodPost, "/api/basket/items", gin.H{"slug": "bregott"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOptimizeEmptyBasketRedirects(t *testing.T) {
	app := setupApp(t, nil)

	w := app.do(t, http.MethodPost, "/api/basket/optimize", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"basket is empty","redirect":"/"}`, w.Body.String())
	assert.Zero(t, app.backend.optimizeCalls.Load())
}

func TestOptimizeRanksPlans(t *testing.T) {
	app := setupApp(t, nil)
	app.do(t, http.MethodPost, "/api/basket/items", gin.H{"slug": "mellanmjolk", "quantity": 2})
	app.do(t, http.MethodPost, "/api/basket/items", gin.H{"slug": "bregott"})

	w := app.do(t, http.MethodPost, "/api/basket/optimize", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Plans []models.PurchasePlan `json:"plans"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Plans, 2)
	assert.Equal(t, models.PlanSmartSplit, resp.Plans[0].Type)
	assert.True(t, resp.Plans[0].Recommended)
	assert.InDelta(t, 21.5, resp.Plans[0].Savings, 0.001)
	assert.False(t, resp.Plans[1].Recommended)

	sent := app.backend.lastOptimize.Load().(models.OptimizeRequest)
	assert.ElementsMatch(t, []models.OptimizeItem{{ProductID: 10, Quantity: 2}, {ProductID: 11, Quantity: 1}}, sent.Items)
}

func TestOptimizeBackendDown(t *testing.T) {
	app := setupApp(t, nil)
	app.do(t, http.MethodPost, "/api/basket/items", gin.H{"slug": "bregott"})
	app.backend.down.Store(true)

	w := app.do(t, http.MethodPost, "/api/basket/optimize", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestClearBasket(t *testing.T) {
	app := setupApp(t, nil)
	app.do(t, http.MethodPost, "/api/basket/items", gin.H{"slug": "bregott"})

	w := app.do(t, http.MethodDelete, "/api/basket", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(t, http.MethodGet, "/api/basket", nil)
	var view basketView
	decode(t, w, &view)
	assert.Empty(t, view.Items)
}

func TestPurgeCache(t *testing.T) {
	app := setupApp(t, nil)
	app.do(t, http.MethodGet, "/api/categories", nil)

	purge := func(key string) int {
		req := httptest.NewRequest(http.MethodPost, "/internal/cache/purge", nil)
		if key != "" {
			req.Header.Set(middleware.APIKeyHeader, key)
		}
		w := httptest.NewRecorder()
		app.router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, purge(""))
	assert.Equal(t, http.StatusUnauthorized, purge("gissning"))
	assert.Equal(t, http.StatusOK, purge(internalKey))
}
