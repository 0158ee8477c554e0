package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"priskombo/internal/basket"
	"priskombo/internal/cache"
	"priskombo/internal/catalog"
	"priskombo/internal/clients"
	"priskombo/internal/config"
	"priskombo/internal/database"
	"priskombo/internal/handlers"
	"priskombo/internal/logger"
	"priskombo/internal/middleware"
	"priskombo/internal/repository"
	"priskombo/internal/routes"
	"priskombo/internal/search"
	"priskombo/internal/telemetry"
)

type basketStore interface {
	basket.Store
	handlers.Pinger
}

func main() {
	cfg := config.LoadConfig()
	logger.Initialize(cfg.Env)
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := telemetry.Setup(cfg.TracingEnabled, os.Stdout)
	if err != nil {
		logger.Log.Fatal("tracing setup failed", zap.Error(err))
	}

	ctx := context.Background()
	store, closeStore, err := openBasketStore(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("basket store unavailable", zap.String("store", cfg.BasketStore), zap.Error(err))
	}
	defer closeStore()

	api := clients.NewAPIClient(cfg.APIBaseURL, cfg.RequestTimeout)

	catalogCache := cache.New(cfg.CategoryCacheTTL)
	defer catalogCache.Close()
	suggestCache := cache.New(cfg.SuggestCacheTTL)
	defer suggestCache.Close()

	catalogSvc := catalog.NewService(api, catalogCache, cfg.PageSize)
	searchSvc := search.NewService(api, suggestCache, cfg.SuggestCacheTTL, cfg.SuggestMinChars)
	basketSvc := basket.NewService(store, api, api)

	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 10*time.Minute)
	done := make(chan struct{})
	defer close(done)
	go limiter.Run(done)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		telemetry.Middleware(),
		middleware.RequestLogger(logger.Log),
		middleware.CORS(cfg.AllowedOrigins),
		limiter.Middleware(),
		middleware.Session(cfg.SessionCookie, cfg.IsProduction()),
	)

	routes.RegisterRoutes(router, routes.Handlers{
		Health:  handlers.NewHealthHandler(map[string]handlers.Pinger{"basket_store": store}),
		Catalog: handlers.NewCatalogHandler(catalogSvc, cfg.DealsLimit),
		Search:  handlers.NewSearchHandler(searchSvc),
		Basket:  handlers.NewBasketHandler(basketSvc),
	}, cfg.InternalAPIKey)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("server running",
			zap.String("port", cfg.Port),
			zap.String("api", cfg.APIBaseURL),
			zap.String("basket_store", cfg.BasketStore),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("forced shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Log.Warn("tracing shutdown", zap.Error(err))
	}
}

// openBasketStore picks the basket persistence named by BASKET_STORE.
func openBasketStore(ctx context.Context, cfg *config.Config) (basketStore, func(), error) {
	switch cfg.BasketStore {
	case "redis":
		client, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisBasketRepository(client, cfg.BasketTTL), func() { _ = client.Close() }, nil

	case "mongo":
		if cfg.MongoURI == "" {
			return nil, nil, errors.New("MONGO_URI is required for the mongo basket store")
		}
		client, err := database.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoBasketRepository(client.Database(cfg.MongoDB).Collection(repository.BasketCollection), cfg.BasketTTL)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = database.Disconnect(client)
			return nil, nil, err
		}
		return repo, func() { _ = database.Disconnect(client) }, nil

	case "memory":
		return repository.NewMemoryBasketRepository(), func() {}, nil

	default:
		return nil, nil, errors.New("unknown BASKET_STORE " + cfg.BasketStore)
	}
}
