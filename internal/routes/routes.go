package routes

import (
	"github.com/gin-gonic/gin"

	"priskombo/internal/handlers"
	"priskombo/internal/middleware"
)

type Handlers struct {
	Health  *handlers.HealthHandler
	Catalog *handlers.CatalogHandler
	Search  *handlers.SearchHandler
	Basket  *handlers.BasketHandler
}

// RegisterRoutes mounts the public API and the operator endpoints under
// /internal, which require internalAPIKey.
func RegisterRoutes(router *gin.Engine, h Handlers, internalAPIKey string) {
	router.GET("/health", h.Health.Health)

	api := router.Group("/api")
	{
		api.GET("/home", h.Catalog.Home)
		api.GET("/categories", h.Catalog.Categories)
		api.GET("/categories/:slug", h.Catalog.Category)
		api.GET("/categories/:slug/products", h.Catalog.CategoryProducts)
		api.GET("/products/:slug", h.Catalog.Product)
		api.GET("/resolve/*path", h.Catalog.Resolve)
		api.GET("/deals", h.Catalog.Deals)

		api.GET("/search", h.Search.Search)
		api.GET("/search/suggestions", h.Search.Suggestions)
	}

	basket := api.Group("/basket")
	{
		basket.GET("", h.Basket.Get)
		basket.DELETE("", h.Basket.Clear)
		basket.POST("/items", h.Basket.AddItem)
		basket.PATCH("/items/:id", h.Basket.UpdateItem)
		basket.DELETE("/items/:id", h.Basket.RemoveItem)
		basket.POST("/items/:id/increment", h.Basket.IncrementItem)
		basket.POST("/items/:id/decrement", h.Basket.DecrementItem)
		basket.POST("/optimize", h.Basket.Optimize)
	}

	internal := router.Group("/internal", middleware.ValidateAPIKey(internalAPIKey))
	{
		internal.POST("/cache/purge", h.Catalog.PurgeCache)
	}
}
