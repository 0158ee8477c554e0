package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"priskombo/internal/apperrors"
	"priskombo/internal/catalog"
	"priskombo/internal/clients"
	"priskombo/internal/logger"
	"priskombo/internal/models"
)

var catalogErrors = []apperrors.Mapping{
	{Target: clients.ErrNotFound, As: apperrors.New(http.StatusNotFound, "not found", nil)},
	{Target: catalog.ErrCategoryNotFound, As: apperrors.New(http.StatusNotFound, "category not found", nil)},
	{Target: clients.ErrUnavailable, As: apperrors.ErrBadGateway},
}

type CatalogHandler struct {
	catalog    *catalog.Service
	dealsLimit int
}

func NewCatalogHandler(svc *catalog.Service, dealsLimit int) *CatalogHandler {
	return &CatalogHandler{catalog: svc, dealsLimit: dealsLimit}
}

// Home serves deals and the category tree for the landing page.
func (h *CatalogHandler) Home(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Home(c.Request.Context(), h.dealsLimit))
}

// Categories serves the category tree, empty when the backend is down.
func (h *CatalogHandler) Categories(c *gin.Context) {
	tree, err := h.catalog.Tree(c.Request.Context())
	if err != nil {
		logger.Warn(c, "categories unavailable", err)
		tree = []models.CategoryNode{}
	}
	c.JSON(http.StatusOK, tree)
}

func (h *CatalogHandler) Category(c *gin.Context) {
	category, err := h.catalog.CategoryBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		apperrors.Respond(c, err, catalogErrors...)
		return
	}
	c.JSON(http.StatusOK, category)
}

// CategoryProducts serves one page of a category listing.
func (h *CatalogHandler) CategoryProducts(c *gin.Context) {
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	slug := c.Param("slug")

	page, err := h.catalog.CategoryProducts(c.Request.Context(), slug, skip, limit, c.Query("sort"))
	if err != nil {
		if errors.Is(err, catalog.ErrCategoryNotFound) {
			apperrors.Respond(c, err, catalogErrors...)
			return
		}
		logger.Warn(c, "category products unavailable", err, zap.String("slug", slug))
		skip, limit = h.catalog.ClampPage(skip, limit)
		page = &models.ProductPage{Data: []models.Product{}, Skip: skip, Limit: limit}
	}
	c.JSON(http.StatusOK, page)
}

func (h *CatalogHandler) Product(c *gin.Context) {
	product, err := h.catalog.Product(c.Request.Context(), c.Param("slug"))
	if err != nil {
		apperrors.Respond(c, err, catalogErrors...)
		return
	}
	c.JSON(http.StatusOK, product)
}

// Resolve tells the UI whether a catch-all path names a product or a category.
// Only the last path segment is considered.
func (h *CatalogHandler) Resolve(c *gin.Context) {
	path := strings.Trim(c.Param("path"), "/")
	if path == "" {
		apperrors.Respond(c, apperrors.New(http.StatusBadRequest, "missing slug", nil))
		return
	}
	segments := strings.Split(path, "/")

	res, err := h.catalog.Resolve(c.Request.Context(), segments[len(segments)-1])
	if err != nil {
		apperrors.Respond(c, err, catalogErrors...)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *CatalogHandler) Deals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(h.dealsLimit)))

	deals, err := h.catalog.Deals(c.Request.Context(), limit)
	if err != nil {
		logger.Warn(c, "deals unavailable", err)
		deals = []models.Deal{}
	}
	c.JSON(http.StatusOK, deals)
}

// PurgeCache drops cached categories and deals.
func (h *CatalogHandler) PurgeCache(c *gin.Context) {
	h.catalog.Invalidate(c)
	c.JSON(http.StatusOK, gin.H{"message": "catalog cache purged"})
}
