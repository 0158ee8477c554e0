package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"priskombo/internal/apperrors"
	"priskombo/internal/basket"
	"priskombo/internal/clients"
	"priskombo/internal/logger"
	"priskombo/internal/middleware"
	"priskombo/internal/models"
)

var basketErrors = []apperrors.Mapping{
	{Target: clients.ErrNotFound, As: apperrors.New(http.StatusNotFound, "product not found", nil)},
	{Target: basket.ErrItemNotFound, As: apperrors.New(http.StatusNotFound, "item not in basket", nil)},
	{Target: clients.ErrUnavailable, As: apperrors.ErrBadGateway},
}

var errQuantityRange = apperrors.New(http.StatusBadRequest,
	fmt.Sprintf("quantity must be at most %d", basket.MaxQuantity), nil)

type BasketHandler struct {
	basket *basket.Service
}

func NewBasketHandler(svc *basket.Service) *BasketHandler {
	return &BasketHandler{basket: svc}
}

type addItemRequest struct {
	Slug     string `json:"slug" binding:"required"`
	Quantity int    `json:"quantity"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type basketResponse struct {
	Items         []models.CartItem `json:"items"`
	Count         int               `json:"count"`
	CheapestTotal float64           `json:"cheapest_total"`
	UpdatedAt     *time.Time        `json:"updated_at,omitempty"`
}

func toResponse(b *basket.Basket) basketResponse {
	resp := basketResponse{
		Items:         b.Items,
		Count:         b.Count(),
		CheapestTotal: b.CheapestTotal(),
	}
	if !b.UpdatedAt.IsZero() {
		resp.UpdatedAt = &b.UpdatedAt
	}
	return resp
}

func (h *BasketHandler) Get(c *gin.Context) {
	b, err := h.basket.Get(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		h.fail(c, "get basket", err)
		return
	}
	c.JSON(http.StatusOK, toResponse(b))
}

// AddItem adds a product by slug, merging with an existing line.
func (h *BasketHandler) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.New(http.StatusBadRequest, "slug is required", err))
		return
	}

	if req.Quantity > basket.MaxQuantity {
		apperrors.Respond(c, errQuantityRange)
		return
	}

	b, err := h.basket.AddBySlug(c.Request.Context(), middleware.SessionID(c), req.Slug, req.Quantity)
	if err != nil {
		h.fail(c, "add to basket", err, zap.String("slug", req.Slug))
		return
	}
	c.JSON(http.StatusOK, toResponse(b))
}

// UpdateItem sets a line's quantity; zero removes the line.
func (h *BasketHandler) UpdateItem(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.Respond(c, apperrors.New(http.StatusBadRequest, "quantity is required", err))
		return
	}
	if *req.Quantity > basket.MaxQuantity {
		apperrors.Respond(c, errQuantityRange)
		return
	}

	b, err := h.basket.SetQuantity(c.Request.Context(), middleware.SessionID(c), id, *req.Quantity)
	if err != nil {
		h.fail(c, "update basket item", err)
		return
	}
	c.JSON(http.StatusOK, toResponse(b))
}

func (h *BasketHandler) IncrementItem(c *gin.Context) {
	h.itemOp(c, "increment basket item", h.basket.Increment)
}

func (h *BasketHandler) DecrementItem(c *gin.Context) {
	h.itemOp(c, "decrement basket item", h.basket.Decrement)
}

func (h *BasketHandler) RemoveItem(c *gin.Context) {
	h.itemOp(c, "remove basket item", h.basket.Remove)
}

func (h *BasketHandler) Clear(c *gin.Context) {
	if err := h.basket.Clear(c.Request.Context(), middleware.SessionID(c)); err != nil {
		h.fail(c, "clear basket", err)
		return
	}
	c.JSON(http.StatusOK, toResponse(basket.New(middleware.SessionID(c))))
}

// Optimize returns purchase plans for the basket. An empty basket answers 409
// with the path the UI should send the shopper to.
func (h *BasketHandler) Optimize(c *gin.Context) {
	plans, err := h.basket.Optimize(c.Request.Context(), middleware.SessionID(c))
	if errors.Is(err, basket.ErrEmptyBasket) {
		c.JSON(http.StatusConflict, gin.H{"error": "basket is empty", "redirect": "/"})
		return
	}
	if err != nil {
		h.fail(c, "optimize basket", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

type itemFunc func(ctx context.Context, sessionID string, productID int) (*basket.Basket, error)

func (h *BasketHandler) itemOp(c *gin.Context, op string, fn itemFunc) {
	id, ok := productID(c)
	if !ok {
		return
	}
	b, err := fn(c.Request.Context(), middleware.SessionID(c), id)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, toResponse(b))
}

func (h *BasketHandler) fail(c *gin.Context, op string, err error, fields ...zap.Field) {
	appErr := apperrors.Respond(c, err, basketErrors...)
	if appErr.Code >= http.StatusInternalServerError {
		logger.Error(c, op+" failed", err, fields...)
	}
}

func productID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 0 {
		apperrors.Respond(c, apperrors.New(http.StatusBadRequest, "invalid product id", err))
		return 0, false
	}
	return id, true
}
