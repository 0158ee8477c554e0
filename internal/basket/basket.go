package basket

import (
	"errors"
	"math"
	"time"

	"priskombo/internal/models"
)

// StorageKey is the key prefix baskets are persisted under.
const StorageKey = "priskombo_cart"

// MaxQuantity caps the units of one product in a basket.
const MaxQuantity = 99

var (
	ErrItemNotFound = errors.New("item not in basket")
	ErrEmptyBasket  = errors.New("basket is empty")
)

// Basket is one session's shopping list. Items are unique by product id and
// always hold a quantity of at least one.
type Basket struct {
	SessionID string            `json:"session_id" bson:"session_id"`
	Items     []models.CartItem `json:"items" bson:"items"`
	UpdatedAt time.Time         `json:"updated_at" bson:"updated_at"`
}

func New(sessionID string) *Basket {
	return &Basket{SessionID: sessionID, Items: []models.CartItem{}}
}

// Add puts qty units of product in the basket, merging with an existing entry.
// The merged quantity stops at MaxQuantity.
func (b *Basket) Add(product models.Product, qty int) {
	if qty < 1 {
		qty = 1
	}
	qty = capQuantity(qty)
	if i := b.index(product.ID); i >= 0 {
		b.Items[i].Quantity = capQuantity(b.Items[i].Quantity + qty)
		b.Items[i].Product = product
		return
	}
	b.Items = append(b.Items, models.CartItem{Product: product, Quantity: qty})
}

// SetQuantity replaces an item's quantity. Zero or less removes it, more than
// MaxQuantity is capped.
func (b *Basket) SetQuantity(productID, qty int) error {
	i := b.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	if qty <= 0 {
		b.removeAt(i)
		return nil
	}
	b.Items[i].Quantity = capQuantity(qty)
	return nil
}

// Increment adds one unit unless the item is already at MaxQuantity.
func (b *Basket) Increment(productID int) error {
	i := b.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	b.Items[i].Quantity = capQuantity(b.Items[i].Quantity + 1)
	return nil
}

// Decrement takes one unit away; the last unit removes the item.
func (b *Basket) Decrement(productID int) error {
	i := b.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	return b.SetQuantity(productID, b.Items[i].Quantity-1)
}

func (b *Basket) Remove(productID int) error {
	i := b.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	b.removeAt(i)
	return nil
}

func (b *Basket) Clear() {
	b.Items = []models.CartItem{}
}

// Count is the total number of units.
func (b *Basket) Count() int {
	n := 0
	for _, it := range b.Items {
		n += it.Quantity
	}
	return n
}

func (b *Basket) IsEmpty() bool {
	return len(b.Items) == 0
}

// CheapestTotal sums the lowest offer price of every item, ignoring shipping.
// Items without offers are skipped.
func (b *Basket) CheapestTotal() float64 {
	total := 0.0
	for _, it := range b.Items {
		if o := it.Product.LowestOffer(); o != nil {
			total += o.Price * float64(it.Quantity)
		}
	}
	return math.Round(total*100) / 100
}

func (b *Basket) OptimizeRequest() models.OptimizeRequest {
	req := models.OptimizeRequest{Items: make([]models.OptimizeItem, 0, len(b.Items))}
	for _, it := range b.Items {
		req.Items = append(req.Items, models.OptimizeItem{ProductID: it.Product.ID, Quantity: it.Quantity})
	}
	return req
}

// normalize repairs baskets read from storage written by older clients.
func (b *Basket) normalize() {
	if b.Items == nil {
		b.Items = []models.CartItem{}
		return
	}
	merged := make([]models.CartItem, 0, len(b.Items))
	seen := make(map[int]int, len(b.Items))
	for _, it := range b.Items {
		if it.Quantity < 1 {
			continue
		}
		it.Quantity = capQuantity(it.Quantity)
		if i, ok := seen[it.Product.ID]; ok {
			merged[i].Quantity = capQuantity(merged[i].Quantity + it.Quantity)
			continue
		}
		seen[it.Product.ID] = len(merged)
		merged = append(merged, it)
	}
	b.Items = merged
}

// capQuantity limits qty to MaxQuantity.
func capQuantity(qty int) int {
	if qty > MaxQuantity {
		return MaxQuantity
	}
	return qty
}

func (b *Basket) index(productID int) int {
	for i, it := range b.Items {
		if it.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (b *Basket) removeAt(i int) {
	b.Items = append(b.Items[:i], b.Items[i+1:]...)
}
