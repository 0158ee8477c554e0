package models

// Offer is one store's price for a product.
type Offer struct {
	Price        float64  `json:"price" bson:"price"`
	Store        string   `json:"store" bson:"store"`
	URL          string   `json:"url" bson:"url"`
	Shipping     *float64 `json:"shipping,omitempty" bson:"shipping,omitempty"`
	RegularPrice *float64 `json:"regular_price,omitempty" bson:"regular_price,omitempty"`
	Discount     *float64 `json:"discount,omitempty" bson:"discount,omitempty"`
}

// Product is a catalog entry as returned by the price backend.
type Product struct {
	ID         int       `json:"id" bson:"id"`
	Name       string    `json:"name" bson:"name"`
	EAN        string    `json:"ean,omitempty" bson:"ean,omitempty"`
	Slug       string    `json:"slug" bson:"slug"`
	ImageURL   string    `json:"image_url,omitempty" bson:"image_url,omitempty"`
	CategoryID *int      `json:"category_id,omitempty" bson:"category_id,omitempty"`
	Category   *Category `json:"category,omitempty" bson:"category,omitempty"`
	Offers     []Offer   `json:"offers" bson:"offers"`
}

// ProductDetails is the single-product view.
type ProductDetails struct {
	Product     `bson:",inline"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	Brand       string `json:"brand,omitempty" bson:"brand,omitempty"`
}

// LowestOffer returns the cheapest offer, or nil when there are none.
func (p *Product) LowestOffer() *Offer {
	var best *Offer
	for i := range p.Offers {
		if best == nil || p.Offers[i].Price < best.Price {
			best = &p.Offers[i]
		}
	}
	return best
}

// ProductPage is one slice of a product listing.
type ProductPage struct {
	Data    []Product `json:"data"`
	Total   int       `json:"total"`
	Skip    int       `json:"skip"`
	Limit   int       `json:"limit"`
	HasMore bool      `json:"has_more"`
}

// Deal is a discounted product/offer pair for the landing page.
type Deal struct {
	ProductID       int     `json:"product_id"`
	Name            string  `json:"name"`
	Slug            string  `json:"slug"`
	ImageURL        string  `json:"image_url,omitempty"`
	Store           string  `json:"store"`
	URL             string  `json:"url,omitempty"`
	Price           float64 `json:"price"`
	RegularPrice    float64 `json:"regular_price"`
	DiscountPercent float64 `json:"discount_percent"`
}

// Suggestions feeds the search dropdown.
type Suggestions struct {
	Categories []Category `json:"categories"`
	Brands     []string   `json:"brands"`
	Products   []Product  `json:"products"`
}

// EmptySuggestions returns suggestions with non-nil lists.
func EmptySuggestions() Suggestions {
	return Suggestions{Categories: []Category{}, Brands: []string{}, Products: []Product{}}
}
