package models

import (
	"encoding/json"
	"fmt"
)

// Plan types produced by the optimizer.
const (
	PlanSingleStore = "Samlad leverans"
	PlanSmartSplit  = "Smart Split"
)

type CartItem struct {
	Product  Product `json:"product" bson:"product"`
	Quantity int     `json:"quantity" bson:"quantity"`
}

type OptimizeItem struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

type OptimizeRequest struct {
	Items []OptimizeItem `json:"items"`
}

// StoreDetail is the part of a plan bought from one store.
type StoreDetail struct {
	Store        string        `json:"store"`
	ProductsCost float64       `json:"products_cost"`
	Shipping     float64       `json:"shipping"`
	Products     []PlanProduct `json:"products"`
}

type PlanProduct struct {
	ProductID int     `json:"product_id,omitempty"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity,omitempty"`
	URL       string  `json:"url,omitempty"`
}

type PurchasePlan struct {
	Type        string        `json:"type"`
	TotalCost   float64       `json:"total_cost"`
	Stores      StoreList     `json:"stores"`
	Details     []StoreDetail `json:"details"`
	Recommended bool          `json:"recommended"`
	Savings     float64       `json:"savings,omitempty"`
}

// StoreList is the stores a plan buys from. The optimizer reports either the
// store names or only their count; both decode.
type StoreList struct {
	Names []string
	Count int
}

func (s StoreList) MarshalJSON() ([]byte, error) {
	if s.Names != nil {
		return json.Marshal(s.Names)
	}
	return json.Marshal(s.Count)
}

func (s *StoreList) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err == nil {
		s.Names = names
		s.Count = len(names)
		return nil
	}
	var count int
	if err := json.Unmarshal(data, &count); err != nil {
		return fmt.Errorf("stores: expected list or count: %w", err)
	}
	s.Names = nil
	s.Count = count
	return nil
}
