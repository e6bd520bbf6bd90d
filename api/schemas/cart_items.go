// File: api/schemas/cart_items.go
package schemas

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartItemRecord is an item as read back from the storefront's own cart UI.
// It only confirms a mutation; the persisted product row is authoritative.
type CartItemRecord struct {
	DispensaryName string `json:"dispensary_name"`
	ItemName       string `json:"item_name"`
	ItemPrice      string `json:"item_price"`
	ItemQuantity   string `json:"item_quantity"`
}

// CartLine is one row of a live cart listing.
type CartLine struct {
	ItemName     string `json:"item_name"`
	ItemPrice    string `json:"item_price"`
	ItemQuantity string `json:"item_quantity"`
}

// CartSnapshot is the live cart as currently rendered by the storefront.
type CartSnapshot struct {
	Items []CartLine `json:"cart_items"`
	// Subtotal has the currency sign stripped, or "N/A" when not shown.
	Subtotal string `json:"subtotal"`
}

// AddProductRequest is the input of an add-to-cart workflow.
type AddProductRequest struct {
	URL      string
	Variant  string
	Quantity int
	// ExistingQuantity is what the cart already holds for the same URL.
	ExistingQuantity int
}

// AddProductResult is the output of an add-to-cart workflow.
type AddProductResult struct {
	Price decimal.Decimal
	MSRP  decimal.Decimal
	Item  CartItemRecord
}

// AddToCartResponse is returned to callers of the add-product operation.
type AddToCartResponse struct {
	ProductID   uuid.UUID      `json:"product_id"`
	CartDetails CartItemRecord `json:"cart_details"`
}
