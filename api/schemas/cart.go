// File: api/schemas/cart.go
package schemas

import (
	"encoding/json"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

// CartStatus is the lifecycle state of a cart. Only active carts accept mutations.
type CartStatus string

const (
	CartActive   CartStatus = "active"
	CartInactive CartStatus = "inactive"
	CartOrdered  CartStatus = "ordered"
	CartDeleted  CartStatus = "deleted"
)

// Valid reports whether s is one of the known statuses.
func (s CartStatus) Valid() bool {
	switch s {
	case CartActive, CartInactive, CartOrdered, CartDeleted:
		return true
	}
	return false
}

// Cart owns a browsing identity on exactly one storefront.
type Cart struct {
	ID        uuid.UUID  `json:"id"`
	SessionID string     `json:"session_id"`
	Status    CartStatus `json:"status"`
	// SessionState is the opaque storage-state blob of the cart's browsing identity.
	SessionState json.RawMessage `json:"session_storage,omitempty"`
}

// Product is a persisted cart line.
type Product struct {
	ID       uuid.UUID       `json:"id"`
	CartID   uuid.UUID       `json:"cart_id"`
	URL      string          `json:"product_url"`
	Variant  string          `json:"product_variant,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	MSRP     decimal.Decimal `json:"msrp"`
}

// MarshalJSON renders Price and MSRP with two decimal places, the way the
// storefront printed them, so "$25.00" reads back as "25.00" and not "25".
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(struct {
		plain
		Price string `json:"price"`
		MSRP  string `json:"msrp"`
	}{plain: plain(p), Price: p.Price.StringFixed(2), MSRP: p.MSRP.StringFixed(2)})
}

// Order is the immutable record of a successful submission.
type Order struct {
	ID          uuid.UUID `json:"id"`
	CartID      uuid.UUID `json:"cart_id"`
	OrderType   string    `json:"order_type"`
	PaymentType string    `json:"payment_type"`
	PickupTime  string    `json:"pickup_time"`
}
