// internal/adapter/adapter.go
// Package adapter drives storefront pages through product discovery, cart
// assembly, checkout harvesting and order submission. The phase sequencing
// lives once in the workflow; each storefront only supplies the hooks of the
// site interface.
package adapter

import (
	"context"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/browser"
)

// Adapter is the uniform set of storefront operations. Every method runs
// against a page owned by the caller; nothing is retried mid-sequence, so a
// failed call must be restarted from navigation.
type Adapter interface {
	// Storefront returns the identity used for selector lookup.
	Storefront() string

	// ListVariants describes the product page and every variant it offers.
	ListVariants(ctx context.Context, page browser.Page, productURL string) (schemas.VariantsResult, error)
	// DiscoverVariants lists the variants and resolves variant against them.
	DiscoverVariants(ctx context.Context, page browser.Page, productURL, variant string) (schemas.VariantsResult, error)
	// AddProduct puts the product in the live cart and reads it back.
	AddProduct(ctx context.Context, page browser.Page, req schemas.AddProductRequest) (schemas.AddProductResult, error)
	// FetchCartDetails lists the live cart as rendered from productURL.
	FetchCartDetails(ctx context.Context, page browser.Page, productURL string) (schemas.CartSnapshot, error)
	// DeleteItemProduct removes the persisted product's line from the live cart.
	DeleteItemProduct(ctx context.Context, page browser.Page, product schemas.Product) error

	GetCheckoutOptions(ctx context.Context, page browser.Page) (schemas.CheckoutOptions, error)
	GetCheckoutOptionsV2(ctx context.Context, page browser.Page) (schemas.CheckoutOptionsV2, error)
	SubmitOrder(ctx context.Context, page browser.Page, info schemas.UserInfo) (schemas.OrderDetails, error)
	SubmitOrderV2(ctx context.Context, page browser.Page, opts schemas.CheckoutOptionsV2) (schemas.OrderDetails, error)
}

// lineRefs locate the fields of one cart line, relative to the line.
type lineRefs struct {
	name     string
	price    string
	quantity string
	variant  string
	// quantityFromInput reads the quantity from an input's value instead of its text.
	quantityFromInput bool
	// splitPrice joins dollars and cents rendered on separate lines.
	splitPrice bool
}

// cartLayout is how a storefront renders cart lines after an add and in a plain listing.
type cartLayout struct {
	added  lineRefs
	listed lineRefs
}

// orderInput is what a submission fills in and selects.
type orderInput struct {
	schemas.UserInfo
	mmjID string
	// v2 submissions skip promo codes and use the caller's payment selection.
	v2 bool
}

// site is the storefront-specific part of the workflow.
type site interface {
	initialChecks(ctx context.Context, pg browser.Page) error
	// bagCheck handles what the storefront shows right after the add click.
	bagCheck(ctx context.Context, pg browser.Page) error
	// selectQuantity sets the quantity to add; existing is what the cart already holds.
	selectQuantity(ctx context.Context, pg browser.Page, quantity, existing int) error
	openCart(ctx context.Context, pg browser.Page) error
	checkCartEmpty(ctx context.Context, pg browser.Page, container browser.Element) error
	cartItems(ctx context.Context, pg browser.Page, container browser.Element) ([]browser.Element, error)
	// addedDispensary reads the dispensary name once the cart shows the new item.
	addedDispensary(ctx context.Context, pg browser.Page) (string, error)
	layout() cartLayout

	variationPrice(ctx context.Context, pg browser.Page, scope browser.Querier) (price, msrp string, err error)

	deletionURL(product schemas.Product) string
	// cartVariantAt reads the variant of the idx-th cart line. comparable is
	// false when the line shows no variant to check.
	cartVariantAt(ctx context.Context, pg browser.Page, idx int) (variant string, comparable bool, err error)

	fetchCheckoutOptions(ctx context.Context, pg browser.Page) (schemas.CheckoutOptions, error)
	checkoutChecks(ctx context.Context, pg browser.Page) error
	form() formRefs
	placeOrderDetails(ctx context.Context, pg browser.Page, in orderInput) (schemas.OrderDetails, error)
}
