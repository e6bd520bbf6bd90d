// Package service orchestrates carts across the persistence gateway, the
// shared browser and the storefront adapters. Every browser operation runs in
// a session restored from the cart's saved state, and the state the session
// ends with is written back together with the row changes it justifies.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/adapter"
	"github.com/xkilldash9x/cartwright/internal/browser"
	"github.com/xkilldash9x/cartwright/internal/errs"
	"github.com/xkilldash9x/cartwright/internal/observability"
	"github.com/xkilldash9x/cartwright/internal/store"
)

// Adapters resolves the storefront adapter for a product URL.
type Adapters interface {
	ForURL(productURL string) (adapter.Adapter, error)
}

// Service implements the cart, catalogue and checkout operations.
type Service struct {
	repo     store.Repository
	browser  browser.Provider
	adapters Adapters
	metrics  *observability.Metrics
	logger   *zap.Logger

	locks *cartLocks
}

// New wires a service. metrics may be nil.
func New(repo store.Repository, provider browser.Provider, adapters Adapters, metrics *observability.Metrics, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		browser:  provider,
		adapters: adapters,
		metrics:  metrics,
		logger:   logger.Named("service"),
		locks:    newCartLocks(),
	}
}

// --- Plain persistence operations ---

// CreateCart opens a new active cart for sessionID, retiring the session's previous one.
func (s *Service) CreateCart(ctx context.Context, sessionID string) (schemas.Cart, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return schemas.Cart{}, errs.New(errs.Invalid, errs.ReasonNone, "session_id is required")
	}
	cart, err := s.repo.CreateCart(ctx, sessionID)
	if err != nil {
		return schemas.Cart{}, err
	}
	s.logger.Info("Cart created.", observability.CartID(cart.ID), zap.String("session_id", sessionID))
	return cart, nil
}

func (s *Service) GetCart(ctx context.Context, id uuid.UUID) (schemas.Cart, error) {
	return s.repo.GetCart(ctx, id)
}

func (s *Service) DeleteCart(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.lock(id)
	defer unlock()
	return s.repo.DeleteCart(ctx, id)
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (schemas.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (schemas.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteOrder(ctx, id)
}

// --- Browser backed operations ---

// Variants lists a product's variants in a fresh session that belongs to no cart.
func (s *Service) Variants(ctx context.Context, productURL string) (schemas.VariantsResult, error) {
	return s.variants(ctx, productURL, "list_variants", func(a adapter.Adapter, page browser.Page, productURL string) (schemas.VariantsResult, error) {
		return a.ListVariants(ctx, page, productURL)
	})
}

// DiscoverVariants lists a product's variants and then settles on one the
// way add-product would: none offered, a single one auto-selected, or the
// named one. Several variants with no name, or a name the page does not
// offer, fail with the offered names attached.
func (s *Service) DiscoverVariants(ctx context.Context, productURL, variant string) (schemas.VariantsResult, error) {
	variant = strings.TrimSpace(variant)
	return s.variants(ctx, productURL, "discover_variants", func(a adapter.Adapter, page browser.Page, productURL string) (schemas.VariantsResult, error) {
		return a.DiscoverVariants(ctx, page, productURL, variant)
	})
}

func (s *Service) variants(ctx context.Context, productURL, op string, fn func(adapter.Adapter, browser.Page, string) (schemas.VariantsResult, error)) (schemas.VariantsResult, error) {
	productURL = strings.TrimSpace(productURL)
	if productURL == "" {
		return schemas.VariantsResult{}, errs.New(errs.Invalid, errs.ReasonNone, "product_url is required")
	}
	a, err := s.adapters.ForURL(productURL)
	if err != nil {
		return schemas.VariantsResult{}, err
	}

	var result schemas.VariantsResult
	_, err = s.run(ctx, a, op, uuid.Nil, nil, func(page browser.Page) error {
		var ferr error
		result, ferr = fn(a, page, productURL)
		return ferr
	})
	return result, err
}

// AddProductInput is a request to put a product into a cart.
type AddProductInput struct {
	URL      string
	Variant  string
	Quantity int
}

// AddProduct adds the product to the cart's live storefront cart and persists
// it. Adding a URL the cart already holds grows that row's quantity.
func (s *Service) AddProduct(ctx context.Context, cartID uuid.UUID, in AddProductInput) (schemas.AddToCartResponse, error) {
	in.URL = strings.TrimSpace(in.URL)
	in.Variant = strings.TrimSpace(in.Variant)
	if in.URL == "" {
		return schemas.AddToCartResponse{}, errs.New(errs.Invalid, errs.ReasonNone, "product_url is required")
	}
	if in.Quantity < 1 {
		return schemas.AddToCartResponse{}, errs.Newf(errs.Invalid, errs.ReasonNone, "Quantity must be at least 1, got %d", in.Quantity)
	}

	unlock := s.locks.lock(cartID)
	defer unlock()

	cart, err := s.activeCart(ctx, cartID)
	if err != nil {
		return schemas.AddToCartResponse{}, err
	}
	products, err := s.repo.ProductsByCart(ctx, cartID)
	if err != nil {
		return schemas.AddToCartResponse{}, err
	}
	if err := checkSameDomain(products, in.URL); err != nil {
		return schemas.AddToCartResponse{}, err
	}

	row := schemas.Product{CartID: cartID, URL: in.URL, Variant: in.Variant, Quantity: in.Quantity}
	existing := 0
	for _, p := range products {
		if p.URL == in.URL {
			row.ID = p.ID
			existing = p.Quantity
		}
	}

	a, err := s.adapters.ForURL(in.URL)
	if err != nil {
		return schemas.AddToCartResponse{}, err
	}

	var added schemas.AddProductResult
	state, err := s.run(ctx, a, "add_product", cart.ID, cart.SessionState, func(page browser.Page) error {
		added, err = a.AddProduct(ctx, page, schemas.AddProductRequest{
			URL:              in.URL,
			Variant:          in.Variant,
			Quantity:         in.Quantity,
			ExistingQuantity: existing,
		})
		return err
	})
	if err != nil {
		return schemas.AddToCartResponse{}, err
	}

	row.Quantity += existing
	row.Price = added.Price
	row.MSRP = added.MSRP
	err = s.repo.WithTx(ctx, func(tx store.Repository) error {
		saved, err := tx.SaveProduct(ctx, row)
		if err != nil {
			return err
		}
		row = saved
		return tx.SaveCartSessionState(ctx, cartID, state)
	})
	if err != nil {
		return schemas.AddToCartResponse{}, err
	}

	s.logger.Info("Product added to cart.",
		observability.CartID(cartID),
		zap.Stringer("product_id", row.ID),
		zap.Int("quantity", row.Quantity))
	return schemas.AddToCartResponse{ProductID: row.ID, CartDetails: added.Item}, nil
}

// DeleteProduct removes a product from the live cart and from the database.
func (s *Service) DeleteProduct(ctx context.Context, cartID, productID uuid.UUID) error {
	unlock := s.locks.lock(cartID)
	defer unlock()

	cart, err := s.activeCart(ctx, cartID)
	if err != nil {
		return err
	}
	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if product.CartID != cartID {
		return errs.Newf(errs.NotFound, errs.ReasonProductNotFound, "Product %s not found in Cart %s", productID, cartID)
	}

	a, err := s.adapters.ForURL(product.URL)
	if err != nil {
		return err
	}
	state, err := s.run(ctx, a, "delete_product", cart.ID, cart.SessionState, func(page browser.Page) error {
		return a.DeleteItemProduct(ctx, page, product)
	})
	if err != nil {
		return err
	}

	return s.repo.WithTx(ctx, func(tx store.Repository) error {
		if err := tx.DeleteProduct(ctx, productID); err != nil {
			return err
		}
		return tx.SaveCartSessionState(ctx, cartID, state)
	})
}

// VerifyCart reads the cart back from the storefront.
func (s *Service) VerifyCart(ctx context.Context, cartID uuid.UUID) (schemas.CartSnapshot, error) {
	cart, products, a, err := s.checkoutTarget(ctx, cartID, false)
	if err != nil {
		return schemas.CartSnapshot{}, err
	}
	var snapshot schemas.CartSnapshot
	_, err = s.run(ctx, a, "fetch_cart", cart.ID, cart.SessionState, func(page browser.Page) error {
		snapshot, err = a.FetchCartDetails(ctx, page, products[0].URL)
		return err
	})
	return snapshot, err
}

func (s *Service) CheckoutOptions(ctx context.Context, cartID uuid.UUID) (schemas.CheckoutOptions, error) {
	cart, _, a, err := s.checkoutTarget(ctx, cartID, true)
	if err != nil {
		return schemas.CheckoutOptions{}, err
	}
	var opts schemas.CheckoutOptions
	_, err = s.run(ctx, a, "checkout_options", cart.ID, cart.SessionState, func(page browser.Page) error {
		opts, err = a.GetCheckoutOptions(ctx, page)
		return err
	})
	return opts, err
}

func (s *Service) CheckoutOptionsV2(ctx context.Context, cartID uuid.UUID) (schemas.CheckoutOptionsV2, error) {
	cart, _, a, err := s.checkoutTarget(ctx, cartID, true)
	if err != nil {
		return schemas.CheckoutOptionsV2{}, err
	}
	var opts schemas.CheckoutOptionsV2
	_, err = s.run(ctx, a, "checkout_options_v2", cart.ID, cart.SessionState, func(page browser.Page) error {
		opts, err = a.GetCheckoutOptionsV2(ctx, page)
		return err
	})
	return opts, err
}

// SubmitOrder places the order with the customer's form data and records it.
func (s *Service) SubmitOrder(ctx context.Context, cartID uuid.UUID, info schemas.UserInfo) (schemas.Order, error) {
	return s.submit(ctx, cartID, "submit_order", func(a adapter.Adapter, page browser.Page) (schemas.OrderDetails, error) {
		return a.SubmitOrder(ctx, page, info)
	})
}

// SubmitOrderV2 places the order from a filled-in v2 options document.
func (s *Service) SubmitOrderV2(ctx context.Context, cartID uuid.UUID, opts schemas.CheckoutOptionsV2) (schemas.Order, error) {
	return s.submit(ctx, cartID, "submit_order_v2", func(a adapter.Adapter, page browser.Page) (schemas.OrderDetails, error) {
		return a.SubmitOrderV2(ctx, page, opts)
	})
}

func (s *Service) submit(ctx context.Context, cartID uuid.UUID, op string, place func(adapter.Adapter, browser.Page) (schemas.OrderDetails, error)) (schemas.Order, error) {
	unlock := s.locks.lock(cartID)
	defer unlock()

	cart, _, a, err := s.checkoutTarget(ctx, cartID, true)
	if err != nil {
		return schemas.Order{}, err
	}

	var details schemas.OrderDetails
	state, err := s.run(ctx, a, op, cart.ID, cart.SessionState, func(page browser.Page) error {
		details, err = place(a, page)
		return err
	})
	if err != nil {
		return schemas.Order{}, err
	}

	order := schemas.Order{
		CartID:      cartID,
		OrderType:   details.OrderType,
		PaymentType: details.PaymentType,
		PickupTime:  details.PickupTime,
	}
	err = s.repo.WithTx(ctx, func(tx store.Repository) error {
		saved, err := tx.SaveOrder(ctx, order)
		if err != nil {
			return err
		}
		order = saved
		return tx.SaveCartSessionState(ctx, cartID, state)
	})
	if err != nil {
		// The storefront has the order even though the row did not land.
		s.logger.Error("Order placed but not recorded.",
			observability.CartID(cartID),
			zap.String("order_type", details.OrderType),
			zap.String("pickup_time", details.PickupTime),
			zap.Error(err))
		return schemas.Order{}, err
	}

	s.logger.Info("Order submitted.", observability.CartID(cartID), zap.Stringer("order_id", order.ID))
	return order, nil
}

// --- Helpers ---

// activeCart loads a cart that still accepts mutations.
func (s *Service) activeCart(ctx context.Context, id uuid.UUID) (schemas.Cart, error) {
	cart, err := s.repo.GetCart(ctx, id)
	if err != nil {
		return cart, err
	}
	if cart.Status != schemas.CartActive {
		return cart, errs.New(errs.Conflict, errs.ReasonCartInactive, "Cart is not active")
	}
	return cart, nil
}

// checkoutTarget loads the cart, its products and the adapter of the
// storefront the cart lives on. An empty cart fails before any browser work.
func (s *Service) checkoutTarget(ctx context.Context, cartID uuid.UUID, mutating bool) (schemas.Cart, []schemas.Product, adapter.Adapter, error) {
	var (
		cart schemas.Cart
		err  error
	)
	if mutating {
		cart, err = s.activeCart(ctx, cartID)
	} else {
		cart, err = s.repo.GetCart(ctx, cartID)
	}
	if err != nil {
		return cart, nil, nil, err
	}
	products, err := s.repo.ProductsByCart(ctx, cartID)
	if err != nil {
		return cart, nil, nil, err
	}
	if len(products) == 0 {
		return cart, nil, nil, errs.New(errs.NotFound, errs.ReasonCartEmpty, "Cart is empty")
	}
	a, err := s.adapters.ForURL(products[0].URL)
	if err != nil {
		return cart, nil, nil, err
	}
	return cart, products, a, nil
}

// checkSameDomain rejects a product from a different site than the cart already holds.
func checkSameDomain(products []schemas.Product, productURL string) error {
	if len(products) == 0 {
		return nil
	}
	incoming, err := adapter.Domain(productURL)
	if err != nil {
		return err
	}
	existing, err := adapter.Domain(products[0].URL)
	if err != nil {
		return err
	}
	if incoming != existing {
		return errs.Newf(errs.Conflict, errs.ReasonDomainMismatch,
			"Added product in %s but cart only accepts %s", incoming, existing)
	}
	return nil
}

// run opens a session restored from state, hands its page to fn and returns
// the storage state the session ends with. The session is closed on every path.
func (s *Service) run(ctx context.Context, a adapter.Adapter, op string, cartID uuid.UUID, state []byte, fn func(browser.Page) error) (out []byte, err error) {
	start := time.Now()
	storefront := a.Storefront()
	logger := observability.ForCart(s.logger, storefront, cartID).With(observability.Operation(op))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(errs.KindOf(err))
		}
		s.metrics.ObserveWorkflow(storefront, op, outcome, time.Since(start))
	}()

	session, err := s.browser.NewSession(ctx, state)
	if err != nil {
		return nil, errs.Wrap(err, "Failed to open a browser session")
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("Failed to close browser session.", zap.Error(cerr))
		}
	}()

	if err := fn(session.Page()); err != nil {
		if errs.KindOf(err) == errs.Internal {
			logger.Error("Storefront operation failed.", zap.Error(err))
		} else {
			logger.Info("Storefront operation refused.", zap.Error(err))
		}
		return nil, err
	}

	out, err = session.StorageState(ctx)
	if err != nil {
		return nil, errs.Wrap(err, "Failed to capture browser session state")
	}
	logger.Debug("Storefront operation finished.", zap.Duration("elapsed", time.Since(start)))
	return out, nil
}
