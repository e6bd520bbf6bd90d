// Package api exposes the cart service over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/errs"
	"github.com/xkilldash9x/cartwright/internal/observability"
	"github.com/xkilldash9x/cartwright/internal/service"
)

const maxBodyBytes = 1 << 20

// CartService is what the handlers call into. *service.Service implements it.
type CartService interface {
	CreateCart(ctx context.Context, sessionID string) (schemas.Cart, error)
	GetCart(ctx context.Context, id uuid.UUID) (schemas.Cart, error)
	DeleteCart(ctx context.Context, id uuid.UUID) error
	GetProduct(ctx context.Context, id uuid.UUID) (schemas.Product, error)
	GetOrder(ctx context.Context, id uuid.UUID) (schemas.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	Variants(ctx context.Context, productURL string) (schemas.VariantsResult, error)
	DiscoverVariants(ctx context.Context, productURL, variant string) (schemas.VariantsResult, error)
	AddProduct(ctx context.Context, cartID uuid.UUID, in service.AddProductInput) (schemas.AddToCartResponse, error)
	DeleteProduct(ctx context.Context, cartID, productID uuid.UUID) error
	VerifyCart(ctx context.Context, cartID uuid.UUID) (schemas.CartSnapshot, error)
	CheckoutOptions(ctx context.Context, cartID uuid.UUID) (schemas.CheckoutOptions, error)
	CheckoutOptionsV2(ctx context.Context, cartID uuid.UUID) (schemas.CheckoutOptionsV2, error)
	SubmitOrder(ctx context.Context, cartID uuid.UUID, info schemas.UserInfo) (schemas.Order, error)
	SubmitOrderV2(ctx context.Context, cartID uuid.UUID, opts schemas.CheckoutOptionsV2) (schemas.Order, error)
}

var _ CartService = (*service.Service)(nil)

// Handler holds the route handlers.
type Handler struct {
	svc    CartService
	logger *zap.Logger
}

// NewRouter builds the HTTP surface. gatherer backs /metrics.
func NewRouter(svc CartService, gatherer prometheus.Gatherer, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	logger = logger.Named("api")
	h := &Handler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(instrument(logger, metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/variations", h.variations)

	r.Route("/carts", func(r chi.Router) {
		r.Post("/", h.createCart)
		r.Route("/{cart_id}", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.deleteCart)
			r.Post("/add-product", h.addProduct)
			r.Delete("/products/{product_id}", h.deleteProduct)
			r.Get("/verify", h.verifyCart)
			r.Get("/checkout-options", h.checkoutOptions)
			r.Post("/submit-order", h.submitOrder)
			r.Get("/checkout-options-v2", h.checkoutOptionsV2)
			r.Post("/submit-order-v2", h.submitOrderV2)
		})
	})

	r.Get("/products/{product_id}", h.getProduct)
	r.Get("/orders/{order_id}", h.getOrder)
	r.Delete("/orders/{order_id}", h.deleteOrder)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, logger, errs.New(errs.NotFound, errs.ReasonNone, "Route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, logger, http.StatusMethodNotAllowed, ErrorResponse{
			Status:  "error",
			Kind:    string(errs.Invalid),
			Message: "Method not allowed",
		})
	})
	return r
}

func pathID(r *http.Request, param, what string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errs.Newf(errs.Invalid, errs.ReasonNone, "Invalid %s id %q", what, raw)
	}
	return id, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, h.logger, err)
}

func (h *Handler) ok(w http.ResponseWriter, status int, data any) {
	respondJSON(w, h.logger, status, data)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.ok(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) variations(w http.ResponseWriter, r *http.Request) {
	productURL := r.URL.Query().Get("product_url")
	if productURL == "" {
		h.fail(w, r, errs.New(errs.Invalid, errs.ReasonNone, "product_url is required"))
		return
	}
	// Sending product_variant, even empty, asks for the variant add-product
	// would pick alongside the listing.
	var (
		result schemas.VariantsResult
		err    error
	)
	if q := r.URL.Query(); q.Has("product_variant") {
		result, err = h.svc.DiscoverVariants(r.Context(), productURL, q.Get("product_variant"))
	} else {
		result, err = h.svc.Variants(r.Context(), productURL)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, result)
}

// --- Carts ---

func (h *Handler) createCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.svc.CreateCart(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, map[string]uuid.UUID{"cart_id": cart.ID})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "cart_id", "cart")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	cart, err := h.svc.GetCart(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, cart)
}

func (h *Handler) deleteCart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "cart_id", "cart")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.DeleteCart(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, MessageResponse{Message: "Cart successfully deleted."})
}

func (h *Handler) addProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "cart_id", "cart")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	quantity, err := parseQuantity(r.FormValue("quantity"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in := service.AddProductInput{
		URL:      r.FormValue("product_url"),
		Variant:  r.FormValue("product_variant"),
		Quantity: quantity,
	}
	resp, err := h.svc.AddProduct(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusCreated, resp)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	cartID, err := pathID(r, "cart_id", "cart")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	productID, err := pathID(r, "product_id", "product")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), cartID, productID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, MessageResponse{Message: "Product successfully deleted from cart."})
}

func (h *Handler) verifyCart(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "cart_id", "cart")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snapshot, err := h.svc.VerifyCart(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, snapshot)
}

// --- Checkout ---

func (h *Handler) checkoutOptions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "cart_id", "cart")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	opts, err := h.svc.CheckoutOptions(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, opts)
}

func (h *Handler) checkoutOptionsV2(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "cart_id", "cart")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	opts, err := h.svc.CheckoutOptionsV2(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, opts)
}

func (h *Handler) submitOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "cart_id", "cart")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.fail(w, r, errs.New(errs.Invalid, errs.ReasonNone, "Malformed form body", errs.WithCause(err)))
		return
	}
	info, err := parseUserInfo(r.Form)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	order, err := h.svc.SubmitOrder(r.Context(), id, info)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, map[string]uuid.UUID{"order_id": order.ID})
}

func (h *Handler) submitOrderV2(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "cart_id", "cart")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.fail(w, r, errs.New(errs.Invalid, errs.ReasonNone, "Unreadable request body", errs.WithCause(err)))
		return
	}
	var opts schemas.CheckoutOptionsV2
	if err := json.Unmarshal(body, &opts); err != nil {
		h.fail(w, r, errs.New(errs.Invalid, errs.ReasonNone, "Invalid checkout options JSON", errs.WithCause(err)))
		return
	}
	order, err := h.svc.SubmitOrderV2(r.Context(), id, opts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, map[string]uuid.UUID{"order_id": order.ID})
}

// --- Products and orders ---

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "product_id", "product")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	product, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, product)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "order_id", "order")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	order, err := h.svc.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, order)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "order_id", "order")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.svc.DeleteOrder(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, http.StatusOK, MessageResponse{Message: "Order successfully deleted."})
}
