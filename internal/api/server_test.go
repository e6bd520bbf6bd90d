package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/errs"
	"github.com/xkilldash9x/cartwright/internal/observability"
	"github.com/xkilldash9x/cartwright/internal/service"
)

// mockCartService mocks CartService.
type mockCartService struct {
	mock.Mock
}

func (m *mockCartService) CreateCart(ctx context.Context, sessionID string) (schemas.Cart, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(schemas.Cart), args.Error(1)
}

func (m *mockCartService) GetCart(ctx context.Context, id uuid.UUID) (schemas.Cart, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(schemas.Cart), args.Error(1)
}

func (m *mockCartService) DeleteCart(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCartService) GetProduct(ctx context.Context, id uuid.UUID) (schemas.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(schemas.Product), args.Error(1)
}

func (m *mockCartService) GetOrder(ctx context.Context, id uuid.UUID) (schemas.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(schemas.Order), args.Error(1)
}

func (m *mockCartService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCartService) Variants(ctx context.Context, productURL string) (schemas.VariantsResult, error) {
	args := m.Called(ctx, productURL)
	return args.Get(0).(schemas.VariantsResult), args.Error(1)
}

func (m *mockCartService) DiscoverVariants(ctx context.Context, productURL, variant string) (schemas.VariantsResult, error) {
	args := m.Called(ctx, productURL, variant)
	return args.Get(0).(schemas.VariantsResult), args.Error(1)
}

func (m *mockCartService) AddProduct(ctx context.Context, cartID uuid.UUID, in service.AddProductInput) (schemas.AddToCartResponse, error) {
	args := m.Called(ctx, cartID, in)
	return args.Get(0).(schemas.AddToCartResponse), args.Error(1)
}

func (m *mockCartService) DeleteProduct(ctx context.Context, cartID, productID uuid.UUID) error {
	return m.Called(ctx, cartID, productID).Error(0)
}

func (m *mockCartService) VerifyCart(ctx context.Context, cartID uuid.UUID) (schemas.CartSnapshot, error) {
	args := m.Called(ctx, cartID)
	return args.Get(0).(schemas.CartSnapshot), args.Error(1)
}

func (m *mockCartService) CheckoutOptions(ctx context.Context, cartID uuid.UUID) (schemas.CheckoutOptions, error) {
	args := m.Called(ctx, cartID)
	return args.Get(0).(schemas.CheckoutOptions), args.Error(1)
}

func (m *mockCartService) CheckoutOptionsV2(ctx context.Context, cartID uuid.UUID) (schemas.CheckoutOptionsV2, error) {
	args := m.Called(ctx, cartID)
	return args.Get(0).(schemas.CheckoutOptionsV2), args.Error(1)
}

func (m *mockCartService) SubmitOrder(ctx context.Context, cartID uuid.UUID, info schemas.UserInfo) (schemas.Order, error) {
	args := m.Called(ctx, cartID, info)
	return args.Get(0).(schemas.Order), args.Error(1)
}

func (m *mockCartService) SubmitOrderV2(ctx context.Context, cartID uuid.UUID, opts schemas.CheckoutOptionsV2) (schemas.Order, error) {
	args := m.Called(ctx, cartID, opts)
	return args.Get(0).(schemas.Order), args.Error(1)
}

type testServer struct {
	svc  *mockCartService
	reg  *prometheus.Registry
	logs *observer.ObservedLogs
	h    http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	ts := &testServer{svc: new(mockCartService), reg: prometheus.NewRegistry(), logs: logs}
	ts.h = NewRouter(ts.svc, ts.reg, observability.NewMetrics(ts.reg), zap.New(core))
	t.Cleanup(func() { ts.svc.AssertExpectations(t) })
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.Equal(t, "error", body.Status)
	return body
}

func formRequest(method, target string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestCarts(t *testing.T) {
	cartID := uuid.New()

	t.Run("should create a cart for the session", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("CreateCart", mock.Anything, "sess-1").Return(schemas.Cart{ID: cartID}, nil).Once()

		rec := ts.do(httptest.NewRequest(http.MethodPost, "/carts?session_id=sess-1", nil))
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"cart_id":"`+cartID.String()+`"}`, rec.Body.String())
	})

	t.Run("should render an inactive cart as a conflict", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("GetCart", mock.Anything, cartID).
			Return(schemas.Cart{}, errs.New(errs.Conflict, errs.ReasonCartInactive, "Cart is not active")).Once()

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/carts/"+cartID.String(), nil))
		require.Equal(t, http.StatusConflict, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "conflict", body.Kind)
		assert.Equal(t, "cart_inactive", body.Reason)
		assert.Equal(t, "Cart is not active", body.Message)
	})

	t.Run("should reject a malformed cart id", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(httptest.NewRequest(http.MethodDelete, "/carts/not-a-uuid", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, `Invalid cart id "not-a-uuid"`)
	})

	t.Run("should delete a cart", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("DeleteCart", mock.Anything, cartID).Return(nil).Once()
		rec := ts.do(httptest.NewRequest(http.MethodDelete, "/carts/"+cartID.String(), nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAddProductHandler(t *testing.T) {
	cartID, productID := uuid.New(), uuid.New()
	productURL := "https://dutchie.com/dispensary/x/product/y"

	t.Run("should pass form fields through with a default quantity", func(t *testing.T) {
		ts := newTestServer(t)
		in := service.AddProductInput{URL: productURL, Variant: "1g", Quantity: 1}
		resp := schemas.AddToCartResponse{ProductID: productID, CartDetails: schemas.CartItemRecord{ItemName: "Y", ItemPrice: "$25.00", ItemQuantity: "1"}}
		ts.svc.On("AddProduct", mock.Anything, cartID, in).Return(resp, nil).Once()

		rec := ts.do(formRequest(http.MethodPost, "/carts/"+cartID.String()+"/add-product",
			url.Values{"product_url": {productURL}, "product_variant": {"1g"}}))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var got schemas.AddToCartResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, resp, got)
	})

	t.Run("should reject a bad quantity before calling the service", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(formRequest(http.MethodPost, "/carts/"+cartID.String()+"/add-product",
			url.Values{"product_url": {productURL}, "quantity": {"-2"}}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid", decodeError(t, rec).Kind)
	})

	t.Run("should list the offered variants on a bad variant", func(t *testing.T) {
		ts := newTestServer(t)
		bad := errs.New(errs.Invalid, errs.ReasonVariantInvalid, "Variant 2g is not offered", errs.WithVariants([]string{"1g", "3.5g"}))
		ts.svc.On("AddProduct", mock.Anything, cartID, mock.Anything).Return(schemas.AddToCartResponse{}, bad).Once()

		rec := ts.do(formRequest(http.MethodPost, "/carts/"+cartID.String()+"/add-product",
			url.Values{"product_url": {productURL}, "product_variant": {"2g"}}))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, []string{"1g", "3.5g"}, decodeError(t, rec).Variants)
	})
}

func TestSubmitOrderHandler(t *testing.T) {
	cartID, orderID := uuid.New(), uuid.New()
	valid := url.Values{
		"first_name":   {"Ada"},
		"last_name":    {"Lovelace"},
		"mobile_phone": {"2125550123"},
		"birthdate":    {"12/10/1990"},
		"email":        {"ada@example.com"},
		"state":        {"NY"},
	}

	t.Run("should submit a valid form", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("SubmitOrder", mock.Anything, cartID, mock.MatchedBy(func(u schemas.UserInfo) bool {
			return u.FirstName == "Ada" && u.MobilePhone == "2125550123" && u.State == "NY"
		})).Return(schemas.Order{ID: orderID}, nil).Once()

		rec := ts.do(formRequest(http.MethodPost, "/carts/"+cartID.String()+"/submit-order", valid))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"order_id":"`+orderID.String()+`"}`, rec.Body.String())
	})

	t.Run("should reject an invalid phone number", func(t *testing.T) {
		ts := newTestServer(t)
		form := url.Values{}
		for k, v := range valid {
			form[k] = v
		}
		form.Set("mobile_phone", "1125550123")

		rec := ts.do(formRequest(http.MethodPost, "/carts/"+cartID.String()+"/submit-order", form))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, "Invalid mobile phone number")
	})

	t.Run("should decode a v2 options document", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("SubmitOrderV2", mock.Anything, cartID, mock.MatchedBy(func(o schemas.CheckoutOptionsV2) bool {
			return o.PaymentDetails.Selected != nil && *o.PaymentDetails.Selected == 0 &&
				len(o.PaymentDetails.Options) == 1
		})).Return(schemas.Order{ID: orderID}, nil).Once()

		body := `{"payment_details":{"label":"payment","selector":"","required":true,"field_type":"single_selection","options":["Cash"],"selected":0}}`
		req := httptest.NewRequest(http.MethodPost, "/carts/"+cartID.String()+"/submit-order-v2", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := ts.do(req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("should reject malformed JSON", func(t *testing.T) {
		ts := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/carts/"+cartID.String()+"/submit-order-v2", strings.NewReader("{"))
		rec := ts.do(req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should map a captcha block to unprocessable", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("SubmitOrder", mock.Anything, cartID, mock.Anything).
			Return(schemas.Order{}, errs.New(errs.Upstream, errs.ReasonCaptchaBlocked, "Captcha verification required")).Once()

		rec := ts.do(formRequest(http.MethodPost, "/carts/"+cartID.String()+"/submit-order", valid))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "captcha_blocked", decodeError(t, rec).Reason)
	})
}

func TestReadEndpoints(t *testing.T) {
	cartID, productID, orderID := uuid.New(), uuid.New(), uuid.New()

	t.Run("should require a product url for variations", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/variations", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "product_url is required", decodeError(t, rec).Message)
	})

	t.Run("should list variants without resolving when no variant is sent", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("Variants", mock.Anything, "https://dutchie.com/p").
			Return(schemas.VariantsResult{Variants: []schemas.Variant{{Name: "1g"}, {Name: "3.5g"}}}, nil).Once()

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/variations?product_url="+url.QueryEscape("https://dutchie.com/p"), nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		ts.svc.AssertNotCalled(t, "DiscoverVariants", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("should pass the chosen variant through to discovery", func(t *testing.T) {
		ts := newTestServer(t)
		picked := schemas.Variant{Name: "3.5g", Price: "$30.00"}
		ts.svc.On("DiscoverVariants", mock.Anything, "https://dutchie.com/p", "3.5g").
			Return(schemas.VariantsResult{Variants: []schemas.Variant{picked}, Selected: &picked}, nil).Once()

		rec := ts.do(httptest.NewRequest(http.MethodGet,
			"/variations?product_url="+url.QueryEscape("https://dutchie.com/p")+"&product_variant=3.5g", nil))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"selected_variant":{"variant_name":"3.5g"`)
	})

	t.Run("should answer 422 with the choices when an empty variant leaves several", func(t *testing.T) {
		ts := newTestServer(t)
		required := errs.New(errs.Invalid, errs.ReasonVariantRequired, "Multiple variants available",
			errs.WithVariants([]string{"1g", "3.5g"}))
		ts.svc.On("DiscoverVariants", mock.Anything, "https://dutchie.com/p", "").
			Return(schemas.VariantsResult{}, required).Once()

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/variations?product_url="+url.QueryEscape("https://dutchie.com/p")+"&product_variant=", nil))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, []string{"1g", "3.5g"}, decodeError(t, rec).Variants)
	})

	t.Run("should answer 422 with the choices for an unknown variant", func(t *testing.T) {
		ts := newTestServer(t)
		unknown := errs.New(errs.Invalid, errs.ReasonVariantInvalid, "Variant 2g is not offered",
			errs.WithVariants([]string{"1g", "3.5g"}))
		ts.svc.On("DiscoverVariants", mock.Anything, "https://dutchie.com/p", "2g").
			Return(schemas.VariantsResult{}, unknown).Once()

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/variations?product_url="+url.QueryEscape("https://dutchie.com/p")+"&product_variant=2g", nil))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, []string{"1g", "3.5g"}, decodeError(t, rec).Variants)
	})

	t.Run("should render product prices as exact strings", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("GetProduct", mock.Anything, productID).Return(schemas.Product{
			ID: productID, CartID: cartID, URL: "u", Quantity: 2,
			Price: decimal.RequireFromString("12.50"), MSRP: decimal.RequireFromString("15"),
		}, nil).Once()

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/products/"+productID.String(), nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"price":"12.50"`)
		assert.Contains(t, rec.Body.String(), `"msrp":"15.00"`)
	})

	t.Run("should report an empty cart on verify", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("VerifyCart", mock.Anything, cartID).
			Return(schemas.CartSnapshot{}, errs.New(errs.NotFound, errs.ReasonCartEmpty, "Cart is empty")).Once()

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/carts/"+cartID.String()+"/verify", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "cart_empty", decodeError(t, rec).Reason)
	})

	t.Run("should hide internal causes from the client", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("GetOrder", mock.Anything, orderID).
			Return(schemas.Order{}, errors.New("pq: password authentication failed")).Once()

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/orders/"+orderID.String(), nil))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, "internal", body.Kind)
		assert.Equal(t, "Internal server error", body.Message)
		assert.NotContains(t, rec.Body.String(), "password")
		assert.Equal(t, 1, ts.logs.FilterMessage("Request failed.").Len())
	})
}

func TestOperationalEndpoints(t *testing.T) {
	t.Run("should answer health checks", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("should count requests by route pattern", func(t *testing.T) {
		ts := newTestServer(t)
		ts.svc.On("DeleteOrder", mock.Anything, mock.Anything).Return(nil).Twice()
		ts.do(httptest.NewRequest(http.MethodDelete, "/orders/"+uuid.NewString(), nil))
		ts.do(httptest.NewRequest(http.MethodDelete, "/orders/"+uuid.NewString(), nil))

		n, err := testutil.GatherAndCount(ts.reg, "cartwright_http_requests_total")
		require.NoError(t, err)
		assert.Equal(t, 1, n, "both requests should share the /orders/{order_id} series")

		rec := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `route="/orders/{order_id}"`)
	})

	t.Run("should answer unknown routes with the error envelope", func(t *testing.T) {
		ts := newTestServer(t)
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", decodeError(t, rec).Kind)
	})
}
