// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/adapter"
	"github.com/xkilldash9x/cartwright/internal/browser"
	"github.com/xkilldash9x/cartwright/internal/config"
	"github.com/xkilldash9x/cartwright/internal/store"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	args := m.Called()
	return args.Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Timeouts() config.TimeoutConfig {
	args := m.Called()
	return args.Get(0).(config.TimeoutConfig)
}

func (m *MockConfig) Selectors() config.SelectorsConfig {
	args := m.Called()
	return args.Get(0).(config.SelectorsConfig)
}

func (m *MockConfig) Server() config.ServerConfig {
	args := m.Called()
	return args.Get(0).(config.ServerConfig)
}

func (m *MockConfig) Checkout() config.CheckoutConfig {
	args := m.Called()
	return args.Get(0).(config.CheckoutConfig)
}

// -- Repository Mock --

// MockRepository mocks store.Repository. WithTx runs the callback against the
// same mock, so expectations set for the callback's calls apply unchanged.
type MockRepository struct {
	mock.Mock
}

var _ store.Repository = (*MockRepository)(nil)

func (m *MockRepository) CreateCart(ctx context.Context, sessionID string) (schemas.Cart, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(schemas.Cart), args.Error(1)
}

func (m *MockRepository) GetCart(ctx context.Context, id uuid.UUID) (schemas.Cart, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(schemas.Cart), args.Error(1)
}

func (m *MockRepository) DeleteCart(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) SaveCartSessionState(ctx context.Context, cartID uuid.UUID, state []byte) error {
	return m.Called(ctx, cartID, state).Error(0)
}

func (m *MockRepository) GetProduct(ctx context.Context, id uuid.UUID) (schemas.Product, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(schemas.Product), args.Error(1)
}

func (m *MockRepository) ProductsByCart(ctx context.Context, cartID uuid.UUID) ([]schemas.Product, error) {
	args := m.Called(ctx, cartID)
	var products []schemas.Product
	if args.Get(0) != nil {
		products = args.Get(0).([]schemas.Product)
	}
	return products, args.Error(1)
}

func (m *MockRepository) SaveProduct(ctx context.Context, p schemas.Product) (schemas.Product, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(schemas.Product), args.Error(1)
}

func (m *MockRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) SaveOrder(ctx context.Context, o schemas.Order) (schemas.Order, error) {
	args := m.Called(ctx, o)
	return args.Get(0).(schemas.Order), args.Error(1)
}

func (m *MockRepository) GetOrder(ctx context.Context, id uuid.UUID) (schemas.Order, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(schemas.Order), args.Error(1)
}

func (m *MockRepository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

// WithTx returns the configured error without running fn, or fn's own result.
func (m *MockRepository) WithTx(ctx context.Context, fn func(store.Repository) error) error {
	if err := m.Called(ctx).Error(0); err != nil {
		return err
	}
	return fn(m)
}

// -- Adapter Mocks --

// MockAdapter mocks adapter.Adapter.
type MockAdapter struct {
	mock.Mock
}

var _ adapter.Adapter = (*MockAdapter)(nil)

func (m *MockAdapter) Storefront() string {
	return m.Called().String(0)
}

func (m *MockAdapter) ListVariants(ctx context.Context, page browser.Page, productURL string) (schemas.VariantsResult, error) {
	args := m.Called(ctx, page, productURL)
	return args.Get(0).(schemas.VariantsResult), args.Error(1)
}

func (m *MockAdapter) DiscoverVariants(ctx context.Context, page browser.Page, productURL, variant string) (schemas.VariantsResult, error) {
	args := m.Called(ctx, page, productURL, variant)
	return args.Get(0).(schemas.VariantsResult), args.Error(1)
}

func (m *MockAdapter) AddProduct(ctx context.Context, page browser.Page, req schemas.AddProductRequest) (schemas.AddProductResult, error) {
	args := m.Called(ctx, page, req)
	return args.Get(0).(schemas.AddProductResult), args.Error(1)
}

func (m *MockAdapter) FetchCartDetails(ctx context.Context, page browser.Page, productURL string) (schemas.CartSnapshot, error) {
	args := m.Called(ctx, page, productURL)
	return args.Get(0).(schemas.CartSnapshot), args.Error(1)
}

func (m *MockAdapter) DeleteItemProduct(ctx context.Context, page browser.Page, product schemas.Product) error {
	return m.Called(ctx, page, product).Error(0)
}

func (m *MockAdapter) GetCheckoutOptions(ctx context.Context, page browser.Page) (schemas.CheckoutOptions, error) {
	args := m.Called(ctx, page)
	return args.Get(0).(schemas.CheckoutOptions), args.Error(1)
}

func (m *MockAdapter) GetCheckoutOptionsV2(ctx context.Context, page browser.Page) (schemas.CheckoutOptionsV2, error) {
	args := m.Called(ctx, page)
	return args.Get(0).(schemas.CheckoutOptionsV2), args.Error(1)
}

func (m *MockAdapter) SubmitOrder(ctx context.Context, page browser.Page, info schemas.UserInfo) (schemas.OrderDetails, error) {
	args := m.Called(ctx, page, info)
	return args.Get(0).(schemas.OrderDetails), args.Error(1)
}

func (m *MockAdapter) SubmitOrderV2(ctx context.Context, page browser.Page, opts schemas.CheckoutOptionsV2) (schemas.OrderDetails, error) {
	args := m.Called(ctx, page, opts)
	return args.Get(0).(schemas.OrderDetails), args.Error(1)
}

// MockAdapters mocks the URL to adapter resolution the service depends on.
type MockAdapters struct {
	mock.Mock
}

func (m *MockAdapters) ForURL(productURL string) (adapter.Adapter, error) {
	args := m.Called(productURL)
	var a adapter.Adapter
	if args.Get(0) != nil {
		a = args.Get(0).(adapter.Adapter)
	}
	return a, args.Error(1)
}

// -- Browser Manager Mock --

// MockBrowserManager mocks a browser.Provider that also owns a process.
type MockBrowserManager struct {
	mock.Mock
}

var _ browser.Provider = (*MockBrowserManager)(nil)

func (m *MockBrowserManager) NewSession(ctx context.Context, state []byte) (browser.Session, error) {
	args := m.Called(ctx, state)
	var s browser.Session
	if args.Get(0) != nil {
		s = args.Get(0).(browser.Session)
	}
	return s, args.Error(1)
}

func (m *MockBrowserManager) Shutdown(ctx context.Context) error { return m.Called(ctx).Error(0) }
