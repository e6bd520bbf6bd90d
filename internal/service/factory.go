// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwright/internal/adapter"
	"github.com/xkilldash9x/cartwright/internal/browser"
	"github.com/xkilldash9x/cartwright/internal/config"
	"github.com/xkilldash9x/cartwright/internal/observability"
	"github.com/xkilldash9x/cartwright/internal/selectors"
	"github.com/xkilldash9x/cartwright/internal/store"
)

// ComponentFactory creates the set of components the server runs on.
// The abstraction keeps the serve command testable.
type ComponentFactory interface {
	Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct{}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create handles the full dependency injection and initialization of components.
func (f *concreteFactory) Create(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Components, error) {
	components := &Components{}

	// Ensure cleanup happens if initialization fails midway.
	var initializationErr error
	defer func() {
		if initializationErr != nil {
			logger.Warn("Initialization failed, shutting down partially created components.", zap.Error(initializationErr))
			components.Shutdown()
		}
	}()

	// 1. Selectors. Cheapest to fail, so first.
	set, err := selectors.Load(cfg.Selectors().Path, logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to load selector configuration: %w", err)
		return nil, initializationErr
	}
	components.Selectors = set

	// 2. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	components.Registry = reg
	components.Metrics = observability.NewMetrics(reg)

	// 3. Database
	if cfg.Database().MigrateOnStart {
		if err := store.Migrate(ctx, cfg.Database().URL, logger); err != nil {
			initializationErr = fmt.Errorf("failed to migrate database: %w", err)
			return nil, initializationErr
		}
	}
	dbPool, err := InitializeDBPool(ctx, cfg.Database(), logger)
	if err != nil {
		initializationErr = err
		return nil, initializationErr
	}
	// Add to components immediately so the deferred Shutdown can close it if later steps fail.
	components.DBPool = dbPool

	dbStore, err := store.New(ctx, dbPool, logger)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize database store: %w", err)
		return nil, initializationErr
	}
	components.Store = dbStore
	logger.Debug("Store initialized.")

	// 4. Browser
	manager, err := browser.NewManager(ctx, logger, cfg.Browser(), components.Metrics)
	if err != nil {
		initializationErr = fmt.Errorf("failed to initialize browser manager: %w", err)
		return nil, initializationErr
	}
	components.BrowserManager = manager
	logger.Debug("Browser manager initialized.")

	// 5. Adapters and the service on top.
	components.Adapters = adapter.NewFactory(set, cfg.Timeouts(), cfg.Checkout().UploadDir, logger)
	components.Service = New(dbStore, manager, components.Adapters, components.Metrics, logger)

	logger.Info("All components initialized successfully.")
	return components, nil
}
