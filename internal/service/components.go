// File: internal/service/components.go
package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwright/internal/adapter"
	"github.com/xkilldash9x/cartwright/internal/browser"
	"github.com/xkilldash9x/cartwright/internal/observability"
	"github.com/xkilldash9x/cartwright/internal/selectors"
	"github.com/xkilldash9x/cartwright/internal/store"
)

// BrowserManager is the browser side of the components: a session provider
// with a process to shut down.
type BrowserManager interface {
	browser.Provider
	Shutdown(ctx context.Context) error
}

// Components holds everything the HTTP server needs, and owns its lifecycle.
type Components struct {
	DBPool         *pgxpool.Pool
	Store          store.Repository
	Selectors      *selectors.Set
	BrowserManager BrowserManager
	Adapters       *adapter.Factory
	Registry       *prometheus.Registry
	Metrics        *observability.Metrics
	Service        *Service
}

const browserShutdownTimeout = 30 * time.Second

// Shutdown releases resources in reverse dependency order: the browser first,
// so no session outlives the pool it writes state through.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	if c.BrowserManager != nil {
		// Separate context, the caller's may already be canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), browserShutdownTimeout)
		defer cancel()

		if err := c.BrowserManager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Error during browser manager shutdown.", zap.Error(err))
		} else {
			logger.Debug("Browser manager shut down.")
		}
	}

	if c.DBPool != nil {
		c.DBPool.Close()
		logger.Debug("Database connection pool closed.")
	}

	logger.Info("All components shut down successfully.")
}
