// -- cmd/serve.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/cartwright/internal/api"
	"github.com/xkilldash9x/cartwright/internal/config"
	"github.com/xkilldash9x/cartwright/internal/observability"
	"github.com/xkilldash9x/cartwright/internal/service"
)

const (
	readHeaderTimeout      = 10 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the cart API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, service.NewComponentFactory(), observability.GetLogger())
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("database-url", "", "Postgres connection string (overrides database.url)")
	cmd.Flags().String("selectors", "", "directory of storefront selector files (overrides selectors.path)")
	cmd.Flags().Bool("headless", true, "run the browser headless")
	cmd.Flags().Bool("migrate", false, "apply schema migrations before serving")
	return cmd
}

// runServe builds the components, serves until ctx is canceled, then tears
// everything down.
func runServe(ctx context.Context, cfg config.Interface, factory service.ComponentFactory, logger *zap.Logger) error {
	components, err := factory.Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer components.Shutdown()

	ln, err := net.Listen("tcp", cfg.Server().Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server().Addr, err)
	}

	router := api.NewRouter(components.Service, components.Registry, components.Metrics, logger)
	return serveHTTP(ctx, ln, cfg.Server(), router, logger)
}

// serveHTTP serves handler on ln until ctx is done or the server fails.
// In-flight requests get ShutdownTimeout to finish.
func serveHTTP(ctx context.Context, ln net.Listener, sc config.ServerConfig, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       sc.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      sc.WriteTimeout,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening.", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := sc.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		logger.Info("Shutting down HTTP server.", zap.Duration("timeout", timeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
