// -- cmd/variants.go --
package cmd

import (
	"context"
	"fmt"
	"io"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/adapter"
	"github.com/xkilldash9x/cartwright/internal/browser"
	"github.com/xkilldash9x/cartwright/internal/observability"
	"github.com/xkilldash9x/cartwright/internal/selectors"
	"github.com/xkilldash9x/cartwright/internal/service"
)

type variantLister interface {
	Variants(ctx context.Context, productURL string) (schemas.VariantsResult, error)
	DiscoverVariants(ctx context.Context, productURL, variant string) (schemas.VariantsResult, error)
}

func newVariantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variants <product-url>",
		Short: "Prints the variants a product page offers, without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			set, err := selectors.Load(cfg.Selectors().Path, logger)
			if err != nil {
				return fmt.Errorf("failed to load selector configuration: %w", err)
			}
			manager, err := browser.NewManager(ctx, logger, cfg.Browser(), nil)
			if err != nil {
				return fmt.Errorf("failed to initialize browser manager: %w", err)
			}
			defer func() {
				if err := manager.Shutdown(context.Background()); err != nil {
					logger.Warn("Error during browser manager shutdown.", zap.Error(err))
				}
			}()

			adapters := adapter.NewFactory(set, cfg.Timeouts(), cfg.Checkout().UploadDir, logger)
			// Variant discovery never reads or writes carts, so there is no repository.
			svc := service.New(nil, manager, adapters, nil, logger)
			// --variant, even empty, also resolves the variant add-product would pick.
			var variant *string
			if f := cmd.Flags().Lookup("variant"); f.Changed {
				v := f.Value.String()
				variant = &v
			}
			return printVariants(ctx, cmd.OutOrStdout(), svc, args[0], variant)
		},
	}
	cmd.Flags().String("selectors", "", "directory of storefront selector files (overrides selectors.path)")
	cmd.Flags().Bool("headless", true, "run the browser headless")
	cmd.Flags().String("variant", "", "variant to resolve against the page, as add-product would")
	return cmd
}

// printVariants lists productURL, resolving variant when it is non-nil.
func printVariants(ctx context.Context, out io.Writer, svc variantLister, productURL string, variant *string) error {
	var (
		result schemas.VariantsResult
		err    error
	)
	if variant != nil {
		result, err = svc.DiscoverVariants(ctx, productURL, *variant)
	} else {
		result, err = svc.Variants(ctx, productURL)
	}
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode variants: %w", err)
	}
	_, err = fmt.Fprintln(out, string(body))
	return err
}
