// File: cmd/variants_test.go
package cmd

import (
	"bytes"
	"context"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/errs"
)

type fakeLister struct {
	list     func(ctx context.Context, productURL string) (schemas.VariantsResult, error)
	discover func(ctx context.Context, productURL, variant string) (schemas.VariantsResult, error)
}

func (f fakeLister) Variants(ctx context.Context, productURL string) (schemas.VariantsResult, error) {
	return f.list(ctx, productURL)
}

func (f fakeLister) DiscoverVariants(ctx context.Context, productURL, variant string) (schemas.VariantsResult, error) {
	return f.discover(ctx, productURL, variant)
}

func TestPrintVariants(t *testing.T) {
	const productURL = "https://dutchie.com/embedded-menu/green/product/gelato"

	t.Run("should print the result as JSON", func(t *testing.T) {
		want := schemas.VariantsResult{
			DispensaryName: "Green Leaf",
			ProductName:    "Gelato",
			Variants:       []schemas.Variant{{Name: "1g"}, {Name: "3.5g"}},
		}
		var gotURL string
		lister := fakeLister{list: func(_ context.Context, u string) (schemas.VariantsResult, error) {
			gotURL = u
			return want, nil
		}}

		var out bytes.Buffer
		require.NoError(t, printVariants(context.Background(), &out, lister, productURL, nil))
		assert.Equal(t, productURL, gotURL)

		var got schemas.VariantsResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		assert.Equal(t, []string{"1g", "3.5g"}, got.Names())
		assert.Equal(t, "Green Leaf", got.DispensaryName)
	})

	t.Run("should resolve the requested variant", func(t *testing.T) {
		picked := schemas.Variant{Name: "3.5g", Price: "$40.00"}
		var gotVariant string
		lister := fakeLister{discover: func(_ context.Context, _ string, variant string) (schemas.VariantsResult, error) {
			gotVariant = variant
			return schemas.VariantsResult{Variants: []schemas.Variant{{Name: "1g"}, picked}, Selected: &picked}, nil
		}}

		variant := "3.5g"
		var out bytes.Buffer
		require.NoError(t, printVariants(context.Background(), &out, lister, productURL, &variant))
		assert.Equal(t, "3.5g", gotVariant)

		var got schemas.VariantsResult
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
		require.NotNil(t, got.Selected)
		assert.Equal(t, "3.5g", got.Selected.Name)
	})

	t.Run("should resolve with an empty variant and report the choices", func(t *testing.T) {
		lister := fakeLister{discover: func(_ context.Context, _ string, variant string) (schemas.VariantsResult, error) {
			assert.Empty(t, variant)
			return schemas.VariantsResult{}, errs.New(errs.Invalid, errs.ReasonVariantRequired, "Multiple variants available",
				errs.WithVariants([]string{"1g", "3.5g"}))
		}}

		empty := ""
		var out bytes.Buffer
		err := printVariants(context.Background(), &out, lister, productURL, &empty)
		assert.True(t, errs.Is(err, errs.ReasonVariantRequired))
		assert.Equal(t, []string{"1g", "3.5g"}, errs.From(err).Variants)
		assert.Empty(t, out.String())
	})

	t.Run("should pass service errors through", func(t *testing.T) {
		lister := fakeLister{list: func(context.Context, string) (schemas.VariantsResult, error) {
			return schemas.VariantsResult{}, errs.New(errs.Unavailable, errs.ReasonNone, "Product is out of stock")
		}}

		var out bytes.Buffer
		err := printVariants(context.Background(), &out, lister, "https://dutchie.com/x", nil)
		assert.Equal(t, errs.Unavailable, errs.KindOf(err))
		assert.Empty(t, out.String())
	})
}

func TestVariantsCmdFlags(t *testing.T) {
	t.Run("should offer a variant flag", func(t *testing.T) {
		f := newVariantsCmd().Flags().Lookup("variant")
		require.NotNil(t, f)
		assert.Empty(t, f.DefValue)
	})
}
