package schemas

import (
	"testing"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductJSON(t *testing.T) {
	t.Run("should keep two decimal places on prices", func(t *testing.T) {
		p := Product{
			ID:       uuid.MustParse("5b0f6a4e-3d5c-4f0e-9a53-0c1e2f3a4b5c"),
			CartID:   uuid.MustParse("0d6c1a2b-7e8f-4a9b-8c7d-6e5f4a3b2c1d"),
			URL:      "https://dutchie.com/embedded-menu/green/product/gelato",
			Variant:  "3.5g",
			Quantity: 2,
			Price:    decimal.RequireFromString("25.00"),
			MSRP:     decimal.RequireFromString("30.5"),
		}

		body, err := jsoniter.Marshal(p)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"id":"5b0f6a4e-3d5c-4f0e-9a53-0c1e2f3a4b5c",
			"cart_id":"0d6c1a2b-7e8f-4a9b-8c7d-6e5f4a3b2c1d",
			"product_url":"https://dutchie.com/embedded-menu/green/product/gelato",
			"product_variant":"3.5g",
			"quantity":2,
			"price":"25.00",
			"msrp":"30.50"
		}`, string(body))
	})

	t.Run("should render an unknown msrp as zero", func(t *testing.T) {
		body, err := jsoniter.Marshal(Product{Price: decimal.RequireFromString("9.999")})
		require.NoError(t, err)
		assert.Contains(t, string(body), `"price":"10.00"`)
		assert.Contains(t, string(body), `"msrp":"0.00"`)
	})

	t.Run("should read its own output back", func(t *testing.T) {
		in := Product{Quantity: 1, Price: decimal.RequireFromString("12.50")}
		body, err := jsoniter.Marshal(in)
		require.NoError(t, err)

		var out Product
		require.NoError(t, jsoniter.Unmarshal(body, &out))
		assert.True(t, in.Price.Equal(out.Price))
	})
}
