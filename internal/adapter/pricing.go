// internal/adapter/pricing.go
package adapter

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwright/internal/browser"
	"github.com/xkilldash9x/cartwright/internal/errs"
	"github.com/xkilldash9x/cartwright/internal/selectors"
)

// parsePrice reads a displayed amount such as "$1,025.50".
func parsePrice(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "", "\n", "").Replace(strings.TrimSpace(s))
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%q is not a price: %w", s, err)
	}
	return d, nil
}

// splitPrice joins a price whose dollars and cents render on separate lines,
// e.g. "$\n12\n50", into "12.50".
func splitPrice(s string) string {
	var parts []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "$", ""), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return parts[len(parts)-2] + "." + parts[len(parts)-1]
}

// extractPrice walks the paired price and MSRP selectors of the add-to-cart
// phase and reads the first pair whose price is rendered.
func (e *engine) extractPrice(ctx context.Context, pg browser.Page, g selectors.Group) (price, msrp decimal.Decimal, err error) {
	prices := g.List("price_selectors")
	msrps := g.List("msrp_selectors")
	for i, priceSel := range prices {
		_, ok, err := visibleNow(ctx, pg, priceSel)
		if err != nil {
			return price, msrp, err
		}
		if !ok {
			continue
		}
		msrpSel := ""
		if i < len(msrps) {
			msrpSel = msrps[i]
		}
		return e.priceAndMSRP(ctx, pg, priceSel, msrpSel)
	}
	return price, msrp, errs.New(errs.Upstream, errs.ReasonPriceUnavailable, "Price extraction failed")
}

// priceAndMSRP takes the first visible currency-formatted match as the price.
// MSRP defaults to the price when no reference price is shown.
func (e *engine) priceAndMSRP(ctx context.Context, pg browser.Page, priceSel, msrpSel string) (price, msrp decimal.Decimal, err error) {
	els, err := queryAll(ctx, pg, priceSel)
	if err != nil {
		return price, msrp, err
	}
	found := false
	for _, el := range els {
		vis, err := el.Visible(ctx)
		if err != nil {
			return price, msrp, err
		}
		if !vis {
			continue
		}
		s, err := text(ctx, el)
		if err != nil {
			return price, msrp, err
		}
		if !strings.HasPrefix(s, "$") {
			continue
		}
		if price, err = parsePrice(s); err != nil {
			e.logger.Debug("Skipping unparsable price.", zap.String("text", s))
			continue
		}
		found = true
		break
	}
	if !found {
		return price, msrp, errs.New(errs.Upstream, errs.ReasonPriceUnavailable, "Price extraction failed")
	}

	msrp = price
	el, ok, err := visibleNow(ctx, pg, msrpSel)
	if err != nil {
		return price, msrp, err
	}
	if ok {
		s, err := text(ctx, el)
		if err != nil {
			return price, msrp, err
		}
		if v, perr := parsePrice(s); perr == nil {
			msrp = v
		} else {
			e.logger.Debug("MSRP is not a price, using the price.", zap.String("text", s))
		}
	}
	return price, msrp, nil
}
