// internal/adapter/policies.go
package adapter

import (
	"strings"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/errs"
)

// chooseVariant applies the variant decision table to the live variant names.
// It returns -1 when the page offers no variants at all. A requested name
// must match exactly; a single variant is picked automatically only when
// nothing was requested.
func chooseVariant(names []string, want string) (int, error) {
	if len(names) == 0 {
		return -1, nil
	}
	if want != "" {
		for i, n := range names {
			if n == want {
				return i, nil
			}
		}
		return -1, errs.New(errs.Invalid, errs.ReasonVariantInvalid,
			"Incorrect variant provided. Please provide a valid variant", errs.WithVariants(names))
	}
	if len(names) == 1 {
		return 0, nil
	}
	return -1, errs.New(errs.Invalid, errs.ReasonVariantRequired,
		"No variant provided. Please provide a valid variant", errs.WithVariants(names))
}

// selectVariant resolves want against a discovered listing. A page without
// variant elements is listed as a single unnamed entry, which is always selected.
func selectVariant(r schemas.VariantsResult, want string) (*schemas.Variant, error) {
	if len(r.Variants) == 1 && r.Variants[0].Name == "" {
		v := r.Variants[0]
		return &v, nil
	}
	names := make([]string, len(r.Variants))
	for i, v := range r.Variants {
		names[i] = v.Name
	}
	idx, err := chooseVariant(names, want)
	if err != nil || idx < 0 {
		return nil, err
	}
	v := r.Variants[idx]
	return &v, nil
}

// variantAfterSlash extracts the variant from cart text shaped like
// "$25.00 / 3.5g". ok is false when the text carries no such segment.
func variantAfterSlash(text string) (string, bool) {
	_, afterDollar, found := strings.Cut(text, "$")
	if !found {
		return "", false
	}
	_, variant, found := strings.Cut(afterDollar, "/")
	if !found {
		return "", false
	}
	return strings.TrimSpace(variant), true
}

// cartVariantMatches compares the variant text of a cart row with the
// requested variant.
func cartVariantMatches(text, want string) bool {
	if v, ok := variantAfterSlash(text); ok {
		return v == want
	}
	return strings.Contains(text, want)
}

// cartRow is one candidate line of a live cart during deletion.
type cartRow struct {
	index int
	// variant is empty with comparable false when the row shows no variant.
	variant    string
	comparable bool
}

// pickDeletion chooses the row to delete among rows whose name contains the
// product name. The first row whose variant matches, or that shows no
// comparable variant, wins.
func pickDeletion(rows []cartRow, want string) (int, error) {
	if len(rows) == 0 {
		return -1, errs.New(errs.NotFound, errs.ReasonProductNotFound, "Product not found in cart")
	}
	for _, r := range rows {
		if want == "" || !r.comparable || r.variant == want {
			return r.index, nil
		}
	}
	return -1, errs.New(errs.NotFound, errs.ReasonVariantMismatch, "Variant mismatch in cart")
}

// compactOptions folds a harvested snapshot into the selectable-field model.
func compactOptions(c schemas.CheckoutOptions) schemas.CheckoutOptionsV2 {
	var info schemas.CustomerInfo
	for _, f := range c.CustomerInfo {
		info.Fields = append(info.Fields, schemas.NewInputField(f.Label))
	}
	if len(c.StateSelection) > 0 {
		info.Fields = append(info.Fields, schemas.NewInputField(schemas.LabelState))
	}
	if info.Fields == nil {
		info.Fields = []schemas.InputField{}
	}

	orderLabel := "Pickup"
	if pickup, ok := c.OrderTypeDetails["pickup"]; ok && pickup.Label != "" {
		orderLabel = pickup.Label
	}
	slots := schemas.NewSingleSelection("pickup", schemas.Labels(c.PickupSlots))

	return schemas.CheckoutOptionsV2{
		CustomerInfo:   info,
		OrderType:      schemas.NewSingleSelection(orderLabel, []string{"pickup"}),
		PaymentDetails: schemas.NewSingleSelection("payment", schemas.Labels(c.PaymentDetails)),
		PickupSlots:    &slots,
	}
}
