// internal/adapter/workflow.go
package adapter

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/browser"
	"github.com/xkilldash9x/cartwright/internal/errs"
)

// workflow sequences the phases shared by every storefront and calls into
// the site for the rest.
type workflow struct {
	*engine
	site site
}

var _ Adapter = (*workflow)(nil)

func (w *workflow) Storefront() string {
	return w.storefront
}

func (w *workflow) ListVariants(ctx context.Context, pg browser.Page, productURL string) (schemas.VariantsResult, error) {
	var res schemas.VariantsResult
	if err := w.navigate(ctx, pg, productURL); err != nil {
		return res, err
	}
	if err := w.site.initialChecks(ctx, pg); err != nil {
		return res, err
	}
	if err := w.checkOutOfStock(ctx, pg, w.variant.Get("out_of_stock_selector"), ""); err != nil {
		return res, err
	}

	var err error
	if res.DispensaryName, err = textOr(ctx, pg, w.variant.Get("dispensary_name"), ""); err != nil {
		return res, err
	}
	if img, err := query(ctx, pg, w.variant.Get("dispensary_image_element")); err != nil {
		return res, err
	} else if img != nil {
		res.DispensaryImageURL, _, err = img.Attr(ctx, "src")
		if err != nil {
			return res, err
		}
	}
	if img, err := query(ctx, pg, w.variant.Get("image_selector")); err != nil {
		return res, err
	} else if img != nil {
		// Lazy-loaded images keep the real source in data-src.
		src, _, err := img.Attr(ctx, "data-src")
		if err != nil {
			return res, err
		}
		if src == "" {
			if src, _, err = img.Attr(ctx, "src"); err != nil {
				return res, err
			}
		}
		res.ProductImageURL = src
	}
	if res.ProductName, err = textOr(ctx, pg, w.variant.Get("product_name"), ""); err != nil {
		return res, err
	}

	elements, err := firstMatching(ctx, pg, w.variant.List("variant_selector"))
	if err != nil {
		return res, err
	}
	if len(elements) == 0 {
		price, msrp, err := w.site.variationPrice(ctx, pg, pg)
		if err != nil {
			return res, err
		}
		res.Variants = []schemas.Variant{{Price: price, MSRP: msrp}}
		return res, nil
	}

	res.Variants = make([]schemas.Variant, 0, len(elements))
	for _, el := range elements {
		name, err := textOr(ctx, el, w.variant.Get("variant_name_selector"), "")
		if err != nil {
			return res, err
		}
		price, msrp, err := w.site.variationPrice(ctx, pg, el)
		if err != nil {
			return res, err
		}
		res.Variants = append(res.Variants, schemas.Variant{Name: name, Price: price, MSRP: msrp})
	}
	w.logger.Debug("Listed variants.", zap.Int("count", len(res.Variants)))
	return res, nil
}

func (w *workflow) DiscoverVariants(ctx context.Context, pg browser.Page, productURL, variant string) (schemas.VariantsResult, error) {
	res, err := w.ListVariants(ctx, pg, productURL)
	if err != nil {
		return res, err
	}
	if res.Selected, err = selectVariant(res, variant); err != nil {
		return res, err
	}
	return res, nil
}

// resolveVariant clicks the variant element chosen by the decision table.
func (w *workflow) resolveVariant(ctx context.Context, pg browser.Page, want string) error {
	elements, err := firstMatching(ctx, pg, w.add.List("variant_selector"))
	if err != nil {
		return err
	}
	if len(elements) == 0 {
		w.logger.Debug("No variants available, proceeding with the product.")
		return nil
	}
	names := make([]string, len(elements))
	for i, el := range elements {
		if names[i], err = textOr(ctx, el, w.add.Get("variant_name_selector"), ""); err != nil {
			return err
		}
	}
	idx, err := chooseVariant(names, want)
	if err != nil {
		return err
	}
	w.logger.Debug("Selecting variant.", zap.String("variant", names[idx]))
	return elements[idx].Click(ctx)
}

func (w *workflow) AddProduct(ctx context.Context, pg browser.Page, req schemas.AddProductRequest) (schemas.AddProductResult, error) {
	var res schemas.AddProductResult
	if err := w.navigate(ctx, pg, req.URL); err != nil {
		return res, err
	}
	if err := w.site.initialChecks(ctx, pg); err != nil {
		return res, err
	}
	notFound := errs.New(errs.NotFound, errs.ReasonPageNotFound, "Requested product page does not exist.")
	if err := w.blockingModal(ctx, pg, w.add.Get("page_not_found"), w.t.BlockingModal, notFound); err != nil {
		return res, err
	}
	if err := w.checkOutOfStock(ctx, pg, w.add.Get("out_of_stock_selector"), w.add.Get("out_of_stock_inner_text")); err != nil {
		return res, err
	}
	if err := w.resolveVariant(ctx, pg, req.Variant); err != nil {
		return res, err
	}

	nameEl, err := w.require(ctx, pg, w.add.Get("prod_name"), "product name", browser.Visible, w.t.Action)
	if err != nil {
		return res, err
	}
	prodName, err := text(ctx, nameEl)
	if err != nil {
		return res, err
	}
	if res.Price, res.MSRP, err = w.extractPrice(ctx, pg, w.add); err != nil {
		return res, err
	}

	if err := w.site.selectQuantity(ctx, pg, req.Quantity, req.ExistingQuantity); err != nil {
		return res, err
	}
	addBtn, err := w.require(ctx, pg, w.add.Get("click_add_to_cart"), "add to cart button", browser.Visible, w.t.Action)
	if err != nil {
		return res, err
	}
	if err := addBtn.Click(ctx); err != nil {
		return res, fmt.Errorf("failed to click add to cart: %w", err)
	}
	if err := w.site.bagCheck(ctx, pg); err != nil {
		return res, err
	}

	dispensary, err := w.site.addedDispensary(ctx, pg)
	if err != nil {
		return res, err
	}
	container, err := w.require(ctx, pg, w.verify.Get("wait_for_cart_container"), "cart container", browser.Visible, w.t.CartContainer)
	if err != nil {
		return res, err
	}
	if err := w.site.checkCartEmpty(ctx, pg, container); err != nil {
		return res, err
	}
	items, err := w.site.cartItems(ctx, pg, container)
	if err != nil {
		return res, err
	}

	refs := w.site.layout().added
	mismatch := false
	for _, item := range items {
		itemName, err := textOr(ctx, item, refs.name, "N/A")
		if err != nil {
			return res, err
		}
		if !strings.Contains(itemName, prodName) {
			continue
		}
		if req.Variant != "" {
			variantEl, err := query(ctx, item, refs.variant)
			if err != nil {
				return res, err
			}
			if variantEl == nil {
				continue
			}
			variantText, err := text(ctx, variantEl)
			if err != nil {
				return res, err
			}
			if !cartVariantMatches(variantText, req.Variant) {
				mismatch = true
				continue
			}
		}
		price, qty, err := readLine(ctx, item, refs)
		if err != nil {
			return res, err
		}
		res.Item = schemas.CartItemRecord{
			DispensaryName: dispensary,
			ItemName:       itemName,
			ItemPrice:      price,
			ItemQuantity:   qty,
		}
		w.logger.Info("Product added to cart.", zap.String("item", itemName), zap.String("quantity", qty))
		return res, nil
	}
	if mismatch {
		return res, errs.New(errs.NotFound, errs.ReasonVariantMismatch, "Variant mismatch in cart")
	}
	return res, errs.Newf(errs.NotFound, errs.ReasonProductNotFound, "Product %s not found in cart", prodName)
}

// readLine reads the displayed price and quantity of a cart line.
func readLine(ctx context.Context, item browser.Element, refs lineRefs) (price, qty string, err error) {
	if price, err = textOr(ctx, item, refs.price, "N/A"); err != nil {
		return "", "", err
	}
	if refs.splitPrice && price != "N/A" {
		price = splitPrice(price)
	}
	qtyEl, err := query(ctx, item, refs.quantity)
	if err != nil {
		return "", "", err
	}
	switch {
	case qtyEl == nil:
		qty = "N/A"
	case refs.quantityFromInput:
		qty, err = qtyEl.Value(ctx)
	default:
		qty, err = text(ctx, qtyEl)
	}
	return price, qty, err
}

func (w *workflow) FetchCartDetails(ctx context.Context, pg browser.Page, productURL string) (schemas.CartSnapshot, error) {
	snap := schemas.CartSnapshot{Items: []schemas.CartLine{}, Subtotal: "N/A"}
	if err := w.navigate(ctx, pg, productURL); err != nil {
		return snap, err
	}
	if err := w.site.initialChecks(ctx, pg); err != nil {
		return snap, err
	}
	if err := w.site.openCart(ctx, pg); err != nil {
		return snap, err
	}
	container, err := w.require(ctx, pg, w.verify.Get("wait_for_cart_container"), "cart container", browser.Visible, w.t.CartContainer)
	if err != nil {
		return snap, err
	}
	if err := w.site.checkCartEmpty(ctx, pg, container); err != nil {
		return snap, err
	}
	items, err := w.site.cartItems(ctx, pg, container)
	if err != nil {
		return snap, err
	}

	refs := w.site.layout().listed
	for _, item := range items {
		name, err := textOr(ctx, item, refs.name, "N/A")
		if err != nil {
			return snap, err
		}
		price, qty, err := readLine(ctx, item, refs)
		if err != nil {
			return snap, err
		}
		snap.Items = append(snap.Items, schemas.CartLine{ItemName: name, ItemPrice: price, ItemQuantity: qty})
	}

	subtotal, err := query(ctx, pg, w.verify.Get("subtotal"))
	if err != nil {
		return snap, err
	}
	if subtotal != nil {
		s, err := text(ctx, subtotal)
		if err != nil {
			return snap, err
		}
		snap.Subtotal = strings.TrimSpace(strings.Trim(s, "$"))
	}
	return snap, nil
}

func (w *workflow) DeleteItemProduct(ctx context.Context, pg browser.Page, product schemas.Product) error {
	if err := w.navigate(ctx, pg, w.site.deletionURL(product)); err != nil {
		return err
	}
	if err := w.site.initialChecks(ctx, pg); err != nil {
		return err
	}
	nameEl, err := w.require(ctx, pg, w.del.Get("prod_name"), "product name", browser.Visible, w.t.Action)
	if err != nil {
		return err
	}
	prodName, err := text(ctx, nameEl)
	if err != nil {
		return err
	}

	if err := w.site.openCart(ctx, pg); err != nil {
		return err
	}
	container, err := w.require(ctx, pg, w.del.Get("wait_for_cart_container"), "cart container", browser.Visible, w.t.CartContainer)
	if err != nil {
		return err
	}
	if err := w.site.checkCartEmpty(ctx, pg, container); err != nil {
		return err
	}
	if _, err := w.require(ctx, pg, w.del.Get("product_name"), "cart item names", browser.Visible, w.t.Action); err != nil {
		return err
	}
	names, err := queryAll(ctx, pg, w.del.Get("product_name"))
	if err != nil {
		return err
	}

	var rows []cartRow
	for i, el := range names {
		name, err := text(ctx, el)
		if err != nil {
			return err
		}
		if !strings.Contains(name, prodName) {
			continue
		}
		variant, comparable, err := w.site.cartVariantAt(ctx, pg, i)
		if err != nil {
			return err
		}
		rows = append(rows, cartRow{index: i, variant: variant, comparable: comparable})
	}
	idx, err := pickDeletion(rows, product.Variant)
	if err != nil {
		return err
	}

	buttons, err := queryAll(ctx, pg, w.del.Get("product_delete_button"))
	if err != nil {
		return err
	}
	if idx >= len(buttons) {
		return structureErr("No delete button for cart item %d", idx)
	}
	// The cart drawer animates in; an early click lands on the wrong row.
	if err := browser.Sleep(ctx, w.t.Settle); err != nil {
		return err
	}
	if err := buttons[idx].Click(ctx); err != nil {
		return fmt.Errorf("failed to click delete: %w", err)
	}
	w.logger.Info("Product deleted from cart.", zap.String("product", prodName), zap.Int("row", idx))
	return nil
}

func (w *workflow) checkoutOptions(ctx context.Context, pg browser.Page) (schemas.CheckoutOptions, error) {
	if err := w.navigate(ctx, pg, w.checkoutURL); err != nil {
		return schemas.CheckoutOptions{}, err
	}
	if err := w.site.initialChecks(ctx, pg); err != nil {
		return schemas.CheckoutOptions{}, err
	}
	opts, err := w.site.fetchCheckoutOptions(ctx, pg)
	if err != nil {
		return opts, err
	}
	opts.Normalize()
	return opts, nil
}

func (w *workflow) GetCheckoutOptions(ctx context.Context, pg browser.Page) (schemas.CheckoutOptions, error) {
	return w.checkoutOptions(ctx, pg)
}

func (w *workflow) GetCheckoutOptionsV2(ctx context.Context, pg browser.Page) (schemas.CheckoutOptionsV2, error) {
	opts, err := w.checkoutOptions(ctx, pg)
	if err != nil {
		return schemas.CheckoutOptionsV2{}, err
	}
	return compactOptions(opts), nil
}

func (w *workflow) SubmitOrder(ctx context.Context, pg browser.Page, info schemas.UserInfo) (schemas.OrderDetails, error) {
	return w.submit(ctx, pg, orderInput{UserInfo: info, mmjID: randomMMJID()})
}

func (w *workflow) SubmitOrderV2(ctx context.Context, pg browser.Page, opts schemas.CheckoutOptionsV2) (schemas.OrderDetails, error) {
	info, err := opts.UserInfo()
	if err != nil {
		return schemas.OrderDetails{}, err
	}
	return w.submit(ctx, pg, orderInput{UserInfo: info, mmjID: randomMMJID(), v2: true})
}

func (w *workflow) submit(ctx context.Context, pg browser.Page, in orderInput) (schemas.OrderDetails, error) {
	if err := w.navigate(ctx, pg, w.checkoutURL); err != nil {
		return schemas.OrderDetails{}, err
	}
	if err := w.site.initialChecks(ctx, pg); err != nil {
		return schemas.OrderDetails{}, err
	}
	if err := w.site.checkoutChecks(ctx, pg); err != nil {
		return schemas.OrderDetails{}, err
	}
	if err := w.fillForm(ctx, pg, w.site.form(), in); err != nil {
		return schemas.OrderDetails{}, err
	}
	return w.site.placeOrderDetails(ctx, pg, in)
}
