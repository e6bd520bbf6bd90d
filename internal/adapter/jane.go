// internal/adapter/jane.go
package adapter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/browser"
	"github.com/xkilldash9x/cartwright/internal/errs"
)

// janeStyle captures where the Jane-powered storefronts differ from each other.
type janeStyle struct {
	// ageModal is the add-to-cart key of the age gate container.
	ageModal string
	// regional storefronts ask for a location preference and can refuse service.
	regional bool
	// quantityInput reads the stepper value from an input rather than "Qty: N" text.
	quantityInput bool
	// bagDeletion deletes from the bag page instead of the product page.
	bagDeletion bool
	// dispensaryFirst reads the dispensary name before the cart drawer is opened.
	dispensaryFirst bool
	// splitPrices renders dollars and cents on separate lines.
	splitPrices bool
}

var (
	iheartjaneStyle = janeStyle{ageModal: "age_rstr_container", regional: true}
	leaflyStyle     = janeStyle{
		ageModal:        "age_rstr_modal",
		quantityInput:   true,
		bagDeletion:     true,
		dispensaryFirst: true,
		splitPrices:     true,
	}
)

// jane drives storefronts built on the Jane platform: a stepper for quantity,
// a cart drawer, and an accordion checkout with continue buttons per step.
type jane struct {
	*engine
	style janeStyle
}

func newJane(e *engine, style janeStyle) Adapter {
	return &workflow{engine: e, site: &jane{engine: e, style: style}}
}

func (j *jane) initialChecks(ctx context.Context, pg browser.Page) error {
	if err := j.dismissModal(ctx, pg, j.add.Get(j.style.ageModal), j.add.Get("age_rstr_btn"), j.t.AgeGate); err != nil {
		return err
	}
	if !j.style.regional {
		return nil
	}
	if err := j.dismissModal(ctx, pg, j.add.Get("user_pref_container"), j.add.Get("user_pref_container_dismiss_button"), j.t.AgeGate); err != nil {
		return err
	}
	if _, ok, err := visibleNow(ctx, pg, j.add.Get("not_available_near_you_selector")); err != nil {
		return err
	} else if ok {
		return errs.New(errs.Unavailable, errs.ReasonRegionUnavailable, "Not available near you")
	}
	return nil
}

func (j *jane) bagCheck(ctx context.Context, pg browser.Page) error {
	conflict := errs.New(errs.Conflict, errs.ReasonCartConflict, "Clear the cart before adding products from a new dispensary")
	if err := j.blockingModal(ctx, pg, j.add.Get("clear_cart_selector"), j.t.BlockingModal, conflict); err != nil {
		return err
	}
	if _, ok, err := browser.IsVisible(ctx, pg, j.add.Get("bag_check_selector"), j.wait(j.t.Modal)); err != nil || ok {
		return err
	}
	return j.openCart(ctx, pg)
}

// readQuantity parses the stepper, either an input value or text like "Qty: 2".
func (j *jane) readQuantity(ctx context.Context, pg browser.Page) (int, error) {
	el, err := j.require(ctx, pg, j.add.Get("quantity_selector"), "quantity selector", browser.Attached, j.t.StockCheck)
	if err != nil {
		return 0, err
	}
	var raw string
	if j.style.quantityInput {
		raw, err = el.Value(ctx)
	} else {
		raw, err = el.Text(ctx)
		if _, after, found := strings.Cut(raw, ": "); found {
			raw = after
		}
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, structureErr("Unreadable quantity %q", raw)
	}
	return n, nil
}

// selectQuantity steps the quantity to quantity plus what the cart already
// holds; the storefront replaces the cart line rather than adding to it.
func (j *jane) selectQuantity(ctx context.Context, pg browser.Page, quantity, existing int) error {
	target := quantity + existing
	current, err := j.readQuantity(ctx, pg)
	if err != nil {
		return err
	}

	switch {
	case current < target:
		inc, err := j.require(ctx, pg, j.add.Get("increment_button"), "increment button", browser.Attached, j.t.StockCheck)
		if err != nil {
			return err
		}
		for i := current; i < target; i++ {
			if dis, err := disabled(ctx, inc); err != nil {
				return err
			} else if dis {
				break
			}
			if err := inc.Click(ctx); err != nil {
				return err
			}
		}
	case current > target:
		dec, err := j.require(ctx, pg, j.add.Get("decrement_button"), "decrement button", browser.Attached, j.t.StockCheck)
		if err != nil {
			return err
		}
		for i := target; i < current; i++ {
			if err := dec.Click(ctx); err != nil {
				return err
			}
		}
	}

	final, err := j.readQuantity(ctx, pg)
	if err != nil {
		return err
	}
	if final < target {
		return errs.Newf(errs.Invalid, errs.ReasonQuantityUnavailable, "Maximum quantity available is %d", final)
	}
	return nil
}

func (j *jane) openCart(ctx context.Context, pg browser.Page) error {
	icon, err := j.require(ctx, pg, j.verify.Get("wait_for_cart_button"), "cart button", browser.Visible, j.t.Action)
	if err != nil {
		return err
	}
	return icon.Click(ctx)
}

func (j *jane) checkCartEmpty(ctx context.Context, _ browser.Page, container browser.Element) error {
	msg, err := textOr(ctx, container, j.verify.Get("empty_cart"), "")
	if err != nil {
		return err
	}
	if strings.Contains(msg, "Your bag is empty") {
		return errs.New(errs.NotFound, errs.ReasonCartEmpty, "Your cart is empty")
	}
	return nil
}

func (j *jane) cartItems(ctx context.Context, pg browser.Page, _ browser.Element) ([]browser.Element, error) {
	sel := j.verify.Get("cart_item_container")
	if _, err := j.require(ctx, pg, sel, "cart items", browser.Visible, j.t.CartContainer); err != nil {
		return nil, err
	}
	return queryAll(ctx, pg, sel)
}

func (j *jane) addedDispensary(ctx context.Context, pg browser.Page) (string, error) {
	if !j.style.dispensaryFirst {
		drawer, err := j.require(ctx, pg, j.add.Get("bag_check_selector"), "cart drawer", browser.Visible, j.t.Action)
		if err != nil {
			return "", err
		}
		return textOr(ctx, drawer, j.add.Get("dispensary_name"), "Unknown Dispensary")
	}

	name := "Unknown Dispensary"
	el, err := browser.WaitFor(ctx, pg, j.add.Get("dispensary_name"), browser.Visible, j.wait(j.t.CartContainer))
	switch {
	case errors.Is(err, browser.ErrTimeout):
		j.logger.Debug("Dispensary name not shown.")
	case err != nil:
		return "", err
	default:
		if name, err = text(ctx, el); err != nil {
			return "", err
		}
	}
	return name, j.openCart(ctx, pg)
}

func (j *jane) layout() cartLayout {
	if j.style.splitPrices {
		return cartLayout{
			added: lineRefs{
				name:              j.verify.Get("i_name"),
				price:             j.add.Get("item_price"),
				quantity:          j.add.Get("item_quantity"),
				variant:           j.verify.Get("product_variant"),
				quantityFromInput: true,
				splitPrice:        true,
			},
			listed: lineRefs{
				name:              j.verify.Get("i_name"),
				price:             j.verify.Get("i_price"),
				quantity:          j.verify.Get("i_quantity"),
				quantityFromInput: true,
			},
		}
	}
	return cartLayout{
		added: lineRefs{
			name:     j.add.Get("item_name"),
			price:    j.add.Get("item_price"),
			quantity: j.add.Get("item_quantity"),
			variant:  j.add.Get("product_variant"),
		},
		listed: lineRefs{
			name:     j.verify.Get("item_name"),
			price:    j.verify.Get("item_price"),
			quantity: j.verify.Get("item_quantity"),
		},
	}
}

// variationPrice reads the price shown in the product details once the
// variant is active. Jane shows no reference price, so MSRP stays empty.
func (j *jane) variationPrice(ctx context.Context, pg browser.Page, scope browser.Querier) (string, string, error) {
	priceSel := j.variant.Get("variant_price_selector")
	el, err := query(ctx, scope, priceSel)
	if err != nil {
		return "", "", err
	}
	if el == nil {
		details, err := query(ctx, pg, j.variant.Get("product_details"))
		if err != nil || details == nil {
			return "", "", err
		}
		if el, err = query(ctx, details, priceSel); err != nil || el == nil {
			return "", "", err
		}
	}
	price, err := text(ctx, el)
	if err != nil {
		return "", "", err
	}
	if j.style.splitPrices {
		price = splitPrice(price)
	}
	return price, "", nil
}

func (j *jane) deletionURL(product schemas.Product) string {
	if j.style.bagDeletion {
		return j.bagURL
	}
	return product.URL
}

func (j *jane) cartVariantAt(ctx context.Context, pg browser.Page, idx int) (string, bool, error) {
	rows, err := queryAll(ctx, pg, j.del.Get("cart_item_container"))
	if err != nil || idx >= len(rows) {
		return "", false, err
	}
	el, err := query(ctx, rows[idx], j.del.Get("product_variant"))
	if err != nil || el == nil {
		return "", false, err
	}
	s, err := text(ctx, el)
	if err != nil {
		return "", false, err
	}
	v, ok := variantAfterSlash(s)
	return v, ok, nil
}

func (j *jane) checkoutChecks(ctx context.Context, pg browser.Page) error {
	if err := j.errorNotification(ctx, pg, j.checkout.Get("error_notification_selector"),
		errs.Upstream, errs.ReasonSubmissionRejected, "Order submission failed: %s"); err != nil {
		return err
	}
	if _, err := j.require(ctx, pg, j.checkout.Get("handle_item_option"), "checkout items", browser.Attached, j.t.Action); err != nil {
		return err
	}
	if pickup, err := query(ctx, pg, j.checkout.Get("pickup_button")); err != nil {
		return err
	} else if pickup != nil {
		if err := pickup.Click(ctx); err != nil && ctx.Err() == nil {
			j.logger.Debug("Pickup button not clickable.", zap.Error(err))
		}
	}
	if err := j.errorNotification(ctx, pg, j.checkout.Get("error_notification_selector_2"),
		errs.Upstream, errs.ReasonSubmissionRejected, "Order submission failed: %s"); err != nil {
		return err
	}

	container, err := j.require(ctx, pg, j.checkout.Get("checkboxes_container"), "checkout acknowledgements", browser.Attached, j.t.CartContainer)
	if err != nil {
		return err
	}
	if err := checkAll(ctx, container, j.checkout.Get("checkboxes")); err != nil {
		return err
	}
	return j.clickContinue(ctx, pg, 0, j.t.BlockingModal)
}

// checkAll ticks every unchecked checkbox below root.
func checkAll(ctx context.Context, root browser.Querier, sel string) error {
	boxes, err := queryAll(ctx, root, sel)
	if err != nil {
		return err
	}
	for _, box := range boxes {
		checked, err := box.Checked(ctx)
		if err != nil {
			return err
		}
		if checked {
			continue
		}
		if err := box.Click(ctx); err != nil {
			return err
		}
	}
	return nil
}

// clickContinue advances the idx-th checkout step. A disabled continue button
// means the form was rejected; the storefront's own message is surfaced when shown.
func (j *jane) clickContinue(ctx context.Context, pg browser.Page, idx int, d time.Duration) error {
	buttons, err := queryAll(ctx, pg, j.checkout.Get("continue_button"))
	if err != nil || len(buttons) <= idx {
		return err
	}
	btn := buttons[idx]
	err = browser.Poll(ctx, j.wait(d), func(ctx context.Context) (bool, error) {
		return btn.Visible(ctx)
	})
	if err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return structureErr("Timed out waiting for continue button %d", idx)
		}
		return err
	}
	// Validation runs after the last field blurs.
	if err := browser.Sleep(ctx, j.t.Settle); err != nil {
		return err
	}
	if dis, err := disabled(ctx, btn); err != nil {
		return err
	} else if dis {
		if err := j.errorNotification(ctx, pg, j.checkout.Get("error_notification_selector"),
			errs.Upstream, errs.ReasonSubmissionRejected, "Order submission failed: %s"); err != nil {
			return err
		}
		return errs.New(errs.Invalid, errs.ReasonSubmissionInvalid, "User form details not valid")
	}
	return btn.Click(ctx)
}

func (j *jane) form() formRefs {
	return formRefs{
		mmjID:     j.checkout.Get("mmj_id_input"),
		govID:     j.checkout.Get("gov_id_button"),
		firstName: j.checkout.Get("first_name_input"),
		lastName:  j.checkout.Get("last_name_input"),
		email:     j.checkout.Get("email_input"),
		phone:     j.checkout.Get("phone_input"),
		birthdate: j.checkout.Get("birth_date_input"),
	}
}

// placeOrderDetails pays in cash at pickup; it is the only method the
// storefronts accept without linking an account.
func (j *jane) placeOrderDetails(ctx context.Context, pg browser.Page, _ orderInput) (schemas.OrderDetails, error) {
	details := schemas.OrderDetails{OrderType: "Pickup", PaymentType: "cash", PickupTime: "N/A"}
	if err := j.clickContinue(ctx, pg, 1, j.t.BlockingModal); err != nil {
		return details, err
	}
	for _, step := range []struct{ key, what string }{
		{"payments_accordion", "payments section"},
		{"cash_payment_button", "cash payment"},
	} {
		el, err := j.require(ctx, pg, j.checkout.Get(step.key), step.what, browser.Visible, j.t.CartContainer)
		if err != nil {
			return details, err
		}
		if err := el.Click(ctx); err != nil {
			return details, fmt.Errorf("failed to select %s: %w", step.what, err)
		}
	}

	if el, ok, err := visibleNow(ctx, pg, j.checkout.Get("pickup_method_locator")); err != nil {
		return details, err
	} else if ok {
		if details.PickupTime, err = text(ctx, el); err != nil {
			return details, err
		}
	}

	err := j.placeOrder(ctx, pg, submitRefs{
		placeOrder:   j.checkout.Get("place_order"),
		success:      j.checkout.Get("successful_message"),
		captchaFrame: j.checkout.Get("iframe"),
		captchaModal: j.checkout.Get("is_captcha"),
		successWait:  min(j.t.SuccessWait, 5*time.Second),
	})
	return details, err
}

// idUpload is a document the checkout may ask for, stored in the upload directory.
type idUpload struct {
	file  string
	label string
}

var idUploads = []idUpload{
	{"government_id.jpg", "Government ID upload required"},
	{"medical_id_front.jpg", "Medical front of card upload required"},
	{"medical_id_back.jpg", "Medical back of card upload required"},
}

// fetchCheckoutOptions walks the checkout accordion step by step, filling
// placeholder customer details so later steps unlock.
func (j *jane) fetchCheckoutOptions(ctx context.Context, pg browser.Page) (schemas.CheckoutOptions, error) {
	var out schemas.CheckoutOptions

	if btn, ok, err := browser.IsVisible(ctx, pg, j.fetch.Get("pickup_button"), j.wait(j.t.CartContainer)); err != nil {
		return out, err
	} else if ok {
		if sel, _, _ := btn.Attr(ctx, "data-selected"); sel == "false" {
			if err := btn.Click(ctx); err != nil {
				return out, err
			}
		}
	}

	accordion, err := j.require(ctx, pg, j.fetch.Get("accordion_content_selector"), "checkout accordion", browser.Attached, j.t.CartContainer)
	if err != nil {
		return out, err
	}
	slots, err := j.require(ctx, pg, j.fetch.Get("pickup_options_selector"), "pickup options", browser.Attached, j.t.CartContainer)
	if err != nil {
		return out, err
	}
	if out.PickupSlots, err = optionLabels(ctx, slots, "option"); err != nil {
		return out, err
	}
	if err := checkAll(ctx, accordion, j.fetch.Get("checkbox_selector")); err != nil {
		return out, err
	}
	if out.PickupInstructions, err = j.pickupInstructions(ctx, pg); err != nil {
		return out, err
	}
	if err := j.clickContinue(ctx, pg, 0, j.t.BlockingModal); err != nil {
		return out, err
	}

	info, err := j.require(ctx, pg, j.fetch.Get("accordion_content_info_selector"), "customer info", browser.Attached, j.t.CartContainer)
	if err != nil {
		return out, err
	}
	if out.CustomerInfo, err = optionLabels(ctx, info, j.fetch.Get("label_elem")); err != nil {
		return out, err
	}
	for i := range out.CustomerInfo {
		out.CustomerInfo[i].Type = schemas.FieldInput
	}
	uploads, err := j.uploadIDs(ctx, pg)
	if err != nil {
		return out, err
	}
	out.CustomerInfo = append(out.CustomerInfo, uploads...)

	placeholders := []struct{ key, value string }{
		{"mmj_id_input", randomMMJID()},
		{"first_name", "John"},
		{"last_name", "Doe"},
		{"email", "johndoe@example.com"},
		{"mobile_phone", "1234567890"},
		{"birthdate", "01/01/1980"},
	}
	for _, p := range placeholders {
		if err := j.fillField(ctx, pg, j.fetch.Get(p.key), p.value); err != nil {
			return out, err
		}
	}
	if err := j.clickContinue(ctx, pg, 1, j.t.CartContainer); err != nil {
		return out, err
	}

	out.PaymentDetails, err = j.paymentOptions(ctx, pg)
	return out, err
}

func (j *jane) pickupInstructions(ctx context.Context, pg browser.Page) ([]schemas.Option, error) {
	container, err := query(ctx, pg, j.fetch.Get("pickup_instructions_class"))
	if err != nil {
		return nil, err
	}
	if container == nil {
		return []schemas.Option{{Label: "Pickup instructions container not found", Type: schemas.FieldNone}}, nil
	}
	labels, err := optionLabels(ctx, container, j.fetch.Get("pickup_instructions_selector"))
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return []schemas.Option{{Label: "No pickup instructions", Type: schemas.FieldNone}}, nil
	}
	for i := range labels {
		labels[i].Type = schemas.FieldCheckbox
	}
	return labels, nil
}

// uploadIDs attaches the identity documents found in the upload directory to
// the file inputs the checkout shows, reporting each as a required field.
func (j *jane) uploadIDs(ctx context.Context, pg browser.Page) ([]schemas.Option, error) {
	var out []schemas.Option
	sel := j.fetch.Get("id_file_input")
	if sel == "" || j.uploadDir == "" {
		return out, nil
	}
	for i, up := range idUploads {
		path := filepath.Join(j.uploadDir, up.file)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		inputs, err := queryAll(ctx, pg, sel)
		if err != nil {
			return out, err
		}
		if i >= len(inputs) {
			break
		}
		if vis, err := inputs[i].Visible(ctx); err != nil || !vis {
			continue
		}
		out = append(out, schemas.Option{Label: up.label, Type: schemas.FieldFile})
		if err := inputs[i].SetFiles(ctx, []string{path}); err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			j.logger.Warn("Failed to upload document.", zap.String("label", up.label), zap.Error(err))
		}
	}
	return out, nil
}

func (j *jane) paymentOptions(ctx context.Context, pg browser.Page) ([]schemas.Option, error) {
	accordion, err := j.require(ctx, pg, j.fetch.Get("payment_accordion_selector"), "payment section", browser.Attached, j.t.CartContainer)
	if err != nil {
		return nil, err
	}
	var out []schemas.Option
	if jp, err := query(ctx, accordion, j.fetch.Get("jane_pay_selector")); err != nil {
		return nil, err
	} else if jp != nil {
		out = append(out, schemas.Option{Label: "JanePay", Type: schemas.FieldRadio})
	}
	buttons, err := accordion.QueryAll(ctx, "button")
	if err != nil {
		return nil, err
	}
	for _, b := range buttons {
		id, _, _ := b.Attr(ctx, "data-testid")
		if id == "" || id == "accordion-item-jane_pay" {
			continue
		}
		label, err := text(ctx, b)
		if err != nil {
			return nil, err
		}
		if strings.Contains(label, "Pay by linking") {
			continue
		}
		out = append(out, schemas.Option{Label: label, Type: schemas.FieldRadio})
	}
	return out, nil
}
