// internal/adapter/dutchie.go
package adapter

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/browser"
	"github.com/xkilldash9x/cartwright/internal/errs"
)

// dutchie renders quantities as a dropdown and asks for the state of
// residence, payment, order time and promo code on one checkout page.
type dutchie struct {
	*engine
}

func newDutchie(e *engine) Adapter {
	return &workflow{engine: e, site: &dutchie{engine: e}}
}

func (d *dutchie) initialChecks(ctx context.Context, pg browser.Page) error {
	return d.dismissModal(ctx, pg, d.add.Get("age_rstr_container"), d.add.Get("age_rstr_btn"), d.t.AgeGate)
}

func (d *dutchie) bagCheck(ctx context.Context, pg browser.Page) error {
	// The continue selector is written from the page root; only its last step
	// applies inside the modal.
	continueSel := d.add.Get("closed_but_modal_selector_continue")
	if steps := strings.Fields(continueSel); len(steps) > 0 {
		continueSel = steps[len(steps)-1]
	}
	if err := d.dismissModal(ctx, pg, d.add.Get("closed_but_modal_selector"), continueSel, d.t.BlockingModal); err != nil {
		return err
	}

	closed := errs.New(errs.Unavailable, errs.ReasonDispensaryClosed, "Dispensary is closed, cannot add to cart")
	if err := d.blockingModal(ctx, pg, d.add.Get("fully_closed_modal_selector"), d.t.BlockingModal, closed); err != nil {
		return err
	}
	conflict := errs.New(errs.Conflict, errs.ReasonCartConflict, "Clear the cart before adding products from a new dispensary")
	if err := d.blockingModal(ctx, pg, d.add.Get("clear_cart_selector"), d.t.BlockingModal, conflict); err != nil {
		return err
	}
	return d.errorNotification(ctx, pg, d.add.Get("purchase_limit_selector"),
		errs.Invalid, errs.ReasonPurchaseLimit, "Minimum purchase limit reached: %s")
}

// selectQuantity picks quantity from the dropdown. The storefront adds to
// what the cart holds, so the existing quantity is not part of the choice.
func (d *dutchie) selectQuantity(ctx context.Context, pg browser.Page, quantity, _ int) error {
	opener, err := d.require(ctx, pg, d.add.Get("quantity_selector"), "quantity selector", browser.Visible, d.t.StockCheck)
	if err != nil {
		return err
	}
	if err := opener.Click(ctx); err != nil {
		return err
	}
	if _, err := d.require(ctx, pg, d.add.Get("quantity_selector_wait_for"), "quantity options", browser.Attached, d.t.Action); err != nil {
		return err
	}

	options, err := queryAll(ctx, pg, d.add.Get("available_quantities"))
	if err != nil {
		return err
	}
	var available []int
	for _, opt := range options {
		v, _, err := opt.Attr(ctx, "data-value")
		if err != nil {
			return err
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			available = append(available, n)
		}
	}
	if !slices.Contains(available, quantity) {
		if len(available) == 0 {
			return errs.Newf(errs.Invalid, errs.ReasonQuantityUnavailable, "Quantity %d is not available", quantity)
		}
		return errs.Newf(errs.Invalid, errs.ReasonQuantityUnavailable, "Maximum quantity available is %d", available[len(available)-1])
	}

	choice, err := browser.WaitFor(ctx, pg, d.add.Template("desired_quantity", quantity), browser.Visible, d.wait(d.t.StockCheck))
	if errors.Is(err, browser.ErrTimeout) {
		return errs.Newf(errs.Invalid, errs.ReasonQuantityUnavailable, "Failed to select quantity: %d", quantity)
	}
	if err != nil {
		return err
	}
	return choice.Click(ctx)
}

func (d *dutchie) openCart(ctx context.Context, pg browser.Page) error {
	if _, err := d.require(ctx, pg, d.verify.Get("wait_for_cart_button"), "cart button", browser.Visible, d.t.Action); err != nil {
		return err
	}
	buttons, err := queryAll(ctx, pg, d.verify.Get("click_on_cart_button"))
	if err != nil || len(buttons) == 0 {
		return err
	}
	return buttons[0].Click(ctx)
}

func (d *dutchie) checkCartEmpty(ctx context.Context, pg browser.Page, _ browser.Element) error {
	empty, err := query(ctx, pg, d.verify.Get("empty_cart"))
	if err != nil {
		return err
	}
	if empty != nil {
		return errs.New(errs.NotFound, errs.ReasonCartEmpty, "Your cart is empty")
	}
	return nil
}

// cartItems returns every line; the container selector matches each line.
func (d *dutchie) cartItems(ctx context.Context, pg browser.Page, _ browser.Element) ([]browser.Element, error) {
	return queryAll(ctx, pg, d.verify.Get("wait_for_cart_container"))
}

func (d *dutchie) addedDispensary(ctx context.Context, pg browser.Page) (string, error) {
	drawer, err := d.require(ctx, pg, d.add.Get("bag_check_selector"), "cart drawer", browser.Visible, d.t.Action)
	if err != nil {
		return "", err
	}
	return textOr(ctx, drawer, d.add.Get("dispensary_name"), "Unknown Dispensary")
}

func (d *dutchie) layout() cartLayout {
	return cartLayout{
		added: lineRefs{
			name:     d.add.Get("item_name"),
			price:    d.add.Get("item_price"),
			quantity: d.add.Get("item_quantity"),
			variant:  d.add.Get("product_variant"),
		},
		listed: lineRefs{
			name:     d.verify.Get("item_name"),
			price:    d.verify.Get("item_price"),
			quantity: d.verify.Get("item_quantity"),
		},
	}
}

// variationPrice prefers the price inside the variant element and falls
// back to the page-level price.
func (d *dutchie) variationPrice(ctx context.Context, pg browser.Page, scope browser.Querier) (string, string, error) {
	read := func(key string) (string, error) {
		q := d.variant.Query(key)
		el, err := query(ctx, scope, q.Named("variant"))
		if err != nil {
			return "", err
		}
		if el == nil {
			if el, err = query(ctx, pg, q.Named("non_variant")); err != nil || el == nil {
				return "", err
			}
		}
		return text(ctx, el)
	}
	price, err := read("price_selectors")
	if err != nil {
		return "", "", err
	}
	msrp, err := read("msrp_selectors")
	return price, msrp, err
}

func (d *dutchie) deletionURL(product schemas.Product) string {
	return product.URL
}

// cartVariantAt reads the weight label inside the idx-th drawer row. Rows for
// unweighted products carry no label and are not comparable.
func (d *dutchie) cartVariantAt(ctx context.Context, pg browser.Page, idx int) (string, bool, error) {
	rows, err := queryAll(ctx, pg, d.del.Get("wait_for_cart_container"))
	if err != nil || idx >= len(rows) {
		return "", false, err
	}
	el, err := query(ctx, rows[idx], d.del.Get("product_variant"))
	if err != nil || el == nil {
		return "", false, err
	}
	v, err := text(ctx, el)
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (d *dutchie) checkoutChecks(context.Context, browser.Page) error {
	return nil
}

func (d *dutchie) form() formRefs {
	return formRefs{
		firstName: d.checkout.Get("first_name"),
		lastName:  d.checkout.Get("last_name"),
		email:     d.checkout.Get("email"),
		phone:     d.checkout.Get("mobile_phone"),
		birthdate: d.checkout.Get("birthdate"),
	}
}

func (d *dutchie) placeOrderDetails(ctx context.Context, pg browser.Page, in orderInput) (schemas.OrderDetails, error) {
	var details schemas.OrderDetails
	if err := d.selectState(ctx, pg, in.State); err != nil {
		return details, err
	}
	if _, ok, err := visibleNow(ctx, pg, d.checkout.Get("rewards_popup")); err != nil {
		return details, err
	} else if ok {
		d.logger.Info("'Connect to Rewards' popup has appeared.")
	}
	if _, err := d.clickIfVisible(ctx, pg, d.checkout.Get("order_type_save_button"), d.t.Modal); err != nil {
		return details, fmt.Errorf("failed to save order type: %w", err)
	}

	payment := in.PaymentType
	if payment == "" && !in.v2 {
		payment = "creditCard"
	}
	if err := d.choosePayment(ctx, pg, payment); err != nil {
		return details, err
	}
	if err := d.selectOrderTime(ctx, pg, in.PickupSlot); err != nil {
		return details, err
	}
	if !in.v2 {
		if err := d.applyPromo(ctx, pg, in.PromoCode); err != nil {
			return details, err
		}
	}

	details, err := d.orderDetails(ctx, pg)
	if err != nil {
		return details, err
	}
	err = d.placeOrder(ctx, pg, submitRefs{
		placeOrder:  d.checkout.Get("place_order"),
		success:     d.checkout.Get("successful_message"),
		successWait: d.t.SuccessWait,
	})
	return details, err
}

func (d *dutchie) selectState(ctx context.Context, pg browser.Page, state string) error {
	if state == "" {
		return nil
	}
	field, ok, err := visibleNow(ctx, pg, d.checkout.Get("state_selector"))
	if err != nil || !ok {
		return err
	}
	if err := field.Click(ctx); err != nil {
		return err
	}
	return field.Type(ctx, strings.ToLower(state))
}

func (d *dutchie) choosePayment(ctx context.Context, pg browser.Page, payment string) error {
	save, ok, err := visibleNow(ctx, pg, d.checkout.Get("payment_method_save_button"))
	if err != nil {
		return err
	}
	if !ok {
		d.logger.Debug("Payment method section is not visible.")
		return nil
	}
	if payment != "" {
		radioSel := d.checkout.Template("payment_type_radio", payment)
		if radioSel == "" {
			radioSel = fmt.Sprintf("input[name='paymentType'][value='%s']", payment)
		}
		radio, ok, err := visibleNow(ctx, pg, radioSel)
		if err != nil {
			return err
		}
		if ok {
			if err := radio.ScrollIntoView(ctx); err != nil {
				return err
			}
			if err := radio.Click(ctx); err != nil {
				return err
			}
			d.logger.Debug("Selected payment method.", zap.String("payment", payment))
		} else {
			d.logger.Info("Payment type is not selectable, keeping the default.", zap.String("payment", payment))
		}
	}
	return save.Click(ctx)
}

// selectOrderTime picks slot from the order time menu, or its first entry.
func (d *dutchie) selectOrderTime(ctx context.Context, pg browser.Page, slot string) error {
	control, ok, err := visibleNow(ctx, pg, d.checkout.Get("control_div_order_time"))
	if err != nil {
		return err
	}
	if ok {
		if err := control.Click(ctx); err != nil {
			return err
		}
		menu, ok, err := browser.IsVisible(ctx, pg, d.checkout.Get("menu_div_order_time"), d.wait(d.t.Modal))
		if err != nil {
			return err
		}
		if ok {
			options, err := queryAll(ctx, menu, d.checkout.Get("first_option_order_time"))
			if err != nil {
				return err
			}
			if choice := pickOption(ctx, options, slot); choice != nil {
				if err := choice.Click(ctx); err != nil {
					return err
				}
			}
		}
	}
	_, err = d.clickIfVisible(ctx, pg, d.checkout.Get("save_order_time_button"), d.t.Modal)
	return err
}

// pickOption returns the option whose text is want, falling back to the first.
func pickOption(ctx context.Context, options []browser.Element, want string) browser.Element {
	if len(options) == 0 {
		return nil
	}
	if want != "" {
		for _, opt := range options {
			if s, err := text(ctx, opt); err == nil && s == want {
				return opt
			}
		}
	}
	return options[0]
}

func (d *dutchie) applyPromo(ctx context.Context, pg browser.Page, code string) error {
	if code == "" {
		return nil
	}
	toggle, err := d.require(ctx, pg, d.checkout.Get("promo_code"), "promo code link", browser.Visible, d.t.Action)
	if err != nil {
		return err
	}
	if err := toggle.Click(ctx); err != nil {
		return err
	}
	input, err := d.require(ctx, pg, d.checkout.Get("promo_code_input_fill"), "promo code input", browser.Visible, d.t.Action)
	if err != nil {
		return err
	}
	if err := input.Fill(ctx, code); err != nil {
		return err
	}
	apply, err := d.require(ctx, pg, d.checkout.Get("promo_code_button"), "promo code button", browser.Visible, d.t.Action)
	if err != nil {
		return err
	}
	return apply.Click(ctx)
}

func (d *dutchie) orderDetails(ctx context.Context, pg browser.Page) (schemas.OrderDetails, error) {
	details := schemas.OrderDetails{OrderType: "Pickup", PaymentType: "Cash"}
	fields := []struct {
		key string
		dst *string
	}{
		{"subtotal_locator", &details.Subtotal},
		{"taxes_locator", &details.Taxes},
		{"order_total_locator", &details.OrderTotal},
		{"pickup_method_locator", &details.OrderType},
		{"payment_method_locator", &details.PaymentType},
		{"pickup_time_locator", &details.PickupTime},
	}
	for _, f := range fields {
		el, ok, err := visibleNow(ctx, pg, d.checkout.Get(f.key))
		if err != nil {
			return details, err
		}
		if !ok {
			continue
		}
		if *f.dst, err = text(ctx, el); err != nil {
			return details, err
		}
	}
	return details, nil
}

// fetchCheckoutOptions harvests the form and then every order-type branch,
// switching to each enabled branch that is not already selected.
func (d *dutchie) fetchCheckoutOptions(ctx context.Context, pg browser.Page) (schemas.CheckoutOptions, error) {
	var out schemas.CheckoutOptions
	section, err := query(ctx, pg, d.fetch.Get("section_selector"))
	if err != nil {
		return out, err
	}
	if section == nil {
		return out, structureErr("Checkout section not found")
	}

	inputs, err := section.QueryAll(ctx, "input")
	if err != nil {
		return out, err
	}
	for _, input := range inputs {
		label, _, err := input.Attr(ctx, "name")
		if err != nil {
			return out, err
		}
		if label == "" {
			if label, _, err = input.Attr(ctx, "id"); err != nil {
				return out, err
			}
		}
		out.CustomerInfo = append(out.CustomerInfo, schemas.Option{Label: label, Type: schemas.FieldInput})
	}

	if states, err := query(ctx, pg, d.fetch.Get("state_selection_selector")); err != nil {
		return out, err
	} else if states != nil {
		options, err := states.QueryAll(ctx, "option")
		if err != nil {
			return out, err
		}
		for _, opt := range options {
			if v, _, _ := opt.Attr(ctx, "value"); v == "" {
				continue
			}
			label, err := text(ctx, opt)
			if err != nil {
				return out, err
			}
			out.StateSelection = append(out.StateSelection, schemas.Option{Label: label, Type: schemas.FieldSelect})
		}
	}

	if change, err := query(ctx, pg, d.fetch.Get("change_button")); err != nil {
		return out, err
	} else if change != nil {
		if err := change.Click(ctx); err != nil {
			return out, err
		}
	}

	orderSection, err := d.require(ctx, pg, d.fetch.Get("order_type_section"), "order type section", browser.Visible, d.t.CartContainer)
	if err != nil {
		return out, err
	}
	radios, err := queryAll(ctx, orderSection, d.fetch.Get("order_type_radio"))
	if err != nil {
		return out, err
	}

	out.OrderTypeDetails = make(map[string]schemas.OrderTypeOption, len(radios))
	out.SelectedOrderData = make(map[string]schemas.BranchOptions, len(radios))
	var lastMedical []schemas.Option
	for _, radio := range radios {
		value, _, _ := radio.Attr(ctx, "value")
		checked, _, _ := radio.Attr(ctx, "aria-checked")
		typ, _, _ := radio.Attr(ctx, "type")
		label, err := textOr(ctx, radio, d.fetch.Get("get_extra_value"), value)
		if err != nil {
			return out, err
		}
		detail := schemas.OrderTypeOption{Label: label, Type: fieldType(typ), Checked: checked == "true"}

		switch checked {
		case "true":
			branch, err := d.branchOptions(ctx, pg)
			if err != nil {
				return out, err
			}
			out.SelectedOrderData[value] = branch
			lastMedical = branch.MedicalDetails
		case "false":
			if err := radio.ScrollIntoView(ctx); err != nil {
				return out, err
			}
			if dis, err := disabled(ctx, radio); err != nil {
				return out, err
			} else if dis {
				detail.Label += schemas.DisabledSuffix
				break
			}
			if err := radio.Click(ctx); err != nil {
				d.logger.Warn("Failed to switch order type.", zap.String("order_type", value), zap.Error(err))
				break
			}
			branch, err := d.branchOptions(ctx, pg)
			if err != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				d.logger.Warn("Failed to harvest order type.", zap.String("order_type", value), zap.Error(err))
				break
			}
			out.SelectedOrderData[value] = branch
			lastMedical = branch.MedicalDetails
		}
		out.OrderTypeDetails[value] = detail
	}

	out.MedicalSectionDetails = lastMedical
	if pickup, ok := out.SelectedOrderData["pickup"]; ok {
		out.PaymentDetails = pickup.PaymentDetails
		if pickup.Schedule != nil {
			out.PickupSlots = pickup.Schedule.TimeSlots
		}
	} else {
		d.logger.Info("Storefront offers no pickup branch.")
	}
	return out, nil
}

func fieldType(attr string) schemas.FieldType {
	switch attr {
	case "radio":
		return schemas.FieldRadio
	case "checkbox":
		return schemas.FieldCheckbox
	}
	return schemas.FieldText
}

// branchOptions reads the payment, schedule, address and medical options of
// the order type currently selected.
func (d *dutchie) branchOptions(ctx context.Context, pg browser.Page) (schemas.BranchOptions, error) {
	b := schemas.BranchOptions{PaymentDetails: []schemas.Option{}}

	var section browser.Element
	for _, sel := range d.fetch.List("payment_delivery_section") {
		el, err := query(ctx, pg, sel)
		if err != nil {
			return b, err
		}
		if el != nil {
			section = el
			break
		}
	}
	if section != nil {
		payments, err := queryAll(ctx, section, d.fetch.Get("payment_type"))
		if err != nil {
			return b, err
		}
		byText := false
		if len(payments) == 0 {
			byText = true
			if payments, err = queryAll(ctx, section, d.fetch.Get("payment_option")); err != nil {
				return b, err
			}
		}
		for _, p := range payments {
			var label string
			if byText {
				label, err = text(ctx, p)
			} else {
				label, _, err = p.Attr(ctx, "value")
			}
			if err != nil {
				return b, err
			}
			typ, _, _ := p.Attr(ctx, "type")
			if typ == "" {
				typ = string(schemas.FieldText)
			}
			if dis, _ := disabled(ctx, p); dis {
				label += schemas.DisabledSuffix
			}
			b.PaymentDetails = append(b.PaymentDetails, schemas.Option{Label: label, Type: schemas.FieldType(typ)})
		}
	}

	schedule, err := d.schedule(ctx, pg)
	if err != nil {
		return b, err
	}
	b.Schedule = schedule

	for _, key := range []string{"delivery_address_input", "apartment_number_input"} {
		el, err := query(ctx, pg, d.fetch.Get(key))
		if err != nil {
			return b, err
		}
		if el == nil {
			continue
		}
		label, err := text(ctx, el)
		if err != nil {
			return b, err
		}
		b.AddressDetails = append(b.AddressDetails, schemas.Option{Label: label, Type: schemas.FieldInput})
	}

	if b.MedicalDetails, err = d.medicalDetails(ctx, pg); err != nil {
		return b, err
	}
	return b, nil
}

// schedule switches to scheduled ordering when offered and lists the days
// and time slots. It returns nil when the branch has no schedule.
func (d *dutchie) schedule(ctx context.Context, pg browser.Page) (*schemas.ScheduleOptions, error) {
	opt, err := query(ctx, pg, d.fetch.Get("scheduled_option"))
	if err != nil || opt == nil {
		return nil, err
	}
	s := &schemas.ScheduleOptions{Days: []schemas.Option{}, TimeSlots: []schemas.Option{}}

	radios, err := queryAll(ctx, pg, d.fetch.Get("radio_group"))
	if err != nil {
		return nil, err
	}
	for _, radio := range radios {
		label, err := textOr(ctx, radio, d.fetch.Get("get_extra_value"), "")
		if err != nil {
			return nil, err
		}
		checked, _, _ := radio.Attr(ctx, "aria-checked")
		if dis, _ := disabled(ctx, radio); dis {
			label += schemas.DisabledSuffix
		}
		if strings.Contains(strings.ToLower(label), "asap") && checked == "true" {
			s.ASAP = label
		}
		if strings.Contains(label, "Scheduled") && checked == "false" {
			s.ScheduledLabel = label
			if err := radio.Click(ctx); err != nil {
				return nil, err
			}
		}
	}

	if arrow, err := query(ctx, pg, d.fetch.Get("day_arrow_selector")); err != nil {
		return nil, err
	} else if arrow != nil {
		if err := arrow.Click(ctx); err != nil {
			return nil, err
		}
		if s.Days, err = optionLabels(ctx, pg, d.fetch.Get("day_option")); err != nil {
			return nil, err
		}
	}

	arrows, err := queryAll(ctx, pg, d.fetch.Get("time_arrow_selector"))
	if err != nil {
		return nil, err
	}
	if len(arrows) > 0 {
		// With a day picker present the time picker is the second arrow.
		arrow := arrows[min(1, len(arrows)-1)]
		for attempt := 0; attempt < 2 && len(s.TimeSlots) == 0; attempt++ {
			if err := arrow.Click(ctx); err != nil {
				return nil, err
			}
			if err := browser.Sleep(ctx, d.t.Settle); err != nil {
				return nil, err
			}
			if s.TimeSlots, err = optionLabels(ctx, pg, d.fetch.Get("time_options")); err != nil {
				return nil, err
			}
		}
	}

	if s.ASAP == "" && s.ScheduledLabel == "" && len(s.Days) == 0 && len(s.TimeSlots) == 0 {
		return nil, nil
	}
	return s, nil
}

func optionLabels(ctx context.Context, root browser.Querier, sel string) ([]schemas.Option, error) {
	els, err := queryAll(ctx, root, sel)
	if err != nil {
		return nil, err
	}
	out := make([]schemas.Option, 0, len(els))
	for _, el := range els {
		label, err := text(ctx, el)
		if err != nil {
			return nil, err
		}
		out = append(out, schemas.Option{Label: label, Type: schemas.FieldSelect})
	}
	return out, nil
}

func (d *dutchie) medicalDetails(ctx context.Context, pg browser.Page) ([]schemas.Option, error) {
	section, err := query(ctx, pg, d.fetch.Get("medical_section_selector"))
	if err != nil || section == nil {
		return nil, err
	}
	if change, err := query(ctx, section, d.fetch.Get("change_button_selector")); err != nil {
		return nil, err
	} else if change != nil {
		if err := change.Click(ctx); err != nil {
			return nil, err
		}
	}
	expanded, ok, err := browser.IsVisible(ctx, pg, d.fetch.Get("expanded_details_selector"), d.wait(d.t.CartContainer))
	if err != nil {
		return nil, err
	}
	if !ok {
		d.logger.Debug("Medical section did not expand.")
		return nil, nil
	}
	labels, err := optionLabels(ctx, expanded, "label")
	if err != nil {
		return nil, err
	}
	for i := range labels {
		labels[i].Type = schemas.FieldInput
	}
	return labels, nil
}
