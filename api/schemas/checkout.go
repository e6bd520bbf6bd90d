// File: api/schemas/checkout.go
package schemas

import (
	"github.com/xkilldash9x/cartwright/internal/errs"
)

// FieldType annotates a harvested checkout field with how it is filled in.
type FieldType string

const (
	FieldInput    FieldType = "input"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldFile     FieldType = "file"
	FieldRadio    FieldType = "radio"
	FieldText     FieldType = "text"
	FieldNone     FieldType = ""
)

// DisabledSuffix is appended to the label of options the storefront renders as disabled.
const DisabledSuffix = " (disabled)"

// Option is one labelled entry offered by a checkout UI.
type Option struct {
	Label string    `json:"label"`
	Type  FieldType `json:"type"`
}

// OrderTypeOption describes one order-type branch (pickup, delivery, ...).
type OrderTypeOption struct {
	Label   string    `json:"label"`
	Type    FieldType `json:"type"`
	Checked bool      `json:"checked"`
}

// ScheduleOptions are the timing choices of a branch.
type ScheduleOptions struct {
	ASAP           string   `json:"asap,omitempty"`
	ScheduledLabel string   `json:"scheduled_label,omitempty"`
	Days           []Option `json:"days"`
	TimeSlots      []Option `json:"time_slots"`
}

// BranchOptions are the nested options harvested after selecting one order-type branch.
type BranchOptions struct {
	PaymentDetails []Option         `json:"payment_details"`
	Schedule       *ScheduleOptions `json:"scheduled_orders,omitempty"`
	AddressDetails []Option         `json:"address_details,omitempty"`
	MedicalDetails []Option         `json:"medical_details,omitempty"`
}

// CheckoutOptions is the storefront-agnostic snapshot of the checkout UI.
type CheckoutOptions struct {
	PickupSlots           []Option                   `json:"pickup_slots"`
	PickupInstructions    []Option                   `json:"pickup_instructions"`
	CustomerInfo          []Option                   `json:"customer_info"`
	PaymentDetails        []Option                   `json:"payment_details"`
	StateSelection        []Option                   `json:"state_selection"`
	OrderTypeDetails      map[string]OrderTypeOption `json:"order_type_details"`
	SelectedOrderData     map[string]BranchOptions   `json:"selected_order_data,omitempty"`
	ExtraFields           []Option                   `json:"extra_fields,omitempty"`
	MedicalSectionDetails []Option                   `json:"medical_section_details,omitempty"`
}

// Normalize replaces nil collections of the always-present fields with empty ones
// so they serialise as [] and {}.
func (c *CheckoutOptions) Normalize() {
	for _, s := range []*[]Option{&c.PickupSlots, &c.PickupInstructions, &c.CustomerInfo, &c.PaymentDetails, &c.StateSelection} {
		if *s == nil {
			*s = []Option{}
		}
	}
	if c.OrderTypeDetails == nil {
		c.OrderTypeDetails = map[string]OrderTypeOption{}
	}
}

// Labels returns the labels of opts in order.
func Labels(opts []Option) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Label)
	}
	return out
}

// -- Compact (v2) model --

// Customer-info labels understood by v2 submissions.
const (
	LabelFirstName = "firstName"
	LabelLastName  = "lastName"
	LabelEmail     = "email"
	LabelPhone     = "phone"
	LabelBirthdate = "birthdate"
	LabelState     = "state"
)

const (
	FieldKindInput           = "input"
	FieldKindSingleSelection = "single_selection"
)

// UIField is the common part of every v2 field.
type UIField struct {
	Label    string `json:"label"`
	Selector string `json:"selector"`
	Required bool   `json:"required"`
}

// InputField is a free-text field; Input carries the caller's value.
type InputField struct {
	UIField
	Input     string `json:"input,omitempty"`
	FieldType string `json:"field_type"`
}

// NewInputField returns a required input field with the given label.
func NewInputField(label string) InputField {
	return InputField{UIField: UIField{Label: label, Required: true}, FieldType: FieldKindInput}
}

// Value returns the caller-supplied input.
func (f InputField) Value() (string, error) {
	if f.Input == "" {
		return "", errs.Newf(errs.Invalid, errs.ReasonSubmissionInvalid, "Input field %s needs to specify an 'input'", f.Label)
	}
	return f.Input, nil
}

// SingleSelectionField is a closed set of options with a 0-based selected index.
type SingleSelectionField struct {
	UIField
	FieldType string   `json:"field_type"`
	Options   []string `json:"options"`
	Selected  *int     `json:"selected,omitempty"`
}

// NewSingleSelection returns a required selection field over options.
func NewSingleSelection(label string, options []string) SingleSelectionField {
	if options == nil {
		options = []string{}
	}
	return SingleSelectionField{
		UIField:   UIField{Label: label, Required: true},
		FieldType: FieldKindSingleSelection,
		Options:   options,
	}
}

// Value returns the selected option. Index 0 is a valid selection.
func (f SingleSelectionField) Value() (string, error) {
	if f.Selected == nil {
		return "", errs.Newf(errs.Invalid, errs.ReasonSubmissionInvalid, "Input field %s needs to specify a 'selected' option", f.Label)
	}
	idx := *f.Selected
	if idx < 0 || idx >= len(f.Options) {
		return "", errs.Newf(errs.Invalid, errs.ReasonSubmissionInvalid, "Input field %s has no option at index %d", f.Label, idx)
	}
	return f.Options[idx], nil
}

// CustomerInfo groups the customer-info input fields.
type CustomerInfo struct {
	Fields []InputField `json:"fields"`
}

// Lookup returns the value of the field with the given label.
func (c CustomerInfo) Lookup(label string) (string, error) {
	for _, f := range c.Fields {
		if f.Label == label {
			return f.Value()
		}
	}
	return "", errs.Newf(errs.Invalid, errs.ReasonSubmissionInvalid, "Input field %s is missing", label)
}

func (c CustomerInfo) has(label string) bool {
	for _, f := range c.Fields {
		if f.Label == label {
			return true
		}
	}
	return false
}

// CheckoutOptionsV2 is the compact selectable-field model.
type CheckoutOptionsV2 struct {
	CustomerInfo   CustomerInfo          `json:"customer_info"`
	OrderType      SingleSelectionField  `json:"order_type"`
	PaymentDetails SingleSelectionField  `json:"payment_details"`
	PickupSlots    *SingleSelectionField `json:"pickup_slots,omitempty"`
}

// UserInfo maps the v2 selections onto the form values a submission fills in.
// The state field and the payment choice are only required when offered.
func (o CheckoutOptionsV2) UserInfo() (UserInfo, error) {
	var (
		info UserInfo
		err  error
	)
	targets := []struct {
		label string
		dst   *string
	}{
		{LabelFirstName, &info.FirstName},
		{LabelLastName, &info.LastName},
		{LabelEmail, &info.Email},
		{LabelPhone, &info.MobilePhone},
		{LabelBirthdate, &info.Birthdate},
	}
	for _, t := range targets {
		if *t.dst, err = o.CustomerInfo.Lookup(t.label); err != nil {
			return UserInfo{}, err
		}
	}
	if o.CustomerInfo.has(LabelState) {
		if info.State, err = o.CustomerInfo.Lookup(LabelState); err != nil {
			return UserInfo{}, err
		}
	}
	if len(o.PaymentDetails.Options) > 0 {
		if info.PaymentType, err = o.PaymentDetails.Value(); err != nil {
			return UserInfo{}, err
		}
	}
	if o.PickupSlots != nil && o.PickupSlots.Selected != nil {
		if info.PickupSlot, err = o.PickupSlots.Value(); err != nil {
			return UserInfo{}, err
		}
	}
	return info, nil
}

// UserInfo is the customer data a submission fills into the checkout form.
type UserInfo struct {
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	MobilePhone           string `json:"mobile_phone"`
	Birthdate             string `json:"birthdate"`
	Email                 string `json:"email"`
	State                 string `json:"state"`
	PromoCode             string `json:"promo_code,omitempty"`
	MedicalCardNumber     string `json:"medical_card_number,omitempty"`
	MedicalCardExpiration string `json:"medical_card_expiration,omitempty"`
	MedicalCardState      string `json:"medical_card_state,omitempty"`
	// PaymentType is the payment option to pick; empty keeps the storefront default.
	PaymentType string `json:"payment_type,omitempty"`
	PickupSlot  string `json:"pickup_slot,omitempty"`
}

// OrderDetails is the observable outcome of a successful submission.
type OrderDetails struct {
	OrderType   string `json:"order_type"`
	PaymentType string `json:"payment_type"`
	PickupTime  string `json:"pickup_time"`
	Subtotal    string `json:"subtotal,omitempty"`
	Taxes       string `json:"taxes,omitempty"`
	OrderTotal  string `json:"order_total,omitempty"`
}
