// Package errs provides the error taxonomy shared by the workflow engine, the
// persistence gateway and the HTTP layer.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the coarse category every failure is translated into at the adapter boundary.
type Kind string

const (
	// NotFound covers absent carts, products, orders and storefront pages.
	NotFound Kind = "not_found"
	// Conflict covers inactive carts and cross-storefront cart mixing.
	Conflict Kind = "conflict"
	// Invalid covers bad variants, quantities and form fields.
	Invalid Kind = "invalid"
	// Unavailable covers out-of-stock and region-restricted products.
	Unavailable Kind = "unavailable"
	// Upstream covers storefront rejections, captchas and unrecognised page structure.
	Upstream Kind = "upstream"
	// Internal covers everything else. Details stay in the server log.
	Internal Kind = "internal"
)

// Reason is the fine-grained sub-code carried alongside a Kind.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonOutOfStock            Reason = "out_of_stock"
	ReasonRegionUnavailable     Reason = "region_unavailable"
	ReasonVariantRequired       Reason = "variant_required"
	ReasonVariantInvalid        Reason = "variant_invalid"
	ReasonProductNotFound       Reason = "product_not_found"
	ReasonPageNotFound          Reason = "page_not_found"
	ReasonQuantityUnavailable   Reason = "quantity_unavailable"
	ReasonCartEmpty             Reason = "cart_empty"
	ReasonVariantMismatch       Reason = "variant_mismatch"
	ReasonSubmissionInvalid     Reason = "submission_invalid"
	ReasonCaptchaBlocked        Reason = "captcha_blocked"
	ReasonSubmissionTimeout     Reason = "submission_timeout"
	ReasonUnsupportedStorefront Reason = "unsupported_storefront"
	ReasonStructureUnrecognized Reason = "structure_unrecognized"
	ReasonCartInactive          Reason = "cart_inactive"
	ReasonDomainMismatch        Reason = "domain_mismatch"
	ReasonDispensaryClosed      Reason = "dispensary_closed"
	ReasonCartConflict          Reason = "cart_conflict"
	ReasonPurchaseLimit         Reason = "purchase_limit"
	ReasonPriceUnavailable      Reason = "price_unavailable"
	ReasonGovernmentIDRequired  Reason = "government_id_required"
	ReasonSubmissionRejected    Reason = "submission_rejected"
)

// E is the structured error envelope.
type E struct {
	Kind    Kind
	Reason  Reason
	Message string
	// Variants lists the storefront's live variant names when variant resolution fails.
	Variants []string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error of the given kind.
func New(kind Kind, reason Reason, message string, opts ...Option) *E {
	e := &E{
		Kind:    kind,
		Reason:  reason,
		Message: strings.TrimSpace(message),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Newf is New with a formatted message.
func Newf(kind Kind, reason Reason, format string, args ...any) *E {
	return New(kind, reason, fmt.Sprintf(format, args...))
}

// WithCause attaches the underlying error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

// WithVariants attaches the variant names the storefront offered.
func WithVariants(names []string) Option {
	return func(e *E) {
		e.Variants = append([]string(nil), names...)
	}
}

// Error implements error.
func (e *E) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.cause != nil {
		return msg + ": " + e.cause.Error()
	}
	return msg
}

// Unwrap exposes the cause to errors.Is/As.
func (e *E) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// HTTPStatus maps the kind and reason to a response status.
func (e *E) HTTPStatus() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case Invalid:
		switch e.Reason {
		case ReasonVariantRequired, ReasonVariantInvalid, ReasonGovernmentIDRequired:
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	case Unavailable:
		return http.StatusUnprocessableEntity
	case Upstream:
		if e.Reason == ReasonCaptchaBlocked {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// From returns the envelope in err's chain, or nil.
func From(err error) *E {
	var e *E
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// KindOf returns the kind of err, Internal when err carries no envelope.
func KindOf(err error) Kind {
	if e := From(err); e != nil {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries an envelope with the given reason.
func Is(err error, reason Reason) bool {
	e := From(err)
	return e != nil && e.Reason == reason
}

// Wrap converts an arbitrary error into an Internal envelope, leaving envelopes untouched.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if From(err) != nil {
		return err
	}
	return New(Internal, ReasonNone, message, WithCause(err))
}
