// internal/api/validation.go
package api

import (
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xkilldash9x/cartwright/api/schemas"
	"github.com/xkilldash9x/cartwright/internal/errs"
)

// usMobile is a ten digit NANP number: neither the area code nor the
// exchange may start with 0 or 1.
var usMobile = regexp.MustCompile(`^[2-9]\d{2}[2-9]\d{6}$`)

const dateLayout = "01/02/2006"

// formValues is the subset of url.Values the parsers read.
type formValues interface {
	Get(key string) string
}

func invalid(format string, args ...any) error {
	return errs.Newf(errs.Invalid, errs.ReasonNone, format, args...)
}

// parseUserInfo validates a submit-order form.
func parseUserInfo(form formValues) (schemas.UserInfo, error) {
	get := func(key string) string { return strings.TrimSpace(form.Get(key)) }
	info := schemas.UserInfo{
		FirstName:             get("first_name"),
		LastName:              get("last_name"),
		MobilePhone:           get("mobile_phone"),
		Birthdate:             get("birthdate"),
		Email:                 get("email"),
		State:                 get("state"),
		PromoCode:             get("promo_code"),
		MedicalCardNumber:     get("medical_card_number"),
		MedicalCardExpiration: get("medical_card_expiration"),
		MedicalCardState:      get("medical_card_state"),
	}

	required := []struct{ key, value string }{
		{"first_name", info.FirstName},
		{"last_name", info.LastName},
		{"mobile_phone", info.MobilePhone},
		{"birthdate", info.Birthdate},
		{"email", info.Email},
		{"state", info.State},
	}
	for _, f := range required {
		if f.value == "" {
			return schemas.UserInfo{}, invalid("%s is required", f.key)
		}
	}

	if !usMobile.MatchString(info.MobilePhone) {
		return schemas.UserInfo{}, invalid("Invalid mobile phone number. Must be a 10-digit US number.")
	}
	if _, err := time.Parse(dateLayout, info.Birthdate); err != nil {
		return schemas.UserInfo{}, invalid("Invalid birthdate format. Must be in MM/DD/YYYY format.")
	}
	addr, err := mail.ParseAddress(info.Email)
	if err != nil || addr.Address != info.Email {
		return schemas.UserInfo{}, invalid("Invalid email address.")
	}
	if info.MedicalCardExpiration != "" {
		if _, err := time.Parse(dateLayout, info.MedicalCardExpiration); err != nil {
			return schemas.UserInfo{}, invalid("Invalid medical_card_expiration format. Must be in MM/DD/YYYY format.")
		}
	}
	return info, nil
}

// parseQuantity reads an optional positive quantity, defaulting to 1.
func parseQuantity(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, invalid("quantity must be a positive integer, got %q", raw)
	}
	return n, nil
}
