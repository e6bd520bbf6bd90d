package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/cartwright/internal/errs"
)

func intPtr(i int) *int { return &i }

func customerInfo(withState bool) CustomerInfo {
	values := map[string]string{
		LabelFirstName: "Ada",
		LabelLastName:  "Lovelace",
		LabelEmail:     "ada@example.com",
		LabelPhone:     "5555555555",
		LabelBirthdate: "12/10/1985",
	}
	var info CustomerInfo
	for _, label := range []string{LabelFirstName, LabelLastName, LabelEmail, LabelPhone, LabelBirthdate} {
		f := NewInputField(label)
		f.Input = values[label]
		info.Fields = append(info.Fields, f)
	}
	if withState {
		f := NewInputField(LabelState)
		f.Input = "MI"
		info.Fields = append(info.Fields, f)
	}
	return info
}

func TestSingleSelectionField(t *testing.T) {
	field := NewSingleSelection("payment", []string{"cash", "debit"})

	t.Run("should accept index zero", func(t *testing.T) {
		field.Selected = intPtr(0)
		v, err := field.Value()
		require.NoError(t, err)
		assert.Equal(t, "cash", v)
	})

	t.Run("should reject a missing selection", func(t *testing.T) {
		field.Selected = nil
		_, err := field.Value()
		require.Error(t, err)
		assert.Equal(t, errs.Invalid, errs.KindOf(err))
	})

	t.Run("should reject an out of range index", func(t *testing.T) {
		for _, idx := range []int{-1, 2} {
			field.Selected = intPtr(idx)
			_, err := field.Value()
			assert.True(t, errs.Is(err, errs.ReasonSubmissionInvalid), "index %d", idx)
		}
	})
}

func TestCheckoutOptionsV2UserInfo(t *testing.T) {
	t.Run("should map labels to form values", func(t *testing.T) {
		payment := NewSingleSelection("payment", []string{"cash", "creditCard"})
		payment.Selected = intPtr(1)
		opts := CheckoutOptionsV2{
			CustomerInfo:   customerInfo(true),
			OrderType:      NewSingleSelection("Pickup", []string{"pickup"}),
			PaymentDetails: payment,
		}

		info, err := opts.UserInfo()
		require.NoError(t, err)
		assert.Equal(t, "Ada", info.FirstName)
		assert.Equal(t, "5555555555", info.MobilePhone)
		assert.Equal(t, "MI", info.State)
		assert.Equal(t, "creditCard", info.PaymentType)
	})

	t.Run("should not require state when it is not offered", func(t *testing.T) {
		opts := CheckoutOptionsV2{CustomerInfo: customerInfo(false)}
		info, err := opts.UserInfo()
		require.NoError(t, err)
		assert.Empty(t, info.State)
		assert.Empty(t, info.PaymentType)
	})

	t.Run("should fail when a required input is empty", func(t *testing.T) {
		info := customerInfo(false)
		info.Fields[2].Input = ""
		_, err := CheckoutOptionsV2{CustomerInfo: info}.UserInfo()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "email")
	})

	t.Run("should fail when payment is offered but not selected", func(t *testing.T) {
		opts := CheckoutOptionsV2{
			CustomerInfo:   customerInfo(false),
			PaymentDetails: NewSingleSelection("payment", []string{"cash"}),
		}
		_, err := opts.UserInfo()
		assert.Equal(t, errs.Invalid, errs.KindOf(err))
	})
}

func TestCheckoutOptionsNormalize(t *testing.T) {
	var c CheckoutOptions
	c.Normalize()
	assert.NotNil(t, c.PickupSlots)
	assert.NotNil(t, c.StateSelection)
	assert.NotNil(t, c.OrderTypeDetails)
	assert.Nil(t, c.ExtraFields)
}
