// Package validation holds the per-step form rules of the checkout wizard.
package validation

import (
	"errors"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/validator"
)

// deliveryForm mirrors the Delivery step. Every rule runs on every pass.
type deliveryForm struct {
	Name    string `json:"name" validate:"required,trimmin=2"`
	Phone   string `json:"phone" validate:"required,phone"`
	Email   string `json:"email" validate:"required,emailshape"`
	Street  string `json:"street" validate:"required,trimmin=5"`
	City    string `json:"city" validate:"required,trimmin=2"`
	State   string `json:"state" validate:"required,trimmin=2"`
	Country string `json:"country" validate:"required,trimmin=2"`
	Zipcode string `json:"zipcode" validate:"required,trimmin=4"`
}

// Messages shown under each field, by failing tag.
var messages = map[string]map[string]string{
	"name": {
		"required": "Name is required",
		"trimmin":  "Name must be at least 2 characters",
	},
	"phone": {
		"required": "Phone number is required",
		"phone":    "Please enter a valid phone number",
	},
	"email": {
		"required":   "Email is required",
		"emailshape": "Please enter a valid email address",
	},
	"street": {
		"required": "Street address is required",
		"trimmin":  "Street address must be at least 5 characters",
	},
	"city": {
		"required": "City is required",
		"trimmin":  "City must be at least 2 characters",
	},
	"state": {
		"required": "State is required",
		"trimmin":  "State must be at least 2 characters",
	},
	"country": {
		"required": "Country is required",
		"trimmin":  "Country must be at least 2 characters",
	},
	"zipcode": {
		"required": "Zipcode is required",
		"trimmin":  "Zipcode must be at least 4 characters",
	},
}

// ValidateDelivery checks the delivery address and email. The result holds
// one message per invalid field and is empty when the form is valid.
func ValidateDelivery(addr domain.Address, email string) domain.FieldErrors {
	form := deliveryForm{
		Name:    addr.Name,
		Phone:   addr.Phone,
		Email:   email,
		Street:  addr.Street,
		City:    addr.City,
		State:   addr.State,
		Country: addr.Country,
		Zipcode: addr.Zipcode,
	}

	errs := domain.FieldErrors{}
	err := validator.Validate(form)
	if err == nil {
		return errs
	}

	var verr *validator.ValidationError
	if !errors.As(err, &verr) {
		// Only reachable if the form struct itself is malformed.
		errs["form"] = err.Error()
		return errs
	}
	for field, tag := range verr.Failures() {
		msg, ok := messages[field][tag]
		if !ok {
			msg = verr.Fields()[field]
		}
		errs[field] = msg
	}
	return errs
}

// Ensure ValidateDelivery satisfies the wizard's validator hook.
var _ domain.DeliveryValidator = ValidateDelivery
