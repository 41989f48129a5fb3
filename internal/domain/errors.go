package domain

import "errors"

// Domain errors. Services translate these into AppErrors at the edge.
var (
	ErrIllegalTransition = errors.New("illegal wizard transition")
	ErrDeliveryInvalid   = errors.New("delivery details are invalid")
	ErrTermsNotAccepted  = errors.New("terms must be accepted before payment")
	ErrAlreadySubmitting = errors.New("payment is already being submitted")
	ErrNotSubmitting     = errors.New("payment is not being submitted")
	ErrWrongStep         = errors.New("operation not allowed on the current step")
	ErrEmptyCheckout     = errors.New("checkout has no items")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInvalidLineItem   = errors.New("invalid line item")
	ErrUnknownCommand    = errors.New("unknown command kind")
)
