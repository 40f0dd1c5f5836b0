package service

import "errors"

var (
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrCategoryNotFound = errors.New("category not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrVariantNotFound  = errors.New("variant not found")
	ErrCouponNotFound   = errors.New("coupon not found")
	ErrCartItemNotFound = errors.New("cart item not found")

	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderAccessDenied = errors.New("access denied")
	ErrEmptyCart         = errors.New("cart is empty")

	ErrReturnNotFound = errors.New("return request not found")
	ErrWalletNotFound = errors.New("wallet not found")
)

// ValidationError is a business-rule rejection carrying the customer-facing
// reason. Handlers map it to 400 with the reason verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func validationErr(reason string) error { return &ValidationError{Reason: reason} }
