package errors

import "fmt"

// New creates a CheckoutError classified by the default for code.
//
// Example:
//
//	err := errors.New(errors.CodePrecondition, "neither ref nor commit was provided")
func New(code ErrorCode, message string) CheckoutError {
	return &checkoutError{
		code:           code,
		classification: classificationFor(code),
		message:        message,
	}
}

// Newf creates a CheckoutError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) CheckoutError {
	return New(code, fmt.Sprintf(format, args...))
}
