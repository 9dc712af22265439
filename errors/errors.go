package errors

import "fmt"

// CheckoutError is an error with a code, a retry classification and optional
// key/value context.
type CheckoutError interface {
	error

	// Code returns the failure category.
	Code() ErrorCode

	// Classification reports whether the failure is retryable.
	Classification() ErrorClassification

	// Message returns the message without the cause.
	Message() string

	// Context returns a copy of the attached metadata, or nil.
	Context() map[string]interface{}

	// Unwrap returns the cause, or nil.
	Unwrap() error
}

type checkoutError struct {
	code           ErrorCode
	classification ErrorClassification
	message        string
	context        map[string]interface{}
	cause          error
}

// Error formats as "[CODE] message" or "[CODE] message: cause".
func (e *checkoutError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

func (e *checkoutError) Code() ErrorCode {
	return e.code
}

func (e *checkoutError) Classification() ErrorClassification {
	return e.classification
}

func (e *checkoutError) Message() string {
	return e.message
}

func (e *checkoutError) Context() map[string]interface{} {
	return copyContext(e.context)
}

func (e *checkoutError) Unwrap() error {
	return e.cause
}

func copyContext(ctx map[string]interface{}) map[string]interface{} {
	if ctx == nil {
		return nil
	}
	out := make(map[string]interface{}, len(ctx))
	for k, v := range ctx {
		out[k] = v
	}
	return out
}
