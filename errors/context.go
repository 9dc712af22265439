package errors

import "errors"

// hintKey is the context key holding a remediation hint.
const hintKey = "hint"

// WithContext returns a copy of err with key set in its context.
// Plain errors are converted to a CheckoutError with CodeUnknown.
// Returns nil if err is nil.
//
// Example:
//
//	err = errors.WithContext(err, "mirror", mirrorPath)
func WithContext(err error, key string, value interface{}) CheckoutError {
	return WithContextMap(err, map[string]interface{}{key: value})
}

// WithContextMap merges fields into the context of err. New fields override
// existing ones. Returns nil if err is nil.
func WithContextMap(err error, fields map[string]interface{}) CheckoutError {
	if err == nil {
		return nil
	}

	ce := asCheckoutError(err)
	merged := ce.Context()
	if merged == nil {
		merged = make(map[string]interface{}, len(fields))
	}
	for k, v := range fields {
		merged[k] = v
	}

	return &checkoutError{
		code:           ce.Code(),
		classification: ce.Classification(),
		message:        ce.Message(),
		context:        merged,
		cause:          ce.Unwrap(),
	}
}

// WithHint attaches a remediation hint shown to the user next to the error.
func WithHint(err error, hint string) CheckoutError {
	return WithContext(err, hintKey, hint)
}

// Hint returns the first remediation hint found in the chain of err, or "".
func Hint(err error) string {
	for err != nil {
		var ce CheckoutError
		if !errors.As(err, &ce) {
			return ""
		}
		if hint, ok := ce.Context()[hintKey].(string); ok {
			return hint
		}
		err = ce.Unwrap()
	}
	return ""
}

func asCheckoutError(err error) CheckoutError {
	var ce CheckoutError
	if errors.As(err, &ce) {
		return ce
	}
	return &checkoutError{
		code:           CodeUnknown,
		classification: ClassificationPermanent,
		message:        err.Error(),
		cause:          err,
	}
}
