package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps err with a code and message. If err already contains a
// CheckoutError its classification is kept, otherwise the default for code
// applies. Returns nil if err is nil.
//
// Example:
//
//	if _, err := git.Network(ctx, "clone", "--mirror", url, path); err != nil {
//	    return "", errors.Wrap(err, errors.CodeNetwork, "failed to create mirror")
//	}
func Wrap(err error, code ErrorCode, message string) CheckoutError {
	return WrapWithContext(err, code, message, nil)
}

// Wrapf wraps err with a formatted message. Returns nil if err is nil.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) CheckoutError {
	if err == nil {
		return nil
	}
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// WrapWithContext wraps err and attaches a copy of ctx in one step.
// Returns nil if err is nil.
func WrapWithContext(err error, code ErrorCode, message string, ctx map[string]interface{}) CheckoutError {
	if err == nil {
		return nil
	}

	classification := classificationFor(code)
	var inner CheckoutError
	if errors.As(err, &inner) {
		classification = inner.Classification()
	}

	return &checkoutError{
		code:           code,
		classification: classification,
		message:        message,
		context:        copyContext(ctx),
		cause:          err,
	}
}

// Reclassify returns a copy of err with the given classification. It is used
// by the retry layer to mark an exhausted network failure as final.
// Returns nil if err is nil.
func Reclassify(err error, classification ErrorClassification) CheckoutError {
	if err == nil {
		return nil
	}
	ce := asCheckoutError(err)
	return &checkoutError{
		code:           ce.Code(),
		classification: classification,
		message:        ce.Message(),
		context:        ce.Context(),
		cause:          ce.Unwrap(),
	}
}
