package errors

import (
	stderrors "errors"
)

// Is wraps the standard library errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As wraps the standard library errors.As.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Join wraps the standard library errors.Join.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// GetCode returns the code of the outermost CheckoutError in the chain of
// err, or CodeUnknown.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}
	var ce CheckoutError
	if stderrors.As(err, &ce) {
		return ce.Code()
	}
	return CodeUnknown
}

// GetClassification returns the classification of the outermost
// CheckoutError in the chain of err. Plain errors are permanent.
func GetClassification(err error) ErrorClassification {
	if err == nil {
		return ClassificationPermanent
	}
	var ce CheckoutError
	if stderrors.As(err, &ce) {
		return ce.Classification()
	}
	return ClassificationPermanent
}

// IsRetryable reports whether err is classified as retryable.
func IsRetryable(err error) bool {
	return GetClassification(err).IsRetryable()
}
