package github

import (
	"net/http"

	"github.com/google/go-github/v67/github"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
)

// WrapHTTPError wraps err with a code derived from an API status code.
func WrapHTTPError(err error, statusCode int, message string) error {
	if err == nil {
		return nil
	}

	var code errors.ErrorCode
	switch {
	case statusCode == http.StatusNotFound:
		code = errors.CodeNotFound
	case statusCode == http.StatusUnauthorized:
		code = errors.CodeUnauthorized
	case statusCode == http.StatusForbidden:
		code = errors.CodeForbidden
	case statusCode == http.StatusTooManyRequests:
		code = errors.CodeRateLimit
	case statusCode == http.StatusBadRequest, statusCode == http.StatusUnprocessableEntity:
		code = errors.CodeInvalidInput
	case statusCode >= 500:
		code = errors.CodeNetwork
	default:
		code = errors.CodeInternal
	}

	return errors.Wrap(err, code, message)
}

// wrapError classifies a go-github error by its response status. Errors with
// no response never reached the API and count as network errors.
func wrapError(err error, resp *github.Response, message string) error {
	if err == nil {
		return nil
	}

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		statusCode = ghErr.Response.StatusCode
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return errors.Wrap(err, errors.CodeRateLimit, message)
	}

	if statusCode != 0 {
		return WrapHTTPError(err, statusCode, message)
	}
	return errors.Wrap(err, errors.CodeNetwork, message)
}
