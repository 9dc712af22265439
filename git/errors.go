package git

import (
	stderrors "errors"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
)

// wrapError classifies a go-git error and wraps it with message.
func wrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, classifyError(err), message)
}

// classifyError maps go-git errors onto error codes.
func classifyError(err error) errors.ErrorCode {
	switch {
	case stderrors.Is(err, gogit.ErrRepositoryNotExists):
		return errors.CodeNotFound
	case stderrors.Is(err, plumbing.ErrReferenceNotFound):
		return errors.CodeNotFound
	case stderrors.Is(err, plumbing.ErrInvalidType):
		return errors.CodeInternal
	default:
		return errors.CodeFilesystem
	}
}
