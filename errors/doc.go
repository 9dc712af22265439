// Package errors provides the structured error model used across the checkout
// orchestrator.
//
// Every failure that leaves a component is a CheckoutError carrying an
// ErrorCode and an ErrorClassification. The classification decides whether the
// retry layer may attempt the operation again; everything not explicitly
// retryable is permanent.
//
// Errors remain compatible with the standard library (errors.Is, errors.As,
// errors.Unwrap), so an *exec.ExecError wrapped deep inside a network failure
// can still be inspected by callers.
//
// # Usage
//
//	if root == "" {
//	    err := errors.New(errors.CodePrecondition, "git mirror root is not configured")
//	    return errors.WithHint(err, "enable the git mirror feature for this runner profile")
//	}
//
//	if _, err := git.Network(ctx, "fetch", "origin"); err != nil {
//	    return errors.Wrap(err, errors.CodeNetwork, "failed to refresh mirror")
//	}
//
// Wrap preserves the classification of an inner CheckoutError, so a
// permanent local failure stays permanent even when wrapped with a network
// code by a caller further up the stack.
package errors
