package errors

// ErrorCode identifies a failure category.
type ErrorCode string

const (
	// Preconditions and input.

	// CodePrecondition indicates the environment does not allow the run to
	// start (mirror disabled, workspace missing, nothing to check out).
	CodePrecondition ErrorCode = "PRECONDITION_FAILED"

	// CodeInvalidInput indicates a malformed input value.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates the process environment could not be parsed.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// Resolution.

	// CodeRefNotFound indicates a ref could not be matched on the mirror.
	CodeRefNotFound ErrorCode = "REF_NOT_FOUND"

	// CodeNotFound indicates a remote resource does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// Permission errors.

	// CodeUnauthorized indicates missing or rejected credentials.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeForbidden indicates the credentials lack access.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// Network.

	// CodeNetwork indicates a clone, fetch or API call failed in transit.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeRateLimit indicates the remote throttled the request.
	CodeRateLimit ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Local operations.

	// CodeLocalOperation indicates a local git operation (init, config,
	// repack, checkout) failed.
	CodeLocalOperation ErrorCode = "LOCAL_OPERATION_FAILED"

	// CodeFilesystem indicates a filesystem operation failed.
	CodeFilesystem ErrorCode = "FILESYSTEM_ERROR"

	// System.

	// CodeInternal indicates a bug or an unexpected state.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeUnknown is reported for errors that carry no code.
	CodeUnknown ErrorCode = "UNKNOWN"
)
