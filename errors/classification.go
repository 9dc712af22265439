package errors

// ErrorClassification indicates whether an error may succeed on retry.
type ErrorClassification string

const (
	// ClassificationRetryable marks transient failures.
	ClassificationRetryable ErrorClassification = "RETRYABLE"

	// ClassificationPermanent marks failures a retry cannot fix.
	ClassificationPermanent ErrorClassification = "PERMANENT"
)

// IsRetryable returns true if the classification allows a retry.
func (c ErrorClassification) IsRetryable() bool {
	return c == ClassificationRetryable
}

var defaultClassifications = map[ErrorCode]ErrorClassification{
	CodeNetwork:   ClassificationRetryable,
	CodeTimeout:   ClassificationRetryable,
	CodeRateLimit: ClassificationRetryable,

	CodePrecondition:   ClassificationPermanent,
	CodeInvalidInput:   ClassificationPermanent,
	CodeInvalidConfig:  ClassificationPermanent,
	CodeRefNotFound:    ClassificationPermanent,
	CodeNotFound:       ClassificationPermanent,
	CodeUnauthorized:   ClassificationPermanent,
	CodeForbidden:      ClassificationPermanent,
	CodeLocalOperation: ClassificationPermanent,
	CodeFilesystem:     ClassificationPermanent,
	CodeInternal:       ClassificationPermanent,
	CodeUnknown:        ClassificationPermanent,
}

// classificationFor returns the default classification for code.
// Unlisted codes are permanent.
func classificationFor(code ErrorCode) ErrorClassification {
	if class, ok := defaultClassifications[code]; ok {
		return class
	}
	return ClassificationPermanent
}
