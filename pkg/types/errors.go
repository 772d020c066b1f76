package types

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

// Text codes surfaced to API callers.
const (
	TextCodeAuthMissing           = "AUTH_MISSING"
	TextCodeAuthInvalid           = "AUTH_INVALID"
	TextCodeMalformedPayload      = "MALFORMED_PAYLOAD"
	TextCodeStorageUnavailable    = "STORAGE_UNAVAILABLE"
	TextCodePermanentWriteFailure = "PERMANENT_WRITE_FAILURE"
	TextCodeFeatureDisabled       = "FEATURE_DISABLED"
)

// NewAuthMissingError reports a request without a credential.
func NewAuthMissingError(message string) *errors.Error {
	return errors.New(message, errors.CategoryAuth).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(TextCodeAuthMissing)
}

// NewAuthInvalidError reports an invalid or expired credential.
func NewAuthInvalidError(source error, message string) *errors.Error {
	if source == nil {
		return errors.New(message, errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode(TextCodeAuthInvalid)
	}
	return errors.Wrap(source, errors.CategoryAuth, message).
		WithCode(errors.CodeUnauthorized).
		WithTextCode(TextCodeAuthInvalid)
}

// NewMalformedPayloadError rejects structurally required fields that are
// missing or of the wrong shape.
func NewMalformedPayloadError(message string, metadata ...map[string]any) *errors.Error {
	return errors.New(message, errors.CategoryBadInput).
		WithCode(errors.CodeBadRequest).
		WithTextCode(TextCodeMalformedPayload).
		WithMetadata(metadata...)
}

// NewStorageUnavailableError wraps a transient storage failure. Callers retry
// the whole sync.
func NewStorageUnavailableError(source error, message string) *errors.RetryableError {
	if source == nil {
		return errors.NewRetryable(message, errors.CategoryExternal).
			WithCode(http.StatusServiceUnavailable).
			WithTextCode(TextCodeStorageUnavailable)
	}
	return errors.WrapRetryable(source, errors.CategoryExternal, message).
		WithCode(http.StatusServiceUnavailable).
		WithTextCode(TextCodeStorageUnavailable)
}

// NewPermanentWriteFailureError wraps a write failure that retrying will not fix.
func NewPermanentWriteFailureError(source error, message string) *errors.Error {
	if source == nil {
		return errors.New(message, errors.CategoryConflict).
			WithCode(errors.CodeConflict).
			WithTextCode(TextCodePermanentWriteFailure)
	}
	return errors.Wrap(source, errors.CategoryConflict, message).
		WithCode(errors.CodeConflict).
		WithTextCode(TextCodePermanentWriteFailure)
}

// NewFeatureDisabledError reports an operation switched off by a feature gate.
func NewFeatureDisabledError(feature string) *errors.Error {
	return errors.New("go-profilesync: feature disabled", errors.CategoryAuthz).
		WithCode(errors.CodeForbidden).
		WithTextCode(TextCodeFeatureDisabled).
		WithMetadata(map[string]any{"feature": feature})
}

// RichError extracts the go-errors payload from err, looking through
// retryable wrappers.
func RichError(err error) (*errors.Error, bool) {
	if err == nil {
		return nil, false
	}
	var retry *errors.RetryableError
	if errors.As(err, &retry) && retry.BaseError != nil {
		return retry.BaseError, true
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich, true
	}
	return nil, false
}

// HasTextCode reports whether err carries the supplied text code.
func HasTextCode(err error, code string) bool {
	rich, ok := RichError(err)
	return ok && rich.TextCode == code
}
