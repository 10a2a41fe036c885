package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType classifies failures crossing component boundaries.
type ErrorType string

const (
	ErrorTypeNetwork      ErrorType = "network"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeConfig       ErrorType = "config"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeExternalTool ErrorType = "external_tool"
	ErrorTypeServerError  ErrorType = "server_error"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// Error carries a type alongside the message so retry policies can
// classify without string matching at every call site.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a typed error.
func New(t ErrorType, msg string) *Error {
	return &Error{Type: t, Message: msg}
}

// Wrap creates a typed error around a cause.
func Wrap(t ErrorType, msg string, cause error) *Error {
	return &Error{Type: t, Message: msg, Cause: cause}
}

// TypeOf extracts the ErrorType from err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsRetryable reports whether an error type should be retried.
func IsRetryable(t ErrorType) bool {
	switch t {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

// quota/rate-limit signatures the Sheets API surfaces in error text
var quotaSignatures = []string{
	"quota",
	"rate limit",
	"rate_limit",
	"ratelimitexceeded",
	"429",
	"too many requests",
	"userratelimitexceeded",
}

// IsQuotaError reports whether err looks like an API quota or
// rate-limit rejection. The ledger client retries only these;
// everything else propagates immediately.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	if TypeOf(err) == ErrorTypeRateLimit {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range quotaSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// transient chunk-transfer signatures seen during resumable uploads
var transientUploadSignatures = []string{
	"ssl",
	"cipher",
	"decryption",
	"network",
	"timeout",
	"connection reset",
	"broken pipe",
	"unexpected eof",
}

// IsTransientUploadError reports whether an upload chunk failure is
// worth retrying. Matching is on error text because the storage API
// wraps transport failures into opaque messages.
func IsTransientUploadError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sig := range transientUploadSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
