package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Error represents an API error with type information.
// Reason carries the HTTP reason phrase and Details the structured
// error messages returned by the API, if any.
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Reason  string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	if e.Reason != "" {
		msg += " [" + e.Reason + "]"
	}
	if len(e.Details) > 0 {
		msg += ": " + strings.Join(e.Details, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(errorType ErrorType, message string, err error) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

// FromStatus builds an error for a non-success HTTP response
func FromStatus(code int, message string, body []byte) *Error {
	return &Error{
		Type:    TypeForStatus(code),
		Message: message,
		Code:    code,
		Reason:  http.StatusText(code),
		Details: ParseAPIErrors(body),
	}
}

// TypeForStatus maps an HTTP status code onto an ErrorType
func TypeForStatus(code int) ErrorType {
	switch {
	case code == 0:
		return ErrorTypeNetwork
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrorTypeAuth
	case code == http.StatusNotFound:
		return ErrorTypeNotFound
	case code == http.StatusTooManyRequests:
		return ErrorTypeRateLimit
	case code >= 500:
		return ErrorTypeServerError
	default:
		return ErrorTypeUnknown
	}
}

// ParseAPIErrors extracts the messages from an {"errors": [...]} body.
// Entries may be objects with a message field or plain strings.
func ParseAPIErrors(body []byte) []string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil
	}

	var details []string
	gjson.GetBytes(body, "errors").ForEach(func(_, value gjson.Result) bool {
		switch {
		case value.IsObject():
			msg := value.Get("message").String()
			if msg == "" {
				msg = value.Raw
			}
			if code := value.Get("code"); code.Exists() {
				msg = fmt.Sprintf("%s (code %s)", msg, code.String())
			}
			details = append(details, msg)
		default:
			details = append(details, value.String())
		}
		return true
	})

	if len(details) == 0 {
		if desc := gjson.GetBytes(body, "error_description"); desc.Exists() {
			details = append(details, desc.String())
		} else if e := gjson.GetBytes(body, "error"); e.Exists() && e.Type == gjson.String {
			details = append(details, e.String())
		}
	}
	return details
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError:
		return true
	case ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504: // Server errors
		return true
	case 401, 403, 404: // Client errors that won't change
		return false
	default:
		return statusCode >= 500 // Retry all 5xx errors
	}
}
