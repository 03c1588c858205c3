package apiclient

import (
	"errors"
	"fmt"
)

// Provider error codes the app reacts to.
const (
	CodeAPIKeyExpired  = "API_KEY_EXPIRED"
	CodeOTPRateLimit   = "OTP_RATE_LIMIT"
	CodeSessionExpired = "SESSION_EXPIRED"
)

// ErrUnknown is returned when a request produced no response at all.
var ErrUnknown = errors.New("unknown error")

// ErrorDetail is one entry of the error envelope's details list.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// ErrorData carries provider specific error details.
type ErrorData struct {
	Details []ErrorDetail `json:"details,omitempty"`
}

// APIError is the error envelope returned by the backend proxy and the
// upstream provider. It is returned to callers as-is so they can match codes.
type APIError struct {
	Message string    `json:"message,omitempty"`
	Status  int       `json:"status"`
	Code    string    `json:"code,omitempty"`
	Data    ErrorData `json:"data"`
}

// NewAPIError builds an envelope whose top-level code is mirrored into details.
func NewAPIError(status int, code, message string) *APIError {
	e := &APIError{Message: message, Status: status, Code: code}
	if code != "" {
		e.Data.Details = []ErrorDetail{{Code: code, Message: message}}
	}
	return e
}

func (e *APIError) Error() string {
	code := e.Code
	if code == "" && len(e.Data.Details) > 0 {
		code = e.Data.Details[0].Code
	}
	switch {
	case code != "" && e.Message != "":
		return fmt.Sprintf("api error %d (%s): %s", e.Status, code, e.Message)
	case code != "":
		return fmt.Sprintf("api error %d (%s)", e.Status, code)
	case e.Message != "":
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("api error %d", e.Status)
	}
}

// HasCode reports whether the envelope carries code at the top level or in
// any detail entry.
func (e *APIError) HasCode(code string) bool {
	if e == nil {
		return false
	}
	if e.Code == code {
		return true
	}
	for _, d := range e.Data.Details {
		if d.Code == code {
			return true
		}
	}
	return false
}

// UserMessage returns the most specific human readable message available.
func (e *APIError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	for _, d := range e.Data.Details {
		if d.Message != "" {
			return d.Message
		}
	}
	return "Request failed"
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsSessionExpired reports whether err means the session or API key expired
// and the user must log in again.
func IsSessionExpired(err error) bool {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return false
	}
	return apiErr.HasCode(CodeSessionExpired) || apiErr.HasCode(CodeAPIKeyExpired)
}

// IsRateLimited reports whether err is an OTP rate limit rejection.
func IsRateLimited(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.HasCode(CodeOTPRateLimit)
}
