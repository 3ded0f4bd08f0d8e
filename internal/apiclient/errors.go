package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrCanceled matches every *CanceledError.
	ErrCanceled = errors.New("request canceled")

	// ErrAuthRequired matches every *AuthRequiredError.
	ErrAuthRequired = errors.New("authentication required")
)

// CanceledError reports that the caller abandoned the request. No credentials
// are changed on this path.
type CanceledError struct {
	Method string
	URL    string
	Err    error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, ErrCanceled)
}

// Is makes errors.Is match ErrCanceled and context.Canceled.
func (e *CanceledError) Is(target error) bool {
	return target == ErrCanceled || target == context.Canceled
}

func (e *CanceledError) Unwrap() error { return e.Err }

// AuthRequired describes why the session ended and where the user was.
type AuthRequired struct {
	ReturnPath string
	Reason     string
}

// Reasons reported in AuthRequired.
const (
	ReasonNoRefreshToken = "no_refresh_token"
	ReasonRefreshFailed  = "refresh_failed"
	ReasonUploadRejected = "upload_unauthorized"
)

// AuthRequiredError is returned after a 401 could not be recovered. Credentials
// have been cleared. Err is the original *StatusError.
type AuthRequiredError struct {
	AuthRequired
	Err error
}

func (e *AuthRequiredError) Error() string {
	return fmt.Sprintf("%v (%s): %v", ErrAuthRequired, e.Reason, e.Err)
}

func (e *AuthRequiredError) Is(target error) bool { return target == ErrAuthRequired }

func (e *AuthRequiredError) Unwrap() error { return e.Err }

// StatusError is a completed request with a non-2xx status.
type StatusError struct {
	StatusCode int
	Method     string
	URL        string
	Body       []byte
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	if detail := backendMessage(e.Body); detail != "" {
		msg += ": " + detail
	}
	return msg
}

// NetworkError is a failure without any response: connection errors, DNS, timeouts.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the request ran out of time.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// IsCanceled reports whether err is a caller cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsAuthRequired reports whether err ended the session.
func IsAuthRequired(err error) bool {
	return errors.Is(err, ErrAuthRequired)
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}

// IsNotFound reports a 404.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// IsServerError reports a 5xx.
func IsServerError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode >= 500
}

// IsNetwork reports a failure without a response.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// ErrorMessage returns the message the backend put in the error body
// (detail, message or error), falling back to err's own text.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if msg := backendMessage(statusErr.Body); msg != "" {
			return msg
		}
	}
	return err.Error()
}

// backendMessage extracts a human-readable message from a JSON error body.
// FastAPI validation errors carry detail as a list of {msg} objects.
func backendMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var parsed struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}

	if len(parsed.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(parsed.Detail, &detail); err == nil && detail != "" {
			return detail
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(parsed.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return parsed.Error
}
