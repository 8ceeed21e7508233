package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"secsync/pkg/models"
)

// ErrorClass groups fetch failures.
type ErrorClass string

const (
	ClassNetwork        ErrorClass = "network"
	ClassTimeout        ErrorClass = "timeout"
	ClassRemoteStatus   ErrorClass = "remote-status"
	ClassSessionExpired ErrorClass = "session-expired"
)

// RemoteStatusError is an envelope that reported status "error".
type RemoteStatusError struct {
	Message string
}

func (e *RemoteStatusError) Error() string {
	if e.Message == "" {
		return "remote reported an error"
	}
	return "remote reported an error: " + e.Message
}

// FetchError is returned when a fetch failed and no fallback applied.
type FetchError struct {
	Kind       models.Kind
	Class      ErrorClass
	StatusCode int
	// Message is safe to show to end users.
	Message  string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Classify converts the last attempt error into a FetchError.
func Classify(kind models.Kind, err error, attempts int) *FetchError {
	fe := &FetchError{Kind: kind, Class: ClassNetwork, Attempts: attempts, Err: err}

	var statusErr *models.StatusError
	var remoteErr *RemoteStatusError
	var netErr net.Error

	switch {
	case errors.Is(err, models.ErrSessionExpired):
		fe.Class = ClassSessionExpired
		fe.StatusCode = http.StatusUnauthorized
	case errors.As(err, &statusErr):
		fe.Class = ClassRemoteStatus
		fe.StatusCode = statusErr.Code
	case errors.As(err, &remoteErr):
		fe.Class = ClassRemoteStatus
	case errors.Is(err, context.DeadlineExceeded):
		fe.Class = ClassTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		fe.Class = ClassTimeout
	}

	fe.Message = userMessage(kind, fe.Class, fe.StatusCode, err)
	return fe
}

func userMessage(kind models.Kind, class ErrorClass, code int, err error) string {
	if code != 0 {
		switch code {
		case http.StatusUnauthorized:
			return "Authentication required. Please log in again."
		case http.StatusForbidden:
			return "You do not have permission to access this data."
		case http.StatusNotFound:
			return kind.Label() + " data not found."
		case http.StatusInternalServerError:
			return "Server error occurred. Please try again later."
		case http.StatusServiceUnavailable:
			return "Service unavailable. Please try again later."
		default:
			text := http.StatusText(code)
			var statusErr *models.StatusError
			if errors.As(err, &statusErr) && statusErr.Status != "" {
				text = statusErr.Status
			}
			if text == "" {
				text = "Unknown error"
			}
			return fmt.Sprintf("Error (%d): %s", code, text)
		}
	}

	switch class {
	case ClassTimeout:
		return "Request timed out. Please check your connection and try again."
	case ClassRemoteStatus:
		var remoteErr *RemoteStatusError
		if errors.As(err, &remoteErr) && remoteErr.Message != "" {
			return remoteErr.Message
		}
		return "Error fetching " + string(kind)
	default:
		return "Failed to fetch " + string(kind)
	}
}
