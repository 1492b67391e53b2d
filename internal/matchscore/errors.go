package matchscore

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is against an *APIError.
var (
	ErrNetwork  = errors.New("network error")
	ErrServer   = errors.New("server error")
	ErrNotFound = errors.New("not found")
)

// ErrorKind classifies a failed backend call.
type ErrorKind string

const (
	KindNetwork  ErrorKind = "network"
	KindServer   ErrorKind = "server"
	KindNotFound ErrorKind = "not_found"
)

// APIError is returned for every failed backend call. Message carries the
// backend's `message` verbatim when one was sent.
type APIError struct {
	Kind       ErrorKind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "" && e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrServer:
		return e.Kind == KindServer
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// UserMessage is the text shown to the admin for err: the backend message
// verbatim when there is one, otherwise the error text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
