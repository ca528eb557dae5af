package api

import (
	"errors"
	"fmt"
)

// NetworkError means the request did not complete or the server answered with
// a non-success status.
type NetworkError struct {
	Op      string // "list", "collect", "export"
	Status  int    // HTTP status, 0 when no response was received
	Message string // server-provided error text, if any
	Err     error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s: server returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// DecodeError means the response body could not be parsed into the expected shape.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsNetwork reports whether err is, or wraps, a *NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsDecode reports whether err is, or wraps, a *DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// Reason classifies err for metrics: "network", "status", "decode" or "other".
func Reason(err error) string {
	var ne *NetworkError
	if errors.As(err, &ne) {
		if ne.Status != 0 {
			return "status"
		}
		return "network"
	}
	if IsDecode(err) {
		return "decode"
	}
	return "other"
}
