package client

import (
	"errors"
	"fmt"
)

// ErrValidation marks input rejected locally before any request is sent.
var ErrValidation = errors.New("validation failed")

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// NetworkError is a transport failure: the request may or may not have
// reached the server.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServiceError is a response the server sent back as a failure: a non-2xx
// status or an envelope with success set to false.
type ServiceError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("shop api error (%d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("shop api error (%d): %s", e.StatusCode, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}
