package kube

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoCredentials is returned when neither basic credentials nor a bearer
// token file are available
var ErrNoCredentials = errors.New("authorization setup failed, provide either a username/password or a token file")

const (
	kindSnapshot = "snapshot"
	kindEvent    = "event"
)

// DecodeError reports a payload from the API server that could not be decoded
type DecodeError struct {
	// Kind is either "snapshot" or "event"
	Kind string
	// Position is the 1-based index of the offending event in its stream
	Position int
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Position > 0 {
		return fmt.Sprintf("failed to decode %s #%d: %v", e.Kind, e.Position, e.Err)
	}
	return fmt.Sprintf("failed to decode %s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *DecodeError) Unwrap() error { return e.Err }

// Cause implements the pkg/errors causer
func (e *DecodeError) Cause() error { return e.Err }

// ConnectivityError reports a failed exchange with the API server, either
// at the transport level or as a non-success status
type ConnectivityError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ConnectivityError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *ConnectivityError) Unwrap() error { return e.Err }

// Cause implements the pkg/errors causer
func (e *ConnectivityError) Cause() error { return e.Err }
