package domain

import (
	"errors"
	"fmt"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// TransportError represents a failed exchange call: a non-success HTTP
// status or an underlying socket failure. It is always retriable.
type TransportError struct {
	Op     string // Operation that failed (e.g., "trades", "candles")
	Status int    // HTTP status code, 0 when the request never completed
	Err    error  // Underlying error, nil when Status carries the cause
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
}

func (e *TransportError) IsRetriable() bool {
	return true
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error for a failed HTTP exchange
func NewTransportError(op string, status int, err error) *TransportError {
	return &TransportError{Op: op, Status: status, Err: err}
}

// MalformedDataError represents a payload whose shape does not match the
// wire contract. On the single-ticker path it is retried like a transport
// failure; on the snapshot path it only skips the offending row.
type MalformedDataError struct {
	Op     string
	Detail string
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("%s: malformed payload: %s", e.Op, e.Detail)
}

func (e *MalformedDataError) IsRetriable() bool {
	return true
}

var (
	// ErrInvalidArgument is returned for bad caller input, e.g. an empty
	// symbol. Never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotConnected is returned when a streaming operation is attempted
	// before the connection is open.
	ErrNotConnected = errors.New("websocket is not connected")

	// ErrFeedClosed is returned when a disposed feed is reused.
	ErrFeedClosed = errors.New("feed is closed")
)
