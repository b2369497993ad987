package broker

import (
	"errors"
	"fmt"
)

var (
	ErrConnection   = errors.New("broker connection failed")
	ErrPublish      = errors.New("broker publish failed")
	ErrClosed       = errors.New("broker connection closed")
	ErrNotConnected = errors.New("broker not connected")
)

// ConnectionError reports that the broker could not be reached or refused
// the handshake.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("%v: %v", ErrConnection, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", ErrConnection, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// PublishError reports a publish that failed at the transport layer after
// all retries were spent.
type PublishError struct {
	Channel string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%v on %q: %v", ErrPublish, e.Channel, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

func (e *PublishError) Is(target error) bool { return target == ErrPublish }
