// Package broker owns the connections between the relay and the external
// publish/subscribe transport.
package broker

import (
	"context"
)

// State is the lifecycle state of a broker connection.
type State int32

const (
	Disconnected State = iota
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Frame is one reply read from a subscription, as an ordered list of
// elements. Channel notifications have the shape
// ["message", channel, payload].
type Frame []string

// Conn is a single connection to the broker.
type Conn interface {
	Publish(ctx context.Context, channel, payload string) error

	// Subscribe issues the subscription request and waits for the broker
	// to confirm it. The connection must not be used for publishing
	// afterwards.
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	State() State

	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Subscription yields the frames delivered on a subscribed connection.
type Subscription interface {
	// Receive blocks until the next notification frame arrives, ctx is
	// done or the subscription is closed.
	Receive(ctx context.Context) (Frame, error)

	Close() error
}

// DialFunc opens a new connection to the broker.
type DialFunc func(ctx context.Context) (Conn, error)
