package relay

import "errors"

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrRelayClosed  = errors.New("relay closed")
	ErrRelayStarted = errors.New("relay already started")
	ErrQueueFull    = errors.New("message queue full")
)
