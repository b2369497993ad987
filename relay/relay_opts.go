package relay

import (
	"runtime"

	"go.uber.org/zap"
)

// OptsFunc modifies relay options.
type OptsFunc func(*relayOpts)

type relayOpts struct {
	channel       string
	workers       int
	queueCapacity int
	overflow      OverflowPolicy
	logger        *zap.Logger
	metrics       *Metrics
}

// defaultOpts uses the "chat" channel, one worker per CPU and an unbounded
// queue.
func defaultOpts() relayOpts {
	return relayOpts{
		channel:  "chat",
		workers:  runtime.NumCPU(),
		overflow: Block,
		logger:   zap.NewNop(),
	}
}

// WithChannel sets the broker channel the relay publishes to and listens on.
func WithChannel(channel string) OptsFunc {
	return func(opts *relayOpts) {
		if channel != "" {
			opts.channel = channel
		}
	}
}

// WithWorkers sets the dispatch pool size. Values below one keep the
// default of one worker per CPU.
func WithWorkers(n int) OptsFunc {
	return func(opts *relayOpts) {
		if n > 0 {
			opts.workers = n
		}
	}
}

// WithQueueCapacity bounds the dispatch queue. A capacity of zero leaves it
// unbounded.
func WithQueueCapacity(capacity int, policy OverflowPolicy) OptsFunc {
	return func(opts *relayOpts) {
		opts.queueCapacity = capacity
		opts.overflow = policy
	}
}

func WithLogger(logger *zap.Logger) OptsFunc {
	return func(opts *relayOpts) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

func WithMetrics(metrics *Metrics) OptsFunc {
	return func(opts *relayOpts) {
		opts.metrics = metrics
	}
}
