package broker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// DialOptions configures connections to a Redis broker.
type DialOptions struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration

	// ConnectRetries is the number of extra attempts made when the initial
	// handshake fails. Zero fails on the first error.
	ConnectRetries int

	// PublishRetries is the number of extra attempts made for a publish
	// that fails at the transport layer.
	PublishRetries int

	Logger *zap.Logger
}

// RedisConn implements Conn on top of a single Redis connection.
type RedisConn struct {
	client         *redis.Client
	addr           string
	publishRetries int
	log            *zap.Logger

	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// RedisDialer returns a DialFunc that opens Redis connections with opts.
func RedisDialer(opts DialOptions) DialFunc {
	return func(ctx context.Context) (Conn, error) {
		c, err := DialRedis(ctx, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// DialRedis connects to the Redis server at opts.Addr and verifies the
// connection with PING.
func DialRedis(ctx context.Context, opts DialOptions) (*RedisConn, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
		PoolSize:    1,
		MaxRetries:  -1,
	})

	c := &RedisConn{
		client:         client,
		addr:           opts.Addr,
		publishRetries: opts.PublishRetries,
		log:            log.With(zap.String("addr", opts.Addr)),
	}

	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
		defer cancel()
		return client.Ping(pingCtx).Err()
	}

	strategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(initialBackoff),
				backoff.WithMaxInterval(maxBackoff),
			),
			uint64(max(opts.ConnectRetries, 0)),
		),
		ctx,
	)

	err := backoff.RetryNotify(ping, strategy, func(err error, d time.Duration) {
		c.log.Warn("Retrying broker connection", zap.Error(err), zap.Duration("next_attempt", d))
	})
	if err != nil {
		c.setState(Failed)
		_ = client.Close()
		return nil, &ConnectionError{Addr: opts.Addr, Err: err}
	}

	c.setState(Connected)
	return c, nil
}

// Publish sends payload to channel with PUBLISH, retrying transport errors.
func (c *RedisConn) Publish(ctx context.Context, channel, payload string) error {
	if c.State() == Disconnected {
		return &PublishError{Channel: channel, Err: ErrClosed}
	}

	operation := func() error {
		err := c.client.Publish(ctx, channel, payload).Err()
		if errors.Is(err, redis.ErrClosed) {
			return backoff.Permanent(err)
		}
		return err
	}

	strategy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(initialBackoff),
				backoff.WithMaxInterval(maxBackoff),
			),
			uint64(max(c.publishRetries, 0)),
		),
		ctx,
	)

	err := backoff.RetryNotify(operation, strategy, func(err error, d time.Duration) {
		c.log.Warn("Retrying broker publish",
			zap.String("channel", channel), zap.Error(err), zap.Duration("next_attempt", d))
	})
	if err != nil {
		c.setState(Failed)
		return &PublishError{Channel: channel, Err: err}
	}

	c.state.CompareAndSwap(int32(Failed), int32(Connected))
	return nil
}

// Subscribe starts listening for notifications on channel.
func (c *RedisConn) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := c.client.Subscribe(ctx, channel)

	// Wait for the subscribe confirmation so a failed handshake surfaces here.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		c.setState(Failed)
		return nil, &ConnectionError{Addr: c.addr, Err: err}
	}

	return &redisSubscription{pubsub: pubsub, log: c.log.With(zap.String("channel", channel))}, nil
}

func (c *RedisConn) State() State {
	return State(c.state.Load())
}

// Close releases the underlying client.
func (c *RedisConn) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.setState(Disconnected)
		c.closeErr = c.client.Close()
	})
	return c.closeErr
}

func (c *RedisConn) setState(s State) {
	c.state.Store(int32(s))
}

type redisSubscription struct {
	pubsub *redis.PubSub
	log    *zap.Logger
	closed atomic.Bool
}

func (s *redisSubscription) Receive(ctx context.Context) (Frame, error) {
	for {
		reply, err := s.pubsub.Receive(ctx)
		if err != nil {
			if s.closed.Load() {
				return nil, ErrClosed
			}
			return nil, err
		}

		switch msg := reply.(type) {
		case *redis.Message:
			return messageFrame(msg), nil
		case *redis.Subscription:
			// Re-sent by the client after it reconnects.
			s.log.Debug("Subscription confirmed",
				zap.String("kind", msg.Kind), zap.Int("count", msg.Count))
		case *redis.Pong:
		default:
			s.log.Debug("Ignoring unexpected pub/sub reply")
		}
	}
}

func (s *redisSubscription) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.pubsub.Close()
}

func messageFrame(msg *redis.Message) Frame {
	if msg.Pattern != "" {
		return Frame{"pmessage", msg.Pattern, msg.Channel, msg.Payload}
	}
	return Frame{"message", msg.Channel, msg.Payload}
}
