// Package brokertest provides an in-memory broker for exercising code that
// depends on broker connections without a Redis server.
package brokertest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wailbentafat/chat-relay/broker"
)

// Published records one publish call seen by the broker.
type Published struct {
	Channel string
	Payload string
}

// Broker is an in-memory publish/subscribe broker.
type Broker struct {
	mu         sync.Mutex
	published  []Published
	subs       []*subscription
	conns      []*conn
	dialErr    error
	publishErr error
	echo       bool
}

func New() *Broker {
	return &Broker{}
}

// Dial opens a new connection. It satisfies broker.DialFunc.
func (b *Broker) Dial(ctx context.Context) (broker.Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dialErr != nil {
		return nil, &broker.ConnectionError{Addr: "memory", Err: b.dialErr}
	}
	c := &conn{broker: b}
	c.state.Store(int32(broker.Connected))
	b.conns = append(b.conns, c)
	return c, nil
}

// FailDial makes every following Dial fail with err. A nil err restores
// normal behaviour.
func (b *Broker) FailDial(err error) {
	b.mu.Lock()
	b.dialErr = err
	b.mu.Unlock()
}

// FailPublish makes every following publish fail with err.
func (b *Broker) FailPublish(err error) {
	b.mu.Lock()
	b.publishErr = err
	b.mu.Unlock()
}

// SetEcho controls whether published messages are delivered to the
// subscribers of the same channel, as a real broker does.
func (b *Broker) SetEcho(echo bool) {
	b.mu.Lock()
	b.echo = echo
	b.mu.Unlock()
}

// Published returns every successful publish in order.
func (b *Broker) Published() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Published(nil), b.published...)
}

// Deliver hands frames, in order, to every open subscription.
func (b *Broker) Deliver(frames ...broker.Frame) {
	b.mu.Lock()
	subs := append([]*subscription(nil), b.subs...)
	b.mu.Unlock()

	for _, f := range frames {
		for _, s := range subs {
			s.deliver(f)
		}
	}
}

// DeliverMessage delivers a well-formed notification for payload on channel.
func (b *Broker) DeliverMessage(channel, payload string) {
	b.deliverTo(channel, broker.Frame{"message", channel, payload})
}

// Subscribers returns the number of open subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, s := range b.subs {
		if !s.isClosed() {
			n++
		}
	}
	return n
}

// OpenConns returns the number of connections not yet closed.
func (b *Broker) OpenConns() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for _, c := range b.conns {
		if c.State() != broker.Disconnected {
			n++
		}
	}
	return n
}

// Dials returns the number of successful Dial calls.
func (b *Broker) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func (b *Broker) deliverTo(channel string, f broker.Frame) {
	b.mu.Lock()
	var subs []*subscription
	for _, s := range b.subs {
		if s.channel == channel {
			subs = append(subs, s)
		}
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.deliver(f)
	}
}

type conn struct {
	broker *Broker
	state  atomic.Int32
}

func (c *conn) Publish(ctx context.Context, channel, payload string) error {
	if err := ctx.Err(); err != nil {
		return &broker.PublishError{Channel: channel, Err: err}
	}
	if c.State() == broker.Disconnected {
		return &broker.PublishError{Channel: channel, Err: broker.ErrClosed}
	}

	b := c.broker
	b.mu.Lock()
	if b.publishErr != nil {
		err := b.publishErr
		b.mu.Unlock()
		return &broker.PublishError{Channel: channel, Err: err}
	}
	b.published = append(b.published, Published{Channel: channel, Payload: payload})
	echo := b.echo
	b.mu.Unlock()

	if echo {
		b.deliverTo(channel, broker.Frame{"message", channel, payload})
	}
	return nil
}

func (c *conn) Subscribe(ctx context.Context, channel string) (broker.Subscription, error) {
	if c.State() == broker.Disconnected {
		return nil, broker.ErrClosed
	}
	s := &subscription{
		channel: channel,
		frames:  make(chan broker.Frame, 256),
		done:    make(chan struct{}),
	}
	c.broker.mu.Lock()
	c.broker.subs = append(c.broker.subs, s)
	c.broker.mu.Unlock()
	return s, nil
}

func (c *conn) State() broker.State {
	return broker.State(c.state.Load())
}

func (c *conn) Close() error {
	c.state.Store(int32(broker.Disconnected))
	return nil
}

type subscription struct {
	channel   string
	frames    chan broker.Frame
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscription) Receive(ctx context.Context) (broker.Frame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, broker.ErrClosed
	}
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *subscription) deliver(f broker.Frame) {
	select {
	case s.frames <- f:
	case <-s.done:
	}
}

func (s *subscription) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
