package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Manager owns the two broker connections of a relay: one used only for
// publishing and one dedicated to the long-lived subscription.
type Manager struct {
	dial    DialFunc
	channel string
	log     *zap.Logger

	mu     sync.Mutex
	pub    Conn
	sub    Conn
	closed bool
}

// NewManager creates a Manager that dials connections with dial and talks on
// channel.
func NewManager(dial DialFunc, channel string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		dial:    dial,
		channel: channel,
		log:     log,
	}
}

// Channel returns the channel the manager publishes to and subscribes on.
func (m *Manager) Channel() string {
	return m.channel
}

// Connect opens the publish-side and subscribe-side connections. If either
// one fails, nothing is left open.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.pub != nil {
		return nil
	}

	pub, err := m.dial(ctx)
	if err != nil {
		return asConnectionError(err)
	}
	sub, err := m.dial(ctx)
	if err != nil {
		_ = pub.Close()
		return asConnectionError(err)
	}

	m.pub, m.sub = pub, sub
	m.log.Info("Connected to broker", zap.String("channel", m.channel))
	return nil
}

// Publish sends payload on the manager's channel over the publish-side
// connection.
func (m *Manager) Publish(ctx context.Context, payload string) error {
	m.mu.Lock()
	pub := m.pub
	m.mu.Unlock()

	if pub == nil {
		return &PublishError{Channel: m.channel, Err: ErrNotConnected}
	}
	return pub.Publish(ctx, m.channel, payload)
}

// Subscribe subscribes the subscribe-side connection to the manager's
// channel.
func (m *Manager) Subscribe(ctx context.Context) (Subscription, error) {
	m.mu.Lock()
	sub := m.sub
	m.mu.Unlock()

	if sub == nil {
		return nil, ErrNotConnected
	}
	s, err := sub.Subscribe(ctx, m.channel)
	if err != nil {
		return nil, fmt.Errorf("subscribe to %q: %w", m.channel, err)
	}
	m.log.Info("Subscribed to channel", zap.String("channel", m.channel))
	return s, nil
}

// States reports the state of the publish-side and subscribe-side
// connections.
func (m *Manager) States() (pub, sub State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pub, sub = Disconnected, Disconnected
	if m.pub != nil {
		pub = m.pub.State()
	}
	if m.sub != nil {
		sub = m.sub.State()
	}
	return pub, sub
}

// Close releases both connections. It is safe to call more than once and
// before Connect.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	if m.sub != nil {
		errs = append(errs, m.sub.Close())
	}
	if m.pub != nil {
		errs = append(errs, m.pub.Close())
	}
	m.pub, m.sub = nil, nil
	return errors.Join(errs...)
}

func asConnectionError(err error) error {
	if errors.Is(err, ErrConnection) {
		return err
	}
	return &ConnectionError{Err: err}
}
