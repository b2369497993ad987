package broker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wailbentafat/chat-relay/broker"
	"github.com/wailbentafat/chat-relay/broker/brokertest"
)

func TestManagerConnectOpensTwoConnections(t *testing.T) {
	b := brokertest.New()
	m := broker.NewManager(b.Dial, "chat", nil)

	require.NoError(t, m.Connect(context.Background()))
	assert.Equal(t, 2, b.Dials())
	assert.Equal(t, 2, b.OpenConns())

	pub, sub := m.States()
	assert.Equal(t, broker.Connected, pub)
	assert.Equal(t, broker.Connected, sub)

	require.NoError(t, m.Close())
	assert.Equal(t, 0, b.OpenConns())
}

func TestManagerConnectFailure(t *testing.T) {
	b := brokertest.New()
	b.FailDial(errors.New("connection refused"))
	m := broker.NewManager(b.Dial, "chat", nil)

	err := m.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, broker.ErrConnection)

	var connErr *broker.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "memory", connErr.Addr)
}

func TestManagerConnectWrapsPlainDialErrors(t *testing.T) {
	m := broker.NewManager(func(ctx context.Context) (broker.Conn, error) {
		return nil, errors.New("boom")
	}, "chat", nil)

	err := m.Connect(context.Background())
	assert.ErrorIs(t, err, broker.ErrConnection)
}

func TestManagerPublishUsesChannel(t *testing.T) {
	b := brokertest.New()
	m := broker.NewManager(b.Dial, "chat", nil)
	require.NoError(t, m.Connect(context.Background()))
	defer m.Close()

	require.NoError(t, m.Publish(context.Background(), "ping"))
	assert.Equal(t, []brokertest.Published{{Channel: "chat", Payload: "ping"}}, b.Published())
}

func TestManagerPublishBeforeConnect(t *testing.T) {
	m := broker.NewManager(brokertest.New().Dial, "chat", nil)

	err := m.Publish(context.Background(), "ping")
	assert.ErrorIs(t, err, broker.ErrPublish)
	assert.ErrorIs(t, err, broker.ErrNotConnected)

	_, err = m.Subscribe(context.Background())
	assert.ErrorIs(t, err, broker.ErrNotConnected)
}

func TestManagerPublishFailureIsSurfaced(t *testing.T) {
	b := brokertest.New()
	m := broker.NewManager(b.Dial, "chat", nil)
	require.NoError(t, m.Connect(context.Background()))
	defer m.Close()

	b.FailPublish(errors.New("broken pipe"))
	err := m.Publish(context.Background(), "ping")

	var pubErr *broker.PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, "chat", pubErr.Channel)
	assert.Empty(t, b.Published())
}

func TestManagerSubscribeReceivesFrames(t *testing.T) {
	b := brokertest.New()
	m := broker.NewManager(b.Dial, "chat", nil)
	require.NoError(t, m.Connect(context.Background()))
	defer m.Close()

	sub, err := m.Subscribe(context.Background())
	require.NoError(t, err)

	b.DeliverMessage("chat", "hello")
	frame, err := sub.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, broker.Frame{"message", "chat", "hello"}, frame)

	require.NoError(t, sub.Close())
	_, err = sub.Receive(context.Background())
	assert.ErrorIs(t, err, broker.ErrClosed)
}

func TestManagerCloseIsIdempotent(t *testing.T) {
	m := broker.NewManager(brokertest.New().Dial, "chat", nil)

	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
	assert.ErrorIs(t, m.Connect(context.Background()), broker.ErrClosed)

	pub, sub := m.States()
	assert.Equal(t, broker.Disconnected, pub)
	assert.Equal(t, broker.Disconnected, sub)
}
