package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/wailbentafat/chat-relay/broker"
	"github.com/wailbentafat/chat-relay/broker/brokertest"
	"github.com/wailbentafat/chat-relay/config"
)

func TestSimulationPublishesEveryMessage(t *testing.T) {
	b := brokertest.New()
	sim := simulation{
		clients:  10,
		messages: 50,
		channel:  "chat",
		dial:     b.Dial,
		log:      zap.NewNop(),
	}

	res, err := sim.run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(500), res.Sent)
	assert.Equal(t, int64(0), res.Failed)
	assert.Equal(t, int64(0), res.FailedClients)
	assert.Len(t, b.Published(), 500)
	assert.Equal(t, 0, b.OpenConns())

	seen := make(map[string]bool)
	for _, p := range b.Published() {
		assert.Equal(t, "chat", p.Channel)
		seen[p.Payload] = true
	}
	assert.True(t, seen["Client 0 Message 0"])
	assert.True(t, seen["Client 9 Message 49"])
}

func TestSimulationCountsFailures(t *testing.T) {
	b := brokertest.New()
	b.FailDial(errors.New("connection refused"))
	sim := simulation{clients: 3, messages: 5, channel: "chat", dial: b.Dial, log: zap.NewNop()}

	res, err := sim.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.FailedClients)
	assert.Equal(t, int64(0), res.Sent)

	b.FailDial(nil)
	b.FailPublish(errors.New("broken pipe"))
	res, err = sim.run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(15), res.Failed)
}

func TestSimulationStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := simulation{clients: 2, messages: 5, channel: "chat", dial: brokertest.New().Dial, log: zap.NewNop()}
	_, err := sim.run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendRequiresText(t *testing.T) {
	app := newApp(config.Default())
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.Run([]string{"relay", "send"})
	var exitErr cli.ExitCoder
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.ExitCode())
}

func TestFlagsOverrideConfig(t *testing.T) {
	cfg := config.Default()
	app := newApp(cfg)
	app.Writer = &bytes.Buffer{}

	var got broker.DialOptions
	app.Commands = append(app.Commands, &cli.Command{
		Name: "inspect",
		Action: func(c *cli.Context) error {
			got = (&env{cfg: cfg, log: zap.NewNop()}).dialOptions()
			return nil
		},
	})

	require.NoError(t, app.Run([]string{"relay", "--redis-addr", "redis:7000", "--channel", "lobby", "inspect"}))
	assert.Equal(t, "redis:7000", got.Addr)
	assert.Equal(t, "lobby", cfg.Relay.Channel)
	assert.Equal(t, 3, got.PublishRetries)
}

func TestInvalidLogLevel(t *testing.T) {
	app := newApp(config.Default())
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	err := app.Run([]string{"relay", "--log-level", "loud", "send", "hi"})
	assert.Error(t, err)
}
