package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/wailbentafat/chat-relay/broker"
	"github.com/wailbentafat/chat-relay/config"
	"github.com/wailbentafat/chat-relay/logging"
	"github.com/wailbentafat/chat-relay/relay"
)

// env carries what every command needs once flags are parsed.
type env struct {
	cfg *config.Config
	log *zap.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewDefault().Fatal("Invalid configuration", zap.Error(err))
	}

	if err := newApp(cfg).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(cfg *config.Config) *cli.App {
	e := &env{cfg: cfg, log: zap.NewNop()}

	return &cli.App{
		Name:  "relay",
		Usage: "single-channel chat relay over Redis pub/sub",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "redis-addr", Value: cfg.Redis.Addr, Usage: "broker host:port"},
			&cli.StringFlag{Name: "channel", Value: cfg.Relay.Channel, Usage: "chat channel"},
			&cli.StringFlag{Name: "log-level", Value: cfg.Logging.Level, Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "log-dev", Value: cfg.Logging.Development, Usage: "human readable logs"},
		},
		Before: func(c *cli.Context) error {
			cfg.Redis.Addr = c.String("redis-addr")
			cfg.Relay.Channel = c.String("channel")
			cfg.Logging.Level = c.String("log-level")
			cfg.Logging.Development = c.Bool("log-dev")
			if err := cfg.Validate(); err != nil {
				return err
			}

			logCfg := logging.DefaultConfig()
			logCfg.Level = cfg.Logging.Level
			logCfg.Development = cfg.Logging.Development
			logger, err := logging.New(logCfg)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			e.log = logger
			return nil
		},
		After: func(c *cli.Context) error {
			_ = e.log.Sync()
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(e),
			chatCommand(e),
			sendCommand(e),
			simulateCommand(e),
		},
	}
}

// relayFlags are shared by the commands that run a full relay.
func relayFlags(cfg *config.Config) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "workers", Value: cfg.Relay.Workers, Usage: "dispatch workers, 0 for one per CPU"},
		&cli.IntFlag{Name: "queue-capacity", Value: cfg.Relay.QueueCapacity, Usage: "dispatch queue bound, 0 for unbounded"},
		&cli.StringFlag{Name: "queue-overflow", Value: cfg.Relay.QueueOverflow, Usage: "block or drop when the queue is full"},
	}
}

func (e *env) dialOptions() broker.DialOptions {
	return broker.DialOptions{
		Addr:           e.cfg.Redis.Addr,
		Password:       e.cfg.Redis.Password,
		DB:             e.cfg.Redis.DB,
		DialTimeout:    e.cfg.Redis.DialTimeout,
		ConnectRetries: e.cfg.Redis.ConnectRetries,
		PublishRetries: e.cfg.Redis.PublishRetries,
		Logger:         e.log.Named("redis"),
	}
}

// newRelay builds a relay from the configuration and the relay flags of c.
func (e *env) newRelay(c *cli.Context, presenter relay.Presenter, metrics *relay.Metrics) (*relay.Relay, error) {
	overflow, err := relay.ParseOverflowPolicy(c.String("queue-overflow"))
	if err != nil {
		return nil, err
	}

	return relay.New(
		broker.RedisDialer(e.dialOptions()),
		presenter,
		relay.WithChannel(e.cfg.Relay.Channel),
		relay.WithWorkers(c.Int("workers")),
		relay.WithQueueCapacity(c.Int("queue-capacity"), overflow),
		relay.WithLogger(e.log),
		relay.WithMetrics(metrics),
	), nil
}
