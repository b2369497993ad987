package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wailbentafat/chat-relay/broker"
)

type simulation struct {
	clients  int
	messages int
	channel  string
	dial     broker.DialFunc
	log      *zap.Logger
}

type simulationResult struct {
	Sent          int64
	Failed        int64
	FailedClients int64
	Elapsed       time.Duration
}

func simulateCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "flood the channel from many concurrent clients",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "clients", Value: 100, Usage: "concurrent clients, each on its own connection"},
			&cli.IntFlag{Name: "messages", Value: 2000, Usage: "messages sent by each client"},
		},
		Action: func(c *cli.Context) error {
			sim := simulation{
				clients:  c.Int("clients"),
				messages: c.Int("messages"),
				channel:  e.cfg.Relay.Channel,
				dial:     broker.RedisDialer(e.dialOptions()),
				log:      e.log.Named("simulate"),
			}

			res, err := sim.run(c.Context)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "All messages sent in %.3f seconds. sent=%d failed=%d failed_clients=%d\n",
				res.Elapsed.Seconds(), res.Sent, res.Failed, res.FailedClients)
			return nil
		},
	}
}

// run starts every client at once and waits for all of them. A client that
// cannot connect is counted and skipped.
func (s simulation) run(ctx context.Context) (simulationResult, error) {
	var sent, failed, failedClients atomic.Int64

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.clients; i++ {
		id := i
		g.Go(func() error {
			conn, err := s.dial(gctx)
			if err != nil {
				s.log.Warn("Client failed to connect", zap.Int("client", id), zap.Error(err))
				failedClients.Add(1)
				return nil
			}
			defer conn.Close()

			for j := 0; j < s.messages; j++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				msg := fmt.Sprintf("Client %d Message %d", id, j)
				if err := conn.Publish(gctx, s.channel, msg); err != nil {
					failed.Add(1)
					continue
				}
				sent.Add(1)
			}
			return nil
		})
	}

	err := g.Wait()
	return simulationResult{
		Sent:          sent.Load(),
		Failed:        failed.Load(),
		FailedClients: failedClients.Load(),
		Elapsed:       time.Since(start),
	}, err
}
