package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/wailbentafat/chat-relay/relay"
	"github.com/wailbentafat/chat-relay/view"
)

func chatCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "chat on the channel from the terminal",
		Flags: relayFlags(e.cfg),
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			loop := view.NewLoop(256)
			console := view.NewConsole(loop, c.App.Writer)

			r, err := e.newRelay(c, console, relay.NewMetrics(nil))
			if err != nil {
				return err
			}
			if err := r.Start(ctx); err != nil {
				e.log.Error("Failed to start relay", zap.Error(err))
				return cli.Exit(err, 1)
			}
			console.Notice("connected to %s, channel %q", e.cfg.Redis.Addr, r.Channel())

			go func() {
				defer stop()
				if err := console.ReadInput(ctx, os.Stdin, r, e.log); err != nil {
					e.log.Warn("Reading input failed", zap.Error(err))
				}
			}()

			_ = loop.Run(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.HTTP.ShutdownTimeout)
			defer cancel()

			// Workers still draining the backlog post to the loop.
			return loop.RunWhile(func() error {
				return r.Shutdown(shutdownCtx)
			})
		},
	}
}
