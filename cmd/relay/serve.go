package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wailbentafat/chat-relay/relay"
	"github.com/wailbentafat/chat-relay/server"
	"github.com/wailbentafat/chat-relay/view"
	"github.com/wailbentafat/chat-relay/websocket"
)

func serveCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "relay the channel to browsers over WebSocket",
		Flags: append(relayFlags(e.cfg),
			&cli.StringFlag{Name: "http-addr", Value: e.cfg.HTTP.Addr, Usage: "HTTP listen address"},
		),
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			websocket.SetLogger(e.log)

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			loop := view.NewLoop(256)
			manager := websocket.NewClientManager()
			hub := websocket.NewHub(manager, loop)

			r, err := e.newRelay(c, hub, relay.NewMetrics(reg))
			if err != nil {
				return err
			}
			if err := r.Start(ctx); err != nil {
				e.log.Error("Failed to start relay", zap.Error(err))
				return cli.Exit(err, 1)
			}

			handler := websocket.NewHandler(manager, r)
			srv := server.NewServer(c.String("http-addr"), handler.HandleWebSocket, r, reg, e.log.Named("http"))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return loop.Run(context.Background())
			})
			g.Go(srv.Start)
			g.Go(func() error {
				<-gctx.Done()
				e.log.Info("Shutdown signal received")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.HTTP.ShutdownTimeout)
				defer cancel()
				err := srv.Shutdown(shutdownCtx, manager)
				loop.Close()
				return err
			})
			return g.Wait()
		},
	}
}
