package main

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/wailbentafat/chat-relay/broker"
)

func sendCommand(e *env) *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "publish one message on the channel",
		ArgsUsage: "<text>",
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" {
				return cli.Exit("nothing to send", 2)
			}

			conn, err := broker.DialRedis(c.Context, e.dialOptions())
			if err != nil {
				return cli.Exit(err, 1)
			}
			defer conn.Close()

			return conn.Publish(c.Context, e.cfg.Relay.Channel, text)
		},
	}
}
