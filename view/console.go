package view

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// Sender publishes chat messages typed by the user.
type Sender interface {
	SendMessage(ctx context.Context, text string) error
}

// Console displays chat messages on a terminal. Writes to out happen only on
// the loop's goroutine.
type Console struct {
	loop *Loop
	out  io.Writer
}

func NewConsole(loop *Loop, out io.Writer) *Console {
	return &Console{loop: loop, out: out}
}

// OnMessageReceived appends text to the output.
func (c *Console) OnMessageReceived(text string) {
	c.loop.Post(func() {
		fmt.Fprintln(c.out, text)
	})
}

// Notice shows a local status line that did not come from the broker.
func (c *Console) Notice(format string, args ...any) {
	line := fmt.Sprintf("* "+format, args...)
	c.loop.Post(func() {
		fmt.Fprintln(c.out, line)
	})
}

// ReadInput sends every non-empty line read from in until in is exhausted
// or ctx is done. A failed send is reported on the console and reading
// continues.
func (c *Console) ReadInput(ctx context.Context, in io.Reader, sender Sender, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if err := sender.SendMessage(ctx, line); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Warn("Failed to send message", zap.Error(err))
			c.Notice("message not sent: %v", err)
		}
	}
	return scanner.Err()
}
