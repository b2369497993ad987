package relay

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/wailbentafat/chat-relay/broker"
)

const (
	initialReceiveBackoff = 50 * time.Millisecond
	maxReceiveBackoff     = 5 * time.Second
)

// Ingestor reads frames from a subscription and queues the chat messages
// they carry, in the order the broker delivered them.
type Ingestor struct {
	sub     broker.Subscription
	queue   *MessageQueue
	log     *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

func NewIngestor(sub broker.Subscription, queue *MessageQueue, log *zap.Logger, metrics *Metrics) *Ingestor {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Ingestor{
		sub:     sub,
		queue:   queue,
		log:     log,
		metrics: metrics,
		now:     time.Now,
	}
}

// Run receives until ctx is cancelled, the subscription is closed or the
// queue stops accepting messages. Closing the subscription is what unblocks
// a receive that is already in flight.
func (in *Ingestor) Run(ctx context.Context) error {
	pause := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(initialReceiveBackoff),
		backoff.WithMaxInterval(maxReceiveBackoff),
		backoff.WithMaxElapsedTime(0),
	)

	for {
		frame, err := in.sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, broker.ErrClosed) {
				in.log.Info("Ingestion stopped")
				return nil
			}

			in.metrics.ReceiveErrors.Inc()
			wait := pause.NextBackOff()
			in.log.Warn("Subscription receive failed", zap.Error(err), zap.Duration("retry_in", wait))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				in.log.Info("Ingestion stopped")
				return nil
			case <-timer.C:
			}
			continue
		}
		pause.Reset()
		in.metrics.FramesReceived.Inc()

		msg, ok := decodeFrame(frame, in.now())
		if !ok {
			in.metrics.FramesDropped.Inc()
			in.log.Debug("Dropping frame", zap.Int("elements", len(frame)))
			continue
		}

		if err := in.queue.Push(msg); err != nil {
			if errors.Is(err, ErrRelayClosed) {
				in.log.Info("Ingestion stopped, queue closed")
				return nil
			}
			in.metrics.MessagesRejected.Inc()
			in.log.Warn("Dropping inbound message", zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		in.metrics.MessagesEnqueued.Inc()
	}
}
