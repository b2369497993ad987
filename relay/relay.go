// Package relay implements a single-channel chat relay: an ingestion loop
// that reads the broker subscription into a shared queue, and a pool of
// workers that hands queued messages to a Presenter.
package relay

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/wailbentafat/chat-relay/broker"
)

// Relay ties the broker connections, the ingestion loop and the dispatch
// pool together.
type Relay struct {
	conns     *broker.Manager
	presenter Presenter
	queue     *MessageQueue
	pool      *Pool
	log       *zap.Logger
	metrics   *Metrics

	mu         sync.Mutex
	started    bool
	closed     bool
	sub        broker.Subscription
	cancel     context.CancelFunc
	ingestDone chan struct{}
}

// New creates a relay that dials the broker with dial and displays inbound
// messages through presenter.
func New(dial broker.DialFunc, presenter Presenter, opts ...OptsFunc) *Relay {
	o := defaultOpts()
	for _, fn := range opts {
		fn(&o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}

	queue := NewMessageQueue(o.queueCapacity, o.overflow)
	queue.TrackDepth(o.metrics.QueueDepth)
	return &Relay{
		conns:     broker.NewManager(dial, o.channel, o.logger.Named("broker")),
		presenter: presenter,
		queue:     queue,
		pool:      NewPool(queue, presenter, o.workers, o.logger.Named("dispatch"), o.metrics),
		log:       o.logger,
		metrics:   o.metrics,
	}
}

// Start connects to the broker, subscribes to the channel and starts the
// ingestion loop and the dispatch pool. ctx bounds the startup only; the
// relay runs until Shutdown. A broker that cannot be reached yields an error
// matching broker.ErrConnection and leaves nothing running.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRelayClosed
	}
	if r.started {
		return ErrRelayStarted
	}

	if err := r.conns.Connect(ctx); err != nil {
		return err
	}
	sub, err := r.conns.Subscribe(ctx)
	if err != nil {
		_ = r.conns.Close()
		return err
	}

	r.pool.Start()

	ingestCtx, cancel := context.WithCancel(context.Background())
	ingestor := NewIngestor(sub, r.queue, r.log.Named("ingest"), r.metrics)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ingestor.Run(ingestCtx)
	}()

	r.sub = sub
	r.cancel = cancel
	r.ingestDone = done
	r.started = true
	r.log.Info("Relay started",
		zap.String("channel", r.conns.Channel()), zap.Int("workers", r.pool.Size()))
	return nil
}

// SendMessage publishes text on the relay's channel. It blocks until the
// broker accepted the message or the publish failed, in which case the
// error matches broker.ErrPublish.
func (r *Relay) SendMessage(ctx context.Context, text string) error {
	if text == "" {
		return ErrEmptyMessage
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrRelayClosed
	}

	if err := r.conns.Publish(ctx, text); err != nil {
		r.metrics.Publishes.WithLabelValues("error").Inc()
		r.log.Warn("Failed to publish message", zap.Error(err))
		return err
	}
	r.metrics.Publishes.WithLabelValues("ok").Inc()
	return nil
}

// Shutdown stops ingestion, wakes and joins every dispatch worker and then
// releases the broker connections. Messages still queued are delivered
// unless ctx expires first, in which case they are discarded. Calling
// Shutdown more than once is safe.
func (r *Relay) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	started := r.started
	r.mu.Unlock()

	var errs []error
	if started {
		r.cancel()
		if err := r.sub.Close(); err != nil {
			r.log.Warn("Closing subscription", zap.Error(err))
		}
		select {
		case <-r.ingestDone:
		case <-ctx.Done():
			r.log.Warn("Ingestion did not stop before shutdown deadline")
		}

		r.queue.Close()
		if err := r.pool.Wait(ctx); err != nil {
			n := r.queue.Discard()
			r.metrics.MessagesDiscarded.Add(float64(n))
			r.log.Warn("Dispatch workers did not stop before shutdown deadline",
				zap.Int("discarded", n), zap.Error(err))
			errs = append(errs, err)
		}
	} else {
		r.queue.Close()
	}

	if err := r.conns.Close(); err != nil {
		errs = append(errs, err)
	}
	r.log.Info("Relay stopped")
	return errors.Join(errs...)
}

// Workers returns the dispatch pool size.
func (r *Relay) Workers() int {
	return r.pool.Size()
}

// Channel returns the broker channel in use.
func (r *Relay) Channel() string {
	return r.conns.Channel()
}

// Connections reports the state of the publish-side and subscribe-side
// broker connections.
func (r *Relay) Connections() (pub, sub broker.State) {
	return r.conns.States()
}
