package relay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pool is a fixed set of workers draining a MessageQueue into a Presenter.
// Any idle worker may claim the next message, so with more than one worker
// the presenter can observe messages out of queue order.
type Pool struct {
	queue     *MessageQueue
	presenter Presenter
	size      int
	log       *zap.Logger
	metrics   *Metrics

	startOnce sync.Once
	wg        sync.WaitGroup
}

// NewPool creates a pool of size workers. Workers are not started until
// Start is called.
func NewPool(queue *MessageQueue, presenter Presenter, size int, log *zap.Logger, metrics *Metrics) *Pool {
	if size < 1 {
		size = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Pool{
		queue:     queue,
		presenter: presenter,
		size:      size,
		log:       log,
		metrics:   metrics,
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Start launches the workers. Calling it again has no effect.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.wg.Add(p.size)
		for i := 0; i < p.size; i++ {
			go p.worker(i)
		}
		p.log.Info("Dispatch pool started", zap.Int("workers", p.size))
	})
}

// Wait blocks until every worker has returned or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	p.metrics.WorkersActive.Inc()
	defer p.metrics.WorkersActive.Dec()

	for {
		msg, ok := p.queue.Pop()
		if !ok {
			p.log.Debug("Worker stopping", zap.Int("worker", id))
			return
		}
		p.deliver(id, msg)
	}
}

func (p *Pool) deliver(id int, msg InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			p.metrics.PresenterPanics.Inc()
			p.log.Error("Presenter panicked",
				zap.Int("worker", id), zap.String("message_id", msg.ID), zap.Any("panic", r))
		}
	}()

	p.presenter.OnMessageReceived(msg.Text)
	p.metrics.MessagesDispatched.Inc()
	if !msg.ReceivedAt.IsZero() {
		p.metrics.DispatchLatency.Observe(time.Since(msg.ReceivedAt).Seconds())
	}
}
