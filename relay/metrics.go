package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the relay's Prometheus collectors.
type Metrics struct {
	FramesReceived     prometheus.Counter
	FramesDropped      prometheus.Counter
	ReceiveErrors      prometheus.Counter
	MessagesEnqueued   prometheus.Counter
	MessagesRejected   prometheus.Counter
	MessagesDispatched prometheus.Counter
	MessagesDiscarded  prometheus.Counter
	PresenterPanics    prometheus.Counter
	QueueDepth         prometheus.Gauge
	WorkersActive      prometheus.Gauge
	DispatchLatency    prometheus.Histogram
	Publishes          *prometheus.CounterVec
}

// NewMetrics creates the relay collectors and registers them with reg. A nil
// reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_frames_received_total",
			Help: "Frames read from the broker subscription",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_frames_dropped_total",
			Help: "Frames discarded because they were not channel notifications",
		}),
		ReceiveErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_receive_errors_total",
			Help: "Errors returned by the subscription receive call",
		}),
		MessagesEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_enqueued_total",
			Help: "Inbound messages pushed onto the dispatch queue",
		}),
		MessagesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_rejected_total",
			Help: "Inbound messages refused by a full dispatch queue",
		}),
		MessagesDispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_dispatched_total",
			Help: "Inbound messages handed to the presenter",
		}),
		MessagesDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_discarded_total",
			Help: "Queued messages dropped at shutdown",
		}),
		PresenterPanics: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_presenter_panics_total",
			Help: "Panics recovered while calling the presenter",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_queue_depth",
			Help: "Messages waiting in the dispatch queue",
		}),
		WorkersActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_workers_active",
			Help: "Dispatch workers currently running",
		}),
		DispatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "relay_dispatch_latency_seconds",
			Help:    "Time from receiving a frame to handing it to the presenter",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}),
		Publishes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_publishes_total",
			Help: "Outbound publish calls by result",
		}, []string{"result"}),
	}
}
