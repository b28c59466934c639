package gossip

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	sendTimeHist      prometheus.Histogram
	sentEventsCnt     prometheus.Counter
	droppedBatchesCnt prometheus.Counter
	outboxSize        prometheus.GaugeFunc
}

func newMetrics(r *Replicator) *metrics {
	const ss = "gossip"
	return &metrics{
		sendTimeHist: prometheus.NewHistogram(*prometheus_helpers.NewHistOpts(
			"send_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Delivered batch send time distribution"),
		)),
		sentEventsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "sent_events_cnt",
			Subsystem: ss,
			Help:      "Count of events delivered to peers",
		}),
		droppedBatchesCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "dropped_batches_cnt",
			Subsystem: ss,
			Help:      "Count of batches dropped on queue overflow or send failure",
		}),
		outboxSize: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name:      "outbox_size",
				Subsystem: ss,
				Help:      "Count of events waiting for dispatch",
			},
			func() float64 {
				return float64(r.outboxLen())
			},
		),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.sendTimeHist,
		m.sentEventsCnt,
		m.droppedBatchesCnt,
		m.outboxSize,
	}
}
