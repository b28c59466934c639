package processor

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	handleTimeHist *prometheus.HistogramVec
	peerEventsCnt  *prometheus.CounterVec
}

func newMetrics() *metrics {
	const ss = "processor"
	return &metrics{
		handleTimeHist: prometheus.NewHistogramVec(*prometheus_helpers.NewHistOpts(
			"handle_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Handle time distribution"),
		), []string{"op"}),
		peerEventsCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "peer_events_cnt",
			Subsystem: ss,
			Help:      "Count of received peer events by outcome",
		}, []string{"outcome"}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.handleTimeHist,
		m.peerEventsCnt,
	}
}
