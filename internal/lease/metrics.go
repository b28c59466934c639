package lease

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	sweepTimeHist    prometheus.Histogram
	sweepsCnt        prometheus.Counter
	expiredCnt       prometheus.Counter
	sweepFailuresCnt prometheus.Counter
}

func newMetrics() *metrics {
	const ss = "lease_manager"
	return &metrics{
		sweepTimeHist: prometheus.NewHistogram(*prometheus_helpers.NewHistOpts(
			"sweep_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Sweep duration distribution"),
		)),
		sweepsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "sweeps_cnt",
			Subsystem: ss,
			Help:      "Count of finished sweeps",
		}),
		expiredCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "expired_cnt",
			Subsystem: ss,
			Help:      "Count of instances removed by lease expiry",
		}),
		sweepFailuresCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "sweep_failures_cnt",
			Subsystem: ss,
			Help:      "Count of instances the sweep failed to process",
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.sweepTimeHist,
		m.sweepsCnt,
		m.expiredCnt,
		m.sweepFailuresCnt,
	}
}
