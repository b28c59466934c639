package inmemory_registry

import (
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	handleTimeHist     prometheus.Histogram
	requestsCnt        *prometheus.CounterVec
	successProcessCnt  prometheus.Counter
	errProcessCnt      prometheus.Counter
	staleEventsCnt     prometheus.Counter
	repoSizeItemsGauge prometheus.GaugeFunc
	tombstonesGauge    prometheus.GaugeFunc
	snapshotVerGauge   prometheus.GaugeFunc
}

func newMetrics(repo *inmemoryRegistry) *metrics {
	const ss = "inmemory_registry"

	return &metrics{
		handleTimeHist: prometheus.NewHistogram(*prometheus_helpers.NewHistOpts(
			"handle_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Handle time distribution"),
		)),
		requestsCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "requests_cnt",
			Subsystem: ss,
			Help:      "Count of incoming requests by operation",
		}, []string{"op"}),
		successProcessCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "success_responses_cnt",
			Subsystem: ss,
			Help:      "Count of successfully finished processes",
		}),
		errProcessCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "err_processes_cnt",
			Subsystem: ss,
			Help:      "Count of processes finished with non-nil error",
		}),
		staleEventsCnt: prometheus.NewCounter(prometheus.CounterOpts{
			Name:      "stale_peer_events_cnt",
			Subsystem: ss,
			Help:      "Count of peer events discarded by conflict resolution",
		}),
		repoSizeItemsGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "repo_size_items_gauge",
			Subsystem: ss,
			Help:      "actual count of instances in registry",
		}, func() float64 {
			return float64(repo.Snapshot().Len())
		}),
		tombstonesGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "tombstones_gauge",
			Subsystem: ss,
			Help:      "actual count of remembered removals",
		}, func() float64 {
			return float64(repo.tombstonesCount())
		}),
		snapshotVerGauge: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:      "snapshot_version_gauge",
			Subsystem: ss,
			Help:      "version of the latest published snapshot",
		}, func() float64 {
			return float64(repo.Snapshot().Version())
		}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{
		m.handleTimeHist,
		m.requestsCnt,
		m.successProcessCnt,
		m.errProcessCnt,
		m.staleEventsCnt,
		m.repoSizeItemsGauge,
		m.tombstonesGauge,
		m.snapshotVerGauge,
	}
}
