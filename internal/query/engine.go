package query

import (
	"time"

	"github.com/horockey/eureka/internal/model"
	"github.com/horockey/go-toolbox/prometheus_helpers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
)

type SnapshotSource interface {
	Snapshot() *model.RegistrySnapshot
}

type Engine struct {
	src          SnapshotSource
	includeNonUp bool
	metrics      *metrics
}

func New(src SnapshotSource, includeNonUp bool) *Engine {
	return &Engine{
		src:          src,
		includeNonUp: includeNonUp,
		metrics:      newMetrics(),
	}
}

func (e *Engine) Metrics() []prometheus.Collector {
	return e.metrics.list()
}

// InstancesByService returns instances of the service in registration order.
// Unless the engine was built with includeNonUp, only UP instances are returned.
func (e *Engine) InstancesByService(service string) []model.ServiceInstance {
	defer e.observe("by_service", time.Now())

	instances := e.src.Snapshot().Instances(service)
	if e.includeNonUp {
		return instances
	}

	return lo.Filter(instances, func(el model.ServiceInstance, _ int) bool {
		return el.Status == model.StatusUp
	})
}

// Instance looks an instance up regardless of its status.
func (e *Engine) Instance(key model.Key) (model.ServiceInstance, error) {
	defer e.observe("by_key", time.Now())

	inst, found := e.src.Snapshot().Instance(key)
	if !found {
		return model.ServiceInstance{}, model.NotFoundError{ServiceName: key.ServiceName, InstanceID: key.InstanceID}
	}
	return inst, nil
}

func (e *Engine) Services() []string {
	defer e.observe("services", time.Now())
	return e.src.Snapshot().Services()
}

// All groups every instance by service, whatever its status.
func (e *Engine) All() map[string][]model.ServiceInstance {
	defer e.observe("all", time.Now())

	snap := e.src.Snapshot()
	return lo.SliceToMap(snap.Services(), func(name string) (string, []model.ServiceInstance) {
		return name, snap.Instances(name)
	})
}

func (e *Engine) observe(kind string, ts time.Time) {
	e.metrics.queriesCnt.WithLabelValues(kind).Inc()
	e.metrics.handleTimeHist.Observe(float64(time.Since(ts)))
}

type metrics struct {
	handleTimeHist prometheus.Histogram
	queriesCnt     *prometheus.CounterVec
}

func newMetrics() *metrics {
	const ss = "query_engine"
	return &metrics{
		handleTimeHist: prometheus.NewHistogram(*prometheus_helpers.NewHistOpts(
			"handle_time_hist",
			prometheus_helpers.HistOptsWithSubsystem(ss),
			prometheus_helpers.HistOptsWithHelp("Handle time distribution"),
		)),
		queriesCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      "queries_cnt",
			Subsystem: ss,
			Help:      "Count of queries by kind",
		}, []string{"kind"}),
	}
}

func (m *metrics) list() []prometheus.Collector {
	return []prometheus.Collector{m.handleTimeHist, m.queriesCnt}
}
