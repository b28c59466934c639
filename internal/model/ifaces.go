package model

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type MetricsProvider interface {
	Metrics() []prometheus.Collector
}

// EventSink receives every mutation of the registry in commit order.
// Publish is called under the registry write lock and must not block.
type EventSink interface {
	Publish(PeerEvent)
}

type EventSinkFunc func(PeerEvent)

func (f EventSinkFunc) Publish(ev PeerEvent) {
	f(ev)
}

type Clock interface {
	Now() time.Time
}
