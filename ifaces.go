package eureka

import (
	"context"

	"github.com/horockey/eureka/internal/gateway/peer_events"
	"github.com/horockey/eureka/internal/model"
	"github.com/horockey/eureka/internal/processor"
)

type (
	Processor        = processor.Processor
	ApplyResult      = processor.ApplyResult
	ServiceInstance  = model.ServiceInstance
	Key              = model.Key
	Status           = model.Status
	PeerEvent        = model.PeerEvent
	Version          = model.Version
	ConflictResolver = model.ConflictResolver
	Clock            = model.Clock
	PeerGateway      = peer_events.Gateway
)

const (
	StatusUp           = model.StatusUp
	StatusDown         = model.StatusDown
	StatusStarting     = model.StatusStarting
	StatusOutOfService = model.StatusOutOfService
)

type Controller interface {
	model.MetricsProvider
	Start(ctx context.Context, proc *Processor) error
}
