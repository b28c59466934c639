package registry

import (
	"time"

	"github.com/horockey/eureka/internal/model"
)

// Repository is the single owner of registry state.
// Every successful mutation is published to the configured model.EventSink.
type Repository interface {
	model.MetricsProvider

	// Register inserts or overwrites inst, returning the instance it replaced.
	Register(inst model.ServiceInstance) (prev model.ServiceInstance, existed bool, err error)
	// Deregister is idempotent: removing an absent key is not an error.
	Deregister(key model.Key) (removed bool, err error)
	// Renew returns model.NotFoundError for absent keys.
	Renew(key model.Key) (model.ServiceInstance, error)
	SetStatus(key model.Key, status model.Status) (model.ServiceInstance, error)
	// ExpireIfStale removes key only if its lease is expired at now.
	ExpireIfStale(key model.Key, now time.Time) (expired model.ServiceInstance, removed bool, err error)
	// Apply merges an event produced by a peer.
	Apply(ev model.PeerEvent) (applied bool, err error)
	// Restore loads previously persisted records without publishing events.
	Restore(records []model.InstanceRecord) error

	Lease(key model.Key) (model.Lease, bool)
	Snapshot() *model.RegistrySnapshot
	PruneTombstones(olderThan time.Time) int
}
