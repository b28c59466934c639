package inmemory_registry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/horockey/eureka/internal/model"
	"github.com/horockey/eureka/internal/repository/registry"
	"github.com/prometheus/client_golang/prometheus"
)

var _ registry.Repository = &inmemoryRegistry{}

type inmemoryRegistry struct {
	peerID               string
	defaultLeaseDuration time.Duration
	clock                model.Clock
	sink                 model.EventSink
	resolver             model.ConflictResolver

	mu       sync.Mutex
	entries  map[model.Key]*entry
	versions map[model.Key]versionEntry

	snapshot atomic.Pointer[model.RegistrySnapshot]
	metrics  *metrics
}

type entry struct {
	instance model.ServiceInstance
	lease    model.Lease
	// restored entries were loaded from the journal and not touched since
	restored bool
}

type versionEntry struct {
	model.Version
	recordedAt time.Time
}

func New(
	peerID string,
	defaultLeaseDuration time.Duration,
	clock model.Clock,
	sink model.EventSink,
	resolver model.ConflictResolver,
) *inmemoryRegistry {
	if sink == nil {
		sink = model.EventSinkFunc(func(model.PeerEvent) {})
	}
	if resolver == nil {
		resolver = model.ConflictResolverFunc(model.LastWriteWins)
	}

	repo := inmemoryRegistry{
		peerID:               peerID,
		defaultLeaseDuration: defaultLeaseDuration,
		clock:                clock,
		sink:                 sink,
		resolver:             resolver,
		entries:              map[model.Key]*entry{},
		versions:             map[model.Key]versionEntry{},
	}
	repo.snapshot.Store(model.EmptySnapshot())
	repo.metrics = newMetrics(&repo)

	return &repo
}

func (repo *inmemoryRegistry) Metrics() []prometheus.Collector {
	return repo.metrics.list()
}

func (repo *inmemoryRegistry) Snapshot() *model.RegistrySnapshot {
	return repo.snapshot.Load()
}

func (repo *inmemoryRegistry) Lease(key model.Key) (model.Lease, bool) {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	e, found := repo.entries[key]
	if !found {
		return model.Lease{}, false
	}
	return e.lease, true
}

func (repo *inmemoryRegistry) Register(inst model.ServiceInstance) (prev model.ServiceInstance, existed bool, resErr error) {
	defer repo.observe("register", time.Now(), &resErr)

	if inst.Status == "" {
		inst.Status = model.StatusStarting
	}
	if inst.LeaseDuration == 0 {
		inst.LeaseDuration = repo.defaultLeaseDuration
	}
	if err := inst.Validate(); err != nil {
		return model.ServiceInstance{}, false, fmt.Errorf("validating instance: %w", err)
	}

	now := repo.clock.Now()
	inst = inst.Clone()
	key := inst.Key()

	repo.mu.Lock()
	defer repo.mu.Unlock()

	old, existed := repo.entries[key]
	inst.RegistrationTimestamp = now
	if existed {
		prev = old.instance
		inst.RegistrationTimestamp = old.instance.RegistrationTimestamp
	}
	inst.LastRenewalTimestamp = now

	repo.put(inst, now)
	ver := repo.nextVersion(key, now, false)
	repo.sink.Publish(model.PeerEvent{
		Type:            model.EventRegister,
		Instance:        inst,
		OriginTimestamp: ver.Timestamp,
		OriginPeerID:    ver.PeerID,
	})

	return prev, existed, nil
}

func (repo *inmemoryRegistry) Deregister(key model.Key) (removed bool, resErr error) {
	defer repo.observe("deregister", time.Now(), &resErr)

	now := repo.clock.Now()

	repo.mu.Lock()
	defer repo.mu.Unlock()

	e, found := repo.entries[key]
	if !found {
		return false, nil
	}

	repo.drop(key, now)
	ver := repo.nextVersion(key, now, true)
	repo.sink.Publish(model.PeerEvent{
		Type:            model.EventDeregister,
		Instance:        e.instance,
		OriginTimestamp: ver.Timestamp,
		OriginPeerID:    ver.PeerID,
	})

	return true, nil
}

func (repo *inmemoryRegistry) Renew(key model.Key) (res model.ServiceInstance, resErr error) {
	defer repo.observe("renew", time.Now(), &resErr)

	now := repo.clock.Now()

	repo.mu.Lock()
	defer repo.mu.Unlock()

	e, found := repo.entries[key]
	if !found {
		return model.ServiceInstance{}, model.NotFoundError{ServiceName: key.ServiceName, InstanceID: key.InstanceID}
	}

	inst := e.instance
	inst.LastRenewalTimestamp = now
	if inst.Status == model.StatusStarting {
		inst.Status = model.StatusUp
	}

	repo.put(inst, now)
	ver := repo.nextVersion(key, now, false)
	repo.sink.Publish(model.PeerEvent{
		Type:            model.EventRenew,
		Instance:        inst,
		OriginTimestamp: ver.Timestamp,
		OriginPeerID:    ver.PeerID,
	})

	return inst, nil
}

func (repo *inmemoryRegistry) SetStatus(key model.Key, status model.Status) (res model.ServiceInstance, resErr error) {
	defer repo.observe("set_status", time.Now(), &resErr)

	if !status.Valid() {
		return model.ServiceInstance{}, model.ValidationError{Field: "status", Reason: "unknown status " + string(status)}
	}

	now := repo.clock.Now()

	repo.mu.Lock()
	defer repo.mu.Unlock()

	e, found := repo.entries[key]
	if !found {
		return model.ServiceInstance{}, model.NotFoundError{ServiceName: key.ServiceName, InstanceID: key.InstanceID}
	}

	inst := e.instance
	inst.Status = status

	repo.put(inst, now)
	ver := repo.nextVersion(key, now, false)
	repo.sink.Publish(model.PeerEvent{
		Type:            model.EventRegister,
		Instance:        inst,
		OriginTimestamp: ver.Timestamp,
		OriginPeerID:    ver.PeerID,
	})

	return inst, nil
}

func (repo *inmemoryRegistry) ExpireIfStale(
	key model.Key,
	now time.Time,
) (expired model.ServiceInstance, removed bool, resErr error) {
	defer repo.observe("expire", time.Now(), &resErr)

	repo.mu.Lock()
	defer repo.mu.Unlock()

	e, found := repo.entries[key]
	if !found || !e.lease.Expired(now) {
		return model.ServiceInstance{}, false, nil
	}

	repo.drop(key, now)
	ver := repo.expiryVersion(key, e, now)
	repo.sink.Publish(model.PeerEvent{
		Type:            model.EventExpire,
		Instance:        e.instance,
		OriginTimestamp: ver.Timestamp,
		OriginPeerID:    ver.PeerID,
	})

	return e.instance, true, nil
}

func (repo *inmemoryRegistry) Apply(ev model.PeerEvent) (applied bool, resErr error) {
	defer repo.observe("apply", time.Now(), &resErr)

	if err := ev.Validate(); err != nil {
		return false, fmt.Errorf("validating event: %w", err)
	}

	now := repo.clock.Now()
	key := ev.Key()
	incoming := ev.Version()

	repo.mu.Lock()
	defer repo.mu.Unlock()

	if cur, found := repo.versions[key]; found && !repo.resolver.Wins(incoming, cur.Version) {
		repo.metrics.staleEventsCnt.Inc()
		return false, nil
	}

	if ev.Type.Removes() {
		if _, found := repo.entries[key]; found {
			repo.drop(key, now)
		}
	} else {
		ev.Instance = ev.Instance.Clone()
		if ev.Instance.LeaseDuration == 0 {
			ev.Instance.LeaseDuration = repo.defaultLeaseDuration
		}
		repo.put(ev.Instance, now)
	}

	repo.versions[key] = versionEntry{Version: incoming, recordedAt: now}
	repo.sink.Publish(ev)

	return true, nil
}

func (repo *inmemoryRegistry) Restore(records []model.InstanceRecord) (resErr error) {
	defer repo.observe("restore", time.Now(), &resErr)

	now := repo.clock.Now()

	repo.mu.Lock()
	defer repo.mu.Unlock()

	for _, rec := range records {
		if err := rec.Instance.Validate(); err != nil {
			return fmt.Errorf("validating restored instance %s: %w", rec.Instance.Key(), err)
		}

		key := rec.Instance.Key()
		if cur, found := repo.versions[key]; found && !repo.resolver.Wins(rec.Version, cur.Version) {
			continue
		}

		repo.put(rec.Instance.Clone(), now)
		repo.entries[key].restored = true
		repo.versions[key] = versionEntry{Version: rec.Version, recordedAt: now}
	}

	return nil
}

func (repo *inmemoryRegistry) PruneTombstones(olderThan time.Time) int {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	pruned := 0
	for key, ver := range repo.versions {
		if ver.Deleted && ver.recordedAt.Before(olderThan) {
			delete(repo.versions, key)
			pruned++
		}
	}
	return pruned
}

// put must be called with mu held.
func (repo *inmemoryRegistry) put(inst model.ServiceInstance, now time.Time) {
	repo.entries[inst.Key()] = &entry{instance: inst, lease: inst.Lease()}
	repo.snapshot.Store(repo.snapshot.Load().WithInstance(inst, now))
}

// drop must be called with mu held.
func (repo *inmemoryRegistry) drop(key model.Key, now time.Time) {
	delete(repo.entries, key)
	repo.snapshot.Store(repo.snapshot.Load().Without(key, now))
}

// nextVersion records a local write of key.
// The version is strictly later than any version seen for key,
// so peers never discard it as stale even under clock skew.
func (repo *inmemoryRegistry) nextVersion(key model.Key, now time.Time, deleted bool) model.Version {
	ts := now
	if cur, found := repo.versions[key]; found && !ts.After(cur.Timestamp) {
		ts = cur.Timestamp.Add(time.Nanosecond)
	}

	ver := model.Version{Timestamp: ts, PeerID: repo.peerID, Deleted: deleted}
	repo.versions[key] = versionEntry{Version: ver, recordedAt: now}
	return ver
}

// expiryVersion versions the removal of e.
// Expiry of an entry untouched since restore reuses the restored version,
// so peers holding a fresher one skip it.
func (repo *inmemoryRegistry) expiryVersion(key model.Key, e *entry, now time.Time) model.Version {
	cur, found := repo.versions[key]
	if !e.restored || !found {
		return repo.nextVersion(key, now, true)
	}

	ver := model.Version{Timestamp: cur.Timestamp, PeerID: cur.PeerID, Deleted: true}
	repo.versions[key] = versionEntry{Version: ver, recordedAt: now}
	return ver
}

func (repo *inmemoryRegistry) tombstonesCount() int {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	cnt := 0
	for _, ver := range repo.versions {
		if ver.Deleted {
			cnt++
		}
	}
	return cnt
}

func (repo *inmemoryRegistry) observe(op string, ts time.Time, resErr *error) {
	repo.metrics.requestsCnt.WithLabelValues(op).Inc()
	repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))

	switch *resErr {
	case nil:
		repo.metrics.successProcessCnt.Inc()
	default:
		repo.metrics.errProcessCnt.Inc()
	}
}
