package gossip_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/horockey/eureka/internal/gossip"
	"github.com/horockey/eureka/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	peerA = "http://node-a:8761"
	peerB = "http://node-b:8761"
	peerC = "http://node-c:8761"
)

func ev(typ model.EventType, id, origin string) model.PeerEvent {
	ts := time.Unix(1_700_000_000, 0)
	return model.PeerEvent{
		Type: typ,
		Instance: model.ServiceInstance{
			ServiceName:           "orders-api",
			InstanceID:            id,
			Host:                  "10.0.0.5",
			Port:                  8080,
			Status:                model.StatusUp,
			LeaseDuration:         90 * time.Second,
			RegistrationTimestamp: ts,
			LastRenewalTimestamp:  ts,
		},
		OriginTimestamp: ts,
		OriginPeerID:    origin,
	}
}

func run(t *testing.T, r *gossip.Replicator) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func Test_Replicator_FansOutLocalEvents(t *testing.T) {
	gw := newFakeGateway()
	disc := model.StaticDiscovery{{ID: "node-a", URL: peerA}, {ID: "node-b", URL: peerB}, {ID: "node-c", URL: peerC}}
	r := gossip.New("node-a", "", disc, gw, nil, 16, 100, zerolog.Nop())
	run(t, r)

	r.Publish(ev(model.EventRegister, "i1", "node-a"))
	r.Publish(ev(model.EventRenew, "i1", "node-a"))

	require.Eventually(t, func() bool {
		return gw.count(peerB) == 2 && gw.count(peerC) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, gw.count(peerA))
}

func Test_Replicator_NeverRegossipsPeerEvents(t *testing.T) {
	gw := newFakeGateway()
	jr := newFakeJournal()
	disc := model.StaticDiscovery{{ID: "node-b", URL: peerB}}
	r := gossip.New("node-a", "", disc, gw, jr, 16, 100, zerolog.Nop())
	run(t, r)

	r.Publish(ev(model.EventRegister, "from-peer", "node-b"))
	r.Publish(ev(model.EventRegister, "local", "node-a"))

	require.Eventually(t, func() bool {
		return gw.count(peerB) == 1 && jr.len() == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "local", gw.sent(peerB)[0].Instance.InstanceID)
}

func Test_Replicator_MirrorsIntoJournal(t *testing.T) {
	jr := newFakeJournal()
	r := gossip.New("node-a", "", model.StaticDiscovery{}, newFakeGateway(), jr, 16, 100, zerolog.Nop())
	run(t, r)

	r.Publish(ev(model.EventRegister, "i1", "node-a"))
	r.Publish(ev(model.EventRegister, "i2", "node-b"))
	r.Publish(ev(model.EventExpire, "i1", "node-a"))

	require.Eventually(t, func() bool {
		return jr.len() == 1
	}, time.Second, 5*time.Millisecond)
	assert.True(t, jr.has("orders-api/i2"))
}

func Test_Replicator_FollowsDiscovery(t *testing.T) {
	gw := newFakeGateway()
	disc := &mutableDiscovery{peers: []model.Peer{{ID: "node-b", URL: peerB}}}
	r := gossip.New("node-a", "", disc, gw, nil, 16, 100, zerolog.Nop())
	run(t, r)

	r.Publish(ev(model.EventRegister, "i1", "node-a"))
	require.Eventually(t, func() bool { return gw.count(peerB) == 1 }, time.Second, 5*time.Millisecond)

	disc.set([]model.Peer{{ID: "node-c", URL: peerC}})
	r.Publish(ev(model.EventRegister, "i2", "node-a"))
	require.Eventually(t, func() bool { return gw.count(peerC) == 1 }, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, gw.count(peerB))
}

func Test_Replicator_DiscoveryFailureKeepsPeers(t *testing.T) {
	gw := newFakeGateway()
	disc := &mutableDiscovery{peers: []model.Peer{{ID: "node-b", URL: peerB}}}
	r := gossip.New("node-a", "", disc, gw, nil, 16, 100, zerolog.Nop())
	run(t, r)

	r.Publish(ev(model.EventRegister, "i1", "node-a"))
	require.Eventually(t, func() bool { return gw.count(peerB) == 1 }, time.Second, 5*time.Millisecond)

	disc.fail(errors.New("discovery is down"))
	r.Publish(ev(model.EventRegister, "i2", "node-a"))
	require.Eventually(t, func() bool { return gw.count(peerB) == 2 }, time.Second, 5*time.Millisecond)
}

func Test_Replicator_SlowPeerDoesNotDelayOthers(t *testing.T) {
	gw := newFakeGateway()
	gw.block(peerB)
	disc := model.StaticDiscovery{{ID: "node-b", URL: peerB}, {ID: "node-c", URL: peerC}}
	r := gossip.New("node-a", "", disc, gw, nil, 16, 1, zerolog.Nop())
	run(t, r)

	for _, id := range []string{"i1", "i2", "i3", "i4"} {
		r.Publish(ev(model.EventRegister, id, "node-a"))
	}

	require.Eventually(t, func() bool { return gw.count(peerC) == 4 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, gw.count(peerB))
	gw.unblock(peerB)
}

func Test_Replicator_DropsOnQueueOverflow(t *testing.T) {
	gw := newFakeGateway()
	gw.block(peerB)
	r := gossip.New("node-a", "", model.StaticDiscovery{{ID: "node-b", URL: peerB}}, gw, nil, 1, 1, zerolog.Nop())
	run(t, r)

	for _, id := range []string{"i1", "i2", "i3", "i4"} {
		r.Publish(ev(model.EventRegister, id, "node-a"))
	}
	time.Sleep(50 * time.Millisecond)
	gw.unblock(peerB)

	require.Eventually(t, func() bool { return gw.count(peerB) >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, gw.count(peerB), 2)
}

func Test_Replicator_Metrics(t *testing.T) {
	r := gossip.New("node-a", "", model.StaticDiscovery{}, newFakeGateway(), nil, 1, 1, zerolog.Nop())

	reg := prometheus.NewRegistry()
	for _, c := range r.Metrics() {
		require.NoError(t, reg.Register(c))
	}
}

type fakeGateway struct {
	mu      sync.Mutex
	events  map[string][]model.PeerEvent
	blocked map[string]chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		events:  map[string][]model.PeerEvent{},
		blocked: map[string]chan struct{}{},
	}
}

func (gw *fakeGateway) Metrics() []prometheus.Collector {
	return nil
}

func (gw *fakeGateway) Send(ctx context.Context, peerURL string, events []model.PeerEvent) error {
	gw.mu.Lock()
	gate, blocked := gw.blocked[peerURL]
	gw.mu.Unlock()

	if blocked {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.events[peerURL] = append(gw.events[peerURL], events...)
	return nil
}

func (gw *fakeGateway) block(peerURL string) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.blocked[peerURL] = make(chan struct{})
}

func (gw *fakeGateway) unblock(peerURL string) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	close(gw.blocked[peerURL])
}

func (gw *fakeGateway) count(peerURL string) int {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return len(gw.events[peerURL])
}

func (gw *fakeGateway) sent(peerURL string) []model.PeerEvent {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return append([]model.PeerEvent(nil), gw.events[peerURL]...)
}

type fakeJournal struct {
	mu      sync.Mutex
	records map[string]model.InstanceRecord
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{records: map[string]model.InstanceRecord{}}
}

func (jr *fakeJournal) Metrics() []prometheus.Collector {
	return nil
}

func (jr *fakeJournal) Save(rec model.InstanceRecord) error {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	jr.records[rec.Instance.Key().String()] = rec
	return nil
}

func (jr *fakeJournal) Delete(key model.Key) error {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	delete(jr.records, key.String())
	return nil
}

func (jr *fakeJournal) LoadAll() ([]model.InstanceRecord, error) {
	return nil, nil
}

func (jr *fakeJournal) len() int {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	return len(jr.records)
}

func (jr *fakeJournal) has(key string) bool {
	jr.mu.Lock()
	defer jr.mu.Unlock()
	_, found := jr.records[key]
	return found
}

type mutableDiscovery struct {
	mu    sync.Mutex
	peers []model.Peer
	err   error
}

func (d *mutableDiscovery) GetPeers(context.Context) ([]model.Peer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peers, d.err
}

func (d *mutableDiscovery) set(peers []model.Peer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peers = peers
	d.err = nil
}

func (d *mutableDiscovery) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func Test_Replicator_SkipsOwnURL(t *testing.T) {
	gw := newFakeGateway()
	disc := model.StaticDiscovery{{ID: peerA, URL: peerA + "/"}, {ID: peerB, URL: peerB}}
	r := gossip.New("host-a", peerA, disc, gw, nil, 16, 100, zerolog.Nop())
	run(t, r)

	r.Publish(ev(model.EventRegister, "i1", "host-a"))

	require.Eventually(t, func() bool { return gw.count(peerB) == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, gw.count(peerA))
	assert.Zero(t, gw.count(peerA+"/"))
}
