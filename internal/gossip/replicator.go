package gossip

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/horockey/eureka/internal/gateway/peer_events"
	"github.com/horockey/eureka/internal/model"
	"github.com/horockey/eureka/internal/repository/journal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var _ model.EventSink = &Replicator{}

type Replicator struct {
	peerID    string
	selfURL   string
	discovery model.Discovery
	gateway   peer_events.Gateway
	journal   journal.Journal
	queueSize int
	batchSize int
	logger    zerolog.Logger
	metrics   *metrics

	mu     sync.Mutex
	outbox []model.PeerEvent
	signal chan struct{}

	// owned by the dispatch loop
	senders map[string]*sender
}

// New creates replicator. Nil journal disables persistence.
// Peers whose id equals peerID or whose URL equals selfURL are skipped.
func New(
	peerID string,
	selfURL string,
	discovery model.Discovery,
	gateway peer_events.Gateway,
	jr journal.Journal,
	queueSize int,
	batchSize int,
	logger zerolog.Logger,
) *Replicator {
	r := Replicator{
		peerID:    peerID,
		selfURL:   normalizeURL(selfURL),
		discovery: discovery,
		gateway:   gateway,
		journal:   jr,
		queueSize: max(queueSize, 1),
		batchSize: max(batchSize, 1),
		logger:    logger,
		signal:    make(chan struct{}, 1),
		senders:   map[string]*sender{},
	}
	r.metrics = newMetrics(&r)
	return &r
}

func (r *Replicator) Metrics() []prometheus.Collector {
	return r.metrics.list()
}

// Publish queues event and returns immediately.
func (r *Replicator) Publish(ev model.PeerEvent) {
	r.mu.Lock()
	r.outbox = append(r.outbox, ev)
	r.mu.Unlock()

	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Start dispatches queued events until ctx is done.
// Events still queued on shutdown are abandoned.
func (r *Replicator) Start(ctx context.Context) error {
	var wg sync.WaitGroup
	defer func() {
		for url, s := range r.senders {
			s.cancel()
			delete(r.senders, url)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("running context: %w", ctx.Err())
		case <-r.signal:
			r.dispatch(ctx, &wg)
		}
	}
}

func (r *Replicator) drain() []model.PeerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := r.outbox
	r.outbox = nil
	return events
}

func (r *Replicator) outboxLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.outbox)
}

func (r *Replicator) dispatch(ctx context.Context, wg *sync.WaitGroup) {
	events := r.drain()
	if len(events) == 0 {
		return
	}

	for _, ev := range events {
		r.persist(ev)
	}

	// peer events are applied locally but never re-gossiped
	local := lo.Filter(events, func(ev model.PeerEvent, _ int) bool {
		return ev.OriginPeerID == r.peerID
	})
	if len(local) == 0 {
		return
	}

	r.refreshPeers(ctx, wg)

	for _, batch := range lo.Chunk(local, r.batchSize) {
		for _, s := range r.senders {
			if !s.enqueue(batch) {
				r.metrics.droppedBatchesCnt.Inc()
				r.logger.
					Warn().
					Str("peer", s.peer.URL).
					Int("events", len(batch)).
					Msg("peer queue is full, dropping batch")
			}
		}
	}
}

func (r *Replicator) persist(ev model.PeerEvent) {
	if r.journal == nil {
		return
	}

	var err error
	switch {
	case ev.Type.Removes():
		err = r.journal.Delete(ev.Key())
	default:
		err = r.journal.Save(model.InstanceRecord{Instance: ev.Instance, Version: ev.Version()})
	}
	if err != nil {
		r.logger.
			Error().
			Err(fmt.Errorf("writing %s event for %s to journal: %w", ev.Type, ev.Key(), err)).
			Send()
	}
}

// refreshPeers keeps one sender per discovered peer.
// On discovery failure the previous peer set is kept.
func (r *Replicator) refreshPeers(ctx context.Context, wg *sync.WaitGroup) {
	peers, err := r.discovery.GetPeers(ctx)
	if err != nil {
		r.logger.
			Error().
			Err(fmt.Errorf("getting peers from discovery: %w", err)).
			Send()
		return
	}

	actual := lo.SliceToMap(
		lo.Filter(peers, func(p model.Peer, _ int) bool {
			url := normalizeURL(p.URL)
			return p.ID != r.peerID && url != "" && url != r.selfURL
		}),
		func(p model.Peer) (string, model.Peer) {
			return p.URL, p
		},
	)

	for url, s := range r.senders {
		if _, found := actual[url]; !found {
			r.logger.Info().Str("peer", url).Msg("peer left, stopping sender")
			s.cancel()
			delete(r.senders, url)
		}
	}

	for url, p := range actual {
		if _, found := r.senders[url]; found {
			continue
		}

		r.logger.Info().Str("peer", url).Msg("peer joined, starting sender")
		sCtx, cancel := context.WithCancel(ctx)
		s := &sender{
			peer:    p,
			queue:   make(chan []model.PeerEvent, r.queueSize),
			cancel:  cancel,
			gateway: r.gateway,
			metrics: r.metrics,
			logger:  r.logger.With().Str("peer", url).Logger(),
		}
		r.senders[url] = s

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.run(sCtx)
		}()
	}
}

func normalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

type sender struct {
	peer    model.Peer
	queue   chan []model.PeerEvent
	cancel  context.CancelFunc
	gateway peer_events.Gateway
	metrics *metrics
	logger  zerolog.Logger
}

func (s *sender) enqueue(batch []model.PeerEvent) bool {
	select {
	case s.queue <- batch:
		return true
	default:
		return false
	}
}

func (s *sender) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-s.queue:
			ts := time.Now()
			if err := s.gateway.Send(ctx, s.peer.URL, batch); err != nil {
				s.metrics.droppedBatchesCnt.Inc()
				s.logger.
					Warn().
					Err(fmt.Errorf("sending batch: %w", err)).
					Int("events", len(batch)).
					Msg("dropping batch")
				continue
			}
			s.metrics.sentEventsCnt.Add(float64(len(batch)))
			s.metrics.sendTimeHist.Observe(float64(time.Since(ts)))
		}
	}
}
