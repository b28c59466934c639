package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/horockey/eureka/internal/lease"
	"github.com/horockey/eureka/internal/model"
	"github.com/horockey/eureka/internal/query"
	"github.com/horockey/eureka/internal/repository/journal"
	"github.com/horockey/eureka/internal/repository/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Runner is a background component stopped by context cancellation.
type Runner interface {
	Start(ctx context.Context) error
}

type Processor struct {
	repo       registry.Repository
	leases     *lease.Manager
	query      *query.Engine
	replicator Runner
	journal    journal.Journal
	Logger     zerolog.Logger
	metrics    *metrics
}

type ApplyResult struct {
	Applied   int
	Skipped   int
	Malformed int
}

// New creates processor. Nil journal disables restore on start.
func New(
	repo registry.Repository,
	leases *lease.Manager,
	qe *query.Engine,
	replicator Runner,
	jr journal.Journal,
	logger zerolog.Logger,
) *Processor {
	return &Processor{
		repo:       repo,
		leases:     leases,
		query:      qe,
		replicator: replicator,
		journal:    jr,
		Logger:     logger,
		metrics:    newMetrics(),
	}
}

func (pr *Processor) Metrics() []prometheus.Collector {
	return pr.metrics.list()
}

// Start restores journaled instances and runs the sweep and replication loops.
func (pr *Processor) Start(ctx context.Context) error {
	if err := pr.restore(); err != nil {
		return fmt.Errorf("restoring from journal: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		runErr error
	)
	fail := func(err error) {
		pr.Logger.Error().Err(err).Send()

		errMu.Lock()
		runErr = errors.Join(runErr, err)
		errMu.Unlock()
		cancel()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pr.leases.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			fail(fmt.Errorf("running lease manager: %w", err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pr.replicator.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			fail(fmt.Errorf("running replicator: %w", err))
		}
	}()

	<-runCtx.Done()
	wg.Wait()

	if runErr != nil {
		return runErr
	}
	return fmt.Errorf("running context: %w", ctx.Err())
}

func (pr *Processor) restore() error {
	if pr.journal == nil {
		return nil
	}

	records, err := pr.journal.LoadAll()
	if err != nil {
		return fmt.Errorf("loading records: %w", err)
	}
	if err := pr.repo.Restore(records); err != nil {
		return fmt.Errorf("restoring repo: %w", err)
	}

	pr.Logger.Info().Int("instances", len(records)).Msg("registry restored from journal")
	return nil
}

// Register stores inst, generating an instance id when it is empty.
// Returns the registered instance key.
func (pr *Processor) Register(inst model.ServiceInstance) (model.Key, error) {
	defer pr.observe("register", time.Now())

	if inst.InstanceID == "" {
		inst.InstanceID = uuid.NewString()
	}

	_, existed, err := pr.repo.Register(inst)
	if err != nil {
		return model.Key{}, fmt.Errorf("registering in repo: %w", err)
	}

	pr.Logger.
		Info().
		Str("service", inst.ServiceName).
		Str("instance", inst.InstanceID).
		Bool("overwrite", existed).
		Msg("instance registered")

	return inst.Key(), nil
}

// Deregister removes the instance. Absent instance is not an error.
func (pr *Processor) Deregister(key model.Key) error {
	defer pr.observe("deregister", time.Now())

	removed, err := pr.repo.Deregister(key)
	if err != nil {
		return fmt.Errorf("deregistering in repo: %w", err)
	}
	if removed {
		pr.Logger.
			Info().
			Str("service", key.ServiceName).
			Str("instance", key.InstanceID).
			Msg("instance deregistered")
	}

	return nil
}

func (pr *Processor) Renew(key model.Key) (model.ServiceInstance, error) {
	defer pr.observe("renew", time.Now())

	inst, err := pr.leases.Renew(key)
	if err != nil {
		return model.ServiceInstance{}, fmt.Errorf("renewing lease: %w", err)
	}
	return inst, nil
}

func (pr *Processor) SetStatus(key model.Key, status model.Status) (model.ServiceInstance, error) {
	defer pr.observe("set_status", time.Now())

	inst, err := pr.repo.SetStatus(key, status)
	if err != nil {
		return model.ServiceInstance{}, fmt.Errorf("setting status in repo: %w", err)
	}

	pr.Logger.
		Info().
		Str("service", key.ServiceName).
		Str("instance", key.InstanceID).
		Str("status", string(status)).
		Msg("instance status changed")

	return inst, nil
}

func (pr *Processor) InstancesByService(serviceName string) []model.ServiceInstance {
	return pr.query.InstancesByService(serviceName)
}

func (pr *Processor) Instance(key model.Key) (model.ServiceInstance, error) {
	return pr.query.Instance(key)
}

func (pr *Processor) Services() []string {
	return pr.query.Services()
}

func (pr *Processor) All() map[string][]model.ServiceInstance {
	return pr.query.All()
}

// Sweep runs one expiry pass out of schedule.
func (pr *Processor) Sweep() lease.SweepResult {
	return pr.leases.Sweep()
}

// ApplyPeerEvents applies events received from a peer in order.
// Invalid events are logged and counted as malformed.
func (pr *Processor) ApplyPeerEvents(events []model.PeerEvent) ApplyResult {
	defer pr.observe("apply_peer_events", time.Now())

	res := ApplyResult{}
	for _, ev := range events {
		applied, err := pr.repo.Apply(ev)
		switch {
		case err != nil:
			res.Malformed++
			pr.Logger.
				Warn().
				Err(fmt.Errorf("applying peer event: %w", err)).
				Str("origin", ev.OriginPeerID).
				Msg("skipping malformed peer event")
		case applied:
			res.Applied++
		default:
			res.Skipped++
		}
	}

	pr.metrics.peerEventsCnt.WithLabelValues("applied").Add(float64(res.Applied))
	pr.metrics.peerEventsCnt.WithLabelValues("skipped").Add(float64(res.Skipped))
	pr.metrics.peerEventsCnt.WithLabelValues("malformed").Add(float64(res.Malformed))

	return res
}

func (pr *Processor) observe(op string, ts time.Time) {
	pr.metrics.handleTimeHist.WithLabelValues(op).Observe(float64(time.Since(ts)))
}
