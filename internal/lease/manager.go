package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/horockey/eureka/internal/model"
	"github.com/horockey/eureka/internal/repository/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type Manager struct {
	repo          registry.Repository
	clock         model.Clock
	interval      time.Duration
	tombstonesTTL time.Duration
	logger        zerolog.Logger
	metrics       *metrics

	// sweeps never overlap, whoever triggers them
	sweepMu sync.Mutex
}

type SweepResult struct {
	Expired          []model.ServiceInstance
	Failed           int
	PrunedTombstones int
}

func New(
	repo registry.Repository,
	clock model.Clock,
	interval time.Duration,
	tombstonesTTL time.Duration,
	logger zerolog.Logger,
) *Manager {
	return &Manager{
		repo:          repo,
		clock:         clock,
		interval:      interval,
		tombstonesTTL: tombstonesTTL,
		logger:        logger,
		metrics:       newMetrics(),
	}
}

func (m *Manager) Metrics() []prometheus.Collector {
	return m.metrics.list()
}

// Start sweeps every interval until ctx is done.
// The next sweep is scheduled once the previous one has finished,
// so a slow sweep delays the following one instead of skipping it.
func (m *Manager) Start(ctx context.Context) error {
	timer := time.NewTimer(m.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("running context: %w", ctx.Err())
		case <-timer.C:
			res := m.Sweep()
			if len(res.Expired) > 0 || res.Failed > 0 {
				m.logger.
					Info().
					Int("expired", len(res.Expired)).
					Int("failed", res.Failed).
					Int("pruned_tombstones", res.PrunedTombstones).
					Msg("sweep finished")
			}
			timer.Reset(m.interval)
		}
	}
}

// Renew resets the lease of key.
// Returns model.NotFoundError when the instance is gone and must re-register.
func (m *Manager) Renew(key model.Key) (model.ServiceInstance, error) {
	inst, err := m.repo.Renew(key)
	if err != nil {
		return model.ServiceInstance{}, fmt.Errorf("renewing in repo: %w", err)
	}
	return inst, nil
}

// Sweep expires every instance whose lease ran out.
// Failures are logged per instance and never stop the sweep.
func (m *Manager) Sweep() SweepResult {
	m.sweepMu.Lock()
	defer m.sweepMu.Unlock()

	defer func(ts time.Time) {
		m.metrics.sweepsCnt.Inc()
		m.metrics.sweepTimeHist.Observe(float64(time.Since(ts)))
	}(time.Now())

	now := m.clock.Now()
	res := SweepResult{Expired: []model.ServiceInstance{}}

	candidates := lo.Filter(m.repo.Snapshot().All(), func(el model.ServiceInstance, _ int) bool {
		return el.Lease().Expired(now)
	})

	for _, cand := range candidates {
		inst, removed, err := m.expire(cand.Key(), now)
		if err != nil {
			res.Failed++
			m.metrics.sweepFailuresCnt.Inc()
			m.logger.
				Error().
				Err(fmt.Errorf("expiring %s: %w", cand.Key(), err)).
				Send()
			continue
		}
		if !removed {
			continue
		}

		m.metrics.expiredCnt.Inc()
		m.logger.
			Info().
			Str("service", inst.ServiceName).
			Str("instance", inst.InstanceID).
			Time("last_renewal", inst.LastRenewalTimestamp).
			Msg("lease expired")
		res.Expired = append(res.Expired, inst)
	}

	if m.tombstonesTTL > 0 {
		res.PrunedTombstones = m.repo.PruneTombstones(now.Add(-m.tombstonesTTL))
	}

	return res
}

func (m *Manager) expire(key model.Key, now time.Time) (inst model.ServiceInstance, removed bool, resErr error) {
	defer func() {
		if r := recover(); r != nil {
			resErr = fmt.Errorf("recovered panic: %v", r)
		}
	}()

	return m.repo.ExpireIfStale(key, now)
}
