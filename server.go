package eureka

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/horockey/eureka/internal/controller/http_controller"
	"github.com/horockey/eureka/internal/gateway/peer_events"
	"github.com/horockey/eureka/internal/gateway/peer_events/http_peer_events"
	"github.com/horockey/eureka/internal/gossip"
	"github.com/horockey/eureka/internal/lease"
	"github.com/horockey/eureka/internal/model"
	"github.com/horockey/eureka/internal/processor"
	"github.com/horockey/eureka/internal/query"
	"github.com/horockey/eureka/internal/repository/journal"
	"github.com/horockey/eureka/internal/repository/journal/badger_journal"
	"github.com/horockey/eureka/internal/repository/registry"
	"github.com/horockey/eureka/internal/repository/registry/inmemory_registry"
	"github.com/horockey/go-toolbox/options"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type Server struct {
	*processor.Processor
	repo       registry.Repository
	leases     *lease.Manager
	query      *query.Engine
	replicator *gossip.Replicator
	gateway    peer_events.Gateway
	journal    journal.Journal
	db         *badger.DB
	ctrl       Controller
}

type createServerParams struct {
	badgerDir     string
	advertisedURL string
	servicePort   int
	leaseDuration time.Duration
	sweepInterval time.Duration
	tombstonesTTL time.Duration
	includeNonUp  bool
	resolver      ConflictResolver
	clock         Clock
	logger        zerolog.Logger

	sendAttempts  int
	retryMinWait  time.Duration
	retryMaxWait  time.Duration
	peerQueueSize int
	batchSize     int

	gateway    peer_events.Gateway
	controller Controller
}

func defaultCreateServerParams() createServerParams {
	return createServerParams{
		servicePort:   8761,             //nolint: mnd
		leaseDuration: time.Second * 90, //nolint: mnd
		sweepInterval: time.Second * 30, //nolint: mnd
		tombstonesTTL: time.Hour * 24,   //nolint: mnd
		sendAttempts:  5,                //nolint: mnd
		retryMinWait:  time.Millisecond * 100,
		retryMaxWait:  time.Second * 5, //nolint: mnd
		peerQueueSize: 256,             //nolint: mnd
		batchSize:     100,             //nolint: mnd
		resolver:      model.ConflictResolverFunc(model.LastWriteWins),
		clock:         model.SystemClock{},
		logger: zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().
			Timestamp().
			Str("scope", "eureka_server").
			Logger(),
	}
}

// NewServer assembles a registry node identified by peerID.
// apiKey guards the HTTP API and is sent to peers; empty disables auth.
func NewServer(
	apiKey string,
	peerID string,
	discovery Discovery,
	opts ...options.Option[createServerParams],
) (*Server, error) {
	if peerID == "" {
		return nil, errors.New("got empty peer id")
	}
	if discovery == nil {
		return nil, errors.New("got nil discovery")
	}

	params := defaultCreateServerParams()
	if err := options.ApplyOptions(&params, opts...); err != nil {
		return nil, fmt.Errorf("applying opts: %w", err)
	}

	srv := Server{}

	if params.badgerDir != "" {
		db, err := badger.Open(
			badger.DefaultOptions(params.badgerDir).
				WithLogger(badger_journal.NewLogger(params.logger.With().Str("subscope", "badger").Logger())),
		)
		if err != nil {
			return nil, fmt.Errorf("opening badger db: %w", err)
		}
		srv.db = db
		srv.journal = badger_journal.New(db)
	}

	if params.gateway == nil {
		params.gateway = http_peer_events.New(
			apiKey,
			params.sendAttempts,
			params.retryMinWait,
			params.retryMaxWait,
			params.logger.With().Str("subscope", "peer_events_gateway").Logger(),
		)
	}
	srv.gateway = params.gateway

	srv.replicator = gossip.New(
		peerID,
		params.advertisedURL,
		discovery,
		srv.gateway,
		srv.journal,
		params.peerQueueSize,
		params.batchSize,
		params.logger.With().Str("subscope", "gossip").Logger(),
	)

	srv.repo = inmemory_registry.New(
		peerID,
		params.leaseDuration,
		params.clock,
		srv.replicator,
		params.resolver,
	)

	srv.leases = lease.New(
		srv.repo,
		params.clock,
		params.sweepInterval,
		params.tombstonesTTL,
		params.logger.With().Str("subscope", "lease_manager").Logger(),
	)

	srv.query = query.New(srv.repo, params.includeNonUp)

	if params.controller == nil {
		params.controller = http_controller.New(
			"0.0.0.0:"+strconv.Itoa(params.servicePort),
			apiKey,
			params.logger.With().Str("subscope", "http_controller").Logger(),
		)
	}
	srv.ctrl = params.controller

	srv.Processor = processor.New(
		srv.repo,
		srv.leases,
		srv.query,
		srv.replicator,
		srv.journal,
		params.logger,
	)

	return &srv, nil
}

// Start serves the API and runs background loops until ctx is done.
// The journal is closed on return.
func (srv *Server) Start(ctx context.Context) (resErr error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer func() {
		if srv.db == nil {
			return
		}
		if err := srv.db.Close(); err != nil {
			resErr = errors.Join(resErr, fmt.Errorf("closing badger db: %w", err))
		}
	}()

	var (
		wg     sync.WaitGroup
		errMu  sync.Mutex
		runErr error
	)
	fail := func(err error) {
		srv.Logger.Error().Err(err).Send()

		errMu.Lock()
		runErr = errors.Join(runErr, err)
		errMu.Unlock()
		cancel()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.ctrl.Start(runCtx, srv.Processor); err != nil && !errors.Is(err, context.Canceled) {
			fail(fmt.Errorf("running http controller: %w", err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Processor.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			fail(fmt.Errorf("running processor: %w", err))
		}
	}()

	<-runCtx.Done()
	wg.Wait()

	// component failures win over the cancellation they caused
	if runErr != nil {
		return runErr
	}
	return fmt.Errorf("running context: %w", ctx.Err())
}

func (srv *Server) Metrics() []prometheus.Collector {
	res := slices.Concat(
		srv.ctrl.Metrics(),
		srv.Processor.Metrics(),
		srv.repo.Metrics(),
		srv.leases.Metrics(),
		srv.query.Metrics(),
		srv.replicator.Metrics(),
		srv.gateway.Metrics(),
	)
	if srv.journal != nil {
		res = append(res, srv.journal.Metrics()...)
	}
	return res
}
