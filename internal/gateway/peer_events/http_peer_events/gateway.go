package http_peer_events

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	controller_dto "github.com/horockey/eureka/internal/controller/http_controller/dto"
	"github.com/horockey/eureka/internal/gateway/peer_events"
	"github.com/horockey/eureka/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var _ peer_events.Gateway = &httpPeerEvents{}

type httpPeerEvents struct {
	cl       *resty.Client
	attempts int
	metrics  *metrics
	logger   zerolog.Logger
}

// New creates gateway that makes up to attempts tries per batch,
// backing off exponentially from minWait up to maxWait between them.
func New(
	apiKey string,
	attempts int,
	minWait time.Duration,
	maxWait time.Duration,
	logger zerolog.Logger,
) *httpPeerEvents {
	if attempts < 1 {
		attempts = 1
	}

	return &httpPeerEvents{
		attempts: attempts,
		metrics:  newMetrics(),
		logger:   logger,
		cl: resty.New().
			SetHeader("X-Api-Key", apiKey).
			SetRetryCount(attempts - 1).
			SetRetryWaitTime(minWait).
			SetRetryMaxWaitTime(maxWait).
			AddRetryCondition(func(resp *resty.Response, err error) bool {
				return err != nil || resp.StatusCode() >= http.StatusInternalServerError
			}),
	}
}

func (gw *httpPeerEvents) Metrics() []prometheus.Collector {
	return gw.metrics.list()
}

func (gw *httpPeerEvents) Send(
	ctx context.Context,
	peerURL string,
	events []model.PeerEvent,
) (resErr error) {
	gw.logger.Debug().Str("peer", peerURL).Int("events", len(events)).Msg("sending events to peer")
	defer func(ts time.Time) {
		gw.metrics.requestsCnt.Inc()
		gw.metrics.eventsCnt.Add(float64(len(events)))
		gw.metrics.handleTimeHist.Observe(float64(time.Since(ts)))

		switch resErr {
		case nil:
			gw.metrics.successProcessCnt.Inc()
		default:
			gw.metrics.errProcessCnt.Inc()
		}
	}(time.Now())

	body, err := controller_dto.NewPeerEventsRequest(events)
	if err != nil {
		return fmt.Errorf("converting model events to dto: %w", err)
	}

	resp, err := gw.cl.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(strings.TrimRight(peerURL, "/") + "/peer/events")
	if err != nil {
		return model.ReplicationTransientError{
			Peer:     peerURL,
			Attempts: gw.attempts,
			Err:      fmt.Errorf("executing request: %w", err),
		}
	}
	switch {
	case resp.StatusCode() == http.StatusOK:
		break
	case resp.StatusCode() >= http.StatusInternalServerError:
		return model.ReplicationTransientError{
			Peer:     peerURL,
			Attempts: gw.attempts,
			Err:      fmt.Errorf("got non-ok response (%s): %s", resp.Status(), resp.String()),
		}
	default:
		return fmt.Errorf("got non-ok response (%s): %s", resp.Status(), resp.String())
	}

	res := controller_dto.PeerEventsResponse{}
	if err := json.Unmarshal(resp.Body(), &res); err != nil {
		return fmt.Errorf("unmarshaling json: %w", err)
	}
	if res.Malformed > 0 {
		gw.logger.
			Warn().
			Str("peer", peerURL).
			Int("malformed", res.Malformed).
			Msg("peer rejected malformed events")
	}

	return nil
}
