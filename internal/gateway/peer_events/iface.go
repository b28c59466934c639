package peer_events

import (
	"context"

	"github.com/horockey/eureka/internal/model"
)

type Gateway interface {
	model.MetricsProvider
	// Send pushes a batch of events to the peer at peerURL.
	Send(ctx context.Context, peerURL string, events []model.PeerEvent) error
}
