package eureka

import (
	"errors"
	"fmt"
	"time"

	"github.com/horockey/go-toolbox/options"
	"github.com/rs/zerolog"
)

// Option configures NewServer.
type Option = options.Option[createServerParams]

// Enables durable journal in given badger root dir.
// By default the registry is memory-only.
func WithBadgerDir(dir string) options.Option[createServerParams] {
	return func(target *createServerParams) error {
		if dir == "" {
			return errors.New("got empty badger dir")
		}
		target.badgerDir = dir
		return nil
	}
}

// Sets custom service port.
// Default is 8761.
func WithServicePort(p int) options.Option[createServerParams] {
	return func(target *createServerParams) error {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("port must be in range 1..65535, got: %d", p)
		}
		target.servicePort = p
		return nil
	}
}

// Sets default lease duration for instances registered without one.
// Default is 90s.
func WithLeaseDuration(d time.Duration) options.Option[createServerParams] {
	return func(target *createServerParams) error {
		if d < time.Millisecond {
			return fmt.Errorf("lease duration must be at least 1ms, got: %s", d.String())
		}
		target.leaseDuration = d
		return nil
	}
}

// Sets base URL peers reach this node at.
// Discovered peers with this URL are skipped, so a shared peer list may include the node itself.
func WithAdvertisedURL(u string) options.Option[createServerParams] {
	return func(target *createServerParams) error {
		if u == "" {
			return errors.New("got empty advertised url")
		}
		target.advertisedURL = u
		return nil
	}
}

// Sets custom expiry sweep interval.
// Default is 30s.
func WithSweepInterval(d time.Duration) options.Option[createServerParams] {
	return func(target *createServerParams) error {
		if d <= 0 {
			return fmt.Errorf("sweep interval must be positive, got: %s", d.String())
		}
		target.sweepInterval = d
		return nil
	}
}

// Sets custom tombstone TTL.
// Default is 1 day.
func WithTombstonesTTL(ttl time.Duration) options.Option[createServerParams] {
	return func(target *createServerParams) error {
		if ttl <= 0 {
			return fmt.Errorf("ttl must be positive, got: %s", ttl.String())
		}
		target.tombstonesTTL = ttl
		return nil
	}
}

// Makes service queries return instances in any status.
// By default only UP instances are returned.
func WithIncludeNonUp(include bool) options.Option[createServerParams] {
	return func(target *createServerParams) error {
		target.includeNonUp = include
		return nil
	}
}

// Sets custom conflict resolver for peer events.
// By default the latest origin timestamp wins.
func WithConflictResolver(r ConflictResolver) options.Option[createServerParams] {
	return func(target *createServerParams) error {
		if r == nil {
			return errors.New("got nil conflict resolver")
		}
		target.resolver = r
		return nil
	}
}

// Sets custom clock.
// Default is system clock.
func WithClock(c Clock) options.Option[createServerParams] {
	return func(target *createServerParams) error {
		if c == nil {
			return errors.New("got nil clock")
		}
		target.clock = c
		return nil
	}
}

// Sets custom logger.
// Default is stdout logger.
func WithLogger(l zerolog.Logger) options.Option[createServerParams] {
	return func(target *createServerParams) error {
		target.logger = l
		return nil
	}
}

// Sets peer send retry policy: total attempts per batch
// and bounds of exponential backoff between them.
// Default is 5 attempts, 100ms..5s.
func WithPeerRetry(attempts int, minWait, maxWait time.Duration) options.Option[createServerParams] {
	return func(target *createServerParams) error {
		if attempts <= 0 {
			return fmt.Errorf("attempts must be positive, got: %d", attempts)
		}
		if minWait <= 0 || maxWait < minWait {
			return fmt.Errorf("invalid backoff bounds: %s..%s", minWait.String(), maxWait.String())
		}
		target.sendAttempts = attempts
		target.retryMinWait = minWait
		target.retryMaxWait = maxWait
		return nil
	}
}

// Sets per peer queue capacity and max events per batch.
// Default is 256 batches of up to 100 events.
func WithPeerQueue(queueSize, batchSize int) options.Option[createServerParams] {
	return func(target *createServerParams) error {
		if queueSize <= 0 || batchSize <= 0 {
			return fmt.Errorf("queue and batch sizes must be positive, got: %d, %d", queueSize, batchSize)
		}
		target.peerQueueSize = queueSize
		target.batchSize = batchSize
		return nil
	}
}

// Sets user-defined implementations of peer gateway and coresponding controller.
// Default are HTTP.
//
//	WARNING! Apply this opt only if you know what you are doing.
func WithGatewayAndController(
	gw PeerGateway,
	ctrl Controller,
) options.Option[createServerParams] {
	return func(target *createServerParams) error {
		if gw == nil {
			return errors.New("got nil gateway")
		}
		if ctrl == nil {
			return errors.New("got nil controller")
		}

		target.gateway = gw
		target.controller = ctrl
		return nil
	}
}
