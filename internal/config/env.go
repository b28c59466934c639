package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

type LookupFunc func(key string) (string, bool)

const (
	EnvProfile       = "EUREKA_PROFILE"
	EnvPort          = "EUREKA_PORT"
	EnvMetricsPort   = "EUREKA_METRICS_PORT"
	EnvLeaseDuration = "EUREKA_LEASE_DURATION"
	EnvSweepInterval = "EUREKA_SWEEP_INTERVAL"
	EnvPeers         = "EUREKA_PEERS"
	EnvPeerID        = "EUREKA_PEER_ID"
	EnvAPIKey        = "EUREKA_API_KEY"
	EnvLogLevel      = "EUREKA_LOG_LEVEL"
	EnvDataDir       = "EUREKA_DATA_DIR"
	EnvIncludeNonUp  = "EUREKA_INCLUDE_NON_UP"
	EnvTombstoneTTL  = "EUREKA_TOMBSTONE_TTL"
	EnvAdvertisedURL = "EUREKA_ADVERTISED_URL"
)

// Override records an env variable that replaced a file value.
type Override struct {
	Env   string
	Value string
}

func applyEnv(cfg *Config, lookup LookupFunc) ([]Override, error) {
	var overrides []Override

	bind := func(env string, apply func(raw string) error) error {
		raw, found := lookup(env)
		if !found || raw == "" {
			return nil
		}
		if err := apply(raw); err != nil {
			return fmt.Errorf("parsing %s=%q: %w", env, raw, err)
		}

		val := raw
		if env == EnvAPIKey {
			val = "***"
		}
		overrides = append(overrides, Override{Env: env, Value: val})
		return nil
	}

	bindings := []struct {
		env   string
		apply func(string) error
	}{
		{EnvPort, parseInto(&cfg.Server.Port, strconv.Atoi)},
		{EnvMetricsPort, parseInto(&cfg.Metrics.Port, strconv.Atoi)},
		{EnvLeaseDuration, parseInto(&cfg.Registry.LeaseDuration, time.ParseDuration)},
		{EnvSweepInterval, parseInto(&cfg.Registry.SweepInterval, time.ParseDuration)},
		{EnvTombstoneTTL, parseInto(&cfg.Registry.TombstoneTTL, time.ParseDuration)},
		{EnvIncludeNonUp, parseInto(&cfg.Registry.IncludeNonUp, strconv.ParseBool)},
		{EnvPeers, parseInto(&cfg.Replication.Peers, splitList)},
		{EnvPeerID, parseInto(&cfg.PeerID, identity)},
		{EnvAPIKey, parseInto(&cfg.Server.APIKey, identity)},
		{EnvAdvertisedURL, parseInto(&cfg.Server.AdvertisedURL, identity)},
		{EnvLogLevel, parseInto(&cfg.Log.Level, identity)},
		{EnvDataDir, parseInto(&cfg.Storage.DataDir, identity)},
	}

	for _, b := range bindings {
		if err := bind(b.env, b.apply); err != nil {
			return nil, err
		}
	}

	return overrides, nil
}

func parseInto[T any](target *T, parse func(string) (T, error)) func(string) error {
	return func(raw string) error {
		val, err := parse(raw)
		if err != nil {
			return err
		}
		*target = val
		return nil
	}
}

func identity(s string) (string, error) {
	return s, nil
}

func splitList(s string) ([]string, error) {
	return lo.FilterMap(strings.Split(s, ","), func(el string, _ int) (string, bool) {
		el = strings.TrimSpace(el)
		return el, el != ""
	}), nil
}
