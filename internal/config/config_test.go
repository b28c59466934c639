package config_test

import (
	"bytes"
	"testing"
	"testing/fstest"
	"time"

	"github.com/horockey/eureka/internal/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, found := vars[key]
		return v, found
	}
}

func Test_Load_EmbeddedDefaults(t *testing.T) {
	cfg, overrides, err := config.Load(config.Embedded(), env(map[string]string{
		config.EnvPeerID: "node-a",
	}))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Profile)
	assert.Equal(t, "node-a", cfg.PeerID)
	assert.Equal(t, 8761, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Registry.LeaseDuration)
	assert.Equal(t, 30*time.Second, cfg.Registry.SweepInterval)
	assert.Equal(t, 24*time.Hour, cfg.Registry.TombstoneTTL)
	assert.Equal(t, 5, cfg.Replication.Attempts)
	assert.Empty(t, cfg.Replication.Peers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, config.FormatConsole, cfg.Log.Format)
	assert.Len(t, overrides, 1)
}

func Test_Load_ProdProfile(t *testing.T) {
	cfg, _, err := config.Load(config.Embedded(), env(map[string]string{
		config.EnvProfile: "prod",
		config.EnvPeerID:  "node-a",
	}))
	require.NoError(t, err)

	assert.Equal(t, config.FormatJSON, cfg.Log.Format)
	assert.Equal(t, "/var/lib/eureka", cfg.Storage.DataDir)
	assert.Equal(t, 8761, cfg.Server.Port)
}

func Test_Load_EnvOverrides(t *testing.T) {
	t.Setenv(config.EnvPort, "9000")
	t.Setenv(config.EnvLeaseDuration, "45s")
	t.Setenv(config.EnvSweepInterval, "5s")
	t.Setenv(config.EnvTombstoneTTL, "1h")
	t.Setenv(config.EnvPeers, "http://b:8761, ,http://c:8761")
	t.Setenv(config.EnvPeerID, "node-a")
	t.Setenv(config.EnvAPIKey, "secret")
	t.Setenv(config.EnvIncludeNonUp, "true")
	t.Setenv(config.EnvDataDir, "/tmp/eureka")
	t.Setenv(config.EnvLogLevel, "warn")
	t.Setenv(config.EnvMetricsPort, "0")
	t.Setenv(config.EnvAdvertisedURL, "http://a:8761")

	cfg, overrides, err := config.Load(config.Embedded(), nil)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 0, cfg.Metrics.Port)
	assert.Equal(t, 45*time.Second, cfg.Registry.LeaseDuration)
	assert.Equal(t, 5*time.Second, cfg.Registry.SweepInterval)
	assert.Equal(t, time.Hour, cfg.Registry.TombstoneTTL)
	assert.True(t, cfg.Registry.IncludeNonUp)
	assert.Equal(t, []string{"http://b:8761", "http://c:8761"}, cfg.Replication.Peers)
	assert.Equal(t, "secret", cfg.Server.APIKey)
	assert.Equal(t, "http://a:8761", cfg.Server.AdvertisedURL)
	assert.Equal(t, "/tmp/eureka", cfg.Storage.DataDir)
	assert.Equal(t, "warn", cfg.Log.Level)

	for _, o := range overrides {
		if o.Env == config.EnvAPIKey {
			assert.NotEqual(t, "secret", o.Value)
		}
	}
}

func Test_Load_InvalidEnv(t *testing.T) {
	_, _, err := config.Load(config.Embedded(), env(map[string]string{
		config.EnvLeaseDuration: "ninety",
	}))
	assert.Error(t, err)

	_, _, err = config.Load(config.Embedded(), env(map[string]string{
		config.EnvPort:   "70000",
		config.EnvPeerID: "node-a",
	}))
	assert.Error(t, err)
}

func Test_Load_UnknownProfile(t *testing.T) {
	_, _, err := config.Load(config.Embedded(), env(map[string]string{
		config.EnvProfile: "staging",
	}))
	assert.Error(t, err)
}

func Test_Load_StrictExpansion(t *testing.T) {
	fsys := fstest.MapFS{
		"application.yml": {Data: []byte(`
profile: dev
peer_id: ${NODE_NAME}
server:
  port: 8761
registry:
  lease_duration: 90s
  sweep_interval: 30s
  tombstone_ttl: 24h
replication:
  attempts: 5
log:
  level: info
  format: json
`)},
		"application-dev.yml": {Data: []byte("log:\n  level: debug\n")},
	}

	_, _, err := config.Load(fsys, env(nil))
	assert.ErrorContains(t, err, "NODE_NAME")

	cfg, _, err := config.Load(fsys, env(map[string]string{"NODE_NAME": "node-x"}))
	require.NoError(t, err)
	assert.Equal(t, "node-x", cfg.PeerID)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func Test_NewLogger(t *testing.T) {
	buf := bytes.Buffer{}
	logger, err := config.NewLogger(config.Log{Level: "warn", Format: config.FormatJSON}, &buf)
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"message":"shown"`)

	_, err = config.NewLogger(config.Log{Level: "loud", Format: config.FormatJSON}, &buf)
	assert.Error(t, err)

	config.LogOverrides(zerolog.Nop(), []config.Override{{Env: config.EnvPort, Value: "9000"}})
}
