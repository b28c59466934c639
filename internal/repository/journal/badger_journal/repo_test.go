package badger_journal_test

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/horockey/eureka/internal/model"
	"github.com/horockey/eureka/internal/repository/journal/badger_journal"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) (*badger.DB, func()) {
	dir := t.TempDir()

	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(badger_journal.NewLogger(zerolog.Nop())))
	if err != nil {
		t.Fatalf("failed to open badger db: %v", err)
	}

	return db, func() {
		_ = db.Close()
	}
}

func record(service, id string, ts time.Time) model.InstanceRecord {
	return model.InstanceRecord{
		Instance: model.ServiceInstance{
			ServiceName:           service,
			InstanceID:            id,
			Host:                  "10.0.0.7",
			Port:                  8443,
			Status:                model.StatusUp,
			Metadata:              map[string]string{"version": "1.2.3"},
			LeaseDuration:         90 * time.Second,
			RegistrationTimestamp: ts,
			LastRenewalTimestamp:  ts,
		},
		Version: model.Version{Timestamp: ts, PeerID: "node-a"},
	}
}

func Test_LoadAll_Empty(t *testing.T) {
	db, teardown := setupDB(t)
	defer teardown()

	recs, err := badger_journal.New(db).LoadAll()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func Test_SaveAndLoad(t *testing.T) {
	db, teardown := setupDB(t)
	defer teardown()

	repo := badger_journal.New(db)
	ts := time.Unix(1_700_000_000, 123)

	require.NoError(t, repo.Save(record("orders-api", "i1", ts)))
	require.NoError(t, repo.Save(record("billing", "b1", ts)))

	recs, err := repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)

	byID := map[string]model.InstanceRecord{}
	for _, rec := range recs {
		byID[rec.Instance.InstanceID] = rec
	}

	got := byID["i1"]
	assert.Equal(t, "orders-api", got.Instance.ServiceName)
	assert.Equal(t, 8443, got.Instance.Port)
	assert.Equal(t, model.StatusUp, got.Instance.Status)
	assert.Equal(t, "1.2.3", got.Instance.Metadata["version"])
	assert.True(t, got.Instance.LastRenewalTimestamp.Equal(ts))
	assert.True(t, got.Version.Timestamp.Equal(ts))
	assert.Equal(t, "node-a", got.Version.PeerID)
}

func Test_SaveOverwrites(t *testing.T) {
	db, teardown := setupDB(t)
	defer teardown()

	repo := badger_journal.New(db)
	ts := time.Unix(1_700_000_000, 0)

	require.NoError(t, repo.Save(record("orders-api", "i1", ts)))
	require.NoError(t, repo.Save(record("orders-api", "i1", ts.Add(time.Minute))))

	recs, err := repo.LoadAll()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Instance.LastRenewalTimestamp.Equal(ts.Add(time.Minute)))
}

func Test_Delete(t *testing.T) {
	db, teardown := setupDB(t)
	defer teardown()

	repo := badger_journal.New(db)
	rec := record("orders-api", "i1", time.Now())

	require.NoError(t, repo.Save(rec))
	require.NoError(t, repo.Delete(rec.Instance.Key()))
	require.NoError(t, repo.Delete(rec.Instance.Key()))

	recs, err := repo.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, recs)
}
