package badger_journal

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/horockey/eureka/internal/model"
	"github.com/horockey/eureka/internal/repository/journal"
	"github.com/prometheus/client_golang/prometheus"
)

var _ journal.Journal = &badgerJournal{}

const instancePrefix = "instance/"

type badgerJournal struct {
	db      *badger.DB
	metrics *metrics
}

func New(db *badger.DB) *badgerJournal {
	return &badgerJournal{
		db:      db,
		metrics: newMetrics(db),
	}
}

func (repo *badgerJournal) Metrics() []prometheus.Collector {
	return repo.metrics.list()
}

func (repo *badgerJournal) Save(rec model.InstanceRecord) (resErr error) {
	defer func(ts time.Time) {
		repo.metrics.requestsCnt.Inc()
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))

		switch resErr {
		case nil:
			repo.metrics.successProcessCnt.Inc()
		default:
			repo.metrics.errProcessCnt.Inc()
		}
	}(time.Now())

	buf := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(buf).Encode(rec); err != nil {
		return fmt.Errorf("encoding gob: %w", err)
	}

	if err := repo.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(dbKey(rec.Instance.Key()), buf.Bytes()); err != nil {
			return fmt.Errorf("setting item to db: %w", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("performing upd txn: %w", err)
	}

	return nil
}

func (repo *badgerJournal) Delete(key model.Key) (resErr error) {
	defer func(ts time.Time) {
		repo.metrics.requestsCnt.Inc()
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))

		switch resErr {
		case nil:
			repo.metrics.successProcessCnt.Inc()
		default:
			repo.metrics.errProcessCnt.Inc()
		}
	}(time.Now())

	if err := repo.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(dbKey(key)); err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("performing del txn: %w", err)
	}

	return nil
}

func (repo *badgerJournal) LoadAll() (res []model.InstanceRecord, resErr error) {
	defer func(ts time.Time) {
		repo.metrics.requestsCnt.Inc()
		repo.metrics.handleTimeHist.Observe(float64(time.Since(ts)))

		switch resErr {
		case nil:
			repo.metrics.successProcessCnt.Inc()
		default:
			repo.metrics.errProcessCnt.Inc()
		}
	}(time.Now())

	res = []model.InstanceRecord{}

	err := repo.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(instancePrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()

			rec := model.InstanceRecord{}
			if err := item.Value(func(val []byte) error {
				return gob.NewDecoder(bytes.NewBuffer(val)).Decode(&rec)
			}); err != nil {
				return fmt.Errorf("decoding %s: %w", item.Key(), err)
			}

			res = append(res, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("performing view txn: %w", err)
	}

	return res, nil
}

func dbKey(key model.Key) []byte {
	return []byte(instancePrefix + key.String())
}

