package metricsink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger"

	"github.com/kardelitaitu/testnet-spammer/ids"
)

// BadgerStore is the zero-config embedded RowStore backend, used when no
// SQL DSN is configured (db_backend = "badger", the default per
// SPEC_FULL.md). Rows are stored as JSON values keyed by table-prefixed
// row id, so each of the three append-only tables spec.md §6 names gets
// its own key namespace within one embedded database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (creating if necessary) a badger database at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func badgerKey(table, id string) []byte {
	return []byte(fmt.Sprintf("%s/%s", table, id))
}

// AppendMetricBatch implements RowStore, writing the batch in one badger
// transaction.
func (b *BadgerStore) AppendMetricBatch(ctx context.Context, rows []Row) error {
	return b.db.Update(func(txn *badger.Txn) error {
		for _, r := range rows {
			v, err := json.Marshal(r)
			if err != nil {
				return err
			}
			if err := txn.Set(badgerKey("task_metrics", r.ID), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// AppendCreatedAsset implements RowStore.
func (b *BadgerStore) AppendCreatedAsset(ctx context.Context, a CreatedAsset) error {
	v, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey("created_assets", ids.NewMetricRowID()), v)
	})
}

// AppendCreatedCounterContract implements RowStore.
func (b *BadgerStore) AppendCreatedCounterContract(ctx context.Context, c CreatedCounterContract) error {
	v, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey("created_counter_contracts", ids.NewMetricRowID()), v)
	})
}

// Close implements RowStore.
func (b *BadgerStore) Close() error { return b.db.Close() }
