package banlist

import (
	"encoding/binary"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDBPersister persists ban transitions to an on-disk goleveldb
// database so that proxy health survives a process restart. This is
// operational state, not the in-flight task state spec.md's non-goals
// exclude from restart persistence.
type LevelDBPersister struct {
	db *leveldb.DB
}

// OpenLevelDBPersister opens (creating if necessary) a goleveldb database
// at path for ban-state persistence.
func OpenLevelDBPersister(path string) (*LevelDBPersister, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBPersister{db: db}, nil
}

func keyFor(idx int) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(idx))
	return b
}

// OnBan implements Persister.
func (p *LevelDBPersister) OnBan(idx int, until time.Time) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, uint64(until.UnixNano()))
	_ = p.db.Put(keyFor(idx), v, nil)
}

// OnUnban implements Persister.
func (p *LevelDBPersister) OnUnban(idx int) {
	_ = p.db.Delete(keyFor(idx), nil)
}

// LoadInto restores every persisted ban into b via Restore.
func (p *LevelDBPersister) LoadInto(b *Banlist) error {
	iter := p.db.NewIterator(nil, nil)
	defer iter.Release()
	for iter.Next() {
		idx := int(binary.BigEndian.Uint64(iter.Key()))
		until := time.Unix(0, int64(binary.BigEndian.Uint64(iter.Value())))
		b.Restore(idx, until, 0)
	}
	return iter.Error()
}

// Close releases the underlying database handle.
func (p *LevelDBPersister) Close() error {
	return p.db.Close()
}
