package cache

import (
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v3"

	"main/pkg/exception"
)

// diskTier is the tier-2 overflow cache, a badger store with per-entry TTL.
// It survives restarts; badger replays its value log on open.
type diskTier struct {
	db  *badger.DB
	ttl time.Duration
}

func newDiskTier(dir string, ttl time.Duration) (*diskTier, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithCompactL0OnClose(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open tier-2 store: %w", err)
	}
	return &diskTier{db: db, ttl: ttl}, nil
}

func (t *diskTier) set(key Key, encoded []byte) error {
	return t.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key.String()), encoded)
		if t.ttl > 0 {
			entry = entry.WithTTL(t.ttl)
		}
		return txn.SetEntry(entry)
	})
}

func (t *diskTier) get(key Key) ([]byte, error) {
	var out []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key.String()))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, exception.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("tier-2 get: %w", err)
	}
	return out, nil
}

func (t *diskTier) delete(key Key) error {
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key.String()))
	})
}

// deletePrefix removes every entry for one exchange.
func (t *diskTier) deletePrefix(prefix string) error {
	return t.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
}

// sweep visits entries older than age and hands them to move; entries move
// accepts are deleted here so a key never lives in two tiers at once.
func (t *diskTier) sweep(age time.Duration, move func(key Key, encoded []byte) bool) error {
	cutoff := time.Now().Add(-age).UnixNano()
	type victim struct {
		key     Key
		encoded []byte
	}
	var victims []victim

	err := t.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key, ok := ParseKey(string(item.Key()))
			if !ok {
				continue
			}
			encoded, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if tsOf(encoded) >= cutoff {
				continue
			}
			victims = append(victims, victim{key: key, encoded: encoded})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tier-2 sweep scan: %w", err)
	}

	for _, v := range victims {
		if !move(v.key, v.encoded) {
			continue
		}
		if err := t.delete(v.key); err != nil {
			return err
		}
	}
	return nil
}

func (t *diskTier) close() error {
	return t.db.Close()
}

// tsOf reads the encoded book timestamp without a full decode.
func tsOf(encoded []byte) int64 {
	if len(encoded) < bookHeaderSize {
		return 0
	}
	return int64(uint64(encoded[4]) | uint64(encoded[5])<<8 | uint64(encoded[6])<<16 | uint64(encoded[7])<<24 |
		uint64(encoded[8])<<32 | uint64(encoded[9])<<40 | uint64(encoded[10])<<48 | uint64(encoded[11])<<56)
}
