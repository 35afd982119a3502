package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goodtune/attr/internal/storage"
	"go.etcd.io/bbolt"
)

const bucketLedger = "ledger"

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store.
func Open(path string) (*Store, error) {
	if err := storage.EnsureParentDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketLedger)); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketLedger, err)
		}
		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ledger returns the ledger store.
func (s *Store) Ledger() storage.LedgerStore { return &ledgerStore{db: s.db} }

func marshal(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal value: %w", err)
	}
	return nil
}

type ledgerStore struct {
	db *bbolt.DB
}

func (s *ledgerStore) Load(ctx context.Context) (map[string]storage.Session, error) {
	sessions := make(map[string]storage.Session)
	return sessions, s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var session storage.Session
			if err := unmarshal(v, &session); err != nil {
				return fmt.Errorf("player %s: %w", k, err)
			}
			sessions[string(k)] = session
			return nil
		})
	})
}

// Save replaces the ledger bucket inside one transaction, so a reader sees
// either the previous table or the new one.
func (s *ledgerStore) Save(ctx context.Context, sessions map[string]storage.Session) error {
	encoded := make(map[string][]byte, len(sessions))
	for player, session := range sessions {
		data, err := marshal(session)
		if err != nil {
			return err
		}
		encoded[player] = data
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if tx.Bucket([]byte(bucketLedger)) != nil {
			if err := tx.DeleteBucket([]byte(bucketLedger)); err != nil {
				return fmt.Errorf("drop ledger bucket: %w", err)
			}
		}
		b, err := tx.CreateBucket([]byte(bucketLedger))
		if err != nil {
			return fmt.Errorf("create ledger bucket: %w", err)
		}
		for player, data := range encoded {
			if err := b.Put([]byte(player), data); err != nil {
				return err
			}
		}
		return nil
	})
}
