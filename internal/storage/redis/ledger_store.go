package redis

import (
	"context"

	"github.com/goodtune/attr/internal/storage"
	"github.com/redis/go-redis/v9"
)

type ledgerStore struct {
	client *redis.Client
	key    string
	script *redis.Script
}

// Load reads the ledger hash; a missing key is an empty ledger
func (s *ledgerStore) Load(ctx context.Context) (map[string]storage.Session, error) {
	data, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	return parseLedger(data)
}

// Save replaces the ledger hash in a single script invocation
func (s *ledgerStore) Save(ctx context.Context, sessions map[string]storage.Session) error {
	args, err := encodeLedger(sessions)
	if err != nil {
		return err
	}
	return s.script.Run(ctx, s.client, []string{s.key}, args...).Err()
}
