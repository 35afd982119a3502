package redis

import (
	"encoding/json"
	"fmt"

	"github.com/goodtune/attr/internal/storage"
)

// parseLedger converts the ledger hash into session records
func parseLedger(data map[string]string) (map[string]storage.Session, error) {
	sessions := make(map[string]storage.Session, len(data))
	for player, raw := range data {
		var session storage.Session
		if err := json.Unmarshal([]byte(raw), &session); err != nil {
			return nil, fmt.Errorf("failed to parse session for %s: %w", player, err)
		}
		sessions[player] = session
	}
	return sessions, nil
}

// encodeLedger flattens session records into alternating field/value args
func encodeLedger(sessions map[string]storage.Session) ([]interface{}, error) {
	args := make([]interface{}, 0, len(sessions)*2)
	for player, session := range sessions {
		data, err := json.Marshal(session)
		if err != nil {
			return nil, fmt.Errorf("failed to encode session for %s: %w", player, err)
		}
		args = append(args, player, string(data))
	}
	return args, nil
}
