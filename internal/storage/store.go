package storage

import "context"

// Store represents the root storage interface.
type Store interface {
	Close() error
	Ledger() LedgerStore
}

// LedgerStore persists the whole session table as a single snapshot.
// Save is a full overwrite: entries absent from the table are removed.
// A store that has never been written loads as an empty table.
type LedgerStore interface {
	Load(ctx context.Context) (map[string]Session, error)
	Save(ctx context.Context, sessions map[string]Session) error
}
