package quota

import (
	"math"
	"time"

	"github.com/goodtune/attr/internal/storage"
)

// LedgerFromRecords converts persisted records into sessions.
func LedgerFromRecords(records map[string]storage.Session) Ledger {
	ledger := make(Ledger, len(records))
	for player, rec := range records {
		ledger[player] = SessionFromRecord(player, rec)
	}
	return ledger
}

// Records converts the ledger into its persisted form.
func (l Ledger) Records() map[string]storage.Session {
	records := make(map[string]storage.Session, len(l))
	for player, s := range l {
		records[player] = s.Record()
	}
	return records
}

// SessionFromRecord converts one persisted record. Negative or NaN counters
// are clamped to zero and oversized ones to MaxRollover.
func SessionFromRecord(player string, rec storage.Session) *Session {
	s := &Session{
		Player:       player,
		SessionStart: rec.SessionStart.Time,
		Playtime:     seconds(rec.Playtime),
		Rollover:     seconds(rec.RolloverTime),
		Online:       rec.Online,
		SessionDate:  rec.SessionDate,
		Banned:       rec.Banned,
		LastChecked:  rec.LastChecked.Time,
	}
	for i, label := range storage.AnnouncementLabels {
		if rec.Announcements[label] {
			s.Announced.Set(i)
		}
	}
	s.clamp()
	return s
}

// Record converts the session into its persisted form.
func (s *Session) Record() storage.Session {
	announcements := make(map[string]bool, len(storage.AnnouncementLabels))
	for i, label := range storage.AnnouncementLabels {
		announcements[label] = s.Announced.Has(i)
	}
	return storage.Session{
		SessionStart:  storage.Timestamp{Time: s.SessionStart},
		Playtime:      s.Playtime.Seconds(),
		RolloverTime:  s.Rollover.Seconds(),
		Online:        s.Online,
		SessionDate:   s.SessionDate,
		Banned:        s.Banned,
		LastChecked:   storage.Timestamp{Time: s.LastChecked},
		Announcements: announcements,
	}
}

func seconds(v float64) time.Duration {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v >= MaxRollover.Seconds():
		return MaxRollover
	}
	return time.Duration(v * float64(time.Second))
}
