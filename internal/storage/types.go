package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Announcement labels as they appear in the snapshot.
var AnnouncementLabels = []string{"1min", "5min", "10min", "15min", "30min"}

// Session is the persisted form of a player's quota state. Field names
// follow the historical snapshot layout so older files load unchanged.
type Session struct {
	SessionStart  Timestamp       `json:"session_start"`
	Playtime      float64         `json:"playtime"`
	RolloverTime  float64         `json:"rollover_time"`
	Online        bool            `json:"online"`
	SessionDate   string          `json:"session_date"`
	Banned        bool            `json:"banned"`
	LastChecked   Timestamp       `json:"last_checked"`
	Announcements map[string]bool `json:"announcements"`
}

// Timestamp is a time encoded as an ISO-8601 string. Values without a zone
// offset are read in the local zone.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp with or without an offset.
func ParseTimestamp(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		var (
			t   time.Time
			err error
		)
		if layout == time.RFC3339Nano {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			return Timestamp{Time: t}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp: %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler. Null and empty strings decode
// to the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}

	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
