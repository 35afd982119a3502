package storage

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSessionDecodesLegacySnapshot(t *testing.T) {
	raw := `{
  "session_start": "2025-03-04T18:22:10.512345",
  "playtime": 5400.25,
  "online": true,
  "session_date": "2025-03-04",
  "banned": false,
  "announcements": {"1min": false, "5min": false, "10min": false, "15min": false, "30min": true},
  "last_checked": "2025-03-04T19:52:10.512345",
  "rollover_time": 1800
}`

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if s.Playtime != 5400.25 {
		t.Errorf("expected playtime 5400.25, got %v", s.Playtime)
	}
	if s.RolloverTime != 1800 {
		t.Errorf("expected rollover 1800, got %v", s.RolloverTime)
	}
	if !s.Announcements["30min"] {
		t.Error("expected 30min announcement to be set")
	}
	want := time.Date(2025, 3, 4, 19, 52, 10, 512345000, time.Local)
	if !s.LastChecked.Equal(want) {
		t.Errorf("expected last_checked %v, got %v", want, s.LastChecked.Time)
	}
}

func TestSessionMissingLastChecked(t *testing.T) {
	var s Session
	if err := json.Unmarshal([]byte(`{"session_date":"2025-03-04","playtime":0}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !s.LastChecked.IsZero() {
		t.Errorf("expected zero last_checked, got %v", s.LastChecked.Time)
	}
}

func TestTimestampRoundTripKeepsOffset(t *testing.T) {
	in := Timestamp{Time: time.Date(2025, 1, 6, 9, 0, 0, 0, time.FixedZone("AEDT", 11*3600))}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"2025-01-06T09:00:00+11:00"` {
		t.Fatalf("unexpected encoding %s", data)
	}

	var out Timestamp
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Equal(in.Time) {
		t.Errorf("expected %v, got %v", in.Time, out.Time)
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	if _, err := ParseTimestamp("yesterday-ish"); err == nil {
		t.Fatal("expected error for invalid timestamp")
	}
}
