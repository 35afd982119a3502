package quota

import (
	"math"
	"testing"
	"time"

	"github.com/goodtune/attr/internal/storage"
)

func TestSessionState(t *testing.T) {
	tests := []struct {
		name    string
		session Session
		want    State
	}{
		{name: "offline", session: Session{}, want: StateOffline},
		{name: "active", session: Session{Online: true}, want: StateActive},
		{name: "banned", session: Session{Banned: true}, want: StateBanned},
		{name: "banned online", session: Session{Online: true, Banned: true}, want: StateBanned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.State(); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnnouncementsBitset(t *testing.T) {
	var a Announcements
	a.Set(0)
	a.Set(4)
	if !a.Has(0) || a.Has(1) || !a.Has(4) {
		t.Errorf("unexpected bits %05b", a)
	}
	labels := a.Labels()
	if len(labels) != 2 || labels[0] != "1min" || labels[1] != "30min" {
		t.Errorf("Labels() = %v", labels)
	}
}

func TestThresholdLabelsMatchSnapshot(t *testing.T) {
	if len(Thresholds) != len(storage.AnnouncementLabels) {
		t.Fatalf("threshold count %d != label count %d", len(Thresholds), len(storage.AnnouncementLabels))
	}
	for i, th := range Thresholds {
		if th.Label != storage.AnnouncementLabels[i] {
			t.Errorf("threshold %d label %q, want %q", i, th.Label, storage.AnnouncementLabels[i])
		}
		if i > 0 && th.Remaining <= Thresholds[i-1].Remaining {
			t.Errorf("thresholds not ascending at %d", i)
		}
	}
}

func TestRecordConversion(t *testing.T) {
	now := time.Date(2025, 1, 6, 9, 30, 0, 0, time.UTC)
	s := &Session{
		Player:       "steve",
		SessionStart: now,
		Playtime:     90*time.Second + 500*time.Millisecond,
		Rollover:     time.Hour,
		Online:       true,
		SessionDate:  "2025-01-06",
		LastChecked:  now.Add(time.Minute),
	}
	s.Announced.Set(2)

	rec := s.Record()
	if rec.Playtime != 90.5 || rec.RolloverTime != 3600 {
		t.Errorf("seconds = %v / %v", rec.Playtime, rec.RolloverTime)
	}
	if len(rec.Announcements) != 5 || !rec.Announcements["10min"] || rec.Announcements["1min"] {
		t.Errorf("announcements = %v", rec.Announcements)
	}

	back := SessionFromRecord("steve", rec)
	if *back != *s {
		t.Errorf("round trip mismatch: %+v != %+v", back, s)
	}
}

func TestSessionFromRecordClamps(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want time.Duration
	}{
		{name: "negative", in: -5, want: 0},
		{name: "nan", in: math.NaN(), want: 0},
		{name: "infinite", in: math.Inf(1), want: MaxRollover},
		{name: "overflows a duration", in: 1e300, want: MaxRollover},
		{name: "at cap", in: MaxRollover.Seconds(), want: MaxRollover},
		{name: "in range", in: 42.5, want: 42*time.Second + 500*time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SessionFromRecord("x", storage.Session{Playtime: tt.in, RolloverTime: tt.in})
			if s.Playtime != tt.want || s.Rollover != tt.want {
				t.Errorf("playtime=%v rollover=%v, want %v", s.Playtime, s.Rollover, tt.want)
			}
		})
	}
}

func TestRecordAnnouncementsUseSnapshotLabels(t *testing.T) {
	for i, label := range storage.AnnouncementLabels {
		t.Run(label, func(t *testing.T) {
			rec := storage.Session{Announcements: map[string]bool{label: true}}
			s := SessionFromRecord("x", rec)
			if !s.Announced.Has(i) || s.Announced != Announcements(1<<i) {
				t.Errorf("Announced = %05b, want only bit %d", s.Announced, i)
			}
			back := s.Record().Announcements
			if len(back) != len(storage.AnnouncementLabels) || !back[label] {
				t.Errorf("Record().Announcements = %v", back)
			}
		})
	}
}

func TestCalendar(t *testing.T) {
	c := WeekendCalendar()
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		want := wd == time.Saturday || wd == time.Sunday
		if c.IsFreeplay(wd) != want {
			t.Errorf("IsFreeplay(%v) = %v", wd, !want)
		}
	}
	if !c.IsWeekendStart(time.Saturday) || c.IsWeekendStart(time.Sunday) {
		t.Error("weekend start should be Saturday only")
	}

	c = NewCalendar([]time.Weekday{time.Friday}, time.Saturday)
	if c.IsWeekendStart(time.Saturday) {
		t.Error("weekend start must be a freeplay day")
	}
	if days := c.FreeplayDays(); len(days) != 1 || days[0] != time.Friday {
		t.Errorf("FreeplayDays() = %v", days)
	}

	c = NewCalendar([]time.Weekday{time.Friday, time.Saturday}, time.Saturday)
	if c.IsWeekendStart(time.Saturday) {
		t.Error("weekend start must follow a quota day")
	}

	c = NewCalendar([]time.Weekday{time.Sunday}, -1)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if c.IsWeekendStart(wd) {
			t.Errorf("IsWeekendStart(%v) with no weekend start", wd)
		}
	}
}

func TestOddsLookup(t *testing.T) {
	odds := DefaultOdds()
	tests := []struct {
		multiplier float64
		want       float64
		ok         bool
	}{
		{1.05, 0.8571428571428571, true},
		{1.1, 0.8181818181818182, true},
		{2, 0.45, true},
		{10.0009, 0.09, true},
		{10.002, 0, false},
		{1.7, 0, false},
	}
	for _, tt := range tests {
		got, ok := odds.Lookup(tt.multiplier)
		if ok != tt.ok || got.Probability != tt.want {
			t.Errorf("Lookup(%v) = %v, %v; want %v, %v", tt.multiplier, got.Probability, ok, tt.want, tt.ok)
		}
	}
	if got := odds.Multipliers(); got != "1.05, 1.1, 1.25, 1.5, 2, 3, 5, 10" {
		t.Errorf("Multipliers() = %q", got)
	}
	if err := odds.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := (OddsTable{{Multiplier: 1, Probability: 0.5}}).Validate(); err == nil {
		t.Error("expected validation error for multiplier 1")
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"hm", FormatHM(2*time.Hour + 13*time.Minute + 59*time.Second), "2h 13m"},
		{"hm negative", FormatHM(-time.Minute), "0h 0m"},
		{"ms", FormatMS(13*time.Minute + 20*time.Second), "13m 20s"},
		{"hours", FormatHours(90 * time.Minute), "1.5h"},
		{"one hour", FormatDuration(time.Hour), "1 hour"},
		{"hours words", FormatDuration(3 * time.Hour), "3 hours"},
		{"one minute", FormatDuration(time.Minute), "1 minute"},
		{"minutes", FormatDuration(90 * time.Minute), "90 minutes"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}
