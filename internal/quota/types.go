package quota

import (
	"sort"
	"time"

	"github.com/goodtune/attr/internal/storage"
)

// DateLayout is the layout of Session.SessionDate.
const DateLayout = "2006-01-02"

// State is the derived lifecycle state of a tracked player.
type State int

const (
	StateOffline State = iota
	StateActive
	StateBanned
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateBanned:
		return "banned"
	default:
		return "offline"
	}
}

// Threshold is a remaining-time warning fired at most once per session-day.
type Threshold struct {
	Label     string
	Remaining time.Duration
}

// Thresholds are scanned in ascending order.
var Thresholds = []Threshold{
	{Label: storage.AnnouncementLabels[0], Remaining: time.Minute},
	{Label: storage.AnnouncementLabels[1], Remaining: 5 * time.Minute},
	{Label: storage.AnnouncementLabels[2], Remaining: 10 * time.Minute},
	{Label: storage.AnnouncementLabels[3], Remaining: 15 * time.Minute},
	{Label: storage.AnnouncementLabels[4], Remaining: 30 * time.Minute},
}

// Announcements is a bitset indexed by position in Thresholds.
type Announcements uint8

// Has reports whether threshold i has fired.
func (a Announcements) Has(i int) bool {
	return a&(1<<uint(i)) != 0
}

// Set marks threshold i as fired.
func (a *Announcements) Set(i int) {
	*a |= 1 << uint(i)
}

// Labels returns the labels of fired thresholds in ascending order.
func (a Announcements) Labels() []string {
	var labels []string
	for i, th := range Thresholds {
		if a.Has(i) {
			labels = append(labels, th.Label)
		}
	}
	return labels
}

// Session is one player's quota state.
type Session struct {
	Player       string
	SessionStart time.Time
	Playtime     time.Duration
	Rollover     time.Duration
	Online       bool
	SessionDate  string
	Banned       bool
	LastChecked  time.Time
	Announced    Announcements
}

func newSession(player string, now time.Time) *Session {
	return &Session{
		Player:       player,
		SessionStart: now,
		SessionDate:  now.Format(DateLayout),
		LastChecked:  now,
	}
}

// State derives the lifecycle state from the stored flags.
func (s *Session) State() State {
	switch {
	case s.Banned:
		return StateBanned
	case s.Online:
		return StateActive
	default:
		return StateOffline
	}
}

// Remaining is the quota left today given the base limit.
func (s *Session) Remaining(limit time.Duration) time.Duration {
	return limit + s.Rollover - s.Playtime
}

// clamp keeps the counters non-negative.
func (s *Session) clamp() {
	if s.Playtime < 0 {
		s.Playtime = 0
	}
	if s.Rollover < 0 {
		s.Rollover = 0
	}
}

// charge adds active time to the session.
func (s *Session) charge(d time.Duration) {
	s.Playtime += d
	s.clamp()
}

// ban moves the session into StateBanned and restarts its counters.
// SessionDate is kept so the daily reset does not treat this as a new day.
func (s *Session) ban(now time.Time) {
	s.Banned = true
	s.Playtime = 0
	s.SessionStart = now
	s.LastChecked = now
	s.Online = false
	s.Announced = 0
}

// pardon clears the ban flag.
func (s *Session) pardon() {
	s.Banned = false
}

// resetDay starts a new session-day.
func (s *Session) resetDay(now time.Time) {
	s.Playtime = 0
	s.SessionStart = now
	s.SessionDate = now.Format(DateLayout)
	s.LastChecked = now
	s.Online = false
	s.Announced = 0
}

// Ledger maps player identity to session state.
type Ledger map[string]*Session

// Players returns the ledger's player names sorted.
func (l Ledger) Players() []string {
	players := make([]string, 0, len(l))
	for player := range l {
		players = append(players, player)
	}
	sort.Strings(players)
	return players
}

// Sorted returns the sessions ordered by player name.
func (l Ledger) Sorted() []*Session {
	sessions := make([]*Session, 0, len(l))
	for _, player := range l.Players() {
		sessions = append(sessions, l[player])
	}
	return sessions
}
