package quota

import (
	"fmt"
	"time"

	"github.com/goodtune/attr/internal/metrics"
	"github.com/rs/zerolog"
)

// ResetScheduler rolls sessions over to a new session-day and decides
// whether yesterday's unused quota carries forward, is forfeited, or is
// left alone.
type ResetScheduler struct {
	limit    time.Duration
	calendar Calendar
	logger   zerolog.Logger
}

// NewResetScheduler creates a new reset scheduler
func NewResetScheduler(limit time.Duration, calendar Calendar, logger zerolog.Logger) *ResetScheduler {
	return &ResetScheduler{
		limit:    limit,
		calendar: calendar,
		logger:   logger.With().Str("component", "reset-scheduler").Logger(),
	}
}

// Run resets every session whose date is not today. online holds the
// players in the current roster; only they are told about their rollover.
func (rs *ResetScheduler) Run(ledger Ledger, now time.Time, online map[string]bool) []Effect {
	today := now.Format(DateLayout)

	var effects []Effect
	for _, s := range ledger.Sorted() {
		if s.SessionDate == today {
			continue
		}
		effects = append(effects, rs.reset(s, now, online[s.Player])...)
	}
	return effects
}

func (rs *ResetScheduler) reset(s *Session, now time.Time, online bool) []Effect {
	var effects []Effect

	yesterday := now.AddDate(0, 0, -1).Weekday()
	today := now.Weekday()
	previous := s.Rollover

	if !rs.calendar.IsFreeplay(yesterday) {
		unused := rs.limit - s.Playtime
		if unused < 0 {
			unused = 0
		}

		if rs.calendar.IsWeekendStart(today) {
			s.Rollover = 0
			if unused > 0 && online {
				effects = append(effects, Tell(s.Player,
					Text(fmt.Sprintf("Your %s of unused time from yesterday expired for the weekend.", FormatHM(unused)), "yellow"),
				))
			}
		} else {
			s.Rollover += unused
			if online {
				effects = append(effects, Tell(s.Player,
					Text(fmt.Sprintf("You had %s unused yesterday. ", FormatHM(unused)), "aqua"),
					Bold(fmt.Sprintf("Rollover is now %s.", FormatHours(s.Rollover)), "green"),
				))
			}
		}
	}

	s.resetDay(now)

	rs.logger.Info().
		Str("player", s.Player).
		Str("session_date", s.SessionDate).
		Dur("rollover_before", previous).
		Dur("rollover_after", s.Rollover).
		Msg("Session reset for new day")

	if s.Banned {
		s.pardon()
		metrics.PardonsTotal.WithLabelValues("daily_reset").Inc()
		effects = append(effects,
			Pardon(s.Player),
			Broadcast(Text(fmt.Sprintf("%s is now unbanned and session reset for a new day.", s.Player), "green")),
		)
	}

	return effects
}

// EndFreeplay restarts every session when unlimited play ends. Online is
// left as it is so the next step still charges continuing players.
func (rs *ResetScheduler) EndFreeplay(ledger Ledger) []Effect {
	effects := []Effect{
		Broadcast(Bold("Unlimited playtime has ended. Daily limit resumed! Resetting all session times.", "yellow")),
	}
	for _, s := range ledger.Sorted() {
		s.Playtime = 0
		s.Rollover = 0
		s.Banned = false
		s.Announced = 0
		metrics.PardonsTotal.WithLabelValues("freeplay_end").Inc()
		effects = append(effects, Pardon(s.Player))
	}
	rs.logger.Info().Int("players", len(ledger)).Msg("Freeplay ended, all sessions reset")
	return effects
}

// StartFreeplay announces the start of unlimited play.
func (rs *ResetScheduler) StartFreeplay() []Effect {
	rs.logger.Info().Msg("Freeplay started")
	return []Effect{
		Broadcast(Bold("Unlimited playtime has started! Enjoy!", "green")),
		Title("", Bold("Unlimited Playtime", "gold"), Text("No limits today, enjoy!", "yellow")),
	}
}
