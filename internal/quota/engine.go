package quota

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/goodtune/attr/internal/metrics"
	"github.com/goodtune/attr/internal/storage"
	"github.com/rs/zerolog"
)

// Options configures an Engine.
type Options struct {
	DailyLimit    time.Duration
	Calendar      Calendar
	MaxCycleDelta time.Duration
	FallbackDelta time.Duration
	MinBet        time.Duration
	Odds          OddsTable
	Location      *time.Location
}

// DefaultOptions returns a 3 hour limit with weekend freeplay.
func DefaultOptions() Options {
	return Options{
		DailyLimit:    3 * time.Hour,
		Calendar:      WeekendCalendar(),
		MaxCycleDelta: 120 * time.Second,
		FallbackDelta: 60 * time.Second,
		MinBet:        5 * time.Minute,
		Odds:          DefaultOdds(),
		Location:      time.Local,
	}
}

// Engine owns the ledger. Every operation performs load, mutate and save
// under one lock, so cycles and commands never interleave.
type Engine struct {
	store  storage.LedgerStore
	opts   Options
	reset  *ResetScheduler
	clock  Clock
	random func() float64
	logger zerolog.Logger

	mu                sync.Mutex
	freeplayAnnounced bool
	firstCycleDone    bool
}

// NewEngine creates a new quota engine
func NewEngine(store storage.LedgerStore, opts Options, logger zerolog.Logger) *Engine {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if len(opts.Odds) == 0 {
		opts.Odds = DefaultOdds()
	}
	return &Engine{
		store:  store,
		opts:   opts,
		reset:  NewResetScheduler(opts.DailyLimit, opts.Calendar, logger),
		clock:  RealClock{},
		random: rand.Float64,
		logger: logger.With().Str("component", "quota").Logger(),
	}
}

// SetClock sets the clock used for all time calculations.
func (e *Engine) SetClock(clock Clock) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = clock
}

// SetRandom sets the source of uniform samples in [0, 1) used by Gamble.
func (e *Engine) SetRandom(random func() float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.random = random
}

// DailyLimit returns the configured base quota.
func (e *Engine) DailyLimit() time.Duration {
	return e.opts.DailyLimit
}

// Odds returns the wager table.
func (e *Engine) Odds() OddsTable {
	return e.opts.Odds
}

// MinBet returns the smallest accepted wager.
func (e *Engine) MinBet() time.Duration {
	return e.opts.MinBet
}

// IsFreeplay reports whether today is an unlimited-play day.
func (e *Engine) IsFreeplay() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts.Calendar.IsFreeplay(e.now().Weekday())
}

func (e *Engine) now() time.Time {
	return e.clock.Now().In(e.opts.Location)
}

func (e *Engine) load(ctx context.Context) (Ledger, error) {
	records, err := e.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}
	return LedgerFromRecords(records), nil
}

func (e *Engine) save(ctx context.Context, ledger Ledger) error {
	if err := e.store.Save(ctx, ledger.Records()); err != nil {
		return fmt.Errorf("saving ledger: %w", err)
	}
	return nil
}

// Suspend forgets who is online. The next cycle clears every online flag
// and restarts timing from that moment, so time that passed while the
// server could not be observed is never charged.
func (e *Engine) Suspend() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.firstCycleDone {
		e.logger.Info().Msg("Tracking suspended")
	}
	e.firstCycleDone = false
}

// Cycle runs one pass over the roster and ledger and returns the effects to
// execute against the game server. The ledger is left untouched on error.
func (e *Engine) Cycle(ctx context.Context, roster []string) ([]Effect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	effects, err := e.cycle(ctx, roster)
	metrics.CycleDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.CyclesTotal.WithLabelValues("ok").Inc()
	return effects, nil
}

func (e *Engine) cycle(ctx context.Context, roster []string) ([]Effect, error) {
	now := e.now()
	freeplay := e.opts.Calendar.IsFreeplay(now.Weekday())

	ledger, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	// Discard wall-clock time that passed while the process was down or
	// tracking was suspended.
	if !e.firstCycleDone {
		for _, s := range ledger {
			s.Online = false
			s.LastChecked = now
		}
		e.logger.Info().Int("players", len(ledger)).Msg("Tracking resumed, cleared online state")
	}

	online := make(map[string]bool, len(roster))
	var players []string
	for _, player := range roster {
		if player == "" || online[player] {
			continue
		}
		online[player] = true
		players = append(players, player)
	}

	var effects []Effect
	announced := e.freeplayAnnounced

	switch {
	case freeplay && !announced:
		effects = append(effects, e.reset.StartFreeplay()...)
		announced = true
	case !freeplay && announced:
		effects = append(effects, e.reset.EndFreeplay(ledger)...)
		announced = false
	}

	effects = append(effects, e.reset.Run(ledger, now, online)...)

	for _, player := range players {
		effects = append(effects, e.integrate(ledger, player, now, freeplay)...)
	}

	for player, s := range ledger {
		if !online[player] {
			s.Online = false
		}
	}

	if !freeplay {
		for _, s := range ledger.Sorted() {
			effects = append(effects, e.announce(s)...)
			effects = append(effects, e.enforce(s, now)...)
		}
	}

	if err := e.save(ctx, ledger); err != nil {
		return nil, err
	}

	e.freeplayAnnounced = announced
	e.firstCycleDone = true

	metrics.PlayersOnline.Set(float64(len(players)))
	metrics.LedgerSize.Set(float64(len(ledger)))

	e.logger.Debug().
		Int("online", len(players)).
		Int("tracked", len(ledger)).
		Int("effects", len(effects)).
		Bool("freeplay", freeplay).
		Msg("Cycle complete")

	return effects, nil
}

// integrate charges a roster player for the time since the last cycle.
func (e *Engine) integrate(ledger Ledger, player string, now time.Time, freeplay bool) []Effect {
	s, ok := ledger[player]
	if !ok {
		s = newSession(player, now)
		ledger[player] = s
		e.logger.Info().Str("player", player).Msg("Tracking new player")
	}

	wasOnline := s.Online
	s.Online = true
	defer func() { s.LastChecked = now }()

	if wasOnline {
		delta := e.delta(s, now)
		if s.Banned && !freeplay {
			e.logger.Warn().Str("player", player).Msg("Banned player online, reissuing ban")
			metrics.BansTotal.WithLabelValues("evasion").Inc()
			return []Effect{Ban(player, banReason)}
		}
		s.charge(delta)
		metrics.PlaytimeSeconds.WithLabelValues(player).Add(delta.Seconds())
		return nil
	}

	effects := []Effect{
		Title(player, Bold("ATTR is active", "gold"), Text("Your playtime is being tracked", "yellow")),
	}

	if freeplay {
		return append(effects, Tell(player,
			Text(fmt.Sprintf("Welcome %s! ", player), "green"),
			Bold("Unlimited playtime today, enjoy!", "gold"),
		))
	}

	remaining := s.Remaining(e.opts.DailyLimit)
	if remaining <= 0 || s.Banned {
		return append(effects, Tell(player,
			Bold("You have no playtime left today. You are not welcome here until tomorrow!", "red"),
		))
	}

	parts := []Part{
		Text(fmt.Sprintf("Welcome back %s! You have ", player), "green"),
		Bold(FormatHM(remaining), "aqua"),
		Text(" remaining today", "green"),
	}
	if s.Rollover > 0 {
		parts = append(parts, Text(fmt.Sprintf(" (including %s rollover)", FormatHours(s.Rollover)), "gray"))
	}
	return append(effects, Tell(player, parts...))
}

// delta clamps the time since the last check. Negative deltas charge
// nothing; outsized ones are replaced by the fallback.
func (e *Engine) delta(s *Session, now time.Time) time.Duration {
	if s.LastChecked.IsZero() {
		return 0
	}
	delta := now.Sub(s.LastChecked)
	switch {
	case delta < 0:
		e.logger.Warn().Str("player", s.Player).Dur("delta", delta).Msg("Clock went backwards, charging nothing")
		return 0
	case delta > e.opts.MaxCycleDelta:
		e.logger.Warn().
			Str("player", s.Player).
			Dur("delta", delta).
			Dur("fallback", e.opts.FallbackDelta).
			Msg("Cycle delta too large, using fallback")
		return e.opts.FallbackDelta
	}
	return delta
}

// announce fires the smallest unfired threshold the session has crossed.
func (e *Engine) announce(s *Session) []Effect {
	remaining := s.Remaining(e.opts.DailyLimit)
	for i, th := range Thresholds {
		if remaining > th.Remaining || s.Announced.Has(i) {
			continue
		}
		s.Announced.Set(i)
		metrics.AnnouncementsTotal.WithLabelValues(th.Label).Inc()
		e.logger.Info().Str("player", s.Player).Str("label", th.Label).Msg("Remaining time announced")

		left := FormatDuration(th.Remaining)
		return []Effect{
			Broadcast(
				Bold(s.Player, "yellow"),
				Text(fmt.Sprintf(" has around %s left before reaching today's limit!", left), "gold"),
			),
			Title(s.Player, Bold(left+" left", "red"), Text("Time to wrap up!", "yellow")),
		}
	}
	return nil
}

const banReason = "Reached daily playtime limit"

// enforce bans a session that has used its whole quota.
func (e *Engine) enforce(s *Session, now time.Time) []Effect {
	if s.Banned || s.Playtime < e.opts.DailyLimit+s.Rollover {
		return nil
	}
	s.ban(now)
	metrics.BansTotal.WithLabelValues("limit").Inc()
	e.logger.Info().Str("player", s.Player).Msg("Daily limit reached, banning")
	return []Effect{
		Broadcast(
			Bold(s.Player, "yellow"),
			Text(fmt.Sprintf(" has reached the %s daily limit! Banning until tomorrow.", FormatDuration(e.opts.DailyLimit)), "red"),
		),
		Ban(s.Player, banReason),
	}
}
