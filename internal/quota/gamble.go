package quota

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/goodtune/attr/internal/metrics"
)

// GambleResult describes a resolved wager.
type GambleResult struct {
	Player   string
	Bet      time.Duration
	Odds     Odds
	Roll     float64
	Won      bool
	Winnings time.Duration
	Session  Session
}

// Effects returns the personal title and the broadcast announcing the result.
func (r GambleResult) Effects() []Effect {
	mult := FormatMultiplier(r.Odds.Multiplier)
	betMinutes := int64(r.Bet / time.Minute)

	if r.Won {
		return []Effect{
			Title(r.Player, Bold("JACKPOT!", "gold"), Bold(fmt.Sprintf("Won %s!", FormatMS(r.Winnings)), "green")),
			Broadcast(
				Bold("[GAMBLE] ", "gold"),
				Text(r.Player+" ", "yellow"),
				Bold("WON ", "green"),
				Text(FormatMS(r.Winnings)+" ", "green"),
				Text(fmt.Sprintf("(bet %dm at %sx)!", betMinutes, mult), "white"),
			),
		}
	}
	return []Effect{
		Title(r.Player, Bold("BUST!", "red"), Bold(fmt.Sprintf("Lost %dm", betMinutes), "dark_red")),
		Broadcast(
			Bold("[GAMBLE] ", "gold"),
			Text(r.Player+" ", "yellow"),
			Bold("LOST ", "red"),
			Text(fmt.Sprintf("%dm ", betMinutes), "red"),
			Text(fmt.Sprintf("(bet at %sx)", mult), "white"),
		),
	}
}

// CheckGambleEligibility reports the player's remaining time if they may
// place a wager at all.
func (e *Engine) CheckGambleEligibility(ctx context.Context, player string) (time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, remaining, err := e.eligible(ctx, player)
	return remaining, err
}

func (e *Engine) eligible(ctx context.Context, player string) (Ledger, time.Duration, error) {
	if e.opts.Calendar.IsFreeplay(e.now().Weekday()) {
		return nil, 0, reject(ErrFreeplayDay, "Gambling is disabled on unlimited playtime days!")
	}

	ledger, err := e.load(ctx)
	if err != nil {
		return nil, 0, err
	}
	s, ok := ledger[player]
	if !ok {
		return nil, 0, reject(ErrNoSession, "No session data found. Play for a bit first!")
	}

	remaining := s.Remaining(e.opts.DailyLimit)
	if remaining < e.opts.MinBet {
		return nil, 0, reject(ErrInsufficientTime, fmt.Sprintf(
			"You need at least %s remaining to gamble. You have %dm left.",
			FormatDuration(e.opts.MinBet), max(int64(remaining/time.Minute), 0)))
	}
	return ledger, remaining, nil
}

// checkBet converts a bet in whole minutes, comparing in minutes first so
// an oversized bet cannot overflow into an accepted one.
func (e *Engine) checkBet(betMinutes int, remaining time.Duration) (time.Duration, error) {
	n := int64(betMinutes)
	if n < 0 || (n <= int64(remaining/time.Minute) && time.Duration(n)*time.Minute < e.opts.MinBet) {
		return 0, reject(ErrBetTooSmall, fmt.Sprintf("Minimum bet is %s!", FormatDuration(e.opts.MinBet)))
	}
	if n > int64(remaining/time.Minute) {
		return 0, reject(ErrBetExceedsRemaining, fmt.Sprintf(
			"You can't bet %dm - you only have %s!", betMinutes, FormatMS(remaining)))
	}
	return time.Duration(n) * time.Minute, nil
}

// Gamble wagers betMinutes of quota at multiplier. A win credits the
// profit to rollover; a loss is taken from rollover first and the rest is
// charged as playtime. Rejections leave the ledger unchanged.
func (e *Engine) Gamble(ctx context.Context, player string, betMinutes int, multiplier float64) (*GambleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ledger, remaining, err := e.eligible(ctx, player)
	if err != nil {
		return nil, err
	}

	bet, err := e.checkBet(betMinutes, remaining)
	if err != nil {
		return nil, err
	}
	odds, ok := e.opts.Odds.Lookup(multiplier)
	if !ok {
		return nil, reject(ErrUnknownMultiplier, "Invalid multiplier! Available: "+e.opts.Odds.Multipliers())
	}

	s := ledger[player]
	result := &GambleResult{
		Player: player,
		Bet:    bet,
		Odds:   odds,
		Roll:   e.random(),
	}
	result.Won = result.Roll < odds.Probability

	if result.Won {
		profit := math.Round(bet.Seconds() * (odds.Multiplier - 1))
		result.Winnings = time.Duration(profit) * time.Second
		s.Rollover += result.Winnings
	} else {
		if s.Rollover >= bet {
			s.Rollover -= bet
		} else {
			s.charge(bet - s.Rollover)
			s.Rollover = 0
		}
	}
	s.clamp()

	if err := e.save(ctx, ledger); err != nil {
		return nil, err
	}
	result.Session = *s

	outcome := "lost"
	if result.Won {
		outcome = "won"
	}
	metrics.GamblesTotal.WithLabelValues(outcome, FormatMultiplier(odds.Multiplier)).Inc()
	e.logger.Info().
		Str("player", player).
		Str("outcome", outcome).
		Dur("bet", bet).
		Float64("multiplier", odds.Multiplier).
		Float64("roll", result.Roll).
		Float64("needed", odds.Probability).
		Dur("winnings", result.Winnings).
		Msg("Gamble resolved")

	return result, nil
}
