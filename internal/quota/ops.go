package quota

import (
	"context"
	"time"
)

// Snapshot returns a copy of the whole ledger.
func (e *Engine) Snapshot(ctx context.Context) (Ledger, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load(ctx)
}

// Lookup returns a copy of one player's session.
func (e *Engine) Lookup(ctx context.Context, player string) (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ledger, err := e.load(ctx)
	if err != nil {
		return Session{}, err
	}
	s, ok := ledger[player]
	if !ok {
		return Session{}, ErrUnknownPlayer
	}
	return *s, nil
}

// Update loads the ledger, applies fn to the player's session and saves.
// Nothing is saved if fn returns an error.
func (e *Engine) Update(ctx context.Context, player string, fn func(*Session) error) (Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ledger, err := e.load(ctx)
	if err != nil {
		return Session{}, err
	}
	s, ok := ledger[player]
	if !ok {
		return Session{}, ErrUnknownPlayer
	}
	if err := fn(s); err != nil {
		return Session{}, err
	}
	s.clamp()
	if err := e.save(ctx, ledger); err != nil {
		return Session{}, err
	}
	return *s, nil
}

// MaxRollover caps the rollover a single player can hold.
const MaxRollover = 100 * 365 * 24 * time.Hour

// AddTime adjusts a player's rollover by d, which may be negative. The
// result never drops below zero or rises above MaxRollover.
func (e *Engine) AddTime(ctx context.Context, player string, d time.Duration) (Session, error) {
	s, err := e.Update(ctx, player, func(s *Session) error {
		if d > 0 && s.Rollover > MaxRollover-d {
			return reject(ErrRolloverLimit, "Rollover cannot exceed "+FormatDuration(MaxRollover)+".")
		}
		s.Rollover += d
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	e.logger.Info().
		Str("player", player).
		Dur("delta", d).
		Dur("rollover", s.Rollover).
		Msg("Rollover adjusted")
	return s, nil
}

// ResetTime clears a player's playtime, rollover, ban and announcements.
func (e *Engine) ResetTime(ctx context.Context, player string) (Session, error) {
	s, err := e.Update(ctx, player, func(s *Session) error {
		s.Playtime = 0
		s.Rollover = 0
		s.Banned = false
		s.Announced = 0
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	e.logger.Info().Str("player", player).Msg("Session reset")
	return s, nil
}

// Unban clears the ban flag. The caller issues the pardon command.
func (e *Engine) Unban(ctx context.Context, player string) (Session, error) {
	s, err := e.Update(ctx, player, func(s *Session) error {
		s.pardon()
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	e.logger.Info().Str("player", player).Msg("Player unbanned")
	return s, nil
}
