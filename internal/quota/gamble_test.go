package quota

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func fixedRoll(v float64) func() float64 {
	return func() float64 { return v }
}

func TestGambleLossChargesPlaytime(t *testing.T) {
	engine, store, _ := newTestEngine(t, monday)
	engine.SetRandom(fixedRoll(0.45))
	store.put(&Session{
		Player:      "steve",
		Playtime:    10000 * time.Second,
		SessionDate: monday.Format(DateLayout),
	})

	result, err := engine.Gamble(context.Background(), "steve", 5, 2.0)
	if err != nil {
		t.Fatalf("Gamble() error = %v", err)
	}
	if result.Won {
		t.Fatal("expected a loss")
	}

	s := store.get(t, "steve")
	if s.Rollover != 0 {
		t.Errorf("rollover = %v, want 0", s.Rollover)
	}
	if s.Playtime != 10300*time.Second {
		t.Errorf("playtime = %v, want 10300s", s.Playtime)
	}
}

func TestGambleResolution(t *testing.T) {
	tests := []struct {
		name         string
		playtime     time.Duration
		rollover     time.Duration
		bet          int
		multiplier   float64
		roll         float64
		wantWon      bool
		wantPlaytime time.Duration
		wantRollover time.Duration
	}{
		{
			name:         "win credits profit",
			rollover:     10 * time.Minute,
			bet:          10,
			multiplier:   1.5,
			roll:         0.1,
			wantWon:      true,
			wantRollover: 15 * time.Minute,
		},
		{
			name:         "win credits whole seconds",
			bet:          7,
			multiplier:   1.05,
			roll:         0,
			wantWon:      true,
			wantRollover: 21 * time.Second,
		},
		{
			name:         "tolerant multiplier match",
			bet:          5,
			multiplier:   2.0004,
			roll:         0.2,
			wantWon:      true,
			wantRollover: 5 * time.Minute,
		},
		{
			name:         "loss covered by rollover",
			playtime:     time.Hour,
			rollover:     20 * time.Minute,
			bet:          5,
			multiplier:   10,
			roll:         0.5,
			wantPlaytime: time.Hour,
			wantRollover: 15 * time.Minute,
		},
		{
			name:         "loss split across rollover and playtime",
			playtime:     time.Hour,
			rollover:     2 * time.Minute,
			bet:          5,
			multiplier:   3,
			roll:         0.3,
			wantPlaytime: time.Hour + 3*time.Minute,
			wantRollover: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, store, _ := newTestEngine(t, monday)
			engine.SetRandom(fixedRoll(tt.roll))
			store.put(&Session{
				Player:      "alex",
				Playtime:    tt.playtime,
				Rollover:    tt.rollover,
				SessionDate: monday.Format(DateLayout),
			})

			result, err := engine.Gamble(context.Background(), "alex", tt.bet, tt.multiplier)
			if err != nil {
				t.Fatalf("Gamble() error = %v", err)
			}
			if result.Won != tt.wantWon {
				t.Errorf("won = %v, want %v", result.Won, tt.wantWon)
			}
			s := store.get(t, "alex")
			if s.Playtime != tt.wantPlaytime || s.Rollover != tt.wantRollover {
				t.Errorf("playtime=%v rollover=%v, want %v %v", s.Playtime, s.Rollover, tt.wantPlaytime, tt.wantRollover)
			}
			if result.Session.Rollover != s.Rollover {
				t.Errorf("result session out of sync with store")
			}

			effects := result.Effects()
			if countKind(effects, EffectTitle, "alex") != 1 || countKind(effects, EffectBroadcast, "") != 1 {
				t.Errorf("unexpected effects %+v", effects)
			}
		})
	}
}

func TestGambleWinRoundsToNearestSecond(t *testing.T) {
	engine, store, _ := newTestEngine(t, monday)
	engine.opts.Odds = OddsTable{{Multiplier: 1.2, Probability: 0.7}}
	engine.SetRandom(fixedRoll(0))
	store.put(&Session{Player: "alex", SessionDate: monday.Format(DateLayout)})

	result, err := engine.Gamble(context.Background(), "alex", 5, 1.2)
	if err != nil {
		t.Fatalf("Gamble() error = %v", err)
	}
	if result.Winnings != time.Minute {
		t.Errorf("winnings = %v, want 1m0s", result.Winnings)
	}
	if s := store.get(t, "alex"); s.Rollover != time.Minute {
		t.Errorf("rollover = %v, want 1m0s", s.Rollover)
	}
}

func TestGambleRejections(t *testing.T) {
	tests := []struct {
		name       string
		now        time.Time
		player     string
		playtime   time.Duration
		bet        int
		multiplier float64
		want       error
	}{
		{name: "freeplay day", now: saturday, player: "steve", bet: 5, multiplier: 2, want: ErrFreeplayDay},
		{name: "no session", now: monday, player: "herobrine", bet: 5, multiplier: 2, want: ErrNoSession},
		{name: "too little remaining", now: monday, player: "steve", playtime: 3*time.Hour - 4*time.Minute, bet: 5, multiplier: 2, want: ErrInsufficientTime},
		{name: "bet too small", now: monday, player: "steve", bet: 4, multiplier: 2, want: ErrBetTooSmall},
		{name: "bet exceeds remaining", now: monday, player: "steve", playtime: 2 * time.Hour, bet: 61, multiplier: 2, want: ErrBetExceedsRemaining},
		{name: "unknown multiplier", now: monday, player: "steve", bet: 5, multiplier: 1.7, want: ErrUnknownMultiplier},
		{name: "negative bet", now: monday, player: "steve", bet: -300, multiplier: 2, want: ErrBetTooSmall},
		{name: "most negative bet", now: monday, player: "steve", bet: math.MinInt, multiplier: 2, want: ErrBetTooSmall},
		{name: "bet overflowing a duration", now: monday, player: "steve", bet: 307445740, multiplier: 2, want: ErrBetExceedsRemaining},
		{name: "largest bet", now: monday, player: "steve", bet: math.MaxInt, multiplier: 2, want: ErrBetExceedsRemaining},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, store, _ := newTestEngine(t, tt.now)
			engine.SetRandom(func() float64 {
				t.Fatal("random drawn for a rejected gamble")
				return 0
			})
			store.put(&Session{
				Player:      "steve",
				Playtime:    tt.playtime,
				SessionDate: tt.now.Format(DateLayout),
			})
			before := store.get(t, "steve")

			_, err := engine.Gamble(context.Background(), tt.player, tt.bet, tt.multiplier)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Gamble() error = %v, want %v", err, tt.want)
			}
			var rejection *RejectionError
			if !errors.As(err, &rejection) || rejection.Message == "" {
				t.Errorf("expected a player-facing rejection, got %v", err)
			}
			if store.saves != 0 {
				t.Errorf("rejected gamble saved the ledger")
			}
			if after := store.get(t, "steve"); *after != *before {
				t.Errorf("session changed: %+v -> %+v", before, after)
			}
		})
	}
}

func TestCheckGambleEligibility(t *testing.T) {
	engine, store, _ := newTestEngine(t, monday)
	store.put(&Session{
		Player:      "steve",
		Playtime:    time.Hour,
		Rollover:    30 * time.Minute,
		SessionDate: monday.Format(DateLayout),
	})

	remaining, err := engine.CheckGambleEligibility(context.Background(), "steve")
	if err != nil {
		t.Fatalf("CheckGambleEligibility() error = %v", err)
	}
	if remaining != 2*time.Hour+30*time.Minute {
		t.Errorf("remaining = %v, want 2h30m", remaining)
	}

	if _, err := engine.CheckGambleEligibility(context.Background(), "alex"); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}
