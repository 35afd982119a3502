package quota

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func TestAdminMutations(t *testing.T) {
	ctx := context.Background()

	t.Run("add time", func(t *testing.T) {
		engine, store, _ := newTestEngine(t, monday)
		store.put(&Session{Player: "steve", Rollover: 10 * time.Minute, SessionDate: "2025-01-06"})

		s, err := engine.AddTime(ctx, "steve", 90*time.Second)
		if err != nil {
			t.Fatalf("AddTime() error = %v", err)
		}
		if s.Rollover != 11*time.Minute+30*time.Second {
			t.Errorf("rollover = %v", s.Rollover)
		}

		s, err = engine.AddTime(ctx, "steve", -time.Hour)
		if err != nil {
			t.Fatalf("AddTime() error = %v", err)
		}
		if s.Rollover != 0 || store.get(t, "steve").Rollover != 0 {
			t.Errorf("negative adjustment not clamped: %v", s.Rollover)
		}
	})

	t.Run("add time past cap", func(t *testing.T) {
		engine, store, _ := newTestEngine(t, monday)
		store.put(&Session{Player: "steve", Rollover: time.Hour, SessionDate: "2025-01-06"})

		for _, d := range []time.Duration{MaxRollover, math.MaxInt64} {
			if _, err := engine.AddTime(ctx, "steve", d); !errors.Is(err, ErrRolloverLimit) {
				t.Fatalf("AddTime(%v) error = %v, want ErrRolloverLimit", d, err)
			}
		}
		if store.saves != 0 || store.get(t, "steve").Rollover != time.Hour {
			t.Errorf("rejected adjustment changed the ledger: %v", store.get(t, "steve").Rollover)
		}

		s, err := engine.AddTime(ctx, "steve", MaxRollover-time.Hour)
		if err != nil {
			t.Fatalf("AddTime() error = %v", err)
		}
		if s.Rollover != MaxRollover {
			t.Errorf("rollover = %v, want %v", s.Rollover, MaxRollover)
		}

		s, err = engine.AddTime(ctx, "steve", math.MinInt64)
		if err != nil {
			t.Fatalf("AddTime() error = %v", err)
		}
		if s.Rollover != 0 {
			t.Errorf("rollover = %v, want 0", s.Rollover)
		}
	})

	t.Run("reset time", func(t *testing.T) {
		engine, store, _ := newTestEngine(t, monday)
		store.put(&Session{
			Player:      "steve",
			Playtime:    2 * time.Hour,
			Rollover:    time.Hour,
			Banned:      true,
			Announced:   0x1f,
			SessionDate: "2025-01-06",
		})

		if _, err := engine.ResetTime(ctx, "steve"); err != nil {
			t.Fatalf("ResetTime() error = %v", err)
		}
		s := store.get(t, "steve")
		if s.Playtime != 0 || s.Rollover != 0 || s.Banned || s.Announced != 0 {
			t.Errorf("session not reset: %+v", s)
		}
	})

	t.Run("unban", func(t *testing.T) {
		engine, store, _ := newTestEngine(t, monday)
		store.put(&Session{Player: "steve", Banned: true, SessionDate: "2025-01-06"})

		s, err := engine.Unban(ctx, "steve")
		if err != nil {
			t.Fatalf("Unban() error = %v", err)
		}
		if s.Banned || store.get(t, "steve").Banned {
			t.Error("player still banned")
		}
	})

	t.Run("unknown player", func(t *testing.T) {
		engine, store, _ := newTestEngine(t, monday)
		for name, fn := range map[string]func() error{
			"add":    func() error { _, err := engine.AddTime(ctx, "nobody", time.Minute); return err },
			"reset":  func() error { _, err := engine.ResetTime(ctx, "nobody"); return err },
			"unban":  func() error { _, err := engine.Unban(ctx, "nobody"); return err },
			"lookup": func() error { _, err := engine.Lookup(ctx, "nobody"); return err },
		} {
			if err := fn(); !errors.Is(err, ErrUnknownPlayer) {
				t.Errorf("%s: error = %v, want ErrUnknownPlayer", name, err)
			}
		}
		if store.saves != 0 {
			t.Error("ledger saved for unknown player")
		}
	})
}

func TestUpdateErrorDoesNotSave(t *testing.T) {
	engine, store, _ := newTestEngine(t, monday)
	store.put(&Session{Player: "steve", SessionDate: "2025-01-06"})

	boom := errors.New("boom")
	_, err := engine.Update(context.Background(), "steve", func(s *Session) error {
		s.Playtime = time.Hour
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v", err)
	}
	if store.saves != 0 || store.get(t, "steve").Playtime != 0 {
		t.Error("failed update was saved")
	}
}

func TestSnapshot(t *testing.T) {
	engine, store, _ := newTestEngine(t, monday)
	store.put(&Session{Player: "b", Playtime: time.Minute})
	store.put(&Session{Player: "a", Rollover: time.Hour})

	ledger, err := engine.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	players := ledger.Players()
	if len(players) != 2 || players[0] != "a" || players[1] != "b" {
		t.Errorf("players = %v", players)
	}
	if ledger["a"].Rollover != time.Hour {
		t.Errorf("rollover = %v", ledger["a"].Rollover)
	}
}
