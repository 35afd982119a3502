package watch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goodtune/attr/internal/quota"
	"github.com/rs/zerolog"
)

type fakeHost struct {
	online    bool
	healthErr error
	roster    []string
	rosterErr error
}

func (h *fakeHost) IsOnline(ctx context.Context, name string) (bool, error) {
	return h.online, h.healthErr
}

func (h *fakeHost) OnlinePlayers(ctx context.Context, name string) ([]string, error) {
	return h.roster, h.rosterErr
}

type fakeEngine struct {
	rosters  [][]string
	err      error
	suspends int
}

func (e *fakeEngine) Suspend() {
	e.suspends++
}

func (e *fakeEngine) Cycle(ctx context.Context, roster []string) ([]quota.Effect, error) {
	e.rosters = append(e.rosters, roster)
	if e.err != nil {
		return nil, e.err
	}
	return []quota.Effect{quota.Pardon(roster[0])}, nil
}

type fakeOut struct {
	effects []quota.Effect
}

func (o *fakeOut) Dispatch(ctx context.Context, effects []quota.Effect) error {
	o.effects = append(o.effects, effects...)
	return nil
}

func (o *fakeOut) watching() int {
	n := 0
	for _, e := range o.effects {
		if strings.Contains(e.PlainText(), WatchingMessage) {
			n++
		}
	}
	return n
}

func newTestWatcher() (*Watcher, *fakeHost, *fakeEngine, *fakeOut, *int) {
	host := &fakeHost{roster: []string{"steve"}}
	engine := &fakeEngine{}
	out := &fakeOut{}
	w := New(host, engine, out, Options{
		ServerName:     "survival",
		HealthInterval: 2 * time.Minute,
		CycleInterval:  30 * time.Second,
	}, zerolog.Nop())
	pings := new(int)
	w.watchdog = func() error {
		*pings++
		return nil
	}
	return w, host, engine, out, pings
}

func TestStepOfflineDoesNotCycle(t *testing.T) {
	w, _, engine, out, _ := newTestWatcher()

	if wait := w.Step(context.Background()); wait != 2*time.Minute {
		t.Errorf("wait = %v, want health interval", wait)
	}
	if len(engine.rosters) != 0 || len(out.effects) != 0 {
		t.Errorf("offline step ran a cycle: %v %v", engine.rosters, out.effects)
	}
}

func TestStepOnlineTransitions(t *testing.T) {
	w, host, engine, out, pings := newTestWatcher()
	ctx := context.Background()
	host.online = true

	if wait := w.Step(ctx); wait != 30*time.Second {
		t.Errorf("wait = %v, want cycle interval", wait)
	}
	if out.watching() != 1 {
		t.Errorf("expected watching announcement, got %+v", out.effects)
	}
	if len(engine.rosters) != 1 || engine.rosters[0][0] != "steve" {
		t.Errorf("rosters = %v", engine.rosters)
	}
	if *pings != 1 {
		t.Errorf("watchdog pings = %d, want 1", *pings)
	}

	w.Step(ctx)
	if out.watching() != 1 {
		t.Error("watching announcement repeated while online")
	}
	if len(engine.rosters) != 2 {
		t.Errorf("cycles = %d, want 2", len(engine.rosters))
	}

	host.online = false
	w.Step(ctx)
	host.healthErr = errors.New("api down")
	host.online = true
	w.Step(ctx)
	if len(engine.rosters) != 2 {
		t.Error("cycle ran while server unreachable")
	}

	host.healthErr = nil
	w.Step(ctx)
	if out.watching() != 2 {
		t.Errorf("expected a second announcement after coming back, got %d", out.watching())
	}
}

func TestStepSuspendsWhenServerLost(t *testing.T) {
	tests := []struct {
		name      string
		online    bool
		healthErr error
		want      int
	}{
		{name: "still online", online: true, want: 0},
		{name: "went offline", online: false, want: 1},
		{name: "health check failed", online: true, healthErr: errors.New("api down"), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, host, engine, _, _ := newTestWatcher()
			ctx := context.Background()
			host.online = true
			w.Step(ctx)

			host.online = tt.online
			host.healthErr = tt.healthErr
			w.Step(ctx)
			w.Step(ctx)
			if engine.suspends != tt.want {
				t.Errorf("suspends = %d, want %d", engine.suspends, tt.want)
			}
		})
	}
}

func TestStepNeverOnlineDoesNotSuspend(t *testing.T) {
	w, _, engine, _, _ := newTestWatcher()
	w.Step(context.Background())
	if engine.suspends != 0 {
		t.Errorf("suspends = %d, want 0", engine.suspends)
	}
}

func TestStepSkipsCycleOnRosterError(t *testing.T) {
	w, host, engine, _, pings := newTestWatcher()
	host.online = true
	host.rosterErr = errors.New("timeout")

	w.Step(context.Background())
	if len(engine.rosters) != 0 || *pings != 0 {
		t.Errorf("cycle ran without a roster")
	}
}

func TestStepCycleError(t *testing.T) {
	w, host, engine, out, pings := newTestWatcher()
	host.online = true
	engine.err = errors.New("disk full")

	w.Step(context.Background())
	if *pings != 0 {
		t.Error("watchdog pinged after failed cycle")
	}
	if len(out.effects) != 1 {
		t.Errorf("only the announcement should be dispatched: %+v", out.effects)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	w, _, _, _, _ := newTestWatcher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v", err)
	}
}
