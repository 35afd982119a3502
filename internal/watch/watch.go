package watch

import (
	"context"
	"time"

	"github.com/goodtune/attr/internal/metrics"
	"github.com/goodtune/attr/internal/quota"
	"github.com/goodtune/attr/internal/systemd"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WatchingMessage is broadcast whenever the server comes online.
const WatchingMessage = "ATTR is now watching this server. GLHF (in moderation)"

// Host reports server health and roster.
type Host interface {
	IsOnline(ctx context.Context, name string) (bool, error)
	OnlinePlayers(ctx context.Context, name string) ([]string, error)
}

// Cycler runs quota cycles. Suspend is called when the server stops being
// observable so the outage is not charged once it returns.
type Cycler interface {
	Cycle(ctx context.Context, roster []string) ([]quota.Effect, error)
	Suspend()
}

// Dispatcher executes effects against the game server.
type Dispatcher interface {
	Dispatch(ctx context.Context, effects []quota.Effect) error
}

// Options configures a Watcher.
type Options struct {
	ServerName     string
	HealthInterval time.Duration
	CycleInterval  time.Duration
}

// Watcher drives the quota engine while the game server is online and
// pauses it entirely while the server is down.
type Watcher struct {
	host     Host
	engine   Cycler
	out      Dispatcher
	opts     Options
	watchdog func() error
	logger   zerolog.Logger

	online bool
}

// New creates a new watcher
func New(host Host, engine Cycler, out Dispatcher, opts Options, logger zerolog.Logger) *Watcher {
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = time.Minute
	}
	if opts.CycleInterval <= 0 {
		opts.CycleInterval = time.Minute
	}
	return &Watcher{
		host:     host,
		engine:   engine,
		out:      out,
		opts:     opts,
		watchdog: systemd.NotifyWatchdog,
		logger:   logger.With().Str("component", "watch").Str("server", opts.ServerName).Logger(),
	}
}

// Run steps until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info().
		Dur("health_interval", w.opts.HealthInterval).
		Dur("cycle_interval", w.opts.CycleInterval).
		Msg("Watcher started")

	for {
		wait := w.Step(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Watcher stopped")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Step checks health and, when the server is online, runs one cycle. It
// returns how long to wait before the next step.
func (w *Watcher) Step(ctx context.Context) time.Duration {
	online, err := w.host.IsOnline(ctx, w.opts.ServerName)
	if err != nil {
		w.logger.Error().Err(err).Msg("Health check failed")
		online = false
	}

	if !online {
		metrics.ServerOnline.Set(0)
		if w.online {
			w.logger.Info().Msg("Server offline, pausing session tracking")
			_ = systemd.NotifyStatus("server offline, tracking paused")
			w.engine.Suspend()
		}
		w.online = false
		return w.opts.HealthInterval
	}

	metrics.ServerOnline.Set(1)
	if !w.online {
		w.logger.Info().Msg("Server online, session tracking active")
		_ = systemd.NotifyStatus("server online, tracking sessions")
		if err := w.out.Dispatch(ctx, []quota.Effect{quota.Broadcast(quota.Text(WatchingMessage, "green"))}); err != nil {
			w.logger.Warn().Err(err).Msg("Failed to announce watcher")
		}
	}
	w.online = true

	w.cycle(ctx)
	return w.opts.CycleInterval
}

func (w *Watcher) cycle(ctx context.Context) {
	log := w.logger.With().Str("cycle_id", uuid.NewString()).Logger()

	roster, err := w.host.OnlinePlayers(ctx, w.opts.ServerName)
	if err != nil {
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		log.Error().Err(err).Msg("Failed to fetch roster, skipping cycle")
		return
	}

	effects, err := w.engine.Cycle(ctx, roster)
	if err != nil {
		log.Error().Err(err).Msg("Cycle failed")
		return
	}

	if len(effects) > 0 {
		if err := w.out.Dispatch(ctx, effects); err != nil {
			log.Warn().Err(err).Int("effects", len(effects)).Msg("Some effects were not delivered")
		}
	}

	if err := w.watchdog(); err != nil {
		log.Warn().Err(err).Msg("Failed to notify watchdog")
	}

	log.Debug().Int("roster", len(roster)).Int("effects", len(effects)).Msg("Cycle dispatched")
}
