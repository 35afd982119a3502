package console

import (
	"context"
	"errors"

	"github.com/goodtune/attr/internal/metrics"
	"github.com/goodtune/attr/internal/quota"
	"github.com/rs/zerolog"
)

// Sender executes a console command on the game server.
type Sender interface {
	Send(ctx context.Context, command string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, command string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, command string) error {
	return f(ctx, command)
}

// Dispatcher renders effects and delivers them, preferring the primary
// sender and falling back to the secondary when it fails.
type Dispatcher struct {
	primary  Sender
	fallback Sender
	logger   zerolog.Logger
}

// NewDispatcher creates a new dispatcher. Either sender may be nil.
func NewDispatcher(primary, fallback Sender, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch executes every effect. Failures are logged and counted but do
// not stop the remaining effects; the joined error is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, effects []quota.Effect) error {
	var errs []error
	for _, e := range effects {
		kind := e.Kind.String()
		cmds, err := Render(e)
		if err != nil {
			metrics.EffectsDispatched.WithLabelValues(kind, "render_error").Inc()
			d.logger.Error().Err(err).Str("kind", kind).Msg("Failed to render effect")
			errs = append(errs, err)
			continue
		}

		result := "ok"
		for _, cmd := range cmds {
			if err := d.Send(ctx, cmd); err != nil {
				result = "error"
				errs = append(errs, err)
				break
			}
		}
		metrics.EffectsDispatched.WithLabelValues(kind, result).Inc()
	}
	return errors.Join(errs...)
}

// Send delivers one raw command.
func (d *Dispatcher) Send(ctx context.Context, cmd string) error {
	var err error
	if d.primary != nil {
		if err = d.primary.Send(ctx, cmd); err == nil {
			return nil
		}
		d.logger.Debug().Err(err).Str("command", cmd).Msg("Primary sender failed, falling back")
	}
	if d.fallback == nil {
		if err == nil {
			err = errors.New("no sender configured")
		}
		d.logger.Error().Err(err).Str("command", cmd).Msg("Failed to send command")
		return err
	}
	if err := d.fallback.Send(ctx, cmd); err != nil {
		d.logger.Error().Err(err).Str("command", cmd).Msg("Failed to send command")
		return err
	}
	return nil
}
