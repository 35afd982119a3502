package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goodtune/attr/internal/metrics"
	"github.com/goodtune/attr/internal/quota"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// publicCommands are listed by help for players who are not admins.
var publicCommands = []string{"gambaodds", "gamble", "help", "playtime", "rollover", "rules", "stats", "version"}

// Dispatcher executes effects against the game server.
type Dispatcher interface {
	Dispatch(ctx context.Context, effects []quota.Effect) error
}

// Request is one parsed command invocation.
type Request struct {
	Player string
	Name   string
	Args   []string
}

// HandlerFunc runs a command and returns the effects to execute.
type HandlerFunc func(ctx context.Context, req Request) ([]quota.Effect, error)

type command struct {
	handler HandlerFunc
	admin   bool
}

// Options configures a Router.
type Options struct {
	Prefix    string
	Admins    Admins
	RateLimit float64
	RateBurst int
	Version   string
}

// Router turns chat lines into command handler calls.
type Router struct {
	engine   *quota.Engine
	out      Dispatcher
	prefix   string
	admins   Admins
	version  string
	commands map[string]command
	limit    rate.Limit
	burst    int
	limiters *lru.Cache[string, *rate.Limiter]
	logger   zerolog.Logger
}

// NewRouter creates a router with the standard command table.
func NewRouter(engine *quota.Engine, out Dispatcher, opts Options, logger zerolog.Logger) (*Router, error) {
	if opts.Prefix == "" {
		opts.Prefix = "!"
	}
	if opts.Admins == nil {
		opts.Admins = Admins{}
	}
	if opts.Version == "" {
		opts.Version = BuildVersion()
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}
	limiters, err := lru.New[string, *rate.Limiter](1024)
	if err != nil {
		return nil, fmt.Errorf("failed to create limiter cache: %w", err)
	}

	r := &Router{
		engine:   engine,
		out:      out,
		prefix:   opts.Prefix,
		admins:   opts.Admins,
		version:  opts.Version,
		limit:    limit,
		burst:    opts.RateBurst,
		limiters: limiters,
		logger:   logger.With().Str("component", "commands").Logger(),
	}
	r.register()
	return r, nil
}

func (r *Router) register() {
	r.commands = map[string]command{
		"help":      {handler: r.cmdHelp},
		"playtime":  {handler: r.cmdPlaytime},
		"rollover":  {handler: r.cmdRollover},
		"stats":     {handler: r.cmdStats},
		"rules":     {handler: r.cmdRules},
		"gamble":    {handler: r.cmdGamble},
		"gambaodds": {handler: r.cmdGambaOdds},
		"version":   {handler: r.cmdVersion},
		"unban":     {handler: r.cmdUnban, admin: true},
		"addtime":   {handler: r.cmdAddTime, admin: true},
		"resettime": {handler: r.cmdResetTime, admin: true},
		"adminhelp": {handler: r.cmdAdminHelp, admin: true},
	}
	r.logger.Debug().Int("commands", len(r.commands)).Msg("Registered commands")
}

// Names returns every registered command name sorted.
func (r *Router) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandleLine processes one console line. It is safe to use as the
// transport line handler.
func (r *Router) HandleLine(ctx context.Context, line string) {
	chat, ok := ParseLine(line)
	if !ok {
		return
	}
	r.logger.Debug().Str("player", chat.Player).Str("message", chat.Message).Msg("Chat")

	name, args, ok := ParseCommand(r.prefix, chat.Message)
	if !ok {
		return
	}
	effects := r.Handle(ctx, Request{Player: chat.Player, Name: name, Args: args})
	if len(effects) == 0 || r.out == nil {
		return
	}
	if err := r.out.Dispatch(ctx, effects); err != nil {
		r.logger.Error().Err(err).Str("player", chat.Player).Str("command", name).Msg("Failed to deliver command response")
	}
}

// Handle runs a parsed command and returns its effects. Handler errors and
// panics become a reply to the player.
func (r *Router) Handle(ctx context.Context, req Request) (effects []quota.Effect) {
	log := r.logger.With().Str("player", req.Player).Str("command", req.Name).Strs("args", req.Args).Logger()

	cmd, ok := r.commands[req.Name]
	if !ok {
		metrics.CommandsTotal.WithLabelValues("unknown", "unknown").Inc()
		return []quota.Effect{reply(req.Player, fmt.Sprintf("Unknown command: %s%s. Type %shelp for available commands.", r.prefix, req.Name, r.prefix))}
	}

	if !r.allow(req.Player) {
		metrics.CommandsTotal.WithLabelValues(req.Name, "rate_limited").Inc()
		log.Warn().Msg("Command rate limited")
		return []quota.Effect{reply(req.Player, "You're sending commands too fast, slow down!")}
	}

	if cmd.admin && !r.admins.Contains(req.Player) {
		metrics.CommandsTotal.WithLabelValues(req.Name, "denied").Inc()
		log.Warn().Msg("Admin command denied")
		return []quota.Effect{reply(req.Player, "You don't have permission to use this command!")}
	}

	log.Info().Msg("Executing command")

	defer func() {
		if rec := recover(); rec != nil {
			metrics.CommandsTotal.WithLabelValues(req.Name, "panic").Inc()
			log.Error().Interface("panic", rec).Msg("Command handler panicked")
			effects = []quota.Effect{reply(req.Player, fmt.Sprintf("Error executing command: %v", rec))}
		}
	}()

	effects, err := cmd.handler(ctx, req)
	if err != nil {
		var rejection *quota.RejectionError
		switch {
		case errors.As(err, &rejection):
			metrics.CommandsTotal.WithLabelValues(req.Name, "rejected").Inc()
			log.Debug().Err(err).Msg("Command rejected")
			return []quota.Effect{quota.Tell(req.Player, tag(req.Player), quota.Bold(rejection.Message, "red"))}
		case errors.Is(err, errUsage):
			metrics.CommandsTotal.WithLabelValues(req.Name, "usage").Inc()
			return []quota.Effect{reply(req.Player, err.Error())}
		default:
			metrics.CommandsTotal.WithLabelValues(req.Name, "error").Inc()
			log.Error().Err(err).Msg("Command handler error")
			return []quota.Effect{reply(req.Player, fmt.Sprintf("Error executing command: %v", err))}
		}
	}

	metrics.CommandsTotal.WithLabelValues(req.Name, "ok").Inc()
	return effects
}

func (r *Router) allow(player string) bool {
	if r.limit == rate.Inf {
		return true
	}
	limiter, ok := r.limiters.Get(player)
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.limiters.Add(player, limiter)
	}
	return limiter.Allow()
}

// errUsage marks player-facing usage errors.
var errUsage = errors.New("usage")

type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func (e *usageError) Is(target error) bool { return target == errUsage }

func usage(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func tag(player string) quota.Part {
	return quota.Text("["+player+"] ", "gray")
}

func adminTag(player string) quota.Part {
	return quota.Text("[ADMIN "+player+"] ", "red")
}

// reply is a plain direct message.
func reply(player, text string) quota.Effect {
	return quota.Tell(player, quota.Text(text, "white"))
}

// Ready is the broadcast sent once the console stream is subscribed.
func (r *Router) Ready() quota.Effect {
	return quota.Broadcast(
		quota.Text("[", "gray"),
		quota.Bold("ATTR", "green"),
		quota.Text("] ", "gray"),
		quota.Text("Ready for commands! ", "aqua"),
		quota.Text("Type ", "white"),
		quota.Bold(r.prefix+"help", "yellow"),
		quota.Text(" for available commands.", "white"),
	)
}
