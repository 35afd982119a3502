package commands

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goodtune/attr/internal/quota"
)

func (r *Router) cmdHelp(ctx context.Context, req Request) ([]quota.Effect, error) {
	names := publicCommands
	extra := ""
	if r.admins.Contains(req.Player) {
		names = r.Names()
		extra = " (Admin commands included)"
	}

	list := make([]string, len(names))
	for i, name := range names {
		list[i] = r.prefix + name
	}
	return []quota.Effect{quota.Tell(req.Player,
		tag(req.Player),
		quota.Text(fmt.Sprintf("Available commands%s: ", extra), "white"),
		quota.Bold(strings.Join(list, ", "), "aqua"),
	)}, nil
}

// target returns the player a query is about and whether it is the caller.
func target(req Request) (string, bool) {
	if len(req.Args) > 0 {
		return req.Args[0], req.Args[0] == req.Player
	}
	return req.Player, true
}

func (r *Router) cmdPlaytime(ctx context.Context, req Request) ([]quota.Effect, error) {
	player, self := target(req)

	answer := func(msg, color string) []quota.Effect {
		return []quota.Effect{quota.Broadcast(tag(req.Player), quota.Bold(msg, color))}
	}

	s, err := r.engine.Lookup(ctx, player)
	if errors.Is(err, quota.ErrUnknownPlayer) {
		if self {
			return answer("No session data found. Play for a bit first!", "red"), nil
		}
		return answer("No session data found for "+player, "red"), nil
	}
	if err != nil {
		return nil, err
	}

	if r.engine.IsFreeplay() {
		if self {
			return answer("You have unlimited playtime today", "green"), nil
		}
		return answer(player+" has unlimited playtime today", "green"), nil
	}

	remaining := s.Remaining(r.engine.DailyLimit())
	if remaining <= 0 {
		if self {
			return answer("You have no time remaining today. Come back tomorrow!", "red"), nil
		}
		return answer(player+" has no time remaining today", "red"), nil
	}

	if !self {
		return answer(fmt.Sprintf("%s has %s remaining today", player, quota.FormatHM(remaining)), "gold"), nil
	}
	msg := fmt.Sprintf("You have %s remaining today", quota.FormatHM(remaining))
	if s.Rollover > 0 {
		msg += fmt.Sprintf(" (includes %s rollover)", quota.FormatHours(s.Rollover))
	}
	return answer(msg, "gold"), nil
}

func (r *Router) cmdRollover(ctx context.Context, req Request) ([]quota.Effect, error) {
	player, self := target(req)

	var msg, color string
	s, err := r.engine.Lookup(ctx, player)
	switch {
	case errors.Is(err, quota.ErrUnknownPlayer):
		msg, color = "No session data found", "red"
		if !self {
			msg += " for " + player
		}
	case err != nil:
		return nil, err
	case s.Rollover > 0:
		hours := fmt.Sprintf("%.1f hours of rollover time", s.Rollover.Hours())
		msg, color = "You have "+hours, "aqua"
		if !self {
			msg = player + " has " + hours
		}
	default:
		msg, color = "You have no rollover time", "yellow"
		if !self {
			msg = player + " has no rollover time"
		}
	}
	return []quota.Effect{quota.Broadcast(tag(req.Player), quota.Bold(msg, color))}, nil
}

func (r *Router) cmdStats(ctx context.Context, req Request) ([]quota.Effect, error) {
	ledger, err := r.engine.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var online, banned int
	var total time.Duration
	for _, s := range ledger {
		if s.Online {
			online++
		}
		if s.Banned {
			banned++
		}
		total += s.Playtime
	}
	var average time.Duration
	if len(ledger) > 0 {
		average = total / time.Duration(len(ledger))
	}

	sep := quota.Text(", ", "white")
	return []quota.Effect{quota.Broadcast(
		tag(req.Player),
		quota.Text("Server Stats: ", "white"),
		quota.Bold(fmt.Sprintf("%d online", online), "green"),
		sep,
		quota.Text(fmt.Sprintf("%d total tracked", len(ledger)), "aqua"),
		sep,
		quota.Bold(fmt.Sprintf("%d banned", banned), "red"),
		sep,
		quota.Text(quota.FormatHours(average)+" avg playtime", "gold"),
	)}, nil
}

func (r *Router) cmdRules(ctx context.Context, req Request) ([]quota.Effect, error) {
	limit := quota.FormatDuration(r.engine.DailyLimit())
	if r.engine.IsFreeplay() {
		return []quota.Effect{quota.Broadcast(
			tag(req.Player),
			quota.Bold("Freeplay Mode Active! ", "green"),
			quota.Text("Unlimited playtime today. ", "aqua"),
			quota.Text("Daily limit: ", "white"),
			quota.Bold(limit+" ", "gold"),
			quota.Text("(unused time rolls over)", "yellow"),
		)}, nil
	}
	return []quota.Effect{quota.Broadcast(
		tag(req.Player),
		quota.Bold("Daily Rules: ", "yellow"),
		quota.Text(limit+" daily limit. ", "gold"),
		quota.Text("Unused time rolls over. ", "aqua"),
		quota.Text("Freeplay days have ", "white"),
		quota.Bold("unlimited playtime!", "green"),
	)}, nil
}

func (r *Router) cmdGamble(ctx context.Context, req Request) ([]quota.Effect, error) {
	if len(req.Args) < 2 {
		remaining, err := r.engine.CheckGambleEligibility(ctx, req.Player)
		if err != nil {
			return nil, err
		}
		parts := []quota.Part{
			tag(req.Player),
			quota.Text(fmt.Sprintf("Usage: %sgamble <minutes> <multiplier>", r.prefix), "white"),
			quota.Text("\nAvailable multipliers: ", "yellow"),
		}
		for i, o := range r.engine.Odds() {
			if i > 0 {
				parts = append(parts, quota.Text(", ", "white"))
			}
			parts = append(parts, quota.Text(fmt.Sprintf("%sx (%.1f%%)", quota.FormatMultiplier(o.Multiplier), o.Probability*100), "gold"))
		}
		parts = append(parts, quota.Text(fmt.Sprintf("\nYou have %s available", quota.FormatMS(remaining)), "aqua"))
		return []quota.Effect{quota.Tell(req.Player, parts...)}, nil
	}

	bet, err := strconv.Atoi(req.Args[0])
	if err != nil {
		return nil, usage("Invalid arguments. Use: %sgamble <minutes> <multiplier>", r.prefix)
	}
	multiplier, err := strconv.ParseFloat(req.Args[1], 64)
	if err != nil {
		return nil, usage("Invalid arguments. Use: %sgamble <minutes> <multiplier>", r.prefix)
	}

	result, err := r.engine.Gamble(ctx, req.Player, bet, multiplier)
	if err != nil {
		return nil, err
	}
	return result.Effects(), nil
}

func (r *Router) cmdGambaOdds(ctx context.Context, req Request) ([]quota.Effect, error) {
	parts := []quota.Part{
		tag(req.Player),
		quota.Bold("Gambling Odds", "gold"),
	}
	for _, o := range r.engine.Odds() {
		parts = append(parts,
			quota.Text("\n• ", "white"),
			quota.Bold(quota.FormatMultiplier(o.Multiplier)+"x", "aqua"),
			quota.Text(fmt.Sprintf(" - %.1f%% chance", o.Probability*100), "yellow"),
			quota.Text(fmt.Sprintf(" (%s)", o.OneIn()), "gray"),
		)
	}
	parts = append(parts,
		quota.Text("\n\n", "white"),
		quota.Bold("Tip: ", "green"),
		quota.Text("Higher multipliers = lower win chance!", "white"),
	)
	return []quota.Effect{quota.Tell(req.Player, parts...)}, nil
}

func (r *Router) cmdVersion(ctx context.Context, req Request) ([]quota.Effect, error) {
	return []quota.Effect{quota.Broadcast(
		tag(req.Player),
		quota.Bold("ATTR Version: "+r.version, "aqua"),
	)}, nil
}

func (r *Router) cmdAdminHelp(ctx context.Context, req Request) ([]quota.Effect, error) {
	sep := quota.Text(", ", "white")
	return []quota.Effect{quota.Tell(req.Player,
		adminTag(req.Player),
		quota.Text("Admin commands: ", "white"),
		quota.Text(r.prefix+"unban <player>", "gold"),
		sep,
		quota.Text(r.prefix+"addtime <player> <minutes>", "gold"),
		sep,
		quota.Text(r.prefix+"resettime <player>", "gold"),
	)}, nil
}

func notFound(player string) error {
	return usage("Player %s not found in session data", player)
}

func (r *Router) cmdUnban(ctx context.Context, req Request) ([]quota.Effect, error) {
	if len(req.Args) < 1 {
		return nil, usage("Usage: %sunban <player>", r.prefix)
	}
	player := req.Args[0]

	if _, err := r.engine.Unban(ctx, player); err != nil {
		if errors.Is(err, quota.ErrUnknownPlayer) {
			return nil, notFound(player)
		}
		return nil, err
	}
	return []quota.Effect{
		quota.Pardon(player),
		quota.Broadcast(
			adminTag(req.Player),
			quota.Text("Unbanned ", "white"),
			quota.Bold(player, "yellow"),
		),
	}, nil
}

func (r *Router) cmdAddTime(ctx context.Context, req Request) ([]quota.Effect, error) {
	if len(req.Args) < 2 {
		return nil, usage("Usage: %saddtime <player> <minutes>", r.prefix)
	}
	player := req.Args[0]
	minutes, err := strconv.ParseFloat(req.Args[1], 64)
	if err != nil || math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return nil, usage("Invalid minutes value. Must be a number.")
	}
	if math.Abs(minutes) > quota.MaxRollover.Minutes() {
		return nil, usage("Minutes value out of range (max %s).", quota.FormatDuration(quota.MaxRollover))
	}

	delta := time.Duration(minutes * float64(time.Minute))
	s, err := r.engine.AddTime(ctx, player, delta)
	if err != nil {
		if errors.Is(err, quota.ErrUnknownPlayer) {
			return nil, notFound(player)
		}
		return nil, err
	}

	amount := strconv.FormatFloat(minutes, 'f', -1, 64)
	verb, prep := "Added", "to"
	if minutes <= 0 {
		verb, prep = "Removed", "from"
		amount = strconv.FormatFloat(-minutes, 'f', -1, 64)
	}
	effects := []quota.Effect{quota.Broadcast(
		adminTag(req.Player),
		quota.Text(verb+" ", "white"),
		quota.Bold(amount+" minutes", "green"),
		quota.Text(" "+prep+" ", "white"),
		quota.Bold(player, "yellow"),
	)}

	if s.Online {
		msg := fmt.Sprintf("An admin has granted you %s extra minutes!", amount)
		if minutes <= 0 {
			msg = fmt.Sprintf("An admin has removed %s minutes from your playtime!", amount)
		}
		effects = append(effects, reply(player, msg))
	}
	return effects, nil
}

func (r *Router) cmdResetTime(ctx context.Context, req Request) ([]quota.Effect, error) {
	if len(req.Args) < 1 {
		return nil, usage("Usage: %sresettime <player>", r.prefix)
	}
	player := req.Args[0]

	s, err := r.engine.ResetTime(ctx, player)
	if err != nil {
		if errors.Is(err, quota.ErrUnknownPlayer) {
			return nil, notFound(player)
		}
		return nil, err
	}

	effects := []quota.Effect{
		quota.Pardon(player),
		quota.Broadcast(
			adminTag(req.Player),
			quota.Text("Reset ", "white"),
			quota.Bold(player, "yellow"),
			quota.Text(fmt.Sprintf("'s session (full %s restored)", quota.FormatDuration(r.engine.DailyLimit())), "green"),
		),
	}
	if s.Online {
		effects = append(effects, reply(player, "An admin has reset your session! You now have full playtime available."))
	}
	return effects, nil
}
