package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/attr/internal/config"
	"github.com/goodtune/attr/internal/quota"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [player]",
	Short: "Print the playtime ledger",
	Long:  `Load the configured ledger and print each player's state, playtime, rollover, remaining time and fired announcements.`,
	Example: `  attr status
  attr -c /etc/attr/config.yaml status Steve`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	opts, err := engineOptions(cfg)
	if err != nil {
		return err
	}
	engine := quota.NewEngine(store.Ledger(), opts, zerolog.Nop())
	ctx := context.Background()

	var sessions []*quota.Session
	if len(args) == 1 {
		s, err := engine.Lookup(ctx, args[0])
		if errors.Is(err, quota.ErrUnknownPlayer) {
			return fmt.Errorf("player %s not found in session data", args[0])
		}
		if err != nil {
			return err
		}
		sessions = append(sessions, &s)
	} else {
		ledger, err := engine.Snapshot(ctx)
		if err != nil {
			return err
		}
		sessions = ledger.Sorted()
	}

	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Fprintf(os.Stdout, "Daily limit %s", quota.FormatHM(opts.DailyLimit))
	if engine.IsFreeplay() {
		_, _ = cyan.Fprint(os.Stdout, " (unlimited playtime today)")
	}
	fmt.Fprintln(os.Stdout)

	if len(sessions) == 0 {
		fmt.Fprintln(os.Stdout, "No players tracked yet.")
		return nil
	}

	for _, s := range sessions {
		printSession(s, opts.DailyLimit)
	}
	return nil
}

// printSession prints one ledger row coloured by state
func printSession(s *quota.Session, limit time.Duration) {
	var state *color.Color
	switch s.State() {
	case quota.StateBanned:
		state = color.New(color.FgRed, color.Bold)
	case quota.StateActive:
		state = color.New(color.FgGreen, color.Bold)
	default:
		state = color.New(color.FgWhite)
	}

	_, _ = state.Fprintf(os.Stdout, "%-16s %-8s", s.Player, s.State())
	fmt.Fprintf(os.Stdout, " played %-8s rollover %-6s", quota.FormatHM(s.Playtime), quota.FormatHours(s.Rollover))

	remaining := s.Remaining(limit)
	if remaining > 0 {
		fmt.Fprintf(os.Stdout, " remaining %-8s", quota.FormatHM(remaining))
	} else {
		_, _ = color.New(color.FgYellow).Fprintf(os.Stdout, " remaining %-8s", "none")
	}

	fmt.Fprintf(os.Stdout, " date %s", s.SessionDate)
	if labels := s.Announced.Labels(); len(labels) > 0 {
		fmt.Fprintf(os.Stdout, " announced [%s]", strings.Join(labels, ", "))
	}
	fmt.Fprintln(os.Stdout)
}
