package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/goodtune/attr/internal/commands"
	"github.com/goodtune/attr/internal/config"
	"github.com/goodtune/attr/internal/console"
	"github.com/goodtune/attr/internal/exaroton"
	"github.com/goodtune/attr/internal/metrics"
	"github.com/goodtune/attr/internal/quota"
	"github.com/goodtune/attr/internal/storage"
	"github.com/goodtune/attr/internal/storage/bolt"
	"github.com/goodtune/attr/internal/storage/file"
	"github.com/goodtune/attr/internal/storage/redis"
	"github.com/goodtune/attr/internal/systemd"
	"github.com/goodtune/attr/internal/transport"
	"github.com/goodtune/attr/internal/watch"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start ATTR server",
	Long:  `Start the ATTR daemon: the quota cycle loop, the console command listener and the metrics endpoint.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Str("server", cfg.Server.Name).
		Msg("Starting ATTR")

	if cfg.Server.Name == "" {
		return fmt.Errorf("server.name is required")
	}
	if cfg.Exaroton.APIToken == "" {
		return fmt.Errorf("exaroton.api_token is required")
	}

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	// Initialize quota engine
	opts, err := engineOptions(cfg)
	if err != nil {
		return err
	}
	engine := quota.NewEngine(store.Ledger(), opts, logger)

	logger.Info().
		Dur("daily_limit", opts.DailyLimit).
		Str("timezone", opts.Location.String()).
		Msg("Quota engine initialized")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize cloud host client
	client := exaroton.NewClient(exaroton.Options{
		BaseURL:           cfg.Exaroton.BaseURL,
		Token:             cfg.Exaroton.APIToken,
		Timeout:           config.ParseDuration(cfg.Exaroton.RequestTimeout, 10*time.Second),
		RequestsPerSecond: cfg.Exaroton.RequestsPerSecond,
		CacheTTL:          config.ParseDuration(cfg.Exaroton.ServerCacheTTL, 10*time.Minute),
	}, logger)
	defer client.Close()

	serverID, err := client.ServerID(ctx, cfg.Server.Name)
	if err != nil {
		return fmt.Errorf("failed to resolve server %q: %w", cfg.Server.Name, err)
	}

	logger.Info().Str("server_id", serverID).Msg("Cloud host client initialized")

	// Console stream, outbound dispatch and command router depend on each other
	var router *commands.Router
	stream := transport.NewConsole(transport.Options{
		URL:   fmt.Sprintf(cfg.Exaroton.WebsocketURL, serverID),
		Token: cfg.Exaroton.APIToken,
		Tail:  cfg.Transport.Tail,
		Backoff: transport.Backoff{
			Base:        config.ParseDuration(cfg.Transport.BaseDelay, 5*time.Second),
			Max:         config.ParseDuration(cfg.Transport.MaxDelay, 5*time.Minute),
			StableAfter: config.ParseDuration(cfg.Transport.StableAfter, 30*time.Second),
			MaxFailures: cfg.Transport.MaxFailures,
		},
	}, func(ctx context.Context, line string) {
		router.HandleLine(ctx, line)
	}, logger)

	dispatcher := console.NewDispatcher(stream, client.Commander(cfg.Server.Name), logger)

	router, err = commands.NewRouter(engine, dispatcher, commands.Options{
		Prefix:    cfg.Commands.Prefix,
		Admins:    commands.LoadAdmins(cfg.Commands.AdminsFile, logger),
		RateLimit: cfg.Commands.RateLimit,
		RateBurst: cfg.Commands.RateBurst,
		Version:   version,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize command router: %w", err)
	}

	if cfg.Commands.ReadyMessage {
		stream.OnSubscribed(func(ctx context.Context) {
			if err := dispatcher.Dispatch(ctx, []quota.Effect{router.Ready()}); err != nil {
				logger.Warn().Err(err).Msg("Failed to send ready message")
			}
		})
	}

	logger.Info().Strs("commands", router.Names()).Msg("Command router initialized")

	// Initialize Metrics Server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)

	if sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start Metrics Server: %w", err)
	}

	logger.Info().
		Str("addr", metricsAddr).
		Msg("Metrics Server started")

	watcher := watch.New(client, engine, dispatcher, watch.Options{
		ServerName:     cfg.Server.Name,
		HealthInterval: config.ParseDuration(cfg.Quota.HealthInterval, time.Minute),
		CycleInterval:  config.ParseDuration(cfg.Quota.CycleInterval, time.Minute),
	}, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Console stream stopped")
		}
	}()
	go func() {
		defer wg.Done()
		if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Watcher stopped")
		}
	}()

	// Log startup complete
	logger.Info().Msg("ATTR startup complete")
	logger.Info().Msgf("Metrics: http://%s/metrics", metricsAddr)

	// Notify systemd that we're ready
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd of readiness")
	}
	if interval := systemd.WatchdogInterval(); interval > 0 {
		logger.Info().Dur("interval", interval).Msg("systemd watchdog enabled")
	}

	// Wait for shutdown signal
	<-ctx.Done()

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to notify systemd of shutdown")
	}

	wg.Wait()

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Metrics Server")
	}

	logger.Info().Msg("ATTR stopped")

	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "file":
		return file.Open(cfg.Path)
	case "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// engineOptions converts the quota and gamble sections into engine options
func engineOptions(cfg *config.Config) (quota.Options, error) {
	opts := quota.DefaultOptions()
	opts.DailyLimit = config.ParseDuration(cfg.Quota.DailyLimit, opts.DailyLimit)
	opts.MaxCycleDelta = config.ParseDuration(cfg.Quota.MaxCycleDelta, opts.MaxCycleDelta)
	opts.FallbackDelta = config.ParseDuration(cfg.Quota.FallbackDelta, opts.FallbackDelta)
	opts.MinBet = config.ParseDuration(cfg.Gamble.MinBet, opts.MinBet)

	freeplay := make([]time.Weekday, 0, len(cfg.Quota.FreeplayDays))
	for _, day := range cfg.Quota.FreeplayDays {
		wd, err := config.ParseWeekday(day)
		if err != nil {
			return opts, err
		}
		freeplay = append(freeplay, wd)
	}
	weekendStart := time.Weekday(-1)
	if cfg.Quota.WeekendStart != "" {
		wd, err := config.ParseWeekday(cfg.Quota.WeekendStart)
		if err != nil {
			return opts, err
		}
		weekendStart = wd
	}
	opts.Calendar = quota.NewCalendar(freeplay, weekendStart)

	loc, err := time.LoadLocation(cfg.Quota.Timezone)
	if err != nil {
		return opts, fmt.Errorf("invalid timezone %q: %w", cfg.Quota.Timezone, err)
	}
	opts.Location = loc

	if len(cfg.Gamble.Odds) > 0 {
		odds := make(quota.OddsTable, 0, len(cfg.Gamble.Odds))
		for _, pair := range cfg.Gamble.Odds {
			odds = append(odds, quota.Odds{Multiplier: pair.Multiplier, Probability: pair.Probability})
		}
		if err := odds.Validate(); err != nil {
			return opts, fmt.Errorf("invalid gamble odds: %w", err)
		}
		opts.Odds = odds
	}

	return opts, nil
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
