package main

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/attr/internal/commands"
	"github.com/goodtune/attr/internal/config"
	"github.com/goodtune/attr/internal/quota"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	validateDump bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the ATTR configuration file, the admins file and the gamble odds table.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump full configuration with defaults highlighted")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	opts, err := engineOptions(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Quota settings are invalid: %v\n", err)
		return err
	}

	// Check for unknown keys (always, not just with -dump)
	unknownKeys, err := findUnknownKeys(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "⚠️  Warning: Could not check for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	// Warn about unknown keys
	if len(unknownKeys) > 0 {
		red := color.New(color.FgRed, color.Bold)
		fmt.Fprintln(os.Stdout)
		_, _ = red.Fprintf(os.Stdout, "⚠️  WARNING: Found %d unknown configuration key(s):\n", len(unknownKeys))
		for _, key := range unknownKeys {
			_, _ = red.Fprintf(os.Stdout, "   - %s\n", key)
		}
		fmt.Fprintln(os.Stdout, "\nThese keys will be ignored and may indicate typos or deprecated settings.")
	}

	checkAdmins(cfg.Commands.AdminsFile)
	printOdds(opts.Odds)

	// If dump requested, show full configuration with defaults highlighted
	if validateDump {
		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
		_, _ = fmt.Fprintln(os.Stdout, "FULL CONFIGURATION (values different from defaults are highlighted)")
		_, _ = fmt.Fprintln(os.Stdout, strings.Repeat("=", 80))

		dumpConfig(cfg, getDefaultConfig())

		_, _ = fmt.Fprintln(os.Stdout, "\n"+strings.Repeat("=", 80))
	}

	return nil
}

// checkAdmins reports the admins file contents without failing validation
func checkAdmins(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		_, _ = color.New(color.FgYellow).Fprintf(os.Stdout, "⚠️  Admins file %s not readable (%v); no admin commands will be available\n", path, err)
		return
	}
	admins, err := commands.ParseAdmins(data)
	if err != nil {
		_, _ = color.New(color.FgRed, color.Bold).Fprintf(os.Stdout, "⚠️  Admins file %s is invalid: %v\n", path, err)
		return
	}
	_, _ = fmt.Fprintf(os.Stdout, "✅ Admins file %s lists %d admin(s): %s\n", path, len(admins), strings.Join(admins.Names(), ", "))
}

// printOdds lists the configured wager table
func printOdds(odds quota.OddsTable) {
	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Println("\n[gamble odds]")
	for _, o := range odds {
		_, _ = fmt.Fprintf(os.Stdout, "  %sx  %5.1f%% chance (%s)\n", quota.FormatMultiplier(o.Multiplier), o.Probability*100, o.OneIn())
	}
}

// getDefaultConfig creates a configuration with default values
func getDefaultConfig() *config.Config {
	v := viper.New()
	config.SetDefaults(v)

	var cfg config.Config
	_ = v.Unmarshal(&cfg)

	return &cfg
}

// findUnknownKeys loads the config file and checks for unknown keys
func findUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	validKeys := getValidKeys()

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !validKeys[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)

	return unknown, nil
}

// getValidKeys returns a set of all valid configuration keys, taken from the
// registered defaults
func getValidKeys() map[string]bool {
	v := viper.New()
	config.SetDefaults(v)

	keys := make(map[string]bool)
	for _, key := range v.AllKeys() {
		keys[key] = true
	}
	// Optional and secret keys without a non-empty default
	keys["storage.redis.password"] = true

	return keys
}

// dumpConfig dumps configuration with color highlighting for non-default values
func dumpConfig(cfg, defaultCfg *config.Config) {
	// Setup colors (only if terminal supports it)
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan, color.Bold)

	// Server
	_, _ = cyan.Println("\n[server]")
	dumpField("  name", cfg.Server.Name, defaultCfg.Server.Name, yellow, green)
	dumpField("  metrics_port", cfg.Server.MetricsPort, defaultCfg.Server.MetricsPort, yellow, green)
	dumpField("  bind_address", cfg.Server.BindAddress, defaultCfg.Server.BindAddress, yellow, green)

	// Cloud host
	_, _ = cyan.Println("\n[exaroton]")
	dumpField("  api_token", redactPassword(cfg.Exaroton.APIToken), redactPassword(defaultCfg.Exaroton.APIToken), yellow, green)
	dumpField("  base_url", cfg.Exaroton.BaseURL, defaultCfg.Exaroton.BaseURL, yellow, green)
	dumpField("  websocket_url", cfg.Exaroton.WebsocketURL, defaultCfg.Exaroton.WebsocketURL, yellow, green)
	dumpField("  request_timeout", cfg.Exaroton.RequestTimeout, defaultCfg.Exaroton.RequestTimeout, yellow, green)
	dumpField("  requests_per_second", cfg.Exaroton.RequestsPerSecond, defaultCfg.Exaroton.RequestsPerSecond, yellow, green)
	dumpField("  server_cache_ttl", cfg.Exaroton.ServerCacheTTL, defaultCfg.Exaroton.ServerCacheTTL, yellow, green)

	// Quota
	_, _ = cyan.Println("\n[quota]")
	dumpField("  daily_limit", cfg.Quota.DailyLimit, defaultCfg.Quota.DailyLimit, yellow, green)
	dumpField("  freeplay_days", cfg.Quota.FreeplayDays, defaultCfg.Quota.FreeplayDays, yellow, green)
	dumpField("  weekend_start", cfg.Quota.WeekendStart, defaultCfg.Quota.WeekendStart, yellow, green)
	dumpField("  cycle_interval", cfg.Quota.CycleInterval, defaultCfg.Quota.CycleInterval, yellow, green)
	dumpField("  health_interval", cfg.Quota.HealthInterval, defaultCfg.Quota.HealthInterval, yellow, green)
	dumpField("  max_cycle_delta", cfg.Quota.MaxCycleDelta, defaultCfg.Quota.MaxCycleDelta, yellow, green)
	dumpField("  fallback_delta", cfg.Quota.FallbackDelta, defaultCfg.Quota.FallbackDelta, yellow, green)
	dumpField("  timezone", cfg.Quota.Timezone, defaultCfg.Quota.Timezone, yellow, green)

	// Gamble
	_, _ = cyan.Println("\n[gamble]")
	dumpField("  min_bet", cfg.Gamble.MinBet, defaultCfg.Gamble.MinBet, yellow, green)
	dumpField("  odds", cfg.Gamble.Odds, defaultCfg.Gamble.Odds, yellow, green)

	// Commands
	_, _ = cyan.Println("\n[commands]")
	dumpField("  prefix", cfg.Commands.Prefix, defaultCfg.Commands.Prefix, yellow, green)
	dumpField("  admins_file", cfg.Commands.AdminsFile, defaultCfg.Commands.AdminsFile, yellow, green)
	dumpField("  rate_limit", cfg.Commands.RateLimit, defaultCfg.Commands.RateLimit, yellow, green)
	dumpField("  rate_burst", cfg.Commands.RateBurst, defaultCfg.Commands.RateBurst, yellow, green)
	dumpField("  ready_message", cfg.Commands.ReadyMessage, defaultCfg.Commands.ReadyMessage, yellow, green)

	// Storage
	_, _ = cyan.Println("\n[storage]")
	dumpField("  type", cfg.Storage.Type, defaultCfg.Storage.Type, yellow, green)
	dumpField("  path", cfg.Storage.Path, defaultCfg.Storage.Path, yellow, green)
	_, _ = cyan.Println("  [storage.redis]")
	dumpField("    host", cfg.Storage.Redis.Host, defaultCfg.Storage.Redis.Host, yellow, green)
	dumpField("    port", cfg.Storage.Redis.Port, defaultCfg.Storage.Redis.Port, yellow, green)
	dumpField("    password", redactPassword(cfg.Storage.Redis.Password), redactPassword(defaultCfg.Storage.Redis.Password), yellow, green)
	dumpField("    db", cfg.Storage.Redis.DB, defaultCfg.Storage.Redis.DB, yellow, green)
	dumpField("    key", cfg.Storage.Redis.Key, defaultCfg.Storage.Redis.Key, yellow, green)
	dumpField("    pool_size", cfg.Storage.Redis.PoolSize, defaultCfg.Storage.Redis.PoolSize, yellow, green)
	dumpField("    min_idle_conns", cfg.Storage.Redis.MinIdleConns, defaultCfg.Storage.Redis.MinIdleConns, yellow, green)
	dumpField("    dial_timeout", cfg.Storage.Redis.DialTimeout, defaultCfg.Storage.Redis.DialTimeout, yellow, green)
	dumpField("    read_timeout", cfg.Storage.Redis.ReadTimeout, defaultCfg.Storage.Redis.ReadTimeout, yellow, green)
	dumpField("    write_timeout", cfg.Storage.Redis.WriteTimeout, defaultCfg.Storage.Redis.WriteTimeout, yellow, green)

	// Transport
	_, _ = cyan.Println("\n[transport]")
	dumpField("  base_delay", cfg.Transport.BaseDelay, defaultCfg.Transport.BaseDelay, yellow, green)
	dumpField("  max_delay", cfg.Transport.MaxDelay, defaultCfg.Transport.MaxDelay, yellow, green)
	dumpField("  stable_after", cfg.Transport.StableAfter, defaultCfg.Transport.StableAfter, yellow, green)
	dumpField("  max_failures", cfg.Transport.MaxFailures, defaultCfg.Transport.MaxFailures, yellow, green)
	dumpField("  tail", cfg.Transport.Tail, defaultCfg.Transport.Tail, yellow, green)

	// Logging
	_, _ = cyan.Println("\n[logging]")
	dumpField("  level", cfg.Logging.Level, defaultCfg.Logging.Level, yellow, green)
	dumpField("  format", cfg.Logging.Format, defaultCfg.Logging.Format, yellow, green)
}

// dumpField prints a field with color if it differs from default
func dumpField(name string, value, defaultValue interface{}, modifiedColor, defaultColor *color.Color) {
	isDefault := reflect.DeepEqual(value, defaultValue)

	valueStr := fmt.Sprintf("%v", value)

	if isDefault {
		_, _ = defaultColor.Printf("%s = %s\n", name, valueStr)
	} else {
		_, _ = modifiedColor.Printf("%s = %s  (modified from default: %v)\n", name, valueStr, defaultValue)
	}
}

// redactPassword redacts password if not empty
func redactPassword(password string) string {
	if password == "" {
		return ""
	}
	return "***REDACTED***"
}
