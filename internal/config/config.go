package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goodtune/attr/internal/quota"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Exaroton  ExarotonConfig  `mapstructure:"exaroton"`
	Quota     QuotaConfig     `mapstructure:"quota"`
	Gamble    GambleConfig    `mapstructure:"gamble"`
	Commands  CommandsConfig  `mapstructure:"commands"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Transport TransportConfig `mapstructure:"transport"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig identifies the game server and the local listeners
type ServerConfig struct {
	Name        string `mapstructure:"name"` // Server name on the cloud host
	MetricsPort int    `mapstructure:"metrics_port"`
	BindAddress string `mapstructure:"bind_address"`
}

// ExarotonConfig defines cloud host API access
type ExarotonConfig struct {
	APIToken          string  `mapstructure:"api_token"`
	BaseURL           string  `mapstructure:"base_url"`
	WebsocketURL      string  `mapstructure:"websocket_url"` // Template, %s is replaced by the server ID
	RequestTimeout    string  `mapstructure:"request_timeout"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	ServerCacheTTL    string  `mapstructure:"server_cache_ttl"`
}

// QuotaConfig defines the daily limit and cycle timing
type QuotaConfig struct {
	DailyLimit     string   `mapstructure:"daily_limit"`
	FreeplayDays   []string `mapstructure:"freeplay_days"`
	WeekendStart   string   `mapstructure:"weekend_start"`
	CycleInterval  string   `mapstructure:"cycle_interval"`
	HealthInterval string   `mapstructure:"health_interval"`
	MaxCycleDelta  string   `mapstructure:"max_cycle_delta"`
	FallbackDelta  string   `mapstructure:"fallback_delta"`
	Timezone       string   `mapstructure:"timezone"`
}

// GambleConfig defines the published wagering odds
type GambleConfig struct {
	MinBet string     `mapstructure:"min_bet"`
	Odds   []OddsPair `mapstructure:"odds"`
}

// OddsPair is one multiplier and its win probability
type OddsPair struct {
	Multiplier  float64 `mapstructure:"multiplier"`
	Probability float64 `mapstructure:"probability"`
}

// CommandsConfig defines chat command handling
type CommandsConfig struct {
	Prefix       string  `mapstructure:"prefix"`
	AdminsFile   string  `mapstructure:"admins_file"`
	RateLimit    float64 `mapstructure:"rate_limit"` // Commands per second per player
	RateBurst    int     `mapstructure:"rate_burst"`
	ReadyMessage bool    `mapstructure:"ready_message"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "file", "bolt" or "redis"
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	Key          string `mapstructure:"key"`
}

// TransportConfig defines console websocket reconnect behaviour
type TransportConfig struct {
	BaseDelay   string `mapstructure:"base_delay"`
	MaxDelay    string `mapstructure:"max_delay"`
	StableAfter string `mapstructure:"stable_after"`
	MaxFailures int    `mapstructure:"max_failures"`
	Tail        int    `mapstructure:"tail"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// A .env next to the process is optional; real environment wins
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults
	SetDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("ATTR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bare names used by older .env files
	_ = v.BindEnv("exaroton.api_token", "ATTR_EXAROTON_API_TOKEN", "API_KEY")
	_ = v.BindEnv("server.name", "ATTR_SERVER_NAME", "SERVER_NAME")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.name", "")
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.bind_address", "0.0.0.0")

	// Cloud host defaults
	v.SetDefault("exaroton.api_token", "")
	v.SetDefault("exaroton.base_url", "https://api.exaroton.com/v1")
	v.SetDefault("exaroton.websocket_url", "wss://api.exaroton.com/v1/servers/%s/websocket")
	v.SetDefault("exaroton.request_timeout", "10s")
	v.SetDefault("exaroton.requests_per_second", 2.0)
	v.SetDefault("exaroton.server_cache_ttl", "10m")

	// Quota defaults
	v.SetDefault("quota.daily_limit", "3h")
	v.SetDefault("quota.freeplay_days", []string{"saturday", "sunday"})
	v.SetDefault("quota.weekend_start", "saturday")
	v.SetDefault("quota.cycle_interval", "60s")
	v.SetDefault("quota.health_interval", "60s")
	v.SetDefault("quota.max_cycle_delta", "120s")
	v.SetDefault("quota.fallback_delta", "60s")
	v.SetDefault("quota.timezone", "Local")

	// Gamble defaults
	v.SetDefault("gamble.min_bet", "5m")
	v.SetDefault("gamble.odds", DefaultOdds())

	// Command defaults
	v.SetDefault("commands.prefix", "!")
	v.SetDefault("commands.admins_file", "admins.json")
	v.SetDefault("commands.rate_limit", 1.0)
	v.SetDefault("commands.rate_burst", 3)
	v.SetDefault("commands.ready_message", true)

	// Storage defaults
	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.path", "sessions.json")
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key", "attr:ledger")

	// Transport defaults
	v.SetDefault("transport.base_delay", "5s")
	v.SetDefault("transport.max_delay", "5m")
	v.SetDefault("transport.stable_after", "30s")
	v.SetDefault("transport.max_failures", 5)
	v.SetDefault("transport.tail", 50)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// DefaultOdds returns the stock multiplier table as viper-friendly maps
func DefaultOdds() []map[string]float64 {
	table := quota.DefaultOdds()
	odds := make([]map[string]float64, len(table))
	for i, o := range table {
		odds[i] = map[string]float64{"multiplier": o.Multiplier, "probability": o.Probability}
	}
	return odds
}

// validate validates the configuration
func validate(cfg *Config) error {
	for name, value := range map[string]string{
		"quota.daily_limit":     cfg.Quota.DailyLimit,
		"quota.cycle_interval":  cfg.Quota.CycleInterval,
		"quota.health_interval": cfg.Quota.HealthInterval,
		"quota.max_cycle_delta": cfg.Quota.MaxCycleDelta,
		"quota.fallback_delta":  cfg.Quota.FallbackDelta,
		"gamble.min_bet":        cfg.Gamble.MinBet,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, value)
		}
	}

	if _, err := time.LoadLocation(cfg.Quota.Timezone); err != nil {
		return fmt.Errorf("invalid quota.timezone: %w", err)
	}

	freeplay := make(map[time.Weekday]bool, len(cfg.Quota.FreeplayDays))
	for _, day := range cfg.Quota.FreeplayDays {
		wd, err := ParseWeekday(day)
		if err != nil {
			return fmt.Errorf("invalid quota.freeplay_days: %w", err)
		}
		freeplay[wd] = true
	}
	if cfg.Quota.WeekendStart != "" {
		wd, err := ParseWeekday(cfg.Quota.WeekendStart)
		if err != nil {
			return fmt.Errorf("invalid quota.weekend_start: %w", err)
		}
		if !freeplay[wd] {
			return fmt.Errorf("quota.weekend_start %q is not a freeplay day", cfg.Quota.WeekendStart)
		}
		if freeplay[(wd+6)%7] {
			return fmt.Errorf("quota.weekend_start %q must follow a quota day, but %s is also freeplay",
				cfg.Quota.WeekendStart, strings.ToLower(((wd + 6) % 7).String()))
		}
	}

	if len(cfg.Gamble.Odds) == 0 {
		return fmt.Errorf("gamble.odds must list at least one multiplier")
	}
	for _, pair := range cfg.Gamble.Odds {
		if pair.Multiplier <= 1 {
			return fmt.Errorf("gamble multiplier must be greater than 1, got %v", pair.Multiplier)
		}
		if pair.Probability <= 0 || pair.Probability >= 1 {
			return fmt.Errorf("gamble probability for %vx must be between 0 and 1, got %v", pair.Multiplier, pair.Probability)
		}
	}

	if cfg.Commands.Prefix == "" {
		return fmt.Errorf("commands.prefix is required")
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "file"
	case "file", "bolt", "redis":
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}

	if cfg.Storage.Type != "redis" {
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	return nil
}

// ParseWeekday parses an English weekday name or its three letter prefix
func ParseWeekday(s string) (time.Weekday, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		full := strings.ToLower(wd.String())
		if name == full || (len(name) == 3 && strings.HasPrefix(full, name)) {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// ParseDuration parses a duration string with a fallback
func ParseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
