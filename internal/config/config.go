package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for DoseTrack
type Config struct {
	Server        ServerConfig        `mapstructure:"server" yaml:"server"`
	Storage       StorageConfig       `mapstructure:"storage" yaml:"storage"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Channels      ChannelsConfig      `mapstructure:"channels" yaml:"channels"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Address      string   `mapstructure:"address" yaml:"address"`
	Port         int      `mapstructure:"port" yaml:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout int      `mapstructure:"write_timeout" yaml:"write_timeout"`
	AllowOrigins []string `mapstructure:"allow_origins" yaml:"allow_origins"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DataDir    string `mapstructure:"data_dir" yaml:"data_dir"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path" yaml:"badger_path"`
}

// NotificationsConfig holds reminder scheduling settings
type NotificationsConfig struct {
	// PreReminderMinutes is the lead time for the early trigger armed
	// before every on-time dose trigger.
	PreReminderMinutes int `mapstructure:"pre_reminder_minutes" yaml:"pre_reminder_minutes"`
	// ScheduleHorizonDays bounds schedule expansion when a medication
	// has no end date.
	ScheduleHorizonDays int `mapstructure:"schedule_horizon_days" yaml:"schedule_horizon_days"`
	// DispatchIntervalSeconds is how often the dispatcher scans for due
	// triggers.
	DispatchIntervalSeconds int `mapstructure:"dispatch_interval_seconds" yaml:"dispatch_interval_seconds"`
	// SendRatePerSecond paces outbound channel deliveries.
	SendRatePerSecond float64 `mapstructure:"send_rate_per_second" yaml:"send_rate_per_second"`
}

// ChannelsConfig holds delivery channel settings
type ChannelsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
}

// TelegramConfig holds Telegram delivery settings
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id" yaml:"chat_id"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.Set("storage.sqlite_path", filepath.Join(dataDir, "dosetrack.db"))
	v.Set("storage.badger_path", filepath.Join(dataDir, "tickets"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "dosetrack.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (DOSETRACK_SERVER_PORT, DOSETRACK_CHANNELS_TELEGRAM_BOT_TOKEN, etc.)
	v.SetEnvPrefix("DOSETRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Watch re-reads the config file on change and invokes onChange with the
// fresh value. Viper surfaces the fsnotify event; unreadable rewrites are
// ignored so a half-written file never clobbers a running service.
func Watch(configPath string, onChange func(*Config)) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			return
		}
		if err := validate(&cfg); err != nil {
			return
		}
		onChange(&cfg)
	})
	v.WatchConfig()

	return nil
}

// Dump renders the effective configuration as YAML, for `dosetrack config`.
func (c *Config) Dump() ([]byte, error) {
	return yaml.Marshal(c)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("notifications.pre_reminder_minutes", 15)
	v.SetDefault("notifications.schedule_horizon_days", 365)
	v.SetDefault("notifications.dispatch_interval_seconds", 60)
	v.SetDefault("notifications.send_rate_per_second", 5.0)

	v.SetDefault("channels.telegram.enabled", false)
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "dosetrack")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "dosetrack")
}

// loadEnvOverrides loads specific env vars that Viper doesn't handle well
// for nested structs
func loadEnvOverrides(cfg *Config) {
	getEnv := func(key, fallback string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return fallback
	}

	cfg.Server.Address = getEnv("DOSETRACK_SERVER_ADDRESS", cfg.Server.Address)
	if port := os.Getenv("DOSETRACK_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	cfg.Storage.DataDir = getEnv("DOSETRACK_STORAGE_DATA_DIR", cfg.Storage.DataDir)

	cfg.Channels.Telegram.BotToken = getEnv("DOSETRACK_CHANNELS_TELEGRAM_BOT_TOKEN", cfg.Channels.Telegram.BotToken)
	if chatID := os.Getenv("DOSETRACK_CHANNELS_TELEGRAM_CHAT_ID"); chatID != "" {
		if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			cfg.Channels.Telegram.ChatID = id
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Notifications.PreReminderMinutes < 0 {
		return fmt.Errorf("notifications.pre_reminder_minutes must be >= 0")
	}
	if cfg.Notifications.ScheduleHorizonDays <= 0 {
		return fmt.Errorf("notifications.schedule_horizon_days must be > 0")
	}
	if cfg.Notifications.DispatchIntervalSeconds <= 0 {
		return fmt.Errorf("notifications.dispatch_interval_seconds must be > 0")
	}
	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.BotToken == "" {
		return fmt.Errorf("channels.telegram.bot_token is required when telegram is enabled")
	}
	return nil
}
