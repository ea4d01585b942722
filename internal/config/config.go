package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
	StorageRedis    = "redis"
)

// Notification providers.
const (
	ProviderLocal    = "local"
	ProviderTelegram = "telegram"
	ProviderKafka    = "kafka"
)

// EnvPrefix selects environment overrides, e.g. REMINDER_STORAGE__TYPE=sqlite.
const EnvPrefix = "REMINDER_"

type Config struct {
	HTTP          HTTPConfig         `koanf:"http"`
	Storage       StorageConfig      `koanf:"storage"`
	Scheduler     SchedulerConfig    `koanf:"scheduler"`
	Notifications NotificationConfig `koanf:"notifications"`
	Badge         BadgeConfig        `koanf:"badge"`
	UI            UIConfig           `koanf:"ui"`
	MCP           MCPConfig          `koanf:"mcp"`
	Log           LogConfig          `koanf:"log"`
}

type HTTPConfig struct {
	Addr      string `koanf:"addr"`
	StaticDir string `koanf:"static_dir"`
	TLSCert   string `koanf:"tls_cert"`
	TLSKey    string `koanf:"tls_key"`
	PublicURL string `koanf:"public_url"` // opened when a notification body is clicked
}

type StorageConfig struct {
	Type     string         `koanf:"type"`
	File     FileConfig     `koanf:"file"`
	SQLite   SQLiteConfig   `koanf:"sqlite"`
	Postgres PostgresConfig `koanf:"postgres"`
	Mongo    MongoConfig    `koanf:"mongo"`
	Redis    RedisConfig    `koanf:"redis"`
}

type FileConfig struct {
	Path  string `koanf:"path"`
	Watch bool   `koanf:"watch"` // treat edits by other processes as storage changes
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type PostgresConfig struct {
	URL string `koanf:"url"`
}

type MongoConfig struct {
	URI      string `koanf:"uri"`
	Database string `koanf:"database"`
}

type RedisConfig struct {
	URL string `koanf:"url"`
}

type SchedulerConfig struct {
	LeadTime time.Duration `koanf:"lead_time"`
}

type NotificationConfig struct {
	Title     string         `koanf:"title"`
	Snooze    time.Duration  `koanf:"snooze"`
	Providers []string       `koanf:"providers"`
	Telegram  TelegramConfig `koanf:"telegram"`
	Kafka     KafkaConfig    `koanf:"kafka"`
}

type TelegramConfig struct {
	BotToken    string `koanf:"bot_token"`
	ChatID      string `koanf:"chat_id"`
	PollTimeout int    `koanf:"poll_timeout"` // seconds, Telegram caps long polling at 50
}

type KafkaConfig struct {
	Brokers      []string `koanf:"brokers"`
	Topic        string   `koanf:"topic"`
	ActionsTopic string   `koanf:"actions_topic"`
	GroupID      string   `koanf:"group_id"`
}

type BadgeConfig struct {
	HideZero  bool   `koanf:"hide_zero"`
	DueColor  string `koanf:"due_color"`
	IdleColor string `koanf:"idle_color"`
}

type UIConfig struct {
	YearsAhead int `koanf:"years_ahead"`
}

type MCPConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load merges defaults, the optional YAML file at configPath and
// REMINDER_* environment variables, in that order.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(NewDefaultProvider(), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath != "" {
		configPath = expandPath(configPath)

		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Storage.File.Path = expandPath(cfg.Storage.File.Path)
	cfg.Storage.SQLite.Path = expandPath(cfg.Storage.SQLite.Path)

	return &cfg, nil
}

// envKey maps REMINDER_STORAGE__SQLITE__PATH to storage.sqlite.path.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory, StorageFile, StorageSQLite, StorageMongo, StorageRedis:
	case StoragePostgres:
		if c.Storage.Postgres.URL == "" {
			return fmt.Errorf("storage.postgres.url is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage type: %s (supported: %s, %s, %s, %s, %s, %s)",
			c.Storage.Type, StorageMemory, StorageFile, StorageSQLite, StoragePostgres, StorageMongo, StorageRedis)
	}

	if c.Scheduler.LeadTime < 0 {
		return fmt.Errorf("scheduler.lead_time must not be negative")
	}
	if c.Notifications.Snooze < 0 {
		return fmt.Errorf("notifications.snooze must not be negative")
	}
	if c.UI.YearsAhead <= 0 {
		return fmt.Errorf("ui.years_ahead must be positive")
	}

	if len(c.Notifications.Providers) == 0 {
		return fmt.Errorf("at least one notification provider is required")
	}
	for _, p := range c.Notifications.Providers {
		switch p {
		case ProviderLocal:
		case ProviderTelegram:
			if c.Notifications.Telegram.BotToken == "" || c.Notifications.Telegram.ChatID == "" {
				return fmt.Errorf("telegram provider requires notifications.telegram.bot_token and chat_id")
			}
		case ProviderKafka:
			if len(c.Notifications.Kafka.Brokers) == 0 || c.Notifications.Kafka.Topic == "" {
				return fmt.Errorf("kafka provider requires notifications.kafka.brokers and topic")
			}
		default:
			return fmt.Errorf("unknown notification provider: %s (supported: %s, %s, %s)",
				p, ProviderLocal, ProviderTelegram, ProviderKafka)
		}
	}

	return nil
}

// HasProvider reports whether the named notification provider is enabled.
func (c *Config) HasProvider(name string) bool {
	for _, p := range c.Notifications.Providers {
		if p == name {
			return true
		}
	}
	return false
}

func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}

func GetDefaultConfigPath() string {
	return "~/.reminder-agent/config.yaml"
}
