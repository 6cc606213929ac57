package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "Local"
	configPathEnv     = "DSE_REPORTS_CONFIG"
	logLevelEnv       = "LOG_LEVEL"
	reportsRootEnv    = "REPORTS_ROOT"
	cronEnv           = "SCHEDULER_CRON"
	timezoneEnv       = "SCHEDULER_TIMEZONE"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Reports       ReportsConfig      `yaml:"reports"`
	HTTP          HTTPConfig         `yaml:"http"`
	Database      DatabaseConfig     `yaml:"database"`
	Notifications NotificationConfig `yaml:"notifications"`
	MarketData    MarketDataConfig   `yaml:"marketData"`
	Sources       []SourceConfig     `yaml:"sources"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	PollInterval   time.Duration  `yaml:"pollInterval"`
	RunOnStart     bool           `yaml:"runOnStart"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	return time.Local
}

// ReportsConfig points at the local directory tree holding downloaded reports.
type ReportsConfig struct {
	Root string `yaml:"root"`
}

// HTTPConfig tunes the client shared by the locator and the fetcher.
type HTTPConfig struct {
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify"`
	Timeout            time.Duration `yaml:"timeout"`
	UserAgent          string        `yaml:"userAgent"`
	DownloadsPerSecond float64       `yaml:"downloadsPerSecond"`
}

// DatabaseConfig describes the optional Postgres history store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIBase  string `yaml:"apiBase"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// MarketDataConfig enables the brokerage price-sheet parser.
type MarketDataConfig struct {
	Enabled bool   `yaml:"enabled"`
	Source  string `yaml:"source"`
	Output  string `yaml:"output"`
}

// SourceConfig describes one reports index to crawl.
type SourceConfig struct {
	Name        string `yaml:"name"`
	IndexURL    string `yaml:"indexUrl"`
	BaseURL     string `yaml:"baseUrl"`
	MetricsFile string `yaml:"metricsFile"`
}

// Dir is the source's download directory under the reports root.
func (c Config) Dir(source string) string {
	return filepath.Join(c.Reports.Root, source)
}

// MetricsPath is the snapshot table written for a source.
func (c Config) MetricsPath(source SourceConfig) string {
	name := source.MetricsFile
	if name == "" {
		name = "financial_metrics.csv"
	}
	return filepath.Join(c.Dir(source.Name), name)
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if merged, err := mergeFile(cfg, raw); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		} else {
			cfg = merged
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if _, err := cron.ParseStandard(c.Scheduler.CronExpression); err != nil {
		return fmt.Errorf("scheduler cron %q: %w", c.Scheduler.CronExpression, err)
	}
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler poll interval must be positive")
	}
	if c.Reports.Root == "" {
		return fmt.Errorf("reports root is empty")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("no sources configured")
	}
	seen := map[string]bool{}
	for _, src := range c.Sources {
		if src.Name == "" || src.IndexURL == "" {
			return fmt.Errorf("source %q: name and indexUrl are required", src.Name)
		}
		if seen[src.Name] {
			return fmt.Errorf("source %q defined twice", src.Name)
		}
		seen[src.Name] = true
	}
	if c.HTTP.DownloadsPerSecond < 0 {
		return fmt.Errorf("downloadsPerSecond cannot be negative")
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(reportsRootEnv); v != "" {
		c.Reports.Root = v
	}

	if v := os.Getenv(cronEnv); v != "" {
		c.Scheduler.CronExpression = v
	}

	if v := os.Getenv(timezoneEnv); v != "" {
		c.Scheduler.Timezone = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc = time.Local
	}
	c.Scheduler.location = loc
}

// explicitFields records keys whose zero value is a valid override.
type explicitFields struct {
	HTTP struct {
		InsecureSkipVerify *bool    `yaml:"insecureSkipVerify"`
		DownloadsPerSecond *float64 `yaml:"downloadsPerSecond"`
	} `yaml:"http"`
}

func mergeFile(base Config, raw []byte) (Config, error) {
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return base, err
	}
	var explicit explicitFields
	if err := yaml.Unmarshal(raw, &explicit); err != nil {
		return base, err
	}
	return mergeConfig(base, fileCfg, explicit), nil
}

func mergeConfig(base, override Config, explicit explicitFields) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}
	if override.Scheduler.PollInterval > 0 {
		base.Scheduler.PollInterval = override.Scheduler.PollInterval
	}
	if override.Scheduler.RunOnStart {
		base.Scheduler.RunOnStart = true
	}

	if override.Reports.Root != "" {
		base.Reports.Root = override.Reports.Root
	}

	if v := explicit.HTTP.InsecureSkipVerify; v != nil {
		base.HTTP.InsecureSkipVerify = *v
	}
	if override.HTTP.Timeout > 0 {
		base.HTTP.Timeout = override.HTTP.Timeout
	}
	if override.HTTP.UserAgent != "" {
		base.HTTP.UserAgent = override.HTTP.UserAgent
	}
	// 0 disables pacing.
	if v := explicit.HTTP.DownloadsPerSecond; v != nil {
		base.HTTP.DownloadsPerSecond = *v
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.APIBase != "" {
		base.Notifications.Telegram.APIBase = override.Notifications.Telegram.APIBase
	}

	if override.MarketData.Enabled {
		base.MarketData.Enabled = true
	}
	if override.MarketData.Source != "" {
		base.MarketData.Source = override.MarketData.Source
	}
	if override.MarketData.Output != "" {
		base.MarketData.Output = override.MarketData.Output
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Scheduler: SchedulerConfig{
			CronExpression: "0 7 * * *",
			Timezone:       defaultTimezone,
			PollInterval:   time.Minute,
			location:       time.Local,
		},
		Reports: ReportsConfig{Root: "reports"},
		HTTP: HTTPConfig{
			InsecureSkipVerify: true,
			Timeout:            2 * time.Minute,
			UserAgent:          "DSEReports/1.0",
			DownloadsPerSecond: 1,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{APIBase: "https://api.telegram.org"},
		},
		MarketData: MarketDataConfig{
			Enabled: false,
			Source:  "Solomon",
			Output:  "solomon_market_data.csv",
		},
		Sources: []SourceConfig{
			{
				Name:        "DSE",
				IndexURL:    "https://www.dse.co.tz/market-reports",
				BaseURL:     "https://www.dse.co.tz",
				MetricsFile: "financial_metrics.csv",
			},
		},
	}
}
