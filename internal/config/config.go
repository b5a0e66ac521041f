// Package config loads application settings from an optional YAML file,
// TENDER_* environment variables and defaults.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"TenderScanner/internal/resilience"
	"TenderScanner/internal/usecase"
	"TenderScanner/internal/workflow"
)

const (
	configPathEnv = "TENDER_SCANNER_CONFIG"
	envPrefix     = "TENDER"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	DefaultTimezone = "America/Toronto"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
	Retention RetentionConfig `yaml:"retention" mapstructure:"retention"`
	Telegram  TelegramConfig  `yaml:"telegram" mapstructure:"telegram"`
	Temporal  workflow.Config `yaml:"temporal" mapstructure:"temporal"`
}

// StoreConfig selects the tender store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the query API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// BrowserConfig locates the remote WebDriver hub.
type BrowserConfig struct {
	HubURL          string        `yaml:"hub_url" mapstructure:"hub_url"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout" mapstructure:"page_load_timeout"`
	ImplicitWait    time.Duration `yaml:"implicit_wait" mapstructure:"implicit_wait"`
}

// HTTPConfig tunes the plain HTTP fetcher.
type HTTPConfig struct {
	UserAgent   string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries  int           `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerHost float64       `yaml:"rate_per_host" mapstructure:"rate_per_host"`
}

// ScanConfig bounds one batch.
type ScanConfig struct {
	ItemCap         int           `yaml:"item_cap" mapstructure:"item_cap"`
	SourceTimeout   time.Duration `yaml:"source_timeout" mapstructure:"source_timeout"`
	HTTPConcurrency int           `yaml:"http_concurrency" mapstructure:"http_concurrency"`
}

// SchedulerConfig drives the in-process cron jobs.
type SchedulerConfig struct {
	Enabled  bool                  `yaml:"enabled" mapstructure:"enabled"`
	Timezone string                `yaml:"timezone" mapstructure:"timezone"`
	Cron     usecase.ScheduleTable `yaml:"cron" mapstructure:"cron"`
	Retry    RetryConfig           `yaml:"retry" mapstructure:"retry"`
}

// RetryConfig bounds the retries of fatal batch failures.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts" mapstructure:"attempts"`
	Backoff    time.Duration `yaml:"backoff" mapstructure:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
}

// Policy converts the retry settings into a resilience policy.
func (r RetryConfig) Policy() resilience.Policy {
	p := resilience.DefaultPolicy()
	if r.Attempts > 0 {
		p.Attempts = r.Attempts
	}
	if r.Backoff > 0 {
		p.Initial = r.Backoff
	}
	if r.MaxBackoff > 0 {
		p.Max = r.MaxBackoff
	}
	return p
}

// RetentionConfig controls how long inactive tenders are kept.
type RetentionConfig struct {
	PurgeAfter time.Duration `yaml:"purge_after" mapstructure:"purge_after"`
}

// TelegramConfig holds the digest bot credentials.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" mapstructure:"bot_token"`
	ChatID   string `yaml:"chat_id" mapstructure:"chat_id"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Location resolves the scheduler timezone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(s.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, eris.Wrapf(err, "config: timezone %q", tz)
	}
	return loc, nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	if path := os.Getenv(configPathEnv); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	schedule := usecase.DefaultSchedule()
	retry := resilience.DefaultPolicy()

	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.database_url", "tenders.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("browser.hub_url", "http://localhost:4444/wd/hub")
	v.SetDefault("browser.page_load_timeout", 30*time.Second)
	v.SetDefault("browser.implicit_wait", 10*time.Second)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (compatible; TenderScanner/1.0)")
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.rate_per_host", 2.0)
	v.SetDefault("scan.item_cap", 30)
	v.SetDefault("scan.source_timeout", 5*time.Minute)
	v.SetDefault("scan.http_concurrency", 4)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.timezone", DefaultTimezone)
	v.SetDefault("scheduler.cron.all", schedule.All)
	v.SetDefault("scheduler.cron.high_priority", schedule.HighPriority)
	v.SetDefault("scheduler.cron.municipal", schedule.Municipal)
	v.SetDefault("scheduler.cron.provincial", schedule.Provincial)
	v.SetDefault("scheduler.cron.maintenance", schedule.Maintenance)
	v.SetDefault("scheduler.retry.attempts", retry.Attempts)
	v.SetDefault("scheduler.retry.backoff", retry.Initial)
	v.SetDefault("scheduler.retry.max_backoff", retry.Max)
	v.SetDefault("retention.purge_after", usecase.DefaultRetention)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("temporal.address", "")
	v.SetDefault("temporal.namespace", workflow.DefaultNamespace)
	v.SetDefault("temporal.task_queue", workflow.DefaultTaskQueue)
}

// Validate rejects settings the application cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if strings.TrimSpace(c.Store.DatabaseURL) == "" {
		return eris.New("config: store.database_url is required")
	}
	if c.Scan.ItemCap < 0 {
		return eris.New("config: scan.item_cap must not be negative")
	}
	if _, err := c.Scheduler.Location(); err != nil {
		return err
	}
	return nil
}
