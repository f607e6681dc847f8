// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/recruiting-sheets/internal/scrape"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageLocal  = "local"
	StorageGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"`
	Sheets   SheetsConfig   `mapstructure:"sheets"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Runs     RunsConfig     `mapstructure:"runs"`
	Storage  StorageConfig  `mapstructure:"storage"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Alert    AlertConfig    `mapstructure:"alert"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScrapeConfig governs listing pagination and the upstream HTTP client.
type ScrapeConfig struct {
	BaseURL              string        `mapstructure:"base_url"`
	Season               int           `mapstructure:"season"`
	BatchSize            int           `mapstructure:"batch_size"`
	MaxWorkers           int           `mapstructure:"max_workers"`
	MaxPages             int           `mapstructure:"max_pages"`
	MinEntriesToContinue int           `mapstructure:"min_entries_to_continue"`
	StaleAfterDays       int           `mapstructure:"stale_after_days"`
	UserAgent            string        `mapstructure:"user_agent"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond    float64       `mapstructure:"requests_per_second"`
}

// SheetsConfig names the spreadsheet targets and the credentials used to reach them.
type SheetsConfig struct {
	Credentials         string        `mapstructure:"credentials"`
	RecruitsSpreadsheet string        `mapstructure:"recruits_spreadsheet"`
	PortalSpreadsheet   string        `mapstructure:"portal_spreadsheet"`
	Worksheet           string        `mapstructure:"worksheet"`
	BioBaseURL          string        `mapstructure:"bio_base_url"`
	StarsFormula        bool          `mapstructure:"stars_formula"`
	RetryAttempts       int           `mapstructure:"retry_attempts"`
	RetryInitial        time.Duration `mapstructure:"retry_initial"`
}

// ScheduleConfig holds the cron expressions for recurring runs.
type ScheduleConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Timezone   string `mapstructure:"timezone"`
	Recruits   string `mapstructure:"recruits"`
	Portal     string `mapstructure:"portal"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// RunsConfig sizes the run queue and its worker pool.
type RunsConfig struct {
	Workers    int           `mapstructure:"workers"`
	QueueDepth int           `mapstructure:"queue_depth"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects where run snapshots are archived.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the run history database. An empty DSN keeps
// history in memory.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig holds metadata for run completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// AlertConfig configures failure e-mails. An empty host disables alerting.
type AlertConfig struct {
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// legacyEnv maps config keys to the environment names earlier deployments used.
var legacyEnv = map[string]string{
	"sheets.credentials":          "GOOGLE_CREDS_JSON",
	"sheets.recruits_spreadsheet": "GOOGLE_SHEET_NAME",
	"sheets.portal_spreadsheet":   "PORTAL_SHEET_NAME",
	"sheets.bio_base_url":         "AI_BIO_BASE_URL",
	"server.port":                 "PORT",
	"alert.smtp_host":             "SMTP_HOST",
	"alert.smtp_port":             "SMTP_PORT",
	"alert.username":              "EMAIL_USER",
	"alert.password":              "EMAIL_PASS",
	"alert.to":                    "EMAIL_TO",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RECRUITSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Alert.To = splitAddresses(cfg.Alert.To)
	if cfg.Alert.From == "" {
		cfg.Alert.From = cfg.Alert.Username
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// bindLegacyEnv binds each key to its prefixed name first, then its legacy name.
func bindLegacyEnv(v *viper.Viper) error {
	for key, legacy := range legacyEnv {
		prefixed := "RECRUITSYNC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// splitAddresses accepts both list values and a single comma separated string.
func splitAddresses(in []string) []string {
	var out []string
	for _, item := range in {
		for _, addr := range strings.Split(item, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("scrape.base_url", "https://247sports.com")
	v.SetDefault("scrape.season", time.Now().Year())
	v.SetDefault("scrape.batch_size", 5)
	v.SetDefault("scrape.max_workers", 5)
	v.SetDefault("scrape.max_pages", 0)
	v.SetDefault("scrape.min_entries_to_continue", 15)
	v.SetDefault("scrape.stale_after_days", 365)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (compatible; recruitsync/1.0)")
	v.SetDefault("scrape.request_timeout", "30s")
	v.SetDefault("scrape.requests_per_second", 4.0)
	v.SetDefault("sheets.credentials", "")
	v.SetDefault("sheets.recruits_spreadsheet", "SDSU Recruiting")
	v.SetDefault("sheets.portal_spreadsheet", "SDSU Transfer Portal")
	v.SetDefault("sheets.worksheet", "Sheet1")
	v.SetDefault("sheets.bio_base_url", "")
	v.SetDefault("sheets.stars_formula", true)
	v.SetDefault("sheets.retry_attempts", 5)
	v.SetDefault("sheets.retry_initial", "1s")
	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("schedule.recruits", "0 8 * * *")
	v.SetDefault("schedule.portal", "*/5 * * * *")
	v.SetDefault("schedule.run_on_start", false)
	v.SetDefault("runs.workers", 2)
	v.SetDefault("runs.queue_depth", 16)
	v.SetDefault("runs.timeout", "15m")
	v.SetDefault("storage.backend", StorageMemory)
	v.SetDefault("storage.base_dir", "snapshots")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "runs")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "sync_runs")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("alert.smtp_host", "")
	v.SetDefault("alert.smtp_port", 587)
	v.SetDefault("alert.username", "")
	v.SetDefault("alert.password", "")
	v.SetDefault("alert.from", "")
	v.SetDefault("alert.to", []string{})
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	if err := c.ScrapeSettings().Validate(); err != nil {
		return err
	}
	if c.Scrape.RequestTimeout <= 0 {
		return errors.New("scrape.request_timeout must be > 0")
	}
	if c.Scrape.RequestsPerSecond < 0 {
		return errors.New("scrape.requests_per_second must be >= 0")
	}
	if strings.TrimSpace(c.Sheets.Worksheet) == "" {
		return errors.New("sheets.worksheet must be set")
	}
	if c.Sheets.RetryAttempts <= 0 {
		return errors.New("sheets.retry_attempts must be > 0")
	}
	if c.Sheets.RetryInitial <= 0 {
		return errors.New("sheets.retry_initial must be > 0")
	}
	if c.Runs.Workers <= 0 {
		return errors.New("runs.workers must be > 0")
	}
	if c.Runs.QueueDepth <= 0 {
		return errors.New("runs.queue_depth must be > 0")
	}
	if c.Runs.Timeout < 0 {
		return errors.New("runs.timeout must be >= 0")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Storage.Backend {
	case StorageMemory:
	case StorageLocal:
		if c.Storage.BaseDir == "" {
			return errors.New("storage.base_dir must be set for the local backend")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return errors.New("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q must be one of memory, local, gcs", c.Storage.Backend)
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return errors.New("pubsub.project_id and pubsub.topic_name must be set together")
	}
	if c.Alert.SMTPHost != "" {
		if c.Alert.SMTPPort <= 0 {
			return errors.New("alert.smtp_port must be > 0")
		}
		if len(c.Alert.To) == 0 {
			return errors.New("alert.to must be set when alerting is enabled")
		}
	}
	return nil
}

// ScrapeSettings converts the scrape section into scraper settings.
func (c Config) ScrapeSettings() scrape.Config {
	return scrape.Config{
		BaseURL:              c.Scrape.BaseURL,
		Season:               c.Scrape.Season,
		BatchSize:            c.Scrape.BatchSize,
		MaxWorkers:           c.Scrape.MaxWorkers,
		MaxPages:             c.Scrape.MaxPages,
		MinEntriesToContinue: c.Scrape.MinEntriesToContinue,
		StaleAfterDays:       c.Scrape.StaleAfterDays,
	}
}

// Location resolves the schedule timezone.
func (c Config) Location() (*time.Location, error) {
	name := c.Schedule.Timezone
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}

// Spreadsheet returns the configured spreadsheet name for kind.
func (c Config) Spreadsheet(kind scrape.Kind) string {
	if kind == scrape.KindPortal {
		return c.Sheets.PortalSpreadsheet
	}
	return c.Sheets.RecruitsSpreadsheet
}
