package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	BotToken        string        `envconfig:"BOT_TOKEN" required:"true"`
	DBPath          string        `envconfig:"DB_PATH" default:"./data/timetable.db"` // empty keeps preferences in memory
	SchedulesDir    string        `envconfig:"SCHEDULES_DIR" default:"./data/schedules"`
	URLsPath        string        `envconfig:"URLS_PATH" default:"./data/urls.json"`
	ExportEncodings []string      `envconfig:"EXPORT_ENCODINGS" default:"utf-8,windows-1250,iso-8859-2"`
	GroupCount      int           `envconfig:"GROUP_COUNT" default:"3"`
	ReminderLead    time.Duration `envconfig:"REMINDER_LEAD" default:"5m"`
	SweepInterval   time.Duration `envconfig:"SWEEP_INTERVAL" default:"1m"`
	ResyncCron      string        `envconfig:"RESYNC_CRON" default:"0 5 * * *"` // empty disables scheduled resync
	FetchTimeout    time.Duration `envconfig:"FETCH_TIMEOUT" default:"3m"`
	BrowserHeadless bool          `envconfig:"BROWSER_HEADLESS" default:"true"`
	TZName          string        `envconfig:"TZ_NAME" default:"Europe/Warsaw"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`  // debug|info|warn|error
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"` // healthz
}

// Load reads environment variables into Config.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if cfg.GroupCount < 1 {
		return cfg, fmt.Errorf("GROUP_COUNT must be positive, got %d", cfg.GroupCount)
	}
	if cfg.SweepInterval <= 0 {
		return cfg, fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", cfg.SweepInterval)
	}
	if cfg.ResyncCron != "" {
		if _, err := cron.ParseStandard(cfg.ResyncCron); err != nil {
			return cfg, fmt.Errorf("RESYNC_CRON %q: %w", cfg.ResyncCron, err)
		}
	}
	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Location resolves TZName; dates and reminder clocks are computed in it.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TZName)
	if err != nil {
		return nil, fmt.Errorf("TZ_NAME %q: %w", c.TZName, err)
	}
	return loc, nil
}
