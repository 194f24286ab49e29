package portal

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Config is the "portal" configuration section.
type Config struct {
	// Timezone is the location timestamps are stored and compared in.
	Timezone string `yaml:"timezone" json:"timezone" default:"America/Sao_Paulo" env:"PORTAL_TIMEZONE" desc:"IANA timezone of stored timestamps"`

	// AdminPassword, when set, is used to create the admin user on startup
	// and by the admin creation screen.
	AdminPassword string `yaml:"admin_password" json:"admin_password" env:"PORTAL_ADMIN_PASSWORD" desc:"Password of the bootstrap admin user"`

	AdminEmail string `yaml:"admin_email" json:"admin_email" default:"admin@portalprojetos.com" env:"PORTAL_ADMIN_EMAIL"`

	// OverdueReportCron schedules the overdue task report. Empty disables it.
	OverdueReportCron string `yaml:"overdue_report_cron" json:"overdue_report_cron" desc:"Schedule of the overdue task report, empty disables it"`

	// ActivityRetentionDays bounds the activity log. Zero keeps it forever.
	ActivityRetentionDays int `yaml:"activity_retention_days" json:"activity_retention_days" desc:"Days of activity log kept, 0 keeps everything"`

	ActivityPruneCron string `yaml:"activity_prune_cron" json:"activity_prune_cron" desc:"Schedule of the activity log pruning"`

	FlashCookie string `yaml:"flash_cookie" json:"flash_cookie" default:"portal_flash"`

	// DisableAdminScreen removes the public admin creation screen, leaving
	// the bootstrap to the CLI and AdminPassword.
	DisableAdminScreen bool `yaml:"disable_admin_screen" json:"disable_admin_screen" env:"PORTAL_DISABLE_ADMIN_SCREEN" desc:"Remove the public /criar-admin screen"`
}

// DefaultConfig returns the configuration used when nothing is fed.
func DefaultConfig() *Config {
	return &Config{
		Timezone:              "America/Sao_Paulo",
		AdminEmail:            "admin@portalprojetos.com",
		OverdueReportCron:     "0 8 * * *",
		ActivityRetentionDays: 90,
		ActivityPruneCron:     "30 3 * * *",
		FlashCookie:           "portal_flash",
	}
}

// Validate checks the timezone and the cron expressions.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.AdminEmail == "" {
		c.AdminEmail = "admin@portalprojetos.com"
	}
	if c.FlashCookie == "" {
		c.FlashCookie = "portal_flash"
	}
	if c.ActivityRetentionDays < 0 {
		return fmt.Errorf("%w: activity_retention_days must not be negative", ErrInvalidConfig)
	}
	for name, expr := range map[string]string{
		"overdue_report_cron": c.OverdueReportCron,
		"activity_prune_cron": c.ActivityPruneCron,
	} {
		if expr == "" {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
		}
	}
	return nil
}

// Location loads the configured timezone. Empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}
