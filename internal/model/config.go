package model

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds the engine tunables. It is passed explicitly into each
// component's constructor; there is no process-wide configuration state.
type Config struct {
	// MaxRecurrentEvents caps how many instances a recurrence rule may
	// expand to, regardless of its count/until condition.
	MaxRecurrentEvents int `mapstructure:"max_recurrent_events" yaml:"max_recurrent_events"`

	// ExpiryMinutes is added to an event's end date to compute its
	// expiry. Zero disables the expiry sweep.
	ExpiryMinutes int `mapstructure:"planning_expiry_minutes" yaml:"planning_expiry_minutes"`

	// AutoAssignToWorkflow activates a coverage immediately when it is
	// created with a desk or user assigned.
	AutoAssignToWorkflow bool `mapstructure:"planning_auto_assign_to_workflow" yaml:"planning_auto_assign_to_workflow"`

	// AllowScheduledUpdates permits scheduled updates on coverages.
	AllowScheduledUpdates bool `mapstructure:"planning_allow_scheduled_updates" yaml:"planning_allow_scheduled_updates"`

	// DefaultTimezone is the IANA zone used when an event carries none.
	DefaultTimezone string `mapstructure:"default_timezone" yaml:"default_timezone"`

	// EventLinkMethod is the related-events policy: one_primary,
	// many_secondary, or one_primary_many_secondary.
	EventLinkMethod string `mapstructure:"event_link_method" yaml:"event_link_method"`

	// SweepPageSize bounds store pagination in sweep/timeline loops.
	SweepPageSize int `mapstructure:"sweep_page_size" yaml:"sweep_page_size"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxRecurrentEvents:    200,
		ExpiryMinutes:         0,
		AutoAssignToWorkflow:  false,
		AllowScheduledUpdates: true,
		DefaultTimezone:       "UTC",
		EventLinkMethod:       LinkMethodOnePrimaryManySecondary,
		SweepPageSize:         200,
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. Missing file is not an error; defaults are returned.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("max_recurrent_events", cfg.MaxRecurrentEvents)
	v.SetDefault("planning_expiry_minutes", cfg.ExpiryMinutes)
	v.SetDefault("planning_auto_assign_to_workflow", cfg.AutoAssignToWorkflow)
	v.SetDefault("planning_allow_scheduled_updates", cfg.AllowScheduledUpdates)
	v.SetDefault("default_timezone", cfg.DefaultTimezone)
	v.SetDefault("event_link_method", cfg.EventLinkMethod)
	v.SetDefault("sweep_page_size", cfg.SweepPageSize)

	// A missing config file means defaults.
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
