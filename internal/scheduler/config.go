package scheduler

import (
	"time"

	appconfig "github.com/smallbiznis/leavehub/internal/config"
)

// Config controls reconciliation pass intervals and timeouts.
type Config struct {
	LifecycleInterval time.Duration
	ReminderInterval  time.Duration
	AutoCloseInterval time.Duration
	PassTimeout       time.Duration
	EnabledPasses     []string
}

func DefaultConfig() Config {
	return Config{
		LifecycleInterval: 30 * time.Minute,
		ReminderInterval:  time.Hour,
		AutoCloseInterval: 15 * time.Minute,
		PassTimeout:       5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.LifecycleInterval <= 0 {
		c.LifecycleInterval = defaults.LifecycleInterval
	}
	if c.ReminderInterval <= 0 {
		c.ReminderInterval = defaults.ReminderInterval
	}
	if c.AutoCloseInterval <= 0 {
		c.AutoCloseInterval = defaults.AutoCloseInterval
	}
	if c.PassTimeout <= 0 {
		c.PassTimeout = defaults.PassTimeout
	}
	return c
}

func ProvideConfig(cfg appconfig.Config) Config {
	return Config{
		LifecycleInterval: cfg.Scheduler.LifecycleInterval,
		ReminderInterval:  cfg.Scheduler.ReminderInterval,
		AutoCloseInterval: cfg.Scheduler.AutoCloseInterval,
		PassTimeout:       cfg.Scheduler.PassTimeout,
	}.withDefaults()
}
