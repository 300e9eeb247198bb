package config

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// SchedulerPolicy is the hot-reloadable slice of scheduler behavior:
// which reconciliation passes are allowed to run. An empty list means
// every pass runs.
type SchedulerPolicy struct {
	EnabledPasses []string `mapstructure:"enabledPasses"`
}

func DefaultSchedulerPolicy() SchedulerPolicy {
	return SchedulerPolicy{}
}

var knownPasses = map[string]struct{}{
	"lifecycle":  {},
	"reminder":   {},
	"auto_close": {},
}

// SchedulerPolicyHolder serves the current policy and swaps it in place
// when the config file changes, so passes can be paused without a
// restart.
type SchedulerPolicyHolder struct {
	current atomic.Value // holds SchedulerPolicy
}

func NewSchedulerPolicyHolder() (*SchedulerPolicyHolder, error) {
	v := viper.New()

	v.SetConfigName("scheduler")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/leavehub/config") // Volume-mounted config
	v.AddConfigPath("/etc/leavehub")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("LEAVEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultSchedulerPolicy()
		v.SetDefault("scheduler.enabledPasses", defaults.EnabledPasses)
	}

	var policy SchedulerPolicy
	if err := v.UnmarshalKey("scheduler", &policy); err != nil {
		return nil, err
	}
	if err := validateSchedulerPolicy(policy); err != nil {
		return nil, err
	}

	holder := &SchedulerPolicyHolder{}
	holder.current.Store(policy)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SchedulerPolicy
		if err := v.UnmarshalKey("scheduler", &updated); err != nil {
			log.Printf("[scheduler-policy] reload failed: %v", err)
			return
		}
		if err := validateSchedulerPolicy(updated); err != nil {
			log.Printf("[scheduler-policy] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[scheduler-policy] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *SchedulerPolicyHolder) Get() SchedulerPolicy {
	return h.current.Load().(SchedulerPolicy)
}

func validateSchedulerPolicy(policy SchedulerPolicy) error {
	for _, pass := range policy.EnabledPasses {
		if _, ok := knownPasses[strings.ToLower(pass)]; !ok {
			return fmt.Errorf("scheduler.enabledPasses: unknown pass %q", pass)
		}
	}
	return nil
}
