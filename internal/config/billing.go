package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingConfig holds the tunable billing parameters. It is hot-reloadable so
// operators can adjust grace periods without a restart.
type BillingConfig struct {
	// DueDateOffsetDays is added to the end of the billed month to get the
	// bill due date.
	DueDateOffsetDays int `mapstructure:"dueDateOffsetDays"`
	// CutoffWarningDays is how long a bill may stay overdue before the
	// cutoff escalation fires.
	CutoffWarningDays int `mapstructure:"cutoffWarningDays"`
	// PaymentTolerance is the maximum accepted difference between the paid
	// amount and the bill total.
	PaymentTolerance float64 `mapstructure:"paymentTolerance"`
	// AutoGenerateDay is the day of month on which the scheduler generates
	// bills for the previous month. 0 disables the job gate.
	AutoGenerateDay int `mapstructure:"autoGenerateDay"`
}

func DefaultBillingConfig() BillingConfig {
	return BillingConfig{
		DueDateOffsetDays: 15,
		CutoffWarningDays: 7,
		PaymentTolerance:  0.01,
		AutoGenerateDay:   1,
	}
}

type BillingConfigHolder struct {
	current atomic.Value // holds BillingConfig
}

func NewBillingConfigHolder() (*BillingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/gridbill/config")
	v.AddConfigPath("/etc/gridbill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GRIDBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBillingConfig()
	v.SetDefault("billing.dueDateOffsetDays", defaults.DueDateOffsetDays)
	v.SetDefault("billing.cutoffWarningDays", defaults.CutoffWarningDays)
	v.SetDefault("billing.paymentTolerance", defaults.PaymentTolerance)
	v.SetDefault("billing.autoGenerateDay", defaults.AutoGenerateDay)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg BillingConfig
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingConfig
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingConfig(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingConfigHolder wraps a fixed config, for tests.
func NewStaticBillingConfigHolder(cfg BillingConfig) *BillingConfigHolder {
	holder := &BillingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingConfigHolder) Get() BillingConfig {
	return h.current.Load().(BillingConfig)
}

func validateBillingConfig(cfg BillingConfig) error {
	if cfg.DueDateOffsetDays < 0 {
		return errors.New("billing.dueDateOffsetDays cannot be negative")
	}
	if cfg.CutoffWarningDays <= 0 {
		return errors.New("billing.cutoffWarningDays must be positive")
	}
	if cfg.PaymentTolerance < 0 {
		return errors.New("billing.paymentTolerance cannot be negative")
	}
	return nil
}
