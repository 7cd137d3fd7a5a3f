package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PricingConfig carries the house-level pricing knobs applied on top of the
// frozen line-item amounts. Tax and service charge are expressed in basis
// points so amounts stay integral.
type PricingConfig struct {
	Currency         string `mapstructure:"currency"`
	TaxRateBps       int64  `mapstructure:"taxRateBps"`
	ServiceChargeBps int64  `mapstructure:"serviceChargeBps"`
	MaxTipBps        int64  `mapstructure:"maxTipBps"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Currency:         "EUR",
		TaxRateBps:       1000, // 10%
		ServiceChargeBps: 0,
		MaxTipBps:        5000, // tips above 50% of the order total are refused
	}
}

// PricingConfigHolder hot-reloads pricing.yml without a restart. Reads are
// lock-free; a reload swaps the whole value.
type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

func NewPricingConfigHolder() (*PricingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/comanda")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COMANDA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingConfig()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("pricing.currency", defaults.Currency)
		v.SetDefault("pricing.taxRateBps", defaults.TaxRateBps)
		v.SetDefault("pricing.serviceChargeBps", defaults.ServiceChargeBps)
		v.SetDefault("pricing.maxTipBps", defaults.MaxTipBps)
	}

	var cfg PricingConfig
	if err := v.UnmarshalKey("pricing", &cfg); err != nil {
		return nil, err
	}
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingConfig
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Printf("[pricing-config] reload failed: %v", err)
			return
		}
		if err := validatePricingConfig(updated); err != nil {
			log.Printf("[pricing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[pricing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticPricingConfigHolder wraps a fixed config with no file watching.
// Intended for tests.
func NewStaticPricingConfigHolder(cfg PricingConfig) (*PricingConfigHolder, error) {
	if err := validatePricingConfig(cfg); err != nil {
		return nil, err
	}
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder, nil
}

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func validatePricingConfig(cfg PricingConfig) error {
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("pricing.currency cannot be empty")
	}
	if cfg.TaxRateBps < 0 || cfg.TaxRateBps > 10000 {
		return errors.New("pricing.taxRateBps must be within [0, 10000]")
	}
	if cfg.ServiceChargeBps < 0 || cfg.ServiceChargeBps > 10000 {
		return errors.New("pricing.serviceChargeBps must be within [0, 10000]")
	}
	if cfg.MaxTipBps < 0 {
		return errors.New("pricing.maxTipBps cannot be negative")
	}
	return nil
}
