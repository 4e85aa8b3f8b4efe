package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// PricingConfig holds the annual pricing table and the grace window. Amounts
// are whole rupees per year.
type PricingConfig struct {
	Currency             string `mapstructure:"currency"`
	SuperadminAmount     int64  `mapstructure:"superadminAmount"`
	AdditionalAdminSeat  int64  `mapstructure:"additionalAdminSeat"`
	GraceDays            int    `mapstructure:"graceDays"`
	InviteExpiryMonths   int    `mapstructure:"inviteExpiryMonths"`
	RenewalWindowDays    int    `mapstructure:"renewalWindowDays"`
	SubscriptionYears    int    `mapstructure:"subscriptionYears"`
	IncludedAdminSeats   int    `mapstructure:"includedAdminSeats"`
}

func DefaultPricingConfig() PricingConfig {
	return PricingConfig{
		Currency:            "INR",
		SuperadminAmount:    99999,
		AdditionalAdminSeat: 15599,
		GraceDays:           30,
		InviteExpiryMonths:  6,
		RenewalWindowDays:   30,
		SubscriptionYears:   1,
		IncludedAdminSeats:  2,
	}
}

// PricingConfigHolder serves the current pricing table and hot-reloads it
// when the mounted pricing.yml changes.
type PricingConfigHolder struct {
	current atomic.Value // holds PricingConfig
}

// NewStaticPricingHolder returns a holder pinned to the given config, for
// tests and for deployments without a pricing file.
func NewStaticPricingHolder(cfg PricingConfig) *PricingConfigHolder {
	holder := &PricingConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewPricingConfigHolder() (*PricingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("pricing")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/parishkeep/config")
	v.AddConfigPath("/etc/parishkeep")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PARISHKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPricingConfig()
	v.SetDefault("pricing.currency", defaults.Currency)
	v.SetDefault("pricing.superadminAmount", defaults.SuperadminAmount)
	v.SetDefault("pricing.additionalAdminSeat", defaults.AdditionalAdminSeat)
	v.SetDefault("pricing.graceDays", defaults.GraceDays)
	v.SetDefault("pricing.inviteExpiryMonths", defaults.InviteExpiryMonths)
	v.SetDefault("pricing.renewalWindowDays", defaults.RenewalWindowDays)
	v.SetDefault("pricing.subscriptionYears", defaults.SubscriptionYears)
	v.SetDefault("pricing.includedAdminSeats", defaults.IncludedAdminSeats)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
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

func (h *PricingConfigHolder) Get() PricingConfig {
	return h.current.Load().(PricingConfig)
}

func validatePricingConfig(cfg PricingConfig) error {
	if cfg.SuperadminAmount <= 0 {
		return errors.New("pricing.superadminAmount must be positive")
	}
	if cfg.AdditionalAdminSeat <= 0 {
		return errors.New("pricing.additionalAdminSeat must be positive")
	}
	if cfg.GraceDays < 0 {
		return errors.New("pricing.graceDays cannot be negative")
	}
	if cfg.SubscriptionYears <= 0 {
		return errors.New("pricing.subscriptionYears must be positive")
	}
	return nil
}
