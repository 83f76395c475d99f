package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// NotifyConfig controls the daily expiration scan: the zone-local fire time,
// the misfire grace window, and the currency label used in messages.
type NotifyConfig struct {
	Timezone     string        `mapstructure:"timezone"`
	Hour         int           `mapstructure:"hour"`
	Minute       int           `mapstructure:"minute"`
	MisfireGrace time.Duration `mapstructure:"misfireGrace"`
	Currency     string        `mapstructure:"currency"`

	location *time.Location
}

// Location returns the resolved operating time zone, falling back to UTC
// when Timezone cannot be loaded.
func (c NotifyConfig) Location() *time.Location {
	if c.location != nil {
		return c.location
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func DefaultNotifyConfig() NotifyConfig {
	return NotifyConfig{
		Timezone:     "Asia/Dubai",
		Hour:         9,
		Minute:       0,
		MisfireGrace: 15 * time.Minute,
		Currency:     "AED",
	}
}

// NotifyConfigHolder exposes the current notify config and hot-reloads it
// when the config file changes.
type NotifyConfigHolder struct {
	current atomic.Value // holds NotifyConfig
}

func NewNotifyConfigHolder() (*NotifyConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("simroster")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/simroster")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SIMROSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultNotifyConfig()
	v.SetDefault("notify.timezone", defaults.Timezone)
	v.SetDefault("notify.hour", defaults.Hour)
	v.SetDefault("notify.minute", defaults.Minute)
	v.SetDefault("notify.misfireGrace", defaults.MisfireGrace)
	v.SetDefault("notify.currency", defaults.Currency)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg, err := unmarshalNotify(v)
	if err != nil {
		return nil, err
	}

	holder := &NotifyConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalNotify(v)
		if err != nil {
			log.Printf("[notify-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[notify-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticNotifyConfigHolder wraps a fixed config with no file watching.
func NewStaticNotifyConfigHolder(cfg NotifyConfig) *NotifyConfigHolder {
	holder := &NotifyConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *NotifyConfigHolder) Get() NotifyConfig {
	return h.current.Load().(NotifyConfig)
}

func unmarshalNotify(v *viper.Viper) (NotifyConfig, error) {
	var cfg NotifyConfig
	if err := v.UnmarshalKey("notify", &cfg); err != nil {
		return NotifyConfig{}, err
	}
	if err := validateNotifyConfig(&cfg); err != nil {
		return NotifyConfig{}, err
	}
	return cfg, nil
}

func validateNotifyConfig(cfg *NotifyConfig) error {
	if cfg.Hour < 0 || cfg.Hour > 23 {
		return fmt.Errorf("notify.hour out of range: %d", cfg.Hour)
	}
	if cfg.Minute < 0 || cfg.Minute > 59 {
		return fmt.Errorf("notify.minute out of range: %d", cfg.Minute)
	}
	if cfg.MisfireGrace < 0 {
		return errors.New("notify.misfireGrace cannot be negative")
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		return errors.New("notify.currency cannot be empty")
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("notify.timezone: %w", err)
	}
	cfg.location = loc
	return nil
}
