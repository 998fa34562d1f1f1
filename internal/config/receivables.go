package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ReceivablesConfig drives how outstanding customer balances are bucketed
// in the ledger summary.
type ReceivablesConfig struct {
	AgingBuckets []AgingBucket `mapstructure:"agingBuckets"`
	RiskLevels   []RiskLevel   `mapstructure:"riskLevels"`
}

type AgingBucket struct {
	Label   string `mapstructure:"label"`
	MinDays int    `mapstructure:"minDays"`
	MaxDays *int   `mapstructure:"maxDays"`
}

type RiskLevel struct {
	Level          string `mapstructure:"level"`
	MinOutstanding int64  `mapstructure:"minOutstanding"` // minor units
	MinDays        int    `mapstructure:"minDays"`
}

func DefaultReceivablesConfig() ReceivablesConfig {
	return ReceivablesConfig{
		AgingBuckets: []AgingBucket{
			{Label: "0-30", MinDays: 0, MaxDays: intPtr(30)},
			{Label: "31-60", MinDays: 31, MaxDays: intPtr(60)},
			{Label: "60+", MinDays: 61, MaxDays: nil},
		},
		RiskLevels: []RiskLevel{
			{Level: "high", MinOutstanding: 1_000_000, MinDays: 60},
			{Level: "medium", MinOutstanding: 250_000, MinDays: 31},
			{Level: "low", MinOutstanding: 0, MinDays: 0},
		},
	}
}

func intPtr(v int) *int { return &v }

// ReceivablesConfigHolder serves the current config and hot-reloads it when
// the backing file changes.
type ReceivablesConfigHolder struct {
	current atomic.Value // holds ReceivablesConfig
}

func NewReceivablesConfigHolder() (*ReceivablesConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("receivables")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/freightway/config")
	v.AddConfigPath("/etc/freightway")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FREIGHTWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultReceivablesConfig()
		v.SetDefault("receivables.agingBuckets", defaults.AgingBuckets)
		v.SetDefault("receivables.riskLevels", defaults.RiskLevels)
	}

	var cfg ReceivablesConfig
	if err := v.UnmarshalKey("receivables", &cfg); err != nil {
		return nil, err
	}
	if err := validateReceivablesConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ReceivablesConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ReceivablesConfig
		if err := v.UnmarshalKey("receivables", &updated); err != nil {
			log.Printf("[receivables-config] reload failed: %v", err)
			return
		}
		if err := validateReceivablesConfig(updated); err != nil {
			log.Printf("[receivables-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[receivables-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *ReceivablesConfigHolder) Get() ReceivablesConfig {
	return h.current.Load().(ReceivablesConfig)
}

func validateReceivablesConfig(cfg ReceivablesConfig) error {
	if len(cfg.AgingBuckets) == 0 {
		return errors.New("receivables.agingBuckets cannot be empty")
	}
	if len(cfg.RiskLevels) == 0 {
		return errors.New("receivables.riskLevels cannot be empty")
	}
	return nil
}
