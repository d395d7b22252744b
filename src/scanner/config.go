package scanner

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Enabled              bool          `envconfig:"SCANNER_ENABLED" default:"true"`
	ScanInterval         time.Duration `envconfig:"SCANNER_INTERVAL" default:"1s"`
	BreakoutThresholdPct float64       `envconfig:"SCANNER_BREAKOUT_THRESHOLD_PCT" default:"2.0"`
	VolumeSpikeThreshold float64       `envconfig:"SCANNER_VOLUME_SPIKE_THRESHOLD" default:"2.0"` // multiplier over the previous cycle
	MinPrice             float64       `envconfig:"SCANNER_MIN_PRICE" default:"1.0"`
	MaxPrice             float64       `envconfig:"SCANNER_MAX_PRICE" default:"1000.0"`
	MinVolume            int64         `envconfig:"SCANNER_MIN_VOLUME" default:"100000"`
}

type ShortConfig struct {
	Enabled                bool          `envconfig:"SHORT_ENABLED" default:"false"`
	ScanInterval           time.Duration `envconfig:"SHORT_SCAN_INTERVAL" default:"5s"`
	ShortEntryThresholdPct float64       `envconfig:"SHORT_ENTRY_THRESHOLD_PCT" default:"-1.0"` // negative: drop of at least this much
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func GetShortConfig() ShortConfig {
	var config ShortConfig
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
