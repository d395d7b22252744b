package risk

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Enabled            bool          `envconfig:"RISK_ENABLED" default:"true"`
	MonitorInterval    time.Duration `envconfig:"RISK_MONITOR_INTERVAL" default:"1s"`
	MaxPositionSizeUSD float64       `envconfig:"RISK_MAX_POSITION_SIZE_USD" default:"50000"`
	MaxDailyLossUSD    float64       `envconfig:"RISK_MAX_DAILY_LOSS_USD" default:"5000"`
	StopLossPct        float64       `envconfig:"RISK_STOP_LOSS_PCT" default:"2.0"`
	TakeProfitPct      float64       `envconfig:"RISK_TAKE_PROFIT_PCT" default:"5.0"`
	TrailingStopPct    float64       `envconfig:"RISK_TRAILING_STOP_PCT" default:"1.0"`
	MaxOpenPositions   int           `envconfig:"RISK_MAX_OPEN_POSITIONS" default:"10"`
	RegularHoursOnly   bool          `envconfig:"RISK_REGULAR_HOURS_ONLY" default:"false"`
	DailyResetCron     string        `envconfig:"RISK_DAILY_RESET_CRON" default:"CRON_TZ=America/New_York 0 0 4 * * 1-5"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
