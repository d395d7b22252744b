package execution

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Enabled            bool   `envconfig:"EXECUTION_ENABLED" default:"true"`
	MaxOrderSize       int64  `envconfig:"EXECUTION_MAX_ORDER_SIZE" default:"1000"`
	DefaultTimeInForce string `envconfig:"EXECUTION_DEFAULT_TIF" default:"DAY"`
	EntryQuantity      int64  `envconfig:"EXECUTION_ENTRY_QUANTITY" default:"100"`
	ShortQuantity      int64  `envconfig:"SHORT_QUANTITY" default:"100"`
	MaxShortPosition   int64  `envconfig:"SHORT_MAX_POSITION" default:"500"`
	LocateRequired     bool   `envconfig:"SHORT_LOCATE_REQUIRED" default:"true"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
