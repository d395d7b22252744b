package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BridgeURL     string        `envconfig:"BRIDGE_URL" default:"http://127.0.0.1:8090"`
	BridgeAccount string        `envconfig:"BRIDGE_ACCOUNT"`
	BridgeTimeout time.Duration `envconfig:"BRIDGE_TIMEOUT" default:"10s"`
	LogonTimeout  time.Duration `envconfig:"BRIDGE_LOGON_TIMEOUT" default:"30s"`
	LogonPoll     time.Duration `envconfig:"BRIDGE_LOGON_POLL" default:"1s"`

	FeedURL          string        `envconfig:"FEED_URL" default:"ws://127.0.0.1:8091/quotes"`
	FeedReadTimeout  time.Duration `envconfig:"FEED_READ_TIMEOUT" default:"60s"`
	FeedReconnectMin time.Duration `envconfig:"FEED_RECONNECT_MIN" default:"1s"`
	FeedReconnectMax time.Duration `envconfig:"FEED_RECONNECT_MAX" default:"30s"`
	Symbols          []string      `envconfig:"SYMBOLS" default:"AAPL,MSFT,TSLA,NVDA,AMD"`

	PaperTrading bool `envconfig:"PAPER_TRADING" default:"false"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
