package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServiceName    string        `envconfig:"ENGINE_SERVICE_NAME" default:"risk_executor"`
	RetryBackoff   time.Duration `envconfig:"ENGINE_RETRY_BACKOFF" default:"1s"`
	StartupTimeout time.Duration `envconfig:"ENGINE_STARTUP_TIMEOUT" default:"30s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
