package database

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	EnableDB        bool          `envconfig:"ENABLE_DB" default:"false"`
	DatabaseURL     string        `envconfig:"DATABASE_URL" default:"riskexecutor.db"` // postgres:// URL or a SQLite file path
	GormLogLevel    int           `envconfig:"GORM_LOG_LEVEL" default:"2"`
	MaxOpenConns    int           `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"1h"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
