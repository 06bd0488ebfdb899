package config

import (
	"github.com/gridbill/gridbill/pkg/db"
	"go.uber.org/fx"
)

// Module loads the env config, the billing config holder, and derives the
// database config from the application config.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		NewBillingConfigHolder,
		ProvideDBConfig,
	),
)

func ProvideDBConfig(cfg Config) db.Config {
	return db.Config{
		Type:            cfg.DBType,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		SSLMode:         cfg.DBSSLMode,
		Path:            cfg.DBPath,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	}
}
