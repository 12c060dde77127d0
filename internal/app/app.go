// Package app assembles the process-level pieces shared by every command.
package app

import (
	"fmt"

	"github.com/chrismeller/mj/internal/config"
	"github.com/chrismeller/mj/internal/db"
	"github.com/chrismeller/mj/internal/encryption"
	"github.com/chrismeller/mj/internal/logger"
	"github.com/chrismeller/mj/internal/repository"
	"github.com/chrismeller/mj/internal/service/clients"
	"github.com/chrismeller/mj/internal/util"
	"github.com/chrismeller/mj/internal/validation"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Bootstrap loads configuration and builds the logger from it.
func Bootstrap(cfgPath string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("build logger: %w", err)
	}
	return cfg, log, nil
}

// OpenStore connects the record store configured under database.*.
func OpenStore(cfg config.Config) (*sqlx.DB, error) {
	sqlDB, err := db.NewSQLConnection(cfg.Database.Driver, cfg.Database.DSN, sqlOpts(cfg.Database.Pool))
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
	}
	return sqlDB, nil
}

// OpenClickHouse connects the analytics store configured under clickhouse.*.
func OpenClickHouse(cfg config.Config) (*sqlx.DB, error) {
	chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
		DSN:     cfg.ClickHouse.DSN,
		SQLOpts: sqlOpts(cfg.ClickHouse.Pool),
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect: %w", err)
	}
	return chDB, nil
}

// NewClientService wires codec, normalizer, validator and repositories around sqlDB.
func NewClientService(cfg config.Config, sqlDB *sqlx.DB, log *zap.Logger) (*clients.Service, error) {
	codec, err := encryption.New(cfg.Encryption.Algorithm, cfg.Encryption.Key)
	if err != nil {
		return nil, fmt.Errorf("encryption: %w", err)
	}

	return clients.New(
		sqlDB,
		repository.NewClientsRepository(sqlDB),
		repository.NewOutboxRepository(sqlDB),
		validation.New(util.NewPhoneNormalizer(cfg.Phone.Region)),
		codec,
		log.Named("clients"),
	), nil
}

func sqlOpts(p config.PoolConfig) db.SQLOpts {
	return db.SQLOpts{
		MaxOpenConns:    p.MaxOpenConns,
		MaxIdleConns:    p.MaxIdleConns,
		ConnMaxLifetime: p.ConnMaxLifetime,
		ConnMaxIdleTime: p.ConnMaxIdleTime,
		PingTimeout:     p.PingTimeout,
	}
}
