package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"token-deploy/internal/config"
	"token-deploy/internal/storage"
	chstore "token-deploy/internal/storage/clickhouse"
	"token-deploy/internal/storage/memory"
	"token-deploy/internal/storage/migrations"
	pgstore "token-deploy/internal/storage/postgres"
)

// openStore opens the configured deployment store. The returned func
// releases its connection.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.DeploymentStore, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory, "":
		return memory.NewDeploymentStore(), func() {}, nil

	case config.DriverPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		return pgstore.NewDeploymentStore(pool), pool.Close, nil

	case config.DriverClickhouse:
		var (
			conn *chstore.Conn
			err  error
		)
		if cfg.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
			if err == nil {
				logger.Info("clickhouse migrations applied")
			}
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("connect clickhouse: %w", err)
		}
		return chstore.NewDeploymentStore(conn), func() { _ = conn.Close() }, nil
	}

	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
