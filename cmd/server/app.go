package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/task-management-api/internal/config"
	"github.com/iliyamo/task-management-api/internal/database"
	"github.com/iliyamo/task-management-api/internal/logging"
	"github.com/iliyamo/task-management-api/internal/repository"
	"github.com/iliyamo/task-management-api/internal/repository/mongostore"
	"github.com/iliyamo/task-management-api/internal/repository/sqlstore"
)

// app holds what every command needs: configuration, the logger and the
// store of the configured driver.
type app struct {
	cfg   config.Config
	log   *log.Logger
	store *repository.Store
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, cfg.Debug)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.WithField("driver", cfg.StoreDriver).Info("store.connected")
	return &app{cfg: cfg, log: logger, store: store}, nil
}

func (a *app) close() {
	if err := a.store.Close(context.Background()); err != nil {
		a.log.WithError(err).Warn("store.close_failed")
	}
}

// openStore connects to the configured backend and brings its schema up to
// date: goose migrations for the SQL drivers, indexes for MongoDB.
func openStore(ctx context.Context, cfg config.Config, logger log.FieldLogger) (*repository.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		db, err := database.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		return mongostore.New(ctx, db)
	case config.DriverMySQL:
		db, err := database.OpenMySQL(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		if err := database.Migrate(db, config.DriverMySQL, logger); err != nil {
			db.Close()
			return nil, err
		}
		return sqlstore.New(db), nil
	default:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db, config.DriverSQLite, logger); err != nil {
			db.Close()
			return nil, err
		}
		return sqlstore.New(db), nil
	}
}
