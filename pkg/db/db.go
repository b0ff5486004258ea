package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stackingdao/points-engine/pkg/db/clickhouse"
	"github.com/stackingdao/points-engine/pkg/utils"
	"go.uber.org/zap"
)

// DB is the points database: wallet registry, points ledger and leaderboard.
type DB struct {
	clickhouse.Client
	Name string
}

// New connects to ClickHouse and ensures the points database and its tables exist.
func New(ctx context.Context, logger *zap.Logger) (*DB, error) {
	dbName := utils.Env("POINTS_DB", "points")

	client, err := clickhouse.New(ctx, logger.With(zap.String("db", dbName)), dbName)
	if err != nil {
		return nil, err
	}

	pointsDB := &DB{
		Client: client,
		Name:   dbName,
	}

	if err := pointsDB.InitializeDB(ctx); err != nil {
		return nil, err
	}

	return pointsDB, nil
}

// InitializeDB creates the database and all tables if they do not already exist.
// Table creates are independent, so they run in parallel goroutines.
func (db *DB) InitializeDB(ctx context.Context) error {
	initStart := time.Now()

	query := fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS "%s"`, db.Name)
	if err := db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create database %s: %w", db.Name, err)
	}

	initOps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"wallets", db.initWallets},
		{"points_ledger", db.initLedger},
		{"leaderboard", db.initLeaderboard},
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(initOps))

	for _, op := range initOps {
		wg.Add(1)
		go func(name string, fn func(context.Context) error) {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errChan <- fmt.Errorf("init %s: %w", name, err)
			}
		}(op.name, op.fn)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		return err
	}

	db.Logger.Info("Points database initialization complete",
		zap.String("database", db.Name),
		zap.Duration("duration", time.Since(initStart)))

	return nil
}
