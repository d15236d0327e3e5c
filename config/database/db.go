package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"writingstuff/config"
	"writingstuff/pkg/logger"

	_ "github.com/lib/pq"
)

const retryDelay = 2 * time.Second

// Connect opens the postgres pool and pings it until it answers or the retry
// budget is spent.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 1
	}

	for i := 0; i < retries; i++ {
		if err = db.PingContext(ctx); err == nil {
			logger.Sugar.Info("Successfully connected to the database")
			return db, nil
		}
		logger.Sugar.Infof("Database connection failed, retrying in %s... (%v)", retryDelay, err)

		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	db.Close()
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", retries, err)
}
