package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver for database/sql
	log "github.com/sirupsen/logrus"
)

// Connect opens the connection pool to the hosted Postgres database that backs
// every user table, and verifies it with a ping before any traffic is accepted.
func Connect(ctx context.Context, dbURL string) (*sqlx.DB, error) {
	conn, err := sqlx.ConnectContext(ctx, "postgres", dbURL)
	if err != nil {
		log.Errorf("Failed to connect to database: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		log.Errorf("Failed to ping database: %v", err)
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Hosted Postgres plans cap connections; stay well under the limit.
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	log.Info("Database connection pool initialized successfully.")
	return conn, nil
}

// Close releases the pool. Safe to call with nil.
func Close(conn *sqlx.DB) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		log.Errorf("Error closing database connection: %v", err)
		return
	}
	log.Info("Database connection pool closed.")
}
