// Package dbpool owns the single shared Postgres connection pool. The
// relational store, the scheduler jobs, and the notification worker all
// run on this pool so the hub never opens more connections than the
// database budget allows.
package dbpool

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/FoodCourtHub/server/internal/config"
)

// SharedPool manages one Postgres connection pool for the process.
type SharedPool struct {
	db *sql.DB
}

// NewSharedPool opens and pings the pool, then applies the configured
// limits. Idle connections recycle on ConnMaxLifetime so the hub survives
// the bank-network firewalls that silently drop hour-old connections.
func NewSharedPool(connectionString string, poolConfig config.PoolConfig) (*SharedPool, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	maxOpen := poolConfig.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}
	maxIdle := poolConfig.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	lifetime := poolConfig.ConnMaxLifetime.Duration
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(lifetime)

	return &SharedPool{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (p *SharedPool) DB() *sql.DB {
	return p.db
}

// Close closes the shared connection pool. Safe to call more than once.
func (p *SharedPool) Close() error {
	return p.db.Close()
}
