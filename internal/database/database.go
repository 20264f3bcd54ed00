// Package database provides MySQL catalog connection management for treestream.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/dbsmedya/treestream/internal/config"
)

// Manager handles the catalog database connection. Traversal is strictly
// read-only, so a single connection pool is all there is; watermark rows
// are the one thing treestream writes, and they live in the same database.
type Manager struct {
	Catalog *sql.DB
	config  *config.Config
}

// NewManager creates a new database manager from configuration.
func NewManager(cfg *config.Config) *Manager {
	return &Manager{
		config: cfg,
	}
}

// Connect establishes the catalog database connection.
func (m *Manager) Connect(ctx context.Context) error {
	var err error

	m.Catalog, err = m.connectWithRetry(ctx, &m.config.Catalog)
	if err != nil {
		return fmt.Errorf("failed to connect to catalog database: %w", err)
	}

	return nil
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context, cfg *config.DatabaseConfig) (*sql.DB, error) {
	var db *sql.DB
	var err error

	maxRetries := 3
	backoff := time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = m.connect(cfg)
		if err == nil {
			// Verify connection
			if pingErr := db.PingContext(ctx); pingErr == nil {
				return db, nil
			} else {
				db.Close()
				err = pingErr
			}
		}

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", maxRetries, err)
}

// connect creates a database connection.
func (m *Manager) connect(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := BuildDSN(cfg)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	if cfg.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConnections)
	}
	db.SetConnMaxLifetime(10 * time.Minute)

	return db, nil
}

// BuildDSN constructs a MySQL DSN from configuration.
func BuildDSN(cfg *config.DatabaseConfig) string {
	// Format: user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
	)

	if cfg.Database != "" {
		dsn += cfg.Database
	}

	// parseTime is required: leaf modification timestamps are scanned as time.Time.
	params := "?parseTime=true"
	switch cfg.TLS {
	case "disable":
		params += "&tls=false"
	case "required":
		params += "&tls=true"
	case "preferred", "":
		params += "&tls=preferred"
	}

	return dsn + params
}

// Close closes the catalog connection gracefully.
func (m *Manager) Close() error {
	if m.Catalog != nil {
		if err := m.Catalog.Close(); err != nil {
			return fmt.Errorf("catalog close: %w", err)
		}
	}
	return nil
}

// Ping verifies the catalog connection is alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.Catalog != nil {
		if err := m.Catalog.PingContext(ctx); err != nil {
			return fmt.Errorf("catalog ping failed: %w", err)
		}
	}
	return nil
}
