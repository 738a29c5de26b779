// Package client opens the database a resolver reads from and owns the
// executor that runs compiled queries against it.
package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver (pgx)
	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver

	"github.com/Godswilldev/nest-dynamic-gql-qb/query/builder"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/executor"
)

// ErrUnsupportedProvider is returned for providers with no registered driver.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// Client is a database connection plus the executor bound to it.
type Client struct {
	db       *sql.DB
	provider string
	dialect  builder.Dialect
	executor *executor.Executor
}

// Open connects to a database. provider is a schema datasource provider
// ("postgresql", "mysql", "sqlite") or a driver name ("postgres", "pgx",
// "sqlite3").
func Open(provider, dsn string) (*Client, error) {
	driver, err := DriverName(provider)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", provider, err)
	}
	c, err := FromDB(provider, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// FromDB wraps an existing connection.
func FromDB(provider string, db *sql.DB) (*Client, error) {
	dialect, err := builder.ParseDialect(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	return &Client{
		db:       db,
		provider: provider,
		dialect:  dialect,
		executor: executor.NewExecutor(db, dialect),
	}, nil
}

// DriverName maps a provider to the database/sql driver registered for it.
func DriverName(provider string) (string, error) {
	switch strings.ToLower(provider) {
	case "postgresql", "postgres":
		return "postgres", nil
	case "pgx":
		return "pgx", nil
	case "mysql":
		return "mysql", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
}

// Connect verifies the connection.
func (c *Client) Connect(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close releases cached statements and the connection.
func (c *Client) Close() error {
	return errors.Join(c.executor.Close(), c.db.Close())
}

// DB returns the underlying connection.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Provider returns the provider the client was opened with.
func (c *Client) Provider() string {
	return c.provider
}

// Dialect returns the SQL dialect of the database.
func (c *Client) Dialect() builder.Dialect {
	return c.dialect
}

// Executor returns the executor bound to the connection.
func (c *Client) Executor() *executor.Executor {
	return c.executor
}
