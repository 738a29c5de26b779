// Package executor runs compiled SELECT queries and returns their rows as
// flat maps keyed by output alias.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/Godswilldev/nest-dynamic-gql-qb/query/builder"
	"github.com/Godswilldev/nest-dynamic-gql-qb/query/cache"
)

// DefaultStatementCacheSize bounds the prepared statements kept per
// executor. Filter shapes and IN-list lengths change the SQL text, so old
// statements must be evicted.
const DefaultStatementCacheSize = 128

// Querier prepares statements. *sql.DB, *sql.Conn and *sql.Tx satisfy it.
type Querier interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Executor executes queries against one database.
type Executor struct {
	db          Querier
	dialect     builder.Dialect
	middlewares []Middleware

	// mu guards stmts and the refs and evicted fields of every entry.
	mu    sync.Mutex
	stmts *cache.LRU[string, *cachedStmt]
}

// cachedStmt is closed once it is evicted and no query still uses it.
type cachedStmt struct {
	stmt    *sql.Stmt
	refs    int
	evicted bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithStatementCacheSize caps the number of cached prepared statements.
func WithStatementCacheSize(n int) Option {
	return func(e *Executor) {
		e.stmts = cache.NewWithEvict[string, *cachedStmt](n, e.evict)
	}
}

// NewExecutor creates an executor rendering SQL for dialect.
func NewExecutor(db Querier, dialect builder.Dialect, opts ...Option) *Executor {
	e := &Executor{
		db:      db,
		dialect: dialect,
	}
	e.stmts = cache.NewWithEvict[string, *cachedStmt](DefaultStatementCacheSize, e.evict)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Use appends middleware to the chain. Middleware runs in the order added.
// It is not safe to call Use concurrently with FetchRows.
func (e *Executor) Use(mw ...Middleware) {
	e.middlewares = append(e.middlewares, mw...)
}

// Dialect returns the dialect queries are rendered for.
func (e *Executor) Dialect() builder.Dialect {
	return e.dialect
}

// FetchRows renders q, runs it and returns one map per row.
func (e *Executor) FetchRows(ctx context.Context, q *builder.Select) ([]map[string]any, error) {
	query, args, err := q.ToSQL(e.dialect)
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	err = e.run(ctx, query, args, func(event *QueryEvent) error {
		cs, err := e.acquire(ctx, query)
		if err != nil {
			return err
		}
		defer e.release(cs)

		rows, err := cs.stmt.QueryContext(ctx, args...)
		if err != nil {
			return fmt.Errorf("query execution failed: %w", err)
		}
		defer rows.Close()

		out, err = scanRows(rows)
		event.Rows = len(out)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// acquire returns a cached prepared statement for query, preparing it on
// first use. Every acquire must be paired with a release.
func (e *Executor) acquire(ctx context.Context, query string) (*cachedStmt, error) {
	e.mu.Lock()
	if cs, ok := e.stmts.Get(query); ok {
		cs.refs++
		e.mu.Unlock()
		return cs, nil
	}
	e.mu.Unlock()

	stmt, err := e.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if cs, ok := e.stmts.Get(query); ok {
		stmt.Close()
		cs.refs++
		return cs, nil
	}
	cs := &cachedStmt{stmt: stmt, refs: 1}
	e.stmts.Set(query, cs)
	return cs, nil
}

func (e *Executor) release(cs *cachedStmt) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cs.refs--
	if cs.evicted && cs.refs == 0 {
		cs.stmt.Close()
	}
}

// evict is called by the cache with e.mu held.
func (e *Executor) evict(_ string, cs *cachedStmt) {
	cs.evicted = true
	if cs.refs == 0 {
		cs.stmt.Close()
	}
}

// CachedStatements returns the number of prepared statements held.
func (e *Executor) CachedStatements() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stmts.Len()
}

// Close releases every cached prepared statement. Statements still in use
// are closed when their query finishes.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stmts.Clear()
	return nil
}
