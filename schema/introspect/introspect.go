// Package introspect reads table, column and foreign key metadata from a
// live database and turns it into entity descriptors.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
)

// Introspector reads the database schema.
type Introspector interface {
	Introspect(ctx context.Context) (*DatabaseSchema, error)
}

// DatabaseSchema represents the introspected database schema
type DatabaseSchema struct {
	Tables []Table
}

// Table represents a database table
type Table struct {
	Name        string
	Schema      string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

// Column represents a table column
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// ForeignKey represents a foreign key constraint
type ForeignKey struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
}

// Table looks up a table by name.
func (s *DatabaseSchema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// NewIntrospector creates a new introspector for the given database
func NewIntrospector(db *sql.DB, provider string) (Introspector, error) {
	switch provider {
	case "postgresql", "postgres", "pgx":
		return &PostgresIntrospector{db: db, schema: "public"}, nil
	case "mysql":
		return &MySQLIntrospector{db: db}, nil
	case "sqlite", "sqlite3":
		return &SQLiteIntrospector{db: db}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
}
