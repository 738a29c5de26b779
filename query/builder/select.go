// Package builder records a SELECT query through the operations the compiler
// needs and renders it with squirrel for a given dialect.
package builder

import (
	"fmt"
	"math"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Direction is an ORDER BY direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection accepts asc/desc in any case and defaults to Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(s, "desc") {
		return Desc
	}
	return Asc
}

// JoinCondition equates two columns in a join's ON clause.
type JoinCondition struct {
	Left  Column
	Right Column
}

// Join is a LEFT JOIN of Table under Alias.
type Join struct {
	// Relation is the qualified relation being joined, e.g. root.profile.
	Relation string
	Table    string
	Alias    string
	On       []JoinCondition
}

// QueryBuilder is the surface the compiler drives.
type QueryBuilder interface {
	AddSelect(col Column, outputAlias string)
	LeftJoin(join Join)
	Where(p Predicate)
	AndWhere(p Predicate)
	OrderBy(col Column, dir Direction)
	Limit(n uint64)
	Offset(n uint64)
}

type projection struct {
	column Column
	alias  string
}

type ordering struct {
	column Column
	dir    Direction
}

// Select is a SELECT over one root table with LEFT JOINs.
type Select struct {
	table   string
	alias   string
	columns []projection
	joins   []Join
	where   Predicate
	and     []Predicate
	orders  []ordering
	limit   *uint64
	offset  *uint64
}

var _ QueryBuilder = (*Select)(nil)

// NewSelect starts a query over table aliased as alias.
func NewSelect(table, alias string) *Select {
	return &Select{table: table, alias: alias}
}

// AddSelect projects col under outputAlias.
func (s *Select) AddSelect(col Column, outputAlias string) {
	s.columns = append(s.columns, projection{column: col, alias: outputAlias})
}

// LeftJoin appends a LEFT JOIN.
func (s *Select) LeftJoin(join Join) {
	s.joins = append(s.joins, join)
}

// Where sets the base condition, replacing any previous one.
func (s *Select) Where(p Predicate) {
	s.where = p
}

// AndWhere adds a condition ANDed with the base condition.
func (s *Select) AndWhere(p Predicate) {
	s.and = append(s.and, p)
}

// OrderBy appends an ordering term.
func (s *Select) OrderBy(col Column, dir Direction) {
	s.orders = append(s.orders, ordering{column: col, dir: dir})
}

// Limit caps the number of returned rows.
func (s *Select) Limit(n uint64) {
	s.limit = &n
}

// Offset skips rows.
func (s *Select) Offset(n uint64) {
	s.offset = &n
}

// Table returns the root table.
func (s *Select) Table() string { return s.table }

// Alias returns the root alias.
func (s *Select) Alias() string { return s.alias }

// Joins returns the joins in the order they were added.
func (s *Select) Joins() []Join {
	return append([]Join(nil), s.joins...)
}

// OutputAliases returns the projected output names in projection order.
func (s *Select) OutputAliases() []string {
	out := make([]string, len(s.columns))
	for i, p := range s.columns {
		out[i] = p.alias
	}
	return out
}

// Conditions returns the base condition followed by the ANDed ones.
func (s *Select) Conditions() []Predicate {
	var out []Predicate
	if s.where != nil {
		out = append(out, s.where)
	}
	return append(out, s.and...)
}

// Params returns the values of named clause parameters.
func (s *Select) Params() map[string]any {
	params := make(map[string]any)
	for _, p := range s.Conditions() {
		if c, ok := p.(Clause); ok && c.Param != "" {
			params[c.Param] = c.Value
		}
	}
	return params
}

// ToSQL renders the query for d.
func (s *Select) ToSQL(d Dialect) (string, []any, error) {
	if len(s.columns) == 0 {
		return "", nil, ErrNoColumns
	}

	cols := make([]string, len(s.columns))
	for i, p := range s.columns {
		cols[i] = p.column.sql(d) + " AS " + d.Quote(p.alias)
	}

	q := sq.Select(cols...).
		From(d.Quote(s.table) + " AS " + d.Quote(s.alias)).
		PlaceholderFormat(d.placeholders())

	for _, j := range s.joins {
		on := make([]string, len(j.On))
		for i, c := range j.On {
			on[i] = c.Left.sql(d) + " = " + c.Right.sql(d)
		}
		q = q.LeftJoin(fmt.Sprintf("%s AS %s ON %s", d.Quote(j.Table), d.Quote(j.Alias), strings.Join(on, " AND ")))
	}

	for _, p := range s.Conditions() {
		q = q.Where(p.sqlizer(d))
	}

	for _, o := range s.orders {
		q = q.OrderBy(o.column.sql(d) + " " + string(o.dir))
	}
	switch {
	case s.limit != nil:
		q = q.Limit(*s.limit)
	case s.offset != nil && d != Postgres:
		// MySQL and SQLite only accept OFFSET after LIMIT.
		q = q.Limit(math.MaxInt64)
	}
	if s.offset != nil {
		q = q.Offset(*s.offset)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to render query: %w", err)
	}
	return query, args, nil
}
