package builder

import (
	"reflect"

	sq "github.com/Masterminds/squirrel"
)

// Column is a column reached through a table alias.
type Column struct {
	Alias string
	Name  string
}

func (c Column) sql(d Dialect) string {
	return d.Quote(c.Alias) + "." + d.Quote(c.Name)
}

func (c Column) String() string {
	return c.Alias + "." + c.Name
}

// Predicate is a WHERE condition.
type Predicate interface {
	sqlizer(d Dialect) sq.Sqlizer
}

// Op is the comparison a Clause applies.
type Op int

const (
	OpEq Op = iota
	OpIn
	OpIsNull
)

func (o Op) String() string {
	switch o {
	case OpIn:
		return "IN"
	case OpIsNull:
		return "IS NULL"
	default:
		return "="
	}
}

// OpFor picks the comparison for a filter value: nil tests for NULL, a list
// tests membership and anything else tests equality.
func OpFor(value any) Op {
	switch {
	case value == nil:
		return OpIsNull
	case IsList(value):
		return OpIn
	default:
		return OpEq
	}
}

// IsList reports whether v is a slice or array other than []byte.
func IsList(v any) bool {
	if v == nil {
		return false
	}
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

// Match is one column/value pair of an Equals predicate.
type Match struct {
	Column Column
	Value  any
}

// Equals is a conjunction of equality, membership and null tests, one per
// column, chosen with OpFor.
type Equals []Match

func (e Equals) sqlizer(d Dialect) sq.Sqlizer {
	and := make(sq.And, 0, len(e))
	for _, m := range e {
		and = append(and, sq.Eq{m.Column.sql(d): m.Value})
	}
	return and
}

// Clause is a single comparison bound to a named parameter.
type Clause struct {
	Column Column
	Op     Op
	// Param names the bound value, for diagnostics. Rendering uses
	// positional placeholders.
	Param string
	Value any
}

// NewClause builds a Clause whose operator follows OpFor(value).
func NewClause(col Column, param string, value any) Clause {
	return Clause{Column: col, Op: OpFor(value), Param: param, Value: value}
}

func (c Clause) sqlizer(d Dialect) sq.Sqlizer {
	col := c.Column.sql(d)
	switch c.Op {
	case OpIsNull:
		return sq.Expr(col + " IS NULL")
	case OpIn:
		return sq.Eq{col: c.Value}
	default:
		return sq.Expr(col+" = ?", c.Value)
	}
}

type raw string

func (r raw) sqlizer(Dialect) sq.Sqlizer {
	return sq.Expr(string(r))
}

// True is the always-true base condition further clauses are ANDed onto.
var True Predicate = raw("1 = 1")
