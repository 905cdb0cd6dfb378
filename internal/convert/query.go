package convert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nethalo/utf8mb4-convert/internal/mysql"
)

// Predicate is a single WHERE condition. All predicates of a Query are
// joined with AND.
type Predicate interface {
	render(r *renderer)
}

// In matches Column against a list of values. An empty list matches nothing,
// or everything when Negate is set.
type In struct {
	Column string
	Values []string
	Negate bool
}

func (p In) render(r *renderer) {
	if len(p.Values) == 0 {
		if p.Negate {
			r.WriteString("1 = 1")
		} else {
			r.WriteString("1 = 0")
		}
		return
	}
	r.WriteString(p.Column)
	if p.Negate {
		r.WriteString(" NOT IN (")
	} else {
		r.WriteString(" IN (")
	}
	for i, v := range p.Values {
		if i > 0 {
			r.WriteString(", ")
		}
		r.bind(v)
	}
	r.WriteString(")")
}

// Equals matches Column = Value.
type Equals struct {
	Column string
	Value  string
}

func (p Equals) render(r *renderer) {
	r.WriteString(p.Column)
	r.WriteString(" = ")
	r.bind(p.Value)
}

// Exclude drops rows matching every one of its fields. A query carries one
// Exclude per skip entry, so a row is dropped if it matches any entry.
type Exclude []Equals

func (p Exclude) render(r *renderer) {
	r.WriteString("NOT (")
	for i, eq := range p {
		if i > 0 {
			r.WriteString(" AND ")
		}
		eq.render(r)
	}
	r.WriteString(")")
}

// IsNull matches Column IS NULL.
type IsNull struct {
	Column string
}

func (p IsNull) render(r *renderer) {
	r.WriteString(p.Column)
	r.WriteString(" IS NULL")
}

// GreaterThan matches Column > Value.
type GreaterThan struct {
	Column string
	Value  int
}

func (p GreaterThan) render(r *renderer) {
	r.WriteString(p.Column)
	r.WriteString(" > ")
	r.bind(p.Value)
}

// AllOf is a parenthesized conjunction.
type AllOf []Predicate

func (p AllOf) render(r *renderer) { r.group(p, " AND ") }

// AnyOf is a parenthesized disjunction.
type AnyOf []Predicate

func (p AnyOf) render(r *renderer) { r.group(p, " OR ") }

// On is one equality condition of a join.
type On struct {
	Left, Right string
}

// Join is an inner join against Table.
type Join struct {
	Table string
	On    []On
}

// Query describes a metadata SELECT against information_schema.
type Query struct {
	Columns []string
	From    string
	Joins   []Join
	Where   []Predicate
	OrderBy []string
}

// SQL renders the query with ? placeholders and returns the bind values.
func (q Query) SQL() (string, []any) {
	r := &renderer{}
	q.render(r)
	return r.String(), r.args
}

// String renders the query with values inlined as literals, for logging.
func (q Query) String() string {
	r := &renderer{inline: true}
	q.render(r)
	return r.String()
}

func (q Query) render(r *renderer) {
	r.WriteString("SELECT ")
	r.WriteString(strings.Join(q.Columns, ", "))
	r.WriteString(" FROM ")
	r.WriteString(q.From)
	for _, j := range q.Joins {
		r.WriteString(" JOIN ")
		r.WriteString(j.Table)
		for i, on := range j.On {
			if i == 0 {
				r.WriteString(" ON ")
			} else {
				r.WriteString(" AND ")
			}
			fmt.Fprintf(r, "%s = %s", on.Left, on.Right)
		}
	}
	for i, p := range q.Where {
		if i == 0 {
			r.WriteString(" WHERE ")
		} else {
			r.WriteString(" AND ")
		}
		p.render(r)
	}
	if len(q.OrderBy) > 0 {
		r.WriteString(" ORDER BY ")
		r.WriteString(strings.Join(q.OrderBy, ", "))
	}
}

type renderer struct {
	strings.Builder
	args   []any
	inline bool
}

func (r *renderer) bind(v any) {
	if !r.inline {
		r.WriteByte('?')
		r.args = append(r.args, v)
		return
	}
	switch v := v.(type) {
	case int:
		r.WriteString(strconv.Itoa(v))
	case string:
		r.WriteString(mysql.QuoteLiteral(v))
	default:
		r.WriteString(mysql.QuoteLiteral(fmt.Sprint(v)))
	}
}

func (r *renderer) group(preds []Predicate, sep string) {
	r.WriteString("(")
	for i, p := range preds {
		if i > 0 {
			r.WriteString(sep)
		}
		p.render(r)
	}
	r.WriteString(")")
}
