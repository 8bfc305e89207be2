package database

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

type ConditionType string

const (
	Equal ConditionType = "="
	Like  ConditionType = "LIKE"
)

// Condition is a single "field op $n" predicate. Conditions are ANDed.
type Condition struct {
	Field string
	Type  ConditionType
	Value any
}

func WhereCond(field string, condType ConditionType, value any) Condition {
	return Condition{Field: field, Type: condType, Value: value}
}

// OrderTerm is one ORDER BY column.
type OrderTerm struct {
	Column string
	Desc   bool
}

type ListQueryOptions struct {
	Table      string
	Columns    []string
	CountOnly  bool
	Conditions []Condition
	OrderBy    []OrderTerm
	Limit      int // 0 means no LIMIT
	Offset     int // 0 means no OFFSET
}

type ListQueryOption func(*ListQueryOptions)

func NewListQueryOptions(table string, opts ...ListQueryOption) *ListQueryOptions {
	options := &ListQueryOptions{Table: table}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithColumns sets the columns to select.
func WithColumns(cols ...string) ListQueryOption {
	return func(o *ListQueryOptions) { o.Columns = cols }
}

// WithCondition adds a single condition.
func WithCondition(cond Condition) ListQueryOption {
	return func(o *ListQueryOptions) { o.Conditions = append(o.Conditions, cond) }
}

// WithOrderBy appends an ordering column.
func WithOrderBy(column string, desc bool) ListQueryOption {
	return func(o *ListQueryOptions) { o.OrderBy = append(o.OrderBy, OrderTerm{Column: column, Desc: desc}) }
}

// WithLimit sets the limit. Non-positive values are ignored.
func WithLimit(limit int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if limit > 0 {
			o.Limit = limit
		}
	}
}

// WithOffset sets the offset. Non-positive values are ignored.
func WithOffset(offset int) ListQueryOption {
	return func(o *ListQueryOptions) {
		if offset > 0 {
			o.Offset = offset
		}
	}
}

// WithCountOnly turns the query into SELECT COUNT(*).
func WithCountOnly() ListQueryOption {
	return func(o *ListQueryOptions) { o.CountOnly = true }
}

func sanitizeIdentifier(ident string) string {
	return pgx.Identifier(strings.Split(ident, ".")).Sanitize()
}

// BuildListQuery renders options into SQL with sanitized identifiers and positional args.
func BuildListQuery(options *ListQueryOptions) (string, []any) {
	if options == nil {
		return "", nil
	}

	var (
		q    strings.Builder
		args []any
	)

	switch {
	case options.CountOnly:
		q.WriteString("SELECT COUNT(*)")
	case len(options.Columns) == 0:
		q.WriteString("SELECT *")
	default:
		cols := make([]string, len(options.Columns))
		for i, c := range options.Columns {
			cols[i] = sanitizeIdentifier(c)
		}
		q.WriteString("SELECT " + strings.Join(cols, ", "))
	}
	q.WriteString(" FROM " + sanitizeIdentifier(options.Table))

	for i, cond := range options.Conditions {
		if i == 0 {
			q.WriteString(" WHERE ")
		} else {
			q.WriteString(" AND ")
		}
		op := cond.Type
		if op != Like {
			op = Equal
		}
		args = append(args, cond.Value)
		fmt.Fprintf(&q, "%s %s $%d", sanitizeIdentifier(cond.Field), op, len(args))
	}

	if options.CountOnly {
		return q.String(), args
	}

	for i, term := range options.OrderBy {
		if i == 0 {
			q.WriteString(" ORDER BY ")
		} else {
			q.WriteString(", ")
		}
		q.WriteString(sanitizeIdentifier(term.Column))
		if term.Desc {
			q.WriteString(" DESC")
		} else {
			q.WriteString(" ASC")
		}
	}
	if options.Limit > 0 {
		args = append(args, options.Limit)
		fmt.Fprintf(&q, " LIMIT $%d", len(args))
	}
	if options.Offset > 0 {
		args = append(args, options.Offset)
		fmt.Fprintf(&q, " OFFSET $%d", len(args))
	}
	return q.String(), args
}
