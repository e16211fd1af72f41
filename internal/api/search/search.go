// Package search builds SQL filter, pagination and sort fragments from
// request query strings. Everything here is pure: callers pass the parsed
// url.Values plus an allow-list of filterable fields, repositories render
// the result into their own queries.
package search

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// clause is one SQL condition. The expression holds one %d verb per
// argument so placeholders can be renumbered when filters are merged.
type clause struct {
	expr string
	args []any
}

// Filter is an ordered conjunction of SQL conditions. The zero value is an
// empty filter that matches everything.
type Filter struct {
	clauses []clause
}

// Append adds a condition. expr must contain one %d verb per argument,
// each standing for a positional placeholder.
func (f *Filter) Append(expr string, args ...any) {
	f.clauses = append(f.clauses, clause{expr: expr, args: args})
}

// And returns a new filter with the conditions of both operands, keeping
// the receiver's conditions first.
func (f Filter) And(other Filter) Filter {
	merged := Filter{clauses: make([]clause, 0, len(f.clauses)+len(other.clauses))}
	merged.clauses = append(merged.clauses, f.clauses...)
	merged.clauses = append(merged.clauses, other.clauses...)
	return merged
}

// Empty reports whether the filter has no conditions.
func (f Filter) Empty() bool {
	return len(f.clauses) == 0
}

// SQL renders the filter as "cond AND cond ..." with placeholders numbered
// sequentially from startArg, and returns the matching argument slice.
// An empty filter renders to the empty string.
func (f Filter) SQL(startArg int) (string, []any) {
	if len(f.clauses) == 0 {
		return "", nil
	}
	var (
		parts = make([]string, 0, len(f.clauses))
		args  []any
		n     = startArg
	)
	for _, c := range f.clauses {
		nums := make([]any, len(c.args))
		for i := range c.args {
			nums[i] = n
			n++
		}
		parts = append(parts, fmt.Sprintf(c.expr, nums...))
		args = append(args, c.args...)
	}
	return strings.Join(parts, " AND "), args
}

// BuildSearchQuery translates query parameters into a Filter. Only fields
// named in one of the allow-lists are honoured, everything else in params
// is ignored. Field names are the lower-camel-case JSON names; column names
// are derived from them. A field claimed by an earlier group is not
// reinterpreted by a later one. Groups, in order:
//
//   - textFields: case-insensitive substring match
//   - exactFields: equality
//   - rangeFields: numeric bounds via min<Field> / max<Field> parameters
//   - arrayFields: any-of membership against a TEXT[] column
//
// Independently, startDate / endDate bound created_at inclusively.
func BuildSearchQuery(params url.Values, textFields, exactFields, rangeFields, arrayFields []string) Filter {
	var f Filter
	seen := make(map[string]bool)

	for _, field := range textFields {
		v := strings.TrimSpace(params.Get(field))
		if v == "" || seen[field] {
			continue
		}
		seen[field] = true
		f.Append(toColumn(field)+" ILIKE $%d", "%"+v+"%")
	}

	for _, field := range exactFields {
		v := strings.TrimSpace(params.Get(field))
		if v == "" || seen[field] {
			continue
		}
		seen[field] = true
		f.Append(toColumn(field)+" = $%d", v)
	}

	for _, field := range rangeFields {
		if seen[field] {
			continue
		}
		col := toColumn(field)
		applied := false
		if min, ok := parseNumber(params.Get("min" + capitalize(field))); ok {
			f.Append(col+" >= $%d", min)
			applied = true
		}
		if max, ok := parseNumber(params.Get("max" + capitalize(field))); ok {
			f.Append(col+" <= $%d", max)
			applied = true
		}
		if applied {
			seen[field] = true
		}
	}

	if t, ok := parseDate(params.Get("startDate")); ok {
		f.Append("created_at >= $%d", t)
	}
	if t, ok := parseDate(params.Get("endDate")); ok {
		f.Append("created_at <= $%d", t)
	}

	for _, field := range arrayFields {
		if seen[field] {
			continue
		}
		vals := nonEmpty(params[field])
		if len(vals) == 0 {
			continue
		}
		seen[field] = true
		f.Append(toColumn(field)+" && $%d::text[]", vals)
	}

	return f
}

// Pagination is the offset window a list query should apply.
type Pagination struct {
	Page  int
	Limit int
	Skip  int
}

// BuildPaginationOptions reads page and limit from the query string.
// Absent, non-numeric or non-positive values fall back to page 1 and
// defaultLimit.
func BuildPaginationOptions(params url.Values, defaultLimit int) Pagination {
	page, err := strconv.Atoi(params.Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(params.Get("limit"))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	return Pagination{Page: page, Limit: limit, Skip: (page - 1) * limit}
}

// Sort names the field a list query orders by.
type Sort struct {
	Field string
	Desc  bool
}

// BuildSortOptions reads sortBy and sortOrder from the query string.
// When sortBy is set, order is ascending only for sortOrder=asc. Otherwise
// the caller's default applies.
func BuildSortOptions(params url.Values, defaultField string, defaultDesc bool) Sort {
	field := strings.TrimSpace(params.Get("sortBy"))
	if field == "" {
		return Sort{Field: defaultField, Desc: defaultDesc}
	}
	return Sort{Field: field, Desc: params.Get("sortOrder") != "asc"}
}

// OrderBy maps the sort field to an SQL column through the repository's
// allow-list and renders an ORDER BY expression. Unknown fields use the
// fallback column so a client can never inject identifiers.
func (s Sort) OrderBy(columns map[string]string, fallback string) string {
	col, ok := columns[s.Field]
	if !ok {
		col = fallback
	}
	dir := "ASC"
	if s.Desc {
		dir = "DESC"
	}
	return col + " " + dir
}

// BuildFullTextSearch widens a filter with a substring match across several
// fields: any field matching the term satisfies the condition. A blank term
// returns additional unchanged.
func BuildFullTextSearch(term string, fields []string, additional Filter) Filter {
	term = strings.TrimSpace(term)
	if term == "" || len(fields) == 0 {
		return additional
	}
	parts := make([]string, len(fields))
	args := make([]any, len(fields))
	for i, field := range fields {
		parts[i] = toColumn(field) + " ILIKE $%d"
		args[i] = "%" + term + "%"
	}
	f := additional
	f.Append("("+strings.Join(parts, " OR ")+")", args...)
	return f
}

// toColumn converts a lower-camel-case field name to its snake_case column.
func toColumn(field string) string {
	var b strings.Builder
	for _, r := range field {
		if unicode.IsUpper(r) {
			b.WriteByte('_')
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func nonEmpty(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
