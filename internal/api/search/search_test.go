package search

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSearchQuery(t *testing.T) {
	t.Run("empty params yields empty filter", func(t *testing.T) {
		f := BuildSearchQuery(url.Values{}, []string{"title"}, []string{"status"}, nil, nil)
		assert.True(t, f.Empty())
		sql, args := f.SQL(1)
		assert.Empty(t, sql)
		assert.Nil(t, args)
	})

	t.Run("text fields use case-insensitive substring match", func(t *testing.T) {
		params := url.Values{"title": {"Robótica"}}
		f := BuildSearchQuery(params, []string{"title"}, nil, nil, nil)
		sql, args := f.SQL(1)
		assert.Equal(t, "title ILIKE $1", sql)
		assert.Equal(t, []any{"%Robótica%"}, args)
	})

	t.Run("exact fields use equality", func(t *testing.T) {
		params := url.Values{"status": {"approved"}}
		f := BuildSearchQuery(params, nil, []string{"status"}, nil, nil)
		sql, args := f.SQL(1)
		assert.Equal(t, "status = $1", sql)
		assert.Equal(t, []any{"approved"}, args)
	})

	t.Run("unknown params are ignored", func(t *testing.T) {
		params := url.Values{"drop": {"table"}, "title": {"x"}}
		f := BuildSearchQuery(params, []string{"title"}, nil, nil, nil)
		sql, _ := f.SQL(1)
		assert.Equal(t, "title ILIKE $1", sql)
	})

	t.Run("range fields read min and max params", func(t *testing.T) {
		params := url.Values{"minPoints": {"10"}, "maxPoints": {"50"}}
		f := BuildSearchQuery(params, nil, nil, []string{"points"}, nil)
		sql, args := f.SQL(1)
		assert.Equal(t, "points >= $1 AND points <= $2", sql)
		assert.Equal(t, []any{10.0, 50.0}, args)
	})

	t.Run("one-sided range", func(t *testing.T) {
		params := url.Values{"minPoints": {"10"}}
		f := BuildSearchQuery(params, nil, nil, []string{"points"}, nil)
		sql, args := f.SQL(1)
		assert.Equal(t, "points >= $1", sql)
		assert.Equal(t, []any{10.0}, args)
	})

	t.Run("non-numeric range bound is ignored", func(t *testing.T) {
		params := url.Values{"minPoints": {"abc"}, "maxPoints": {"50"}}
		f := BuildSearchQuery(params, nil, nil, []string{"points"}, nil)
		sql, args := f.SQL(1)
		assert.Equal(t, "points <= $1", sql)
		assert.Equal(t, []any{50.0}, args)
	})

	t.Run("date window bounds created_at inclusively", func(t *testing.T) {
		params := url.Values{"startDate": {"2025-01-01"}, "endDate": {"2025-06-30"}}
		f := BuildSearchQuery(params, nil, nil, nil, nil)
		sql, args := f.SQL(1)
		assert.Equal(t, "created_at >= $1 AND created_at <= $2", sql)
		require.Len(t, args, 2)
		start, ok := args[0].(time.Time)
		require.True(t, ok)
		assert.Equal(t, 2025, start.Year())
	})

	t.Run("invalid dates are ignored", func(t *testing.T) {
		params := url.Values{"startDate": {"not-a-date"}}
		f := BuildSearchQuery(params, nil, nil, nil, nil)
		assert.True(t, f.Empty())
	})

	t.Run("array field matches any element", func(t *testing.T) {
		params := url.Values{"tags": {"stem", "robotics"}}
		f := BuildSearchQuery(params, nil, nil, nil, []string{"tags"})
		sql, args := f.SQL(1)
		assert.Equal(t, "tags && $1::text[]", sql)
		assert.Equal(t, []any{[]string{"stem", "robotics"}}, args)
	})

	t.Run("scalar value treated as one-element list", func(t *testing.T) {
		params := url.Values{"tags": {"stem"}}
		f := BuildSearchQuery(params, nil, nil, nil, []string{"tags"})
		_, args := f.SQL(1)
		assert.Equal(t, []any{[]string{"stem"}}, args)
	})

	t.Run("field claimed by earlier group is not reused", func(t *testing.T) {
		params := url.Values{"category": {"taller"}}
		f := BuildSearchQuery(params, []string{"category"}, []string{"category"}, nil, nil)
		sql, _ := f.SQL(1)
		assert.Equal(t, "category ILIKE $1", sql)
	})

	t.Run("camel-case fields map to snake-case columns", func(t *testing.T) {
		params := url.Values{"estimatedTime": {"2h"}}
		f := BuildSearchQuery(params, nil, []string{"estimatedTime"}, nil, nil)
		sql, _ := f.SQL(1)
		assert.Equal(t, "estimated_time = $1", sql)
	})

	t.Run("placeholders number sequentially across groups", func(t *testing.T) {
		params := url.Values{
			"title":    {"taller"},
			"status":   {"approved"},
			"tags":     {"stem"},
			"minScore": {"3"},
		}
		f := BuildSearchQuery(params, []string{"title"}, []string{"status"}, []string{"score"}, []string{"tags"})
		sql, args := f.SQL(3)
		assert.Equal(t, "title ILIKE $3 AND status = $4 AND score >= $5 AND tags && $6::text[]", sql)
		assert.Len(t, args, 4)
	})
}

func TestFilterSQL(t *testing.T) {
	t.Run("And keeps receiver conditions first", func(t *testing.T) {
		var a, b Filter
		a.Append("status = $%d", "active")
		b.Append("role = $%d", "admin")
		sql, args := a.And(b).SQL(1)
		assert.Equal(t, "status = $1 AND role = $2", sql)
		assert.Equal(t, []any{"active", "admin"}, args)
	})

	t.Run("renumbers from startArg", func(t *testing.T) {
		var f Filter
		f.Append("a = $%d", 1)
		f.Append("b = $%d", 2)
		sql, _ := f.SQL(5)
		assert.Equal(t, "a = $5 AND b = $6", sql)
	})
}

func TestBuildPaginationOptions(t *testing.T) {
	tests := []struct {
		name   string
		params url.Values
		want   Pagination
	}{
		{"defaults", url.Values{}, Pagination{Page: 1, Limit: 10, Skip: 0}},
		{"explicit values", url.Values{"page": {"3"}, "limit": {"25"}}, Pagination{Page: 3, Limit: 25, Skip: 50}},
		{"non-numeric falls back", url.Values{"page": {"abc"}, "limit": {"xyz"}}, Pagination{Page: 1, Limit: 10, Skip: 0}},
		{"zero and negative fall back", url.Values{"page": {"0"}, "limit": {"-5"}}, Pagination{Page: 1, Limit: 10, Skip: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildPaginationOptions(tt.params, 10))
		})
	}
}

func TestBuildSortOptions(t *testing.T) {
	t.Run("defaults to caller's field descending", func(t *testing.T) {
		s := BuildSortOptions(url.Values{}, "createdAt", true)
		assert.Equal(t, Sort{Field: "createdAt", Desc: true}, s)
	})

	t.Run("asc only when explicitly requested", func(t *testing.T) {
		s := BuildSortOptions(url.Values{"sortBy": {"title"}, "sortOrder": {"asc"}}, "createdAt", true)
		assert.Equal(t, Sort{Field: "title", Desc: false}, s)
	})

	t.Run("any other order means descending", func(t *testing.T) {
		s := BuildSortOptions(url.Values{"sortBy": {"title"}, "sortOrder": {"ASC"}}, "createdAt", true)
		assert.True(t, s.Desc)
	})
}

func TestSortOrderBy(t *testing.T) {
	columns := map[string]string{"createdAt": "created_at", "title": "title"}

	t.Run("maps field through allow-list", func(t *testing.T) {
		s := Sort{Field: "createdAt", Desc: true}
		assert.Equal(t, "created_at DESC", s.OrderBy(columns, "created_at"))
	})

	t.Run("unknown field uses fallback column", func(t *testing.T) {
		s := Sort{Field: "title; DROP TABLE users", Desc: false}
		assert.Equal(t, "created_at ASC", s.OrderBy(columns, "created_at"))
	})
}

func TestBuildFullTextSearch(t *testing.T) {
	t.Run("blank term returns additional unchanged", func(t *testing.T) {
		var base Filter
		base.Append("status = $%d", "approved")
		f := BuildFullTextSearch("   ", []string{"title"}, base)
		sql, args := f.SQL(1)
		assert.Equal(t, "status = $1", sql)
		assert.Equal(t, []any{"approved"}, args)
	})

	t.Run("term matches any of the fields", func(t *testing.T) {
		f := BuildFullTextSearch("energía", []string{"title", "introduction"}, Filter{})
		sql, args := f.SQL(1)
		assert.Equal(t, "(title ILIKE $1 OR introduction ILIKE $2)", sql)
		assert.Equal(t, []any{"%energía%", "%energía%"}, args)
	})

	t.Run("combines with additional filter", func(t *testing.T) {
		var base Filter
		base.Append("instructor_id = $%d", "u1")
		f := BuildFullTextSearch("agua", []string{"title"}, base)
		sql, args := f.SQL(1)
		assert.Equal(t, "instructor_id = $1 AND (title ILIKE $2)", sql)
		assert.Len(t, args, 2)
	})
}
