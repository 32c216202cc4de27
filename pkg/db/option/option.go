// Package option holds composable gorm query modifiers used by the generic store.
package option

import (
	"fmt"
	"strings"

	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
	"gorm.io/gorm"
)

type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
	IN  Operator = "IN"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator appends a single comparison. Field names come from code, never from callers.
func ApplyOperator(cond Condition) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		field := strings.TrimSpace(cond.Field)
		if field == "" {
			return db
		}
		if cond.Operator == IN {
			return db.Where(fmt.Sprintf("%s IN ?", field), cond.Value)
		}
		return db.Where(fmt.Sprintf("%s %s ?", field, cond.Operator), cond.Value)
	})
}

func ApplyPagination(page pagination.Pagination) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		page = page.Normalize()
		return db.Offset(page.Skip).Limit(page.Limit)
	})
}

type SortBy struct {
	Field string
	Desc  bool
}

// WithQuerySortBy resolves a caller-supplied sort against an allow-list.
func WithQuerySortBy(field, direction string, allowed map[string]bool) SortBy {
	field = strings.TrimSpace(field)
	if !allowed[field] {
		field = "created_at"
	}
	return SortBy{
		Field: field,
		Desc:  !strings.EqualFold(strings.TrimSpace(direction), "asc"),
	}
}

func WithSortBy(sort SortBy) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		dir := "asc"
		if sort.Desc {
			dir = "desc"
		}
		return db.Order(fmt.Sprintf("%s %s", sort.Field, dir)).Order(fmt.Sprintf("id %s", dir))
	})
}
