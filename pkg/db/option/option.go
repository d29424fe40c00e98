package option

import (
	"fmt"
	"strings"

	"studentslife/pkg/db/pagination"

	"gorm.io/gorm"
)

// QueryOption is a gorm scope applied on top of the struct filter of a
// repository call.
type QueryOption func(*gorm.DB) *gorm.DB

type Operator string

const (
	EQ  Operator = "="
	NEQ Operator = "<>"
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a comparison the struct filter cannot express, such as
// zero values or ranges. Field is a column name and never user input.
func ApplyOperator(c Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		op := c.Operator
		if op == "" {
			op = EQ
		}
		return db.Where(fmt.Sprintf("%s %s ?", c.Field, op), c.Value)
	}
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

// WithSortBy orders by SortBy when it is allowed, falling back to created_at.
func WithSortBy(s QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		column := "created_at"
		if s.SortBy != "" && s.Allow[s.SortBy] {
			column = s.SortBy
		}

		direction := "asc"
		if strings.EqualFold(s.OrderBy, "desc") {
			direction = "desc"
		}
		return db.Order(column + " " + direction)
	}
}

func WithPreload(association string) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Preload(association)
	}
}

func WithLimit(limit int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(limit)
	}
}

// ApplyPagination fetches one row past the limit so callers can tell whether
// another page exists.
func ApplyPagination(p pagination.Pagination) QueryOption {
	p = p.Normalize()
	return WithLimit(p.Limit + 1)
}
