package option

import (
	"smallbiznis-referral/pkg/db/pagination"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm query before it is executed by a repository.
type QueryOption func(*gorm.DB) *gorm.DB

func Apply(db *gorm.DB, opts ...QueryOption) *gorm.DB {
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}

func WithOrder(order string) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Order(order) }
}

func WithWhere(query any, args ...any) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Where(query, args...) }
}

func WithLimit(limit int) QueryOption {
	return func(db *gorm.DB) *gorm.DB { return db.Limit(limit) }
}

// ApplyPagination limits to p.Limit+1 rows so callers can detect another page.
func ApplyPagination(p pagination.Pagination) QueryOption {
	p = p.Normalized()
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(p.Limit + 1)
	}
}
