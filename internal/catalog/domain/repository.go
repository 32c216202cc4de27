package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	IncludeInactive bool
	Offset          int
	Limit           int
}

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, pkg *Package) error
	Update(ctx context.Context, db *gorm.DB, pkg *Package) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Package, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Package, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Package, error)
}
