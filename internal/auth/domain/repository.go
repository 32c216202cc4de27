package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

//go:generate mockgen -source=repository.go -destination=../mocks/mock_repository.go -package=mocks

type ListFilter struct {
	Role     Role
	IsActive *bool
	Offset   int
	Limit    int
}

type Repository interface {
	Count(ctx context.Context, db *gorm.DB) (int64, error)
	Create(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByUsername(ctx context.Context, db *gorm.DB, username string) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]User, error)
	UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
}
