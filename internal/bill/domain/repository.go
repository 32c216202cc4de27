package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	UserID         *snowflake.ID
	SubscriptionID *snowflake.ID
	PaymentStatus  PaymentStatus
	Offset         int
	Limit          int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, bill *Bill) error
	Update(ctx context.Context, db *gorm.DB, bill *Bill) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Bill, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Bill, error)
}
