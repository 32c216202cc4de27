package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	UserID       *snowflake.ID
	TechnicianID *snowflake.ID
	Status       Status
	Offset       int
	Limit        int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *InstallationRequest) error
	Update(ctx context.Context, db *gorm.DB, item *InstallationRequest) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*InstallationRequest, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*InstallationRequest, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]InstallationRequest, error)
}
