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
	Priority     Priority
	Category     Category
	Offset       int
	Limit        int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *Ticket) error
	Update(ctx context.Context, db *gorm.DB, item *Ticket) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Ticket, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Ticket, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Ticket, error)
	InsertReply(ctx context.Context, db *gorm.DB, reply *Reply) error
	ListReplies(ctx context.Context, db *gorm.DB, ticketID snowflake.ID) ([]Reply, error)
}
