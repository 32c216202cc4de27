package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	ticketdomain "github.com/smallbiznis/sekarnet/internal/ticket/domain"
	"github.com/smallbiznis/sekarnet/pkg/db"
	"github.com/smallbiznis/sekarnet/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ticketdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, item *ticketdomain.Ticket) error {
	return conn.WithContext(ctx).Create(item).Error
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, item *ticketdomain.Ticket) error {
	return conn.WithContext(ctx).Save(item).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*ticketdomain.Ticket, error) {
	return r.findOne(conn.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*ticketdomain.Ticket, error) {
	return r.findOne(db.ForUpdate(tx.WithContext(ctx)), id)
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter ticketdomain.ListFilter) ([]ticketdomain.Ticket, error) {
	var items []ticketdomain.Ticket
	opts := make([]option.QueryOption, 0, 6)
	if filter.UserID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "user_id", Operator: option.EQ, Value: *filter.UserID}))
	}
	if filter.TechnicianID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "technician_id", Operator: option.EQ, Value: *filter.TechnicianID}))
	}
	if filter.Status != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "status", Operator: option.EQ, Value: filter.Status}))
	}
	if filter.Priority != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "priority", Operator: option.EQ, Value: filter.Priority}))
	}
	if filter.Category != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "category", Operator: option.EQ, Value: filter.Category}))
	}
	opts = append(opts, option.WithSortBy(option.SortBy{Field: "opened_at", Desc: true}))

	stmt := conn.WithContext(ctx).Model(&ticketdomain.Ticket{})
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	stmt = stmt.Offset(filter.Offset)
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertReply(ctx context.Context, conn *gorm.DB, reply *ticketdomain.Reply) error {
	return conn.WithContext(ctx).Create(reply).Error
}

func (r *repo) ListReplies(ctx context.Context, conn *gorm.DB, ticketID snowflake.ID) ([]ticketdomain.Reply, error) {
	var replies []ticketdomain.Reply
	stmt := option.WithSortBy(option.SortBy{Field: "created_at"}).Apply(
		conn.WithContext(ctx).Where("ticket_id = ?", ticketID),
	)
	if err := stmt.Order("id").Find(&replies).Error; err != nil {
		return nil, err
	}
	return replies, nil
}

func (r *repo) findOne(stmt *gorm.DB, id snowflake.ID) (*ticketdomain.Ticket, error) {
	var item ticketdomain.Ticket
	err := stmt.Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
