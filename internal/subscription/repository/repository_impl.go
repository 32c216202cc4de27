package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/sekarnet/internal/subscription/domain"
	"github.com/smallbiznis/sekarnet/pkg/db"
	"github.com/smallbiznis/sekarnet/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return conn.WithContext(ctx).Create(subscription).Error
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return conn.WithContext(ctx).Save(subscription).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findOne(conn.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findOne(db.ForUpdate(tx.WithContext(ctx)), id)
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter subscriptiondomain.ListFilter) ([]subscriptiondomain.Subscription, error) {
	var items []subscriptiondomain.Subscription
	opts := make([]option.QueryOption, 0, 3)
	if filter.UserID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "user_id", Operator: option.EQ, Value: *filter.UserID}))
	}
	if filter.Status != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "status", Operator: option.EQ, Value: filter.Status}))
	}
	opts = append(opts, option.WithSortBy(option.SortBy{Field: "created_at", Desc: true}))

	stmt := conn.WithContext(ctx).Model(&subscriptiondomain.Subscription{})
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

func (r *repo) findOne(stmt *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var item subscriptiondomain.Subscription
	err := stmt.Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
