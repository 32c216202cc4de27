package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	billdomain "github.com/smallbiznis/sekarnet/internal/bill/domain"
	"github.com/smallbiznis/sekarnet/pkg/db"
	"github.com/smallbiznis/sekarnet/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() billdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, bill *billdomain.Bill) error {
	return conn.WithContext(ctx).Create(bill).Error
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, bill *billdomain.Bill) error {
	return conn.WithContext(ctx).Save(bill).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*billdomain.Bill, error) {
	return r.findOne(conn.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*billdomain.Bill, error) {
	return r.findOne(db.ForUpdate(tx.WithContext(ctx)), id)
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter billdomain.ListFilter) ([]billdomain.Bill, error) {
	var items []billdomain.Bill
	opts := make([]option.QueryOption, 0, 4)
	if filter.UserID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "user_id", Operator: option.EQ, Value: *filter.UserID}))
	}
	if filter.SubscriptionID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "subscription_id", Operator: option.EQ, Value: *filter.SubscriptionID}))
	}
	if filter.PaymentStatus != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "payment_status", Operator: option.EQ, Value: filter.PaymentStatus}))
	}
	opts = append(opts, option.WithSortBy(option.SortBy{Field: "due_date", Desc: true}))

	stmt := conn.WithContext(ctx).Model(&billdomain.Bill{})
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

func (r *repo) findOne(stmt *gorm.DB, id snowflake.ID) (*billdomain.Bill, error) {
	var item billdomain.Bill
	err := stmt.Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
