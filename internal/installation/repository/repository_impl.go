package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	installationdomain "github.com/smallbiznis/sekarnet/internal/installation/domain"
	"github.com/smallbiznis/sekarnet/pkg/db"
	"github.com/smallbiznis/sekarnet/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() installationdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, item *installationdomain.InstallationRequest) error {
	return conn.WithContext(ctx).Create(item).Error
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, item *installationdomain.InstallationRequest) error {
	return conn.WithContext(ctx).Save(item).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*installationdomain.InstallationRequest, error) {
	return r.findOne(conn.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*installationdomain.InstallationRequest, error) {
	return r.findOne(db.ForUpdate(tx.WithContext(ctx)), id)
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter installationdomain.ListFilter) ([]installationdomain.InstallationRequest, error) {
	var items []installationdomain.InstallationRequest
	opts := make([]option.QueryOption, 0, 4)
	if filter.UserID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "user_id", Operator: option.EQ, Value: *filter.UserID}))
	}
	if filter.TechnicianID != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "technician_id", Operator: option.EQ, Value: *filter.TechnicianID}))
	}
	if filter.Status != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "status", Operator: option.EQ, Value: filter.Status}))
	}
	opts = append(opts, option.WithSortBy(option.SortBy{Field: "requested_date", Desc: false}))

	stmt := conn.WithContext(ctx).Model(&installationdomain.InstallationRequest{})
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

func (r *repo) findOne(stmt *gorm.DB, id snowflake.ID) (*installationdomain.InstallationRequest, error) {
	var item installationdomain.InstallationRequest
	err := stmt.Where("id = ?", id).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}
