package repository

import (
	"context"

	"github.com/smallbiznis/sekarnet/internal/audit/domain"
	"github.com/smallbiznis/sekarnet/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, entry *domain.AuditLog) error {
	return conn.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]domain.AuditLog, error) {
	conds := []option.Condition{
		{Field: "action", Operator: option.EQ, Value: filter.Action},
		{Field: "target_type", Operator: option.EQ, Value: filter.TargetType},
		{Field: "target_id", Operator: option.EQ, Value: filter.TargetID},
		{Field: "actor_type", Operator: option.EQ, Value: filter.ActorType},
		{Field: "actor_id", Operator: option.EQ, Value: filter.ActorID},
	}

	stmt := conn.WithContext(ctx).Model(&domain.AuditLog{})
	for _, cond := range conds {
		if cond.Value == "" {
			continue
		}
		stmt = option.ApplyOperator(cond).Apply(stmt)
	}
	if filter.StartAt != nil {
		stmt = option.ApplyOperator(option.Condition{Field: "created_at", Operator: option.GTE, Value: filter.StartAt.UTC()}).Apply(stmt)
	}
	if filter.EndAt != nil {
		stmt = option.ApplyOperator(option.Condition{Field: "created_at", Operator: option.LTE, Value: filter.EndAt.UTC()}).Apply(stmt)
	}
	stmt = option.WithSortBy(option.SortBy{Field: "created_at", Desc: true}).Apply(stmt).Offset(filter.Offset)
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var rows []domain.AuditLog
	if err := stmt.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
