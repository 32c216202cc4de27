package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sekarnet/internal/auth/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.User{}).Count(&count).Error
	return count, err
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Create(user).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByUsername(ctx context.Context, db *gorm.DB, username string) (*domain.User, error) {
	return r.findOne(ctx, db, "username = ?", strings.TrimSpace(username))
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return r.findOne(ctx, db, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.User, error) {
	var users []domain.User
	stmt := db.WithContext(ctx).Model(&domain.User{})
	if filter.Role != "" {
		stmt = stmt.Where("role = ?", filter.Role)
	}
	if filter.IsActive != nil {
		stmt = stmt.Where("is_active = ?", *filter.IsActive)
	}
	stmt = stmt.Order("created_at desc, id desc").Offset(filter.Offset)
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	if err := stmt.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repo) UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error {
	tx := db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// findOne returns nil, nil when no row matches.
func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Where(query, args...).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
