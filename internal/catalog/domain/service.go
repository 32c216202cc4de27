package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
)

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	List(ctx context.Context, caller authdomain.Caller, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, id string) (*Package, error)
	Create(ctx context.Context, caller authdomain.Caller, req CreateRequest) (*Package, error)
	Update(ctx context.Context, caller authdomain.Caller, id string, req UpdateRequest) (*Package, error)
	Deactivate(ctx context.Context, caller authdomain.Caller, id string) (*Package, error)
	// Lookup is used by other engines to resolve a package reference.
	Lookup(ctx context.Context, id snowflake.ID) (*Package, error)
}

type ListRequest struct {
	pagination.Pagination
	// IncludeInactive is honoured for admins only.
	IncludeInactive bool `form:"include_inactive"`
}

type ListResponse struct {
	pagination.PageInfo
	Packages []Package `json:"packages"`
}

type CreateRequest struct {
	Code        string           `json:"code" binding:"omitempty,max=64"`
	Name        string           `json:"name" binding:"required,max=100"`
	Description *string          `json:"description,omitempty"`
	Speed       string           `json:"speed" binding:"required,max=50"`
	Price       decimal.Decimal  `json:"price"`
	SetupFee    *decimal.Decimal `json:"setup_fee,omitempty"`
	Features    []string         `json:"features,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

type UpdateRequest struct {
	Name        *string          `json:"name,omitempty" binding:"omitempty,max=100"`
	Description *string          `json:"description,omitempty"`
	Speed       *string          `json:"speed,omitempty" binding:"omitempty,max=50"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	SetupFee    *decimal.Decimal `json:"setup_fee,omitempty"`
	Features    []string         `json:"features,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

var (
	ErrInvalidCode  = errors.New("invalid_code")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidSpeed = errors.New("invalid_speed")
	ErrInvalidPrice = errors.New("invalid_price")
	ErrInvalidID    = errors.New("invalid_id")
	ErrCodeExists   = errors.New("code_already_exists")
	ErrNotFound     = errors.New("package_not_found")
)
