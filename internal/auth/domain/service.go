package domain

import (
	"context"

	"github.com/smallbiznis/sekarnet/internal/auth/token"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
)

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*LoginResult, error)
	Authenticate(ctx context.Context, accessToken string) (Caller, error)
	Me(ctx context.Context, caller Caller) (*User, error)
	UpdateMe(ctx context.Context, caller Caller, req UpdateMeRequest) (*User, error)
	Get(ctx context.Context, caller Caller, id string) (*User, error)
	List(ctx context.Context, caller Caller, req ListUserRequest) (ListUserResponse, error)
	AdminUpdate(ctx context.Context, caller Caller, id string, req AdminUpdateRequest) (*User, error)
	EnsureAdmin(ctx context.Context, req RegisterRequest) (*User, bool, error)
}

type RegisterRequest struct {
	Username string  `json:"username" binding:"required,min=3,max=50"`
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required,min=8"`
	FullName string  `json:"full_name" binding:"required,max=100"`
	Phone    *string `json:"phone,omitempty" binding:"omitempty,max=20"`
	Address  *string `json:"address,omitempty" binding:"omitempty,max=500"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResult struct {
	User   *User      `json:"user"`
	Tokens token.Pair `json:"tokens"`
}

type UpdateMeRequest struct {
	Email    *string `json:"email,omitempty" binding:"omitempty,email"`
	FullName *string `json:"full_name,omitempty" binding:"omitempty,max=100"`
	Phone    *string `json:"phone,omitempty" binding:"omitempty,max=20"`
	Address  *string `json:"address,omitempty" binding:"omitempty,max=500"`
	Password *string `json:"password,omitempty" binding:"omitempty,min=8"`
}

type AdminUpdateRequest struct {
	Role     *string `json:"role,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
	FullName *string `json:"full_name,omitempty" binding:"omitempty,max=100"`
}

type ListUserRequest struct {
	pagination.Pagination
	Role     string `form:"role"`
	IsActive *bool  `form:"is_active"`
}

type ListUserResponse struct {
	pagination.PageInfo
	Users []User `json:"users"`
}
