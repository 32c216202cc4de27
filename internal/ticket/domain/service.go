package domain

import (
	"context"
	"errors"

	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
)

// CreateRequest opens a ticket. UserID defaults to the caller; only admins may
// open a ticket for someone else.
type CreateRequest struct {
	UserID      string   `json:"user_id"`
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Category    string   `json:"category"`
	Priority    string   `json:"priority"`
	Attachments []string `json:"attachments,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
}

// UpdateRequest is a partial patch. Status and priority are staff fields.
type UpdateRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Priority    *string   `json:"priority,omitempty"`
	Status      *string   `json:"status,omitempty"`
	Attachments *[]string `json:"attachments,omitempty"`
	Notes       *string   `json:"notes,omitempty"`
}

type AssignRequest struct {
	TechnicianID string `json:"technician_id" binding:"required"`
}

type ResolveRequest struct {
	Resolution string `json:"resolution" binding:"required"`
}

type ReplyRequest struct {
	Message     string   `json:"message" binding:"required"`
	Attachments []string `json:"attachments,omitempty"`
}

type ListRequest struct {
	pagination.Pagination
	Status       string `form:"status"`
	Priority     string `form:"priority"`
	Category     string `form:"category"`
	UserID       string `form:"user_id"`
	TechnicianID string `form:"technician_id"`
}

type ListResponse struct {
	pagination.PageInfo
	Tickets []Ticket `json:"tickets"`
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	Create(ctx context.Context, caller authdomain.Caller, req CreateRequest) (*Ticket, error)
	Get(ctx context.Context, caller authdomain.Caller, id string) (*Ticket, error)
	List(ctx context.Context, caller authdomain.Caller, req ListRequest) (ListResponse, error)
	Update(ctx context.Context, caller authdomain.Caller, id string, req UpdateRequest) (*Ticket, error)
	Assign(ctx context.Context, caller authdomain.Caller, id string, req AssignRequest) (*Ticket, error)
	Resolve(ctx context.Context, caller authdomain.Caller, id string, req ResolveRequest) (*Ticket, error)
	Close(ctx context.Context, caller authdomain.Caller, id string) (*Ticket, error)
	AddReply(ctx context.Context, caller authdomain.Caller, id string, req ReplyRequest) (*Reply, error)
	ListReplies(ctx context.Context, caller authdomain.Caller, id string) ([]Reply, error)
}

var (
	ErrNotFound           = errors.New("ticket_not_found")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrIllegalTransition  = errors.New("illegal_transition")
	ErrInvalidTicket      = errors.New("invalid_ticket")
	ErrInvalidUser        = errors.New("invalid_user")
	ErrInvalidTechnician  = errors.New("invalid_technician")
	ErrInvalidTitle       = errors.New("invalid_title")
	ErrInvalidDescription = errors.New("invalid_description")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidPriority    = errors.New("invalid_priority")
	ErrInvalidCategory    = errors.New("invalid_category")
	ErrInvalidResolution  = errors.New("invalid_resolution")
	ErrInvalidMessage     = errors.New("invalid_message")
)
