package domain

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
)

// CreateRequest opens an installation request. UserID defaults to the caller;
// only admins may file on behalf of another user.
type CreateRequest struct {
	UserID            string    `json:"user_id"`
	PackageID         string    `json:"package_id" binding:"required"`
	RequestedDate     time.Time `json:"requested_date" binding:"required"`
	Address           string    `json:"address" binding:"required"`
	Latitude          *float64  `json:"latitude,omitempty" binding:"omitempty,latitude"`
	Longitude         *float64  `json:"longitude,omitempty" binding:"omitempty,longitude"`
	LocationNotes     *string   `json:"location_notes,omitempty"`
	EquipmentNeeded   []string  `json:"equipment_needed,omitempty"`
	InstallationNotes *string   `json:"installation_notes,omitempty"`
}

type ScheduleRequest struct {
	TechnicianID  string    `json:"technician_id" binding:"required"`
	ScheduledDate time.Time `json:"scheduled_date" binding:"required"`
}

type CompleteRequest struct {
	CompletionNotes   *string `json:"completion_notes,omitempty"`
	CustomerSignature *string `json:"customer_signature,omitempty"`
}

type FailRequest struct {
	Notes string `json:"notes" binding:"required"`
}

type ListRequest struct {
	pagination.Pagination
	Status       string `form:"status"`
	UserID       string `form:"user_id"`
	TechnicianID string `form:"technician_id"`
}

type ListResponse struct {
	pagination.PageInfo
	Installations []InstallationRequest `json:"installations"`
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	Create(ctx context.Context, caller authdomain.Caller, req CreateRequest) (*InstallationRequest, error)
	Get(ctx context.Context, caller authdomain.Caller, id string) (*InstallationRequest, error)
	ListMine(ctx context.Context, caller authdomain.Caller, req ListRequest) (ListResponse, error)
	ListAssigned(ctx context.Context, caller authdomain.Caller, req ListRequest) (ListResponse, error)
	ListAll(ctx context.Context, caller authdomain.Caller, req ListRequest) (ListResponse, error)
	Schedule(ctx context.Context, caller authdomain.Caller, id string, req ScheduleRequest) (*InstallationRequest, error)
	Start(ctx context.Context, caller authdomain.Caller, id string) (*InstallationRequest, error)
	Complete(ctx context.Context, caller authdomain.Caller, id string, req CompleteRequest) (*InstallationRequest, error)
	Fail(ctx context.Context, caller authdomain.Caller, id string, req FailRequest) (*InstallationRequest, error)
	Cancel(ctx context.Context, caller authdomain.Caller, id string) (*InstallationRequest, error)
}

var (
	ErrNotFound             = errors.New("installation_not_found")
	ErrUserNotFound         = errors.New("user_not_found")
	ErrPackageNotFound      = errors.New("package_not_found")
	ErrPackageInactive      = errors.New("package_inactive")
	ErrIllegalTransition    = errors.New("illegal_transition")
	ErrInvalidInstallation  = errors.New("invalid_installation")
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidPackage       = errors.New("invalid_package")
	ErrInvalidTechnician    = errors.New("invalid_technician")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidAddress       = errors.New("invalid_address")
	ErrInvalidRequestedDate = errors.New("invalid_requested_date")
	ErrInvalidScheduledDate = errors.New("invalid_scheduled_date")
	ErrInvalidCoordinates   = errors.New("invalid_coordinates")
	ErrInvalidNotes         = errors.New("invalid_notes")
)
