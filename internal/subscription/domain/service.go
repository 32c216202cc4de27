package domain

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
)

type CreateSubscriptionRequest struct {
	UserID       string     `json:"user_id" binding:"required"`
	PackageID    string     `json:"package_id" binding:"required"`
	Status       string     `json:"status"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	AutoRenew    *bool      `json:"auto_renew,omitempty"`
	IPAddress    *string    `json:"ip_address,omitempty" binding:"omitempty,ip"`
	MACAddress   *string    `json:"mac_address,omitempty" binding:"omitempty,mac"`
	BillingCycle string     `json:"billing_cycle"`
	BillingDay   *int       `json:"billing_day,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
}

// UpdateSubscriptionRequest is a partial patch; nil fields are left untouched.
type UpdateSubscriptionRequest struct {
	Status          *string    `json:"status,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	AutoRenew       *bool      `json:"auto_renew,omitempty"`
	IPAddress       *string    `json:"ip_address,omitempty" binding:"omitempty,ip"`
	MACAddress      *string    `json:"mac_address,omitempty" binding:"omitempty,mac"`
	BillingCycle    *string    `json:"billing_cycle,omitempty"`
	BillingDay      *int       `json:"billing_day,omitempty"`
	LastPaymentDate *time.Time `json:"last_payment_date,omitempty"`
	NextPaymentDate *time.Time `json:"next_payment_date,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

type ListSubscriptionRequest struct {
	pagination.Pagination
	Status string `form:"status"`
	UserID string `form:"user_id"`
}

type ListSubscriptionResponse struct {
	pagination.PageInfo
	Subscriptions []Subscription `json:"subscriptions"`
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	Create(ctx context.Context, caller authdomain.Caller, req CreateSubscriptionRequest) (*Subscription, error)
	Update(ctx context.Context, caller authdomain.Caller, id string, req UpdateSubscriptionRequest) (*Subscription, error)
	Suspend(ctx context.Context, caller authdomain.Caller, id string) (*Subscription, error)
	Activate(ctx context.Context, caller authdomain.Caller, id string) (*Subscription, error)
	Cancel(ctx context.Context, caller authdomain.Caller, id string) (*Subscription, error)
	Get(ctx context.Context, caller authdomain.Caller, id string) (*Subscription, error)
	ListMine(ctx context.Context, caller authdomain.Caller, req ListSubscriptionRequest) (ListSubscriptionResponse, error)
	ListAll(ctx context.Context, caller authdomain.Caller, req ListSubscriptionRequest) (ListSubscriptionResponse, error)
}

var (
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrUserNotFound         = errors.New("user_not_found")
	ErrPackageNotFound      = errors.New("package_not_found")
	ErrInvalidSubscription  = errors.New("invalid_subscription")
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidPackage       = errors.New("invalid_package")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrInvalidBillingCycle  = errors.New("invalid_billing_cycle")
	ErrInvalidBillingDay    = errors.New("invalid_billing_day")
	ErrInvalidPeriod        = errors.New("invalid_period")
)
