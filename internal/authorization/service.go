package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
)

// Level names the capability a caller must hold for an operation.
type Level string

const (
	AdminOnly         Level = "admin_only"
	AdminOrTechnician Level = "admin_or_technician"
	SelfOrAdmin       Level = "self_or_admin"
)

var (
	ErrForbidden       = errors.New("forbidden")
	ErrInactiveAccount = errors.New("inactive_account")
	ErrInvalidLevel    = errors.New("invalid_level")
)

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	// Authorize allows or rejects caller for level. ownerID is only consulted for SelfOrAdmin.
	Authorize(ctx context.Context, caller authdomain.Caller, ownerID snowflake.ID, level Level) error
	RequireActive(ctx context.Context, caller authdomain.Caller) error
}
