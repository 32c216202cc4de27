package authorization

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const objectAccessLevel = "access_level"

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

// NewEnforcer builds an enforcer whose policies persist through the gorm adapter.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewMemoryEnforcer builds an enforcer without persistence.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *ServiceImpl) RequireActive(ctx context.Context, caller authdomain.Caller) error {
	if !caller.IsActive {
		s.denied(ctx, caller, "", "inactive")
		return ErrInactiveAccount
	}
	return nil
}

func (s *ServiceImpl) Authorize(ctx context.Context, caller authdomain.Caller, ownerID snowflake.ID, level Level) error {
	if err := s.RequireActive(ctx, caller); err != nil {
		return err
	}

	switch level {
	case AdminOnly, AdminOrTechnician:
	case SelfOrAdmin:
		if ownerID != 0 && caller.ID == ownerID {
			return nil
		}
	default:
		return ErrInvalidLevel
	}

	if !caller.Role.Valid() {
		s.denied(ctx, caller, level, "unknown_role")
		return ErrForbidden
	}

	allowed, err := s.enforcer.Enforce(roleSubject(caller.Role), objectAccessLevel, string(level))
	if err != nil {
		return err
	}
	if !allowed {
		s.denied(ctx, caller, level, "role")
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) denied(ctx context.Context, caller authdomain.Caller, level Level, reason string) {
	s.metrics.RecordAuthorizationDenied(ctx, string(level), reason)
	s.log.Debug("authorization denied",
		zap.String("caller_id", caller.Subject()),
		zap.String("role", string(caller.Role)),
		zap.String("level", string(level)),
		zap.String("reason", reason),
	)

	if s.auditSvc == nil {
		return
	}
	actorID := caller.Subject()
	targetID := "capability"
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &actorID, "authorization.denied", "authorization", &targetID, map[string]any{
		"role":   string(caller.Role),
		"level":  string(level),
		"reason": reason,
	}); err != nil {
		s.log.Warn("audit log failed", zap.String("action", "authorization.denied"), zap.Error(err))
	}
}

func roleSubject(role authdomain.Role) string {
	return fmt.Sprintf("role:%s", role)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{roleSubject(authdomain.RoleTechnician), objectAccessLevel, string(AdminOrTechnician)},
		{roleSubject(authdomain.RoleAdmin), objectAccessLevel, string(AdminOnly)},
		{roleSubject(authdomain.RoleAdmin), objectAccessLevel, string(SelfOrAdmin)},
	}
	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	// Admins inherit everything a technician can do.
	admin, technician := roleSubject(authdomain.RoleAdmin), roleSubject(authdomain.RoleTechnician)
	has, err := enforcer.HasGroupingPolicy(admin, technician)
	if err != nil {
		return err
	}
	if !has {
		if _, err := enforcer.AddGroupingPolicy(admin, technician); err != nil {
			return err
		}
	}
	return nil
}
