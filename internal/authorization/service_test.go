package authorization

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type failingAudit struct {
	auditdomain.Service
	actions []string
}

func (f *failingAudit) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	f.actions = append(f.actions, action)
	return errors.New("audit store unavailable")
}

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeLevels(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	owner := snowflake.ID(100)
	customer := authdomain.Caller{ID: 100, Role: authdomain.RoleCustomer, IsActive: true}
	other := authdomain.Caller{ID: 200, Role: authdomain.RoleCustomer, IsActive: true}
	technician := authdomain.Caller{ID: 300, Role: authdomain.RoleTechnician, IsActive: true}
	admin := authdomain.Caller{ID: 400, Role: authdomain.RoleAdmin, IsActive: true}

	cases := []struct {
		name   string
		caller authdomain.Caller
		level  Level
		want   error
	}{
		{"customer admin only", customer, AdminOnly, ErrForbidden},
		{"technician admin only", technician, AdminOnly, ErrForbidden},
		{"admin admin only", admin, AdminOnly, nil},
		{"customer admin or technician", customer, AdminOrTechnician, ErrForbidden},
		{"technician admin or technician", technician, AdminOrTechnician, nil},
		{"admin admin or technician", admin, AdminOrTechnician, nil},
		{"owner self or admin", customer, SelfOrAdmin, nil},
		{"other self or admin", other, SelfOrAdmin, ErrForbidden},
		{"technician self or admin", technician, SelfOrAdmin, ErrForbidden},
		{"admin self or admin", admin, SelfOrAdmin, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authorize(ctx, tc.caller, owner, tc.level)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestInactiveCallerRejectedBeforeRoleCheck(t *testing.T) {
	svc := newTestService(t)

	admin := authdomain.Caller{ID: 1, Role: authdomain.RoleAdmin, IsActive: false}
	err := svc.Authorize(context.Background(), admin, 1, SelfOrAdmin)
	assert.ErrorIs(t, err, ErrInactiveAccount)

	err = svc.RequireActive(context.Background(), admin)
	assert.ErrorIs(t, err, ErrInactiveAccount)
}

func TestUnknownLevelAndRole(t *testing.T) {
	svc := newTestService(t)

	err := svc.Authorize(context.Background(), authdomain.Caller{ID: 1, Role: authdomain.RoleAdmin, IsActive: true}, 0, Level("owner_only"))
	assert.ErrorIs(t, err, ErrInvalidLevel)

	err = svc.Authorize(context.Background(), authdomain.Caller{ID: 1, Role: "root", IsActive: true}, 0, AdminOnly)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSelfOrAdminIgnoresZeroOwner(t *testing.T) {
	svc := newTestService(t)

	// An unowned resource never matches a caller by id.
	err := svc.Authorize(context.Background(), authdomain.Caller{ID: 0, Role: authdomain.RoleCustomer, IsActive: true}, 0, SelfOrAdmin)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSeedPoliciesIsIdempotent(t *testing.T) {
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)

	// Seeding twice leaves a single copy of each rule.
	require.NoError(t, seedPolicies(enforcer))
	policies, err := enforcer.GetPolicy()
	require.NoError(t, err)
	assert.Len(t, policies, 3)
}

func TestDenialAuditFailureIsLogged(t *testing.T) {
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	core, logs := observer.New(zapcore.WarnLevel)
	audit := &failingAudit{}
	svc := NewService(Params{Log: zap.New(core), Enforcer: enforcer, AuditSvc: audit})

	customer := authdomain.Caller{ID: 5, Role: authdomain.RoleCustomer, IsActive: true}
	err = svc.Authorize(context.Background(), customer, 0, AdminOnly)
	assert.ErrorIs(t, err, ErrForbidden)

	assert.Equal(t, []string{"authorization.denied"}, audit.actions)
	warned := logs.FilterMessage("audit log failed").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "authorization.denied", warned[0].ContextMap()["action"])
}
