package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	"github.com/smallbiznis/sekarnet/internal/audit/repository"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/internal/reqctx"
	"github.com/smallbiznis/sekarnet/pkg/db"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) auditdomain.Service {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)

	return NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
		Authz: authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
	})
}

func TestAuditLogCapturesRequestContext(t *testing.T) {
	svc := newTestService(t)
	admin := authdomain.Caller{ID: 1, Role: authdomain.RoleAdmin, IsActive: true}

	ctx := reqctx.WithRequestID(context.Background(), "req-1")
	ctx = reqctx.WithIPAddress(ctx, "10.0.0.1")
	ctx = reqctx.WithActor(ctx, "user", "42")

	target := "99"
	err := svc.AuditLog(ctx, "", nil, "bill.verify", "bill", &target, map[string]any{
		"payment_reference": "TRX_12345678",
		"password":          "Secret#123",
	})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), admin, auditdomain.ListAuditLogRequest{Action: "bill.verify"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "42", *entry.ActorID)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.1", *entry.IPAddress)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	assert.Equal(t, "****5678", entry.Metadata["payment_reference"])
	assert.NotContains(t, entry.Metadata, "password")
}

func TestAuditLogRequiresAction(t *testing.T) {
	svc := newTestService(t)
	err := svc.AuditLog(context.Background(), "system", nil, " ", "bill", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListIsAdminOnly(t *testing.T) {
	svc := newTestService(t)

	customer := authdomain.Caller{ID: 5, Role: authdomain.RoleCustomer, IsActive: true}
	_, err := svc.List(context.Background(), customer, auditdomain.ListAuditLogRequest{})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestListPaginates(t *testing.T) {
	svc := newTestService(t)
	admin := authdomain.Caller{ID: 1, Role: authdomain.RoleAdmin, IsActive: true}

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(context.Background(), "system", nil, "subscription.suspend", "subscription", nil, nil))
	}

	resp, err := svc.List(context.Background(), admin, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{Limit: 2},
	})
	require.NoError(t, err)
	assert.Len(t, resp.AuditLogs, 2)
	assert.True(t, resp.HasMore)

	start := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = svc.List(context.Background(), admin, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
