package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	authrepository "github.com/smallbiznis/sekarnet/internal/auth/repository"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	catalogdomain "github.com/smallbiznis/sekarnet/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/sekarnet/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/sekarnet/internal/catalog/service"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/internal/subscription/domain"
	"github.com/smallbiznis/sekarnet/internal/subscription/repository"
	"github.com/smallbiznis/sekarnet/pkg/db"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	admin      = authdomain.Caller{ID: 1, Role: authdomain.RoleAdmin, IsActive: true}
	technician = authdomain.Caller{ID: 3, Role: authdomain.RoleTechnician, IsActive: true}
)

type testEnv struct {
	svc     domain.Service
	conn    *gorm.DB
	clock   *clock.FakeClock
	genID   *snowflake.Node
	pkg     *catalogdomain.Package
	userRep authdomain.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&authdomain.User{}, &catalogdomain.Package{}, &domain.Subscription{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})
	clk := clock.NewFakeClock(time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))

	catalog := catalogservice.New(catalogservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  catalogrepository.Provide(),
		Authz: authz,
	})
	pkg, err := catalog.Create(context.Background(), admin, catalogdomain.CreateRequest{
		Name:  "Home Fiber 20",
		Speed: "20 Mbps",
		Price: decimal.NewFromInt(250000),
	})
	require.NoError(t, err)

	userRepo := authrepository.Provide()
	svc := NewService(ServiceParam{
		DB:         conn,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Repo:       repository.Provide(),
		UserRepo:   userRepo,
		Authz:      authz,
		CatalogSvc: catalog,
	})

	return &testEnv{svc: svc, conn: conn, clock: clk, genID: node, pkg: pkg, userRep: userRepo}
}

func (e *testEnv) createCustomer(t *testing.T, username string) authdomain.Caller {
	t.Helper()
	now := e.clock.Now()
	user := &authdomain.User{
		ID:           e.genID.Generate(),
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Customer " + username,
		Role:         authdomain.RoleCustomer,
		IsActive:     true,
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.userRep.Create(context.Background(), e.conn, user))
	return user.Caller()
}

func (e *testEnv) subscribe(t *testing.T, owner authdomain.Caller, req domain.CreateSubscriptionRequest) *domain.Subscription {
	t.Helper()
	req.UserID = owner.ID.String()
	req.PackageID = e.pkg.ID.String()
	sub, err := e.svc.Create(context.Background(), admin, req)
	require.NoError(t, err)
	return sub
}

func ptr[T any](v T) *T { return &v }

func TestCreateAppliesDefaults(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createCustomer(t, "budi")

	sub := env.subscribe(t, owner, domain.CreateSubscriptionRequest{})
	assert.Equal(t, domain.SubscriptionStatusPending, sub.Status)
	assert.Equal(t, domain.BillingCycleMonthly, sub.BillingCycle)
	assert.Equal(t, 1, sub.BillingDay)
	assert.True(t, sub.AutoRenew)
	assert.Nil(t, sub.StartDate)
	assert.Nil(t, sub.NextPaymentDate)
}

func TestCreateComputesNextPaymentDate(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createCustomer(t, "siti")

	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	sub := env.subscribe(t, owner, domain.CreateSubscriptionRequest{
		Status:     "active",
		StartDate:  &start,
		BillingDay: ptr(31),
	})
	require.NotNil(t, sub.NextPaymentDate)
	assert.True(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC).Equal(*sub.NextPaymentDate))

	yearly := env.subscribe(t, owner, domain.CreateSubscriptionRequest{
		StartDate:    &start,
		BillingCycle: "yearly",
		BillingDay:   ptr(31),
	})
	require.NotNil(t, yearly.NextPaymentDate)
	assert.True(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC).Equal(*yearly.NextPaymentDate))

	stored, err := env.svc.Get(context.Background(), owner, yearly.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.BillingCycleYearly, stored.BillingCycle)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createCustomer(t, "agus")
	ctx := context.Background()

	base := func() domain.CreateSubscriptionRequest {
		return domain.CreateSubscriptionRequest{UserID: owner.ID.String(), PackageID: env.pkg.ID.String()}
	}

	_, err := env.svc.Create(ctx, owner, base())
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	req := base()
	req.BillingDay = ptr(32)
	_, err = env.svc.Create(ctx, admin, req)
	assert.ErrorIs(t, err, domain.ErrInvalidBillingDay)

	req = base()
	req.BillingCycle = "weekly"
	_, err = env.svc.Create(ctx, admin, req)
	assert.ErrorIs(t, err, domain.ErrInvalidBillingCycle)

	req = base()
	req.Status = "paused"
	_, err = env.svc.Create(ctx, admin, req)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	req = base()
	req.UserID = "999"
	_, err = env.svc.Create(ctx, admin, req)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	req = base()
	req.PackageID = "999"
	_, err = env.svc.Create(ctx, admin, req)
	assert.ErrorIs(t, err, domain.ErrPackageNotFound)

	req = base()
	req.UserID = "abc"
	_, err = env.svc.Create(ctx, admin, req)
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestSuspendAndActivate(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createCustomer(t, "rina")
	sub := env.subscribe(t, owner, domain.CreateSubscriptionRequest{})
	ctx := context.Background()

	_, err := env.svc.Suspend(ctx, owner, sub.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	activated, err := env.svc.Activate(ctx, admin, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusActive, activated.Status)
	require.NotNil(t, activated.StartDate)
	assert.True(t, env.clock.Now().Equal(*activated.StartDate))
	assert.Nil(t, activated.NextPaymentDate)

	env.clock.Advance(48 * time.Hour)
	suspended, err := env.svc.Suspend(ctx, admin, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusSuspended, suspended.Status)

	reactivated, err := env.svc.Activate(ctx, admin, sub.ID.String())
	require.NoError(t, err)
	assert.True(t, activated.StartDate.Equal(*reactivated.StartDate))

	_, err = env.svc.Suspend(ctx, admin, "12345")
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createCustomer(t, "dewi")
	other := env.createCustomer(t, "eko")
	ctx := context.Background()

	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	sub := env.subscribe(t, owner, domain.CreateSubscriptionRequest{Status: "active", StartDate: &start, BillingDay: ptr(5)})

	_, err := env.svc.Cancel(ctx, other, sub.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	_, err = env.svc.Cancel(ctx, technician, sub.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	cancelled, err := env.svc.Cancel(ctx, owner, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCancelled, cancelled.Status)
	assert.False(t, cancelled.AutoRenew)
	require.NotNil(t, cancelled.EndDate)
	assert.True(t, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC).Equal(*cancelled.EndDate))

	moved := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)
	patched, err := env.svc.Update(ctx, admin, sub.ID.String(), domain.UpdateSubscriptionRequest{NextPaymentDate: &moved})
	require.NoError(t, err)
	require.NotNil(t, patched.NextPaymentDate)
	assert.True(t, moved.Equal(*patched.NextPaymentDate))

	again, err := env.svc.Cancel(ctx, admin, sub.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusCancelled, again.Status)
	require.NotNil(t, again.EndDate)
	assert.True(t, cancelled.EndDate.Equal(*again.EndDate))
	assert.False(t, moved.Equal(*again.EndDate))
}

func TestCancelKeepsExplicitEndDate(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createCustomer(t, "fajar")

	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	sub := env.subscribe(t, owner, domain.CreateSubscriptionRequest{StartDate: &start, EndDate: &end})

	cancelled, err := env.svc.Cancel(context.Background(), admin, sub.ID.String())
	require.NoError(t, err)
	assert.True(t, end.Equal(*cancelled.EndDate))
}

func TestUpdatePatchesWithoutRecompute(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createCustomer(t, "gita")
	ctx := context.Background()

	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	sub := env.subscribe(t, owner, domain.CreateSubscriptionRequest{StartDate: &start, BillingDay: ptr(5)})

	updated, err := env.svc.Update(ctx, admin, sub.ID.String(), domain.UpdateSubscriptionRequest{
		BillingDay: ptr(20),
		IPAddress:  ptr(" 10.0.0.7 "),
		Notes:      ptr("rack B"),
	})
	require.NoError(t, err)
	assert.Equal(t, 20, updated.BillingDay)
	assert.Equal(t, "10.0.0.7", *updated.IPAddress)
	assert.Equal(t, "rack B", *updated.Notes)
	assert.True(t, sub.NextPaymentDate.Equal(*updated.NextPaymentDate))
	assert.Equal(t, domain.SubscriptionStatusPending, updated.Status)

	_, err = env.svc.Update(ctx, admin, sub.ID.String(), domain.UpdateSubscriptionRequest{Status: ptr("bogus")})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = env.svc.Update(ctx, owner, sub.ID.String(), domain.UpdateSubscriptionRequest{Notes: ptr("x")})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestGetAndList(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createCustomer(t, "hana")
	other := env.createCustomer(t, "indra")
	ctx := context.Background()

	mine := env.subscribe(t, owner, domain.CreateSubscriptionRequest{Status: "active"})
	env.subscribe(t, owner, domain.CreateSubscriptionRequest{})
	env.subscribe(t, other, domain.CreateSubscriptionRequest{})

	_, err := env.svc.Get(ctx, other, mine.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	_, err = env.svc.Get(ctx, admin, "77")
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)

	res, err := env.svc.ListMine(ctx, owner, domain.ListSubscriptionRequest{})
	require.NoError(t, err)
	assert.Len(t, res.Subscriptions, 2)

	res, err = env.svc.ListMine(ctx, owner, domain.ListSubscriptionRequest{Status: "active"})
	require.NoError(t, err)
	require.Len(t, res.Subscriptions, 1)
	assert.Equal(t, mine.ID, res.Subscriptions[0].ID)

	_, err = env.svc.ListAll(ctx, owner, domain.ListSubscriptionRequest{})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	res, err = env.svc.ListAll(ctx, admin, domain.ListSubscriptionRequest{Pagination: pagination.Pagination{Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, res.Subscriptions, 2)
	assert.True(t, res.HasMore)

	res, err = env.svc.ListAll(ctx, admin, domain.ListSubscriptionRequest{UserID: other.ID.String()})
	require.NoError(t, err)
	assert.Len(t, res.Subscriptions, 1)
}

func TestInactiveCallerCannotList(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createCustomer(t, "joko")
	owner.IsActive = false

	_, err := env.svc.ListMine(context.Background(), owner, domain.ListSubscriptionRequest{})
	assert.ErrorIs(t, err, authorization.ErrInactiveAccount)
}
