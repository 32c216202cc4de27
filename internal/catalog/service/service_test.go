package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	"github.com/smallbiznis/sekarnet/internal/cache"
	"github.com/smallbiznis/sekarnet/internal/catalog/domain"
	"github.com/smallbiznis/sekarnet/internal/catalog/repository"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	admin    = authdomain.Caller{ID: 1, Role: authdomain.RoleAdmin, IsActive: true}
	customer = authdomain.Caller{ID: 2, Role: authdomain.RoleCustomer, IsActive: true}
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Package{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)

	return New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
		Authz: authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		Cache: cache.NewCatalogCache(),
	})
}

func createPackage(t *testing.T, svc domain.Service, name string, price int64) *domain.Package {
	t.Helper()
	pkg, err := svc.Create(context.Background(), admin, domain.CreateRequest{
		Name:     name,
		Speed:    "20 Mbps",
		Price:    decimal.NewFromInt(price),
		Features: []string{"Unlimited", " ", "Unlimited", "Free router"},
	})
	require.NoError(t, err)
	return pkg
}

func TestCreateDerivesCodeAndCleansFeatures(t *testing.T) {
	svc := newTestService(t)

	pkg := createPackage(t, svc, "Home Fiber 20", 250000)
	assert.Equal(t, "home-fiber-20", pkg.Code)
	assert.Equal(t, []string{"Unlimited", "Free router"}, pkg.Features.Data())
	assert.True(t, pkg.SetupFee.IsZero())
	assert.True(t, pkg.IsActive)

	_, err := svc.Create(context.Background(), admin, domain.CreateRequest{Name: "Home Fiber 20", Speed: "20 Mbps", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrCodeExists)
}

func TestCreateIsAdminOnly(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), customer, domain.CreateRequest{Name: "X", Speed: "1 Mbps", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	_, err = svc.Create(context.Background(), admin, domain.CreateRequest{Name: "Neg", Speed: "1 Mbps", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestListHidesInactiveFromNonAdmins(t *testing.T) {
	svc := newTestService(t)

	basic := createPackage(t, svc, "Basic", 150000)
	createPackage(t, svc, "Premium", 450000)

	_, err := svc.Deactivate(context.Background(), admin, basic.ID.String())
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), customer, domain.ListRequest{IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, resp.Packages, 1)
	assert.Equal(t, "Premium", resp.Packages[0].Name)

	resp, err = svc.List(context.Background(), admin, domain.ListRequest{IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, resp.Packages, 2)
}

func TestUpdateInvalidatesCache(t *testing.T) {
	svc := newTestService(t)
	pkg := createPackage(t, svc, "Basic", 150000)

	got, err := svc.Get(context.Background(), pkg.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Basic", got.Name)

	name := "Basic Plus"
	price := decimal.NewFromInt(175000)
	_, err = svc.Update(context.Background(), admin, pkg.ID.String(), domain.UpdateRequest{Name: &name, Price: &price})
	require.NoError(t, err)

	got, err = svc.Get(context.Background(), pkg.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Basic Plus", got.Name)
	assert.True(t, got.Price.Equal(price))
}

func TestGetMissing(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Get(context.Background(), "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
