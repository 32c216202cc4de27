package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	authrepository "github.com/smallbiznis/sekarnet/internal/auth/repository"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/internal/ticket/domain"
	"github.com/smallbiznis/sekarnet/internal/ticket/repository"
	"github.com/smallbiznis/sekarnet/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var admin = authdomain.Caller{ID: 1, Role: authdomain.RoleAdmin, IsActive: true}

type testEnv struct {
	svc   domain.Service
	conn  *gorm.DB
	clock *clock.FakeClock
	genID *snowflake.Node
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&authdomain.User{}, &domain.Ticket{}, &domain.Reply{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})
	clk := clock.NewFakeClock(time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC))

	svc := NewService(ServiceParam{
		DB:       conn,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		UserRepo: authrepository.Provide(),
		Authz:    authz,
	})
	return &testEnv{svc: svc, conn: conn, clock: clk, genID: node}
}

func (e *testEnv) createUser(t *testing.T, username string, role authdomain.Role) authdomain.Caller {
	t.Helper()
	now := e.clock.Now()
	user := &authdomain.User{
		ID:           e.genID.Generate(),
		Username:     username,
		Email:        username + "@example.com",
		FullName:     username,
		Role:         role,
		IsActive:     true,
		PasswordHash: "x",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, authrepository.Provide().Create(context.Background(), e.conn, user))
	return user.Caller()
}

func (e *testEnv) open(t *testing.T, owner authdomain.Caller) *domain.Ticket {
	t.Helper()
	item, err := e.svc.Create(context.Background(), owner, domain.CreateRequest{
		Title:       " Internet mati ",
		Description: "Lampu LOS merah sejak pagi",
		Attachments: []string{"los.jpg", " ", "los.jpg"},
	})
	require.NoError(t, err)
	return item
}

func (e *testEnv) assign(t *testing.T, item *domain.Ticket, tech authdomain.Caller) *domain.Ticket {
	t.Helper()
	assigned, err := e.svc.Assign(context.Background(), admin, item.ID.String(), domain.AssignRequest{TechnicianID: tech.ID.String()})
	require.NoError(t, err)
	return assigned
}

func ptr[T any](v T) *T { return &v }

func TestCreateDefaults(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "budi", authdomain.RoleCustomer)

	item := env.open(t, owner)
	assert.Equal(t, owner.ID, item.UserID)
	assert.Equal(t, "Internet mati", item.Title)
	assert.Equal(t, domain.StatusOpen, item.Status)
	assert.Equal(t, domain.PriorityMedium, item.Priority)
	assert.Equal(t, domain.CategoryTechnical, item.Category)
	assert.Equal(t, []string{"los.jpg"}, item.Attachments.Data())
	assert.True(t, env.clock.Now().Equal(item.OpenedAt))
	assert.Nil(t, item.TechnicianID)
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "siti", authdomain.RoleCustomer)
	other := env.createUser(t, "agus", authdomain.RoleCustomer)
	ctx := context.Background()

	base := func() domain.CreateRequest {
		return domain.CreateRequest{Title: "Tagihan ganda", Description: "Ditagih dua kali", Category: "billing", Priority: "high"}
	}

	req := base()
	req.UserID = other.ID.String()
	_, err := env.svc.Create(ctx, owner, req)
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	onBehalf, err := env.svc.Create(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, other.ID, onBehalf.UserID)
	assert.Equal(t, domain.CategoryBilling, onBehalf.Category)
	assert.Equal(t, domain.PriorityHigh, onBehalf.Priority)

	req = base()
	req.Title = "  "
	_, err = env.svc.Create(ctx, owner, req)
	assert.ErrorIs(t, err, domain.ErrInvalidTitle)

	req = base()
	req.Category = "hardware"
	_, err = env.svc.Create(ctx, owner, req)
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)

	req = base()
	req.UserID = "31337"
	_, err = env.svc.Create(ctx, admin, req)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAssignResolveClose(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "dewi", authdomain.RoleCustomer)
	tech := env.createUser(t, "tek1", authdomain.RoleTechnician)
	otherTech := env.createUser(t, "tek2", authdomain.RoleTechnician)
	ctx := context.Background()

	item := env.open(t, owner)

	_, err := env.svc.Assign(ctx, tech, item.ID.String(), domain.AssignRequest{TechnicianID: tech.ID.String()})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	_, err = env.svc.Assign(ctx, admin, item.ID.String(), domain.AssignRequest{TechnicianID: owner.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidTechnician)

	assigned := env.assign(t, item, tech)
	assert.Equal(t, domain.StatusInProgress, assigned.Status)
	require.NotNil(t, assigned.TechnicianID)
	assert.Equal(t, tech.ID, *assigned.TechnicianID)
	require.NotNil(t, assigned.AssignedAt)

	_, err = env.svc.Resolve(ctx, otherTech, item.ID.String(), domain.ResolveRequest{Resolution: "restart ONT"})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	_, err = env.svc.Resolve(ctx, tech, item.ID.String(), domain.ResolveRequest{Resolution: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidResolution)

	env.clock.Advance(2 * time.Hour)
	resolved, err := env.svc.Resolve(ctx, tech, item.ID.String(), domain.ResolveRequest{Resolution: "restart ONT"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, resolved.Status)
	assert.Equal(t, "restart ONT", *resolved.Resolution)
	require.NotNil(t, resolved.ResolvedAt)
	assert.True(t, env.clock.Now().Equal(*resolved.ResolvedAt))

	_, err = env.svc.Assign(ctx, admin, item.ID.String(), domain.AssignRequest{TechnicianID: otherTech.ID.String()})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	_, err = env.svc.Close(ctx, tech, item.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	closed, err := env.svc.Close(ctx, owner, item.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	_, err = env.svc.Close(ctx, admin, item.ID.String())
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
}

func TestUpdateRestrictsStaffFields(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "eko", authdomain.RoleCustomer)
	stranger := env.createUser(t, "fajar", authdomain.RoleCustomer)
	tech := env.createUser(t, "tek3", authdomain.RoleTechnician)
	ctx := context.Background()

	item := env.open(t, owner)

	edited, err := env.svc.Update(ctx, owner, item.ID.String(), domain.UpdateRequest{
		Description: ptr("Lampu LOS merah, sudah restart"),
		Notes:       ptr("  "),
	})
	require.NoError(t, err)
	assert.Equal(t, "Lampu LOS merah, sudah restart", edited.Description)
	assert.Nil(t, edited.Notes)

	_, err = env.svc.Update(ctx, owner, item.ID.String(), domain.UpdateRequest{Priority: ptr("urgent")})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	_, err = env.svc.Update(ctx, owner, item.ID.String(), domain.UpdateRequest{Status: ptr("resolved")})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	_, err = env.svc.Update(ctx, stranger, item.ID.String(), domain.UpdateRequest{Title: ptr("x")})
	assert.ErrorIs(t, err, authorization.ErrForbidden)
	_, err = env.svc.Update(ctx, tech, item.ID.String(), domain.UpdateRequest{Priority: ptr("high")})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	env.assign(t, item, tech)
	escalated, err := env.svc.Update(ctx, tech, item.ID.String(), domain.UpdateRequest{Priority: ptr("urgent")})
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityUrgent, escalated.Priority)
	assert.Equal(t, domain.StatusInProgress, escalated.Status)

	resolved, err := env.svc.Update(ctx, admin, item.ID.String(), domain.UpdateRequest{Status: ptr("resolved")})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	_, err = env.svc.Update(ctx, admin, item.ID.String(), domain.UpdateRequest{Status: ptr("open")})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	_, err = env.svc.Update(ctx, admin, item.ID.String(), domain.UpdateRequest{Status: ptr("waiting")})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestReplies(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "gita", authdomain.RoleCustomer)
	stranger := env.createUser(t, "hana", authdomain.RoleCustomer)
	tech := env.createUser(t, "tek4", authdomain.RoleTechnician)
	ctx := context.Background()

	item := env.open(t, owner)
	env.assign(t, item, tech)

	_, err := env.svc.AddReply(ctx, owner, item.ID.String(), domain.ReplyRequest{Message: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
	_, err = env.svc.AddReply(ctx, stranger, item.ID.String(), domain.ReplyRequest{Message: "halo"})
	assert.ErrorIs(t, err, authorization.ErrForbidden)

	first, err := env.svc.AddReply(ctx, owner, item.ID.String(), domain.ReplyRequest{Message: "Masih mati"})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, first.UserID)
	env.clock.Advance(time.Minute)
	_, err = env.svc.AddReply(ctx, tech, item.ID.String(), domain.ReplyRequest{Message: "Menuju lokasi", Attachments: []string{"eta.png"}})
	require.NoError(t, err)

	replies, err := env.svc.ListReplies(ctx, owner, item.ID.String())
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, "Masih mati", replies[0].Message)
	assert.Equal(t, []string{"eta.png"}, replies[1].Attachments.Data())

	detail, err := env.svc.Get(ctx, tech, item.ID.String())
	require.NoError(t, err)
	assert.Len(t, detail.Replies, 2)

	_, err = env.svc.Close(ctx, admin, item.ID.String())
	require.NoError(t, err)
	_, err = env.svc.AddReply(ctx, owner, item.ID.String(), domain.ReplyRequest{Message: "terima kasih"})
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	_, err = env.svc.ListReplies(ctx, stranger, item.ID.String())
	assert.ErrorIs(t, err, authorization.ErrForbidden)
}

func TestListScopesByRole(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "indra", authdomain.RoleCustomer)
	other := env.createUser(t, "joko", authdomain.RoleCustomer)
	tech := env.createUser(t, "tek5", authdomain.RoleTechnician)
	ctx := context.Background()

	first := env.open(t, owner)
	env.open(t, owner)
	env.open(t, other)
	env.assign(t, first, tech)

	mine, err := env.svc.List(ctx, owner, domain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, mine.Tickets, 2)

	// customers cannot widen their scope through filters
	scoped, err := env.svc.List(ctx, other, domain.ListRequest{UserID: owner.ID.String()})
	require.NoError(t, err)
	assert.Len(t, scoped.Tickets, 1)

	assigned, err := env.svc.List(ctx, tech, domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, assigned.Tickets, 1)
	assert.Equal(t, first.ID, assigned.Tickets[0].ID)

	all, err := env.svc.List(ctx, admin, domain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Tickets, 3)

	open, err := env.svc.List(ctx, admin, domain.ListRequest{Status: "open"})
	require.NoError(t, err)
	assert.Len(t, open.Tickets, 2)

	byOwner, err := env.svc.List(ctx, admin, domain.ListRequest{UserID: owner.ID.String(), Priority: "medium"})
	require.NoError(t, err)
	assert.Len(t, byOwner.Tickets, 2)

	_, err = env.svc.List(ctx, admin, domain.ListRequest{Category: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidCategory)
}

func TestGetUnknownTicket(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Get(context.Background(), admin, "31337")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.svc.Get(context.Background(), admin, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidTicket)
}
