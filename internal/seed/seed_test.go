package seed

import (
	"context"
	"testing"

	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/auth/password"
	"github.com/smallbiznis/sekarnet/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeUsers struct {
	authdomain.Service
	existing *authdomain.User
	got      authdomain.RegisterRequest
}

func (f *fakeUsers) EnsureAdmin(_ context.Context, req authdomain.RegisterRequest) (*authdomain.User, bool, error) {
	f.got = req
	if f.existing != nil {
		return f.existing, false, nil
	}
	return &authdomain.User{ID: 1, Username: req.Username, Role: authdomain.RoleAdmin}, true, nil
}

func TestEnsureAdminGeneratesPolicyPassword(t *testing.T) {
	users := &fakeUsers{}
	err := EnsureAdmin(context.Background(), users, config.BootstrapConfig{AdminEmail: "admin@sekarnet.id"}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "admin", users.got.Username)
	assert.NoError(t, password.Validate(users.got.Password))
}

func TestEnsureAdminUsesConfiguredCredentials(t *testing.T) {
	users := &fakeUsers{existing: &authdomain.User{ID: 9, Username: "root"}}
	cfg := config.BootstrapConfig{AdminUsername: "root", AdminEmail: "root@sekarnet.id", AdminPassword: "Secr3t!pass"}

	require.NoError(t, EnsureAdmin(context.Background(), users, cfg, zap.NewNop()))
	assert.Equal(t, "root", users.got.Username)
	assert.Equal(t, "Secr3t!pass", users.got.Password)
}
