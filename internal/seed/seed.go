// Package seed bootstraps the data a fresh portal needs to be usable.
package seed

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/config"
	"go.uber.org/zap"
)

const defaultAdminFullName = "SEKAR NET Administrator"

// EnsureAdmin creates the bootstrap admin account unless one with the same
// username already exists. With no configured password a random one is
// generated and logged once.
func EnsureAdmin(ctx context.Context, users authdomain.Service, cfg config.BootstrapConfig, log *zap.Logger) error {
	if users == nil {
		return errors.New("seed user service is required")
	}

	username := strings.TrimSpace(cfg.AdminUsername)
	if username == "" {
		username = "admin"
	}
	password := cfg.AdminPassword
	generated := false
	if strings.TrimSpace(password) == "" {
		var err error
		password, err = randomPassword()
		if err != nil {
			return err
		}
		generated = true
	}

	user, created, err := users.EnsureAdmin(ctx, authdomain.RegisterRequest{
		Username: username,
		Email:    cfg.AdminEmail,
		Password: password,
		FullName: defaultAdminFullName,
	})
	if err != nil {
		return err
	}
	if !created {
		log.Debug("bootstrap admin already present", zap.String("username", user.Username))
		return nil
	}

	fields := []zap.Field{zap.String("username", user.Username), zap.String("user_id", user.ID.String())}
	if generated {
		fields = append(fields, zap.String("password", password))
	}
	log.Warn("bootstrap admin created", fields...)
	return nil
}

// randomPassword always satisfies the password policy.
func randomPassword() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "Sk!" + base64.RawURLEncoding.EncodeToString(buf) + "9a", nil
}
