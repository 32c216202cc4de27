// Package token issues and parses the portal's access and refresh JWTs.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/internal/config"
)

type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid_token")
	ErrExpiredToken   = errors.New("expired_token")
	ErrWrongTokenType = errors.New("wrong_token_type")
	ErrMissingSecret  = errors.New("missing_jwt_secret")
)

type Claims struct {
	Role string `json:"role"`
	Type Type   `json:"type"`
	jwt.RegisteredClaims
}

// Pair is returned on login and refresh.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type Maker interface {
	Generate(subject, role string, typ Type) (string, time.Time, error)
	GeneratePair(subject, role string) (Pair, error)
	Parse(tokenStr string, expected Type) (*Claims, error)
}

type maker struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clock.Clock
}

func NewMaker(cfg config.Config, clk clock.Clock) (Maker, error) {
	secret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if secret == "" {
		if cfg.IsProduction() {
			return nil, ErrMissingSecret
		}
		secret = "sekarnet-dev-secret"
	}
	return &maker{
		secret:     []byte(secret),
		issuer:     cfg.Auth.Issuer,
		accessTTL:  cfg.Auth.AccessTokenTTL,
		refreshTTL: cfg.Auth.RefreshTokenTTL,
		clock:      clk,
	}, nil
}

func (m *maker) Generate(subject, role string, typ Type) (string, time.Time, error) {
	ttl := m.accessTTL
	if typ == TypeRefresh {
		ttl = m.refreshTTL
	}
	now := m.clock.Now()
	expiresAt := now.Add(ttl)

	claims := Claims{
		Role: role,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, expiresAt, nil
}

func (m *maker) GeneratePair(subject, role string) (Pair, error) {
	access, accessExp, err := m.Generate(subject, role, TypeAccess)
	if err != nil {
		return Pair{}, err
	}
	refresh, refreshExp, err := m.Generate(subject, role, TypeRefresh)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "bearer",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (m *maker) Parse(tokenStr string, expected Type) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(
		strings.TrimSpace(tokenStr),
		&Claims{},
		func(_ *jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	if claims.Type != expected {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
