package service

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	"github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/auth/password"
	"github.com/smallbiznis/sekarnet/internal/auth/token"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/pkg/db"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Tokens   token.Maker
	Authz    authorization.Service
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	tokens   token.Maker
	authz    authorization.Service
	auditSvc auditdomain.Service
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("auth.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		tokens:   p.Tokens,
		authz:    p.Authz,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	user, err := s.createUser(ctx, req, domain.RoleCustomer)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, user.ID.String(), "user.register", user.ID, nil)
	return user, nil
}

func (s *Service) EnsureAdmin(ctx context.Context, req domain.RegisterRequest) (*domain.User, bool, error) {
	existing, err := s.repo.FindByUsername(ctx, s.db, req.Username)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	user, err := s.createUser(ctx, req, domain.RoleAdmin)
	if err != nil {
		return nil, false, err
	}
	s.audit(ctx, "", "user.bootstrap_admin", user.ID, nil)
	return user, true, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, authorization.ErrInactiveAccount
	}

	now := s.clock.Now()
	fields := map[string]any{
		"last_login_at": now,
	}
	if password.IsLegacy(user.PasswordHash) {
		rehashed, err := password.Hash(req.Password)
		if err != nil {
			return nil, err
		}
		fields["password_hash"] = rehashed
	}
	if err := s.repo.UpdateFields(ctx, s.db, user.ID, fields); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	pair, err := s.tokens.GeneratePair(user.ID.String(), string(user.Role))
	if err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID.String(), "user.login", user.ID, nil)
	return &domain.LoginResult{User: user, Tokens: pair}, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (*domain.LoginResult, error) {
	claims, err := s.tokens.Parse(refreshToken, token.TypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	user, err := s.userFromSubject(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, authorization.ErrInactiveAccount
	}

	pair, err := s.tokens.GeneratePair(user.ID.String(), string(user.Role))
	if err != nil {
		return nil, err
	}
	return &domain.LoginResult{User: user, Tokens: pair}, nil
}

// Authenticate resolves a bearer access token to the caller stored in the users table.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (domain.Caller, error) {
	claims, err := s.tokens.Parse(accessToken, token.TypeAccess)
	if err != nil {
		return domain.Caller{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	user, err := s.userFromSubject(ctx, claims.Subject)
	if err != nil {
		return domain.Caller{}, err
	}
	if !user.IsActive {
		return domain.Caller{}, authorization.ErrInactiveAccount
	}
	return user.Caller(), nil
}

func (s *Service) Me(ctx context.Context, caller domain.Caller) (*domain.User, error) {
	if err := s.authz.RequireActive(ctx, caller); err != nil {
		return nil, err
	}
	return s.mustFind(ctx, s.db, caller.ID)
}

func (s *Service) UpdateMe(ctx context.Context, caller domain.Caller, req domain.UpdateMeRequest) (*domain.User, error) {
	if err := s.authz.RequireActive(ctx, caller); err != nil {
		return nil, err
	}

	var updated *domain.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.mustFind(ctx, tx, caller.ID)
		if err != nil {
			return err
		}

		fields := map[string]any{}
		if req.Email != nil {
			email, err := normalizeEmail(*req.Email)
			if err != nil {
				return domain.ErrInvalidEmail
			}
			if email != user.Email {
				other, err := s.repo.FindByEmail(ctx, tx, email)
				if err != nil {
					return err
				}
				if other != nil {
					return domain.ErrUserExists
				}
				fields["email"] = email
			}
		}
		if req.FullName != nil {
			name := strings.TrimSpace(*req.FullName)
			if name == "" {
				return domain.ErrInvalidFullName
			}
			fields["full_name"] = name
		}
		if req.Phone != nil {
			fields["phone"] = trimmedOrNil(*req.Phone)
		}
		if req.Address != nil {
			fields["address"] = trimmedOrNil(*req.Address)
		}
		if req.Password != nil {
			if err := password.Validate(*req.Password); err != nil {
				return domain.ErrWeakPassword
			}
			hashed, err := password.Hash(*req.Password)
			if err != nil {
				return err
			}
			fields["password_hash"] = hashed
		}

		if len(fields) > 0 {
			fields["updated_at"] = s.clock.Now()
			if err := s.repo.UpdateFields(ctx, tx, user.ID, fields); err != nil {
				return err
			}
		}

		updated, err = s.mustFind(ctx, tx, user.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, caller domain.Caller, id string) (*domain.User, error) {
	userID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, caller, userID, authorization.SelfOrAdmin); err != nil {
		return nil, err
	}
	return s.mustFind(ctx, s.db, userID)
}

func (s *Service) List(ctx context.Context, caller domain.Caller, req domain.ListUserRequest) (domain.ListUserResponse, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return domain.ListUserResponse{}, err
	}

	filter := domain.ListFilter{IsActive: req.IsActive}
	if strings.TrimSpace(req.Role) != "" {
		role, err := domain.ParseRole(req.Role)
		if err != nil {
			return domain.ListUserResponse{}, err
		}
		filter.Role = role
	}

	probe := req.Pagination.Probe()
	filter.Offset = probe.Skip
	filter.Limit = probe.Limit

	users, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListUserResponse{}, err
	}

	users, pageInfo := pagination.BuildPageInfo(users, req.Pagination)
	return domain.ListUserResponse{PageInfo: pageInfo, Users: users}, nil
}

func (s *Service) AdminUpdate(ctx context.Context, caller domain.Caller, id string, req domain.AdminUpdateRequest) (*domain.User, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return nil, err
	}
	userID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Role != nil {
		role, err := domain.ParseRole(*req.Role)
		if err != nil {
			return nil, err
		}
		fields["role"] = role
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, domain.ErrInvalidFullName
		}
		fields["full_name"] = name
	}

	var updated *domain.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.mustFind(ctx, tx, userID); err != nil {
			return err
		}
		if len(fields) > 0 {
			fields["updated_at"] = s.clock.Now()
			if err := s.repo.UpdateFields(ctx, tx, userID, fields); err != nil {
				return err
			}
		}
		updated, err = s.mustFind(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{}
	if req.Role != nil {
		metadata["role"] = string(updated.Role)
	}
	if req.IsActive != nil {
		metadata["is_active"] = updated.IsActive
	}
	s.audit(ctx, caller.Subject(), "user.admin_update", userID, metadata)
	return updated, nil
}

func (s *Service) createUser(ctx context.Context, req domain.RegisterRequest, role domain.Role) (*domain.User, error) {
	username := strings.TrimSpace(req.Username)
	if !usernamePattern.MatchString(username) {
		return nil, domain.ErrInvalidUsername
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		fullName = username
	}
	if err := password.Validate(req.Password); err != nil {
		return nil, domain.ErrWeakPassword
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:           s.genID.Generate(),
		Username:     username,
		Email:        email,
		FullName:     fullName,
		Role:         role,
		IsActive:     true,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Phone != nil {
		user.Phone = trimmedOrNil(*req.Phone)
	}
	if req.Address != nil {
		user.Address = trimmedOrNil(*req.Address)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		byUsername, err := s.repo.FindByUsername(ctx, tx, username)
		if err != nil {
			return err
		}
		byEmail, err := s.repo.FindByEmail(ctx, tx, email)
		if err != nil {
			return err
		}
		if byUsername != nil || byEmail != nil {
			return domain.ErrUserExists
		}
		if err := s.repo.Create(ctx, tx, user); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrUserExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) userFromSubject(ctx context.Context, subject string) (*domain.User, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(subject))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidToken
	}
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrInvalidToken
	}
	return user, nil
}

func (s *Service) mustFind(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) audit(ctx context.Context, actorID string, action string, target snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actorType := string(auditdomain.ActorTypeUser)
	if actorID == "" {
		actorType = string(auditdomain.ActorTypeSystem)
	}
	targetID := target.String()
	_ = s.auditSvc.AuditLog(ctx, actorType, &actorID, action, "user", &targetID, metadata)
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidUser
	}
	return id, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func trimmedOrNil(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

