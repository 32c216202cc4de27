package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	"github.com/smallbiznis/sekarnet/internal/cache"
	"github.com/smallbiznis/sekarnet/internal/catalog/domain"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/pkg/db"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Authz    authorization.Service
	Cache    cache.CatalogCache  `optional:"true"`
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	authz    authorization.Service
	cache    cache.CatalogCache
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("catalog.service"),
		repo:     p.Repo,
		genID:    p.GenID,
		clock:    p.Clock,
		authz:    p.Authz,
		cache:    p.Cache,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) List(ctx context.Context, caller authdomain.Caller, req domain.ListRequest) (domain.ListResponse, error) {
	includeInactive := req.IncludeInactive && caller.IsAdmin() && caller.IsActive
	page := req.Pagination.Normalize()

	if s.cache != nil {
		if cached, ok := s.cache.GetList(includeInactive, page.Skip, page.Limit); ok {
			return cached, nil
		}
	}

	probe := page.Probe()
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		IncludeInactive: includeInactive,
		Offset:          probe.Skip,
		Limit:           probe.Limit,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildPageInfo(items, page)
	resp := domain.ListResponse{PageInfo: pageInfo, Packages: items}
	if s.cache != nil {
		s.cache.SetList(includeInactive, page.Skip, page.Limit, resp)
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Package, error) {
	packageID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.Lookup(ctx, packageID)
}

func (s *Service) Lookup(ctx context.Context, id snowflake.ID) (*domain.Package, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetPackage(id.String()); ok {
			return &cached, nil
		}
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	if s.cache != nil {
		s.cache.SetPackage(*item)
	}
	return item, nil
}

func (s *Service) Create(ctx context.Context, caller authdomain.Caller, req domain.CreateRequest) (*domain.Package, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	speed := strings.TrimSpace(req.Speed)
	if speed == "" {
		return nil, domain.ErrInvalidSpeed
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = slug.Make(name)
	}
	if !slug.IsSlug(code) {
		return nil, domain.ErrInvalidCode
	}
	if req.Price.IsNegative() {
		return nil, domain.ErrInvalidPrice
	}
	setupFee := decimal.Zero
	if req.SetupFee != nil {
		if req.SetupFee.IsNegative() {
			return nil, domain.ErrInvalidPrice
		}
		setupFee = *req.SetupFee
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	now := s.clock.Now()
	pkg := &domain.Package{
		ID:          s.genID.Generate(),
		Code:        code,
		Name:        name,
		Description: trimmedOrNil(req.Description),
		Speed:       speed,
		Price:       req.Price,
		SetupFee:    setupFee,
		Features:    datatypes.NewJSONType(cleanFeatures(req.Features)),
		IsActive:    active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrCodeExists
		}
		if err := s.repo.Create(ctx, tx, pkg); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrCodeExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate()
	s.audit(ctx, caller, "package.create", pkg.ID, map[string]any{"code": pkg.Code})
	return pkg, nil
}

func (s *Service) Update(ctx context.Context, caller authdomain.Caller, id string, req domain.UpdateRequest) (*domain.Package, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return nil, err
	}
	packageID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var item *domain.Package
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err = s.repo.FindByID(ctx, tx, packageID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return domain.ErrInvalidName
			}
			item.Name = name
		}
		if req.Description != nil {
			item.Description = trimmedOrNil(req.Description)
		}
		if req.Speed != nil {
			speed := strings.TrimSpace(*req.Speed)
			if speed == "" {
				return domain.ErrInvalidSpeed
			}
			item.Speed = speed
		}
		if req.Price != nil {
			if req.Price.IsNegative() {
				return domain.ErrInvalidPrice
			}
			item.Price = *req.Price
		}
		if req.SetupFee != nil {
			if req.SetupFee.IsNegative() {
				return domain.ErrInvalidPrice
			}
			item.SetupFee = *req.SetupFee
		}
		if req.Features != nil {
			item.Features = datatypes.NewJSONType(cleanFeatures(req.Features))
		}
		if req.IsActive != nil {
			item.IsActive = *req.IsActive
		}

		item.UpdatedAt = s.clock.Now()
		return s.repo.Update(ctx, tx, item)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate()
	s.audit(ctx, caller, "package.update", item.ID, nil)
	return item, nil
}

func (s *Service) Deactivate(ctx context.Context, caller authdomain.Caller, id string) (*domain.Package, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return nil, err
	}
	packageID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var item *domain.Package
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err = s.repo.FindByID(ctx, tx, packageID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		item.IsActive = false
		item.UpdatedAt = s.clock.Now()
		return s.repo.Update(ctx, tx, item)
	})
	if err != nil {
		return nil, err
	}

	s.invalidate()
	s.audit(ctx, caller, "package.deactivate", item.ID, nil)
	return item, nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

func (s *Service) audit(ctx context.Context, caller authdomain.Caller, action string, target snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	actorID := caller.Subject()
	targetID := target.String()
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &actorID, action, "package", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func cleanFeatures(features []string) []string {
	cleaned := lo.Uniq(lo.FilterMap(features, func(f string, _ int) (string, bool) {
		f = strings.TrimSpace(f)
		return f, f != ""
	}))
	if cleaned == nil {
		return []string{}
	}
	return cleaned
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
