package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	catalogdomain "github.com/smallbiznis/sekarnet/internal/catalog/domain"
	"github.com/smallbiznis/sekarnet/internal/clock"
	installationdomain "github.com/smallbiznis/sekarnet/internal/installation/domain"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var errNotAssignee = fmt.Errorf("%w: installation is assigned to another technician", authorization.ErrForbidden)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	repo     installationdomain.Repository
	userRepo authdomain.Repository
	authz    authorization.Service

	catalogsvc catalogdomain.Service
	auditSvc   auditdomain.Service
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     installationdomain.Repository
	UserRepo authdomain.Repository
	Authz    authorization.Service

	CatalogSvc catalogdomain.Service
	AuditSvc   auditdomain.Service `optional:"true"`
}

func NewService(p ServiceParam) installationdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("installation.service"),

		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		authz:    p.Authz,

		catalogsvc: p.CatalogSvc,
		auditSvc:   p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, caller authdomain.Caller, req installationdomain.CreateRequest) (*installationdomain.InstallationRequest, error) {
	if err := s.authz.RequireActive(ctx, caller); err != nil {
		return nil, err
	}

	userID := caller.ID
	if strings.TrimSpace(req.UserID) != "" {
		parsed, err := parseID(req.UserID, installationdomain.ErrInvalidUser)
		if err != nil {
			return nil, err
		}
		userID = parsed
	}
	if err := s.authz.Authorize(ctx, caller, userID, authorization.SelfOrAdmin); err != nil {
		return nil, err
	}

	packageID, err := parseID(req.PackageID, installationdomain.ErrInvalidPackage)
	if err != nil {
		return nil, err
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return nil, installationdomain.ErrInvalidAddress
	}
	if req.RequestedDate.IsZero() {
		return nil, installationdomain.ErrInvalidRequestedDate
	}
	if err := validateCoordinates(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}

	pkg, err := s.catalogsvc.Lookup(ctx, packageID)
	if err != nil {
		if errors.Is(err, catalogdomain.ErrNotFound) {
			return nil, installationdomain.ErrPackageNotFound
		}
		return nil, err
	}
	if !pkg.IsActive {
		return nil, installationdomain.ErrPackageInactive
	}

	now := s.clock.Now()
	item := &installationdomain.InstallationRequest{
		ID:                s.genID.Generate(),
		UserID:            userID,
		PackageID:         packageID,
		RequestedDate:     req.RequestedDate,
		Status:            installationdomain.StatusPending,
		Address:           address,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
		LocationNotes:     trimmedOrNil(req.LocationNotes),
		EquipmentNeeded:   datatypes.NewJSONType(cleanList(req.EquipmentNeeded)),
		InstallationNotes: trimmedOrNil(req.InstallationNotes),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return installationdomain.ErrUserNotFound
		}
		return s.repo.Insert(ctx, tx, item)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, caller, "create", item)
	return item, nil
}

// Get is open to the owner, admins and the assigned technician.
func (s *Service) Get(ctx context.Context, caller authdomain.Caller, id string) (*installationdomain.InstallationRequest, error) {
	installationID, err := parseID(id, installationdomain.ErrInvalidInstallation)
	if err != nil {
		return nil, err
	}
	item, err := s.find(ctx, installationID)
	if err != nil {
		return nil, err
	}
	if caller.IsTechnician() && isAssignee(item, caller.ID) {
		if err := s.authz.RequireActive(ctx, caller); err != nil {
			return nil, err
		}
		return item, nil
	}
	if err := s.authz.Authorize(ctx, caller, item.UserID, authorization.SelfOrAdmin); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) ListMine(ctx context.Context, caller authdomain.Caller, req installationdomain.ListRequest) (installationdomain.ListResponse, error) {
	if err := s.authz.RequireActive(ctx, caller); err != nil {
		return installationdomain.ListResponse{}, err
	}
	userID := caller.ID
	return s.list(ctx, installationdomain.ListFilter{UserID: &userID}, req)
}

func (s *Service) ListAssigned(ctx context.Context, caller authdomain.Caller, req installationdomain.ListRequest) (installationdomain.ListResponse, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOrTechnician); err != nil {
		return installationdomain.ListResponse{}, err
	}
	technicianID := caller.ID
	return s.list(ctx, installationdomain.ListFilter{TechnicianID: &technicianID}, req)
}

func (s *Service) ListAll(ctx context.Context, caller authdomain.Caller, req installationdomain.ListRequest) (installationdomain.ListResponse, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOrTechnician); err != nil {
		return installationdomain.ListResponse{}, err
	}
	filter := installationdomain.ListFilter{}
	if strings.TrimSpace(req.UserID) != "" {
		userID, err := parseID(req.UserID, installationdomain.ErrInvalidUser)
		if err != nil {
			return installationdomain.ListResponse{}, err
		}
		filter.UserID = &userID
	}
	if strings.TrimSpace(req.TechnicianID) != "" {
		technicianID, err := parseID(req.TechnicianID, installationdomain.ErrInvalidTechnician)
		if err != nil {
			return installationdomain.ListResponse{}, err
		}
		filter.TechnicianID = &technicianID
	}
	return s.list(ctx, filter, req)
}

// Schedule assigns a technician and a visit date. A scheduled request may be
// rescheduled.
func (s *Service) Schedule(ctx context.Context, caller authdomain.Caller, id string, req installationdomain.ScheduleRequest) (*installationdomain.InstallationRequest, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return nil, err
	}
	installationID, err := parseID(id, installationdomain.ErrInvalidInstallation)
	if err != nil {
		return nil, err
	}
	technicianID, err := parseID(req.TechnicianID, installationdomain.ErrInvalidTechnician)
	if err != nil {
		return nil, err
	}
	if req.ScheduledDate.IsZero() {
		return nil, installationdomain.ErrInvalidScheduledDate
	}

	scheduled := req.ScheduledDate
	updated, err := s.mutate(ctx, installationID, installationdomain.StatusScheduled, func(tx *gorm.DB, item *installationdomain.InstallationRequest) error {
		technician, err := s.userRepo.FindByID(ctx, tx, technicianID)
		if err != nil {
			return err
		}
		if technician == nil || technician.Role != authdomain.RoleTechnician || !technician.IsActive {
			return installationdomain.ErrInvalidTechnician
		}
		item.TechnicianID = &technicianID
		item.ScheduledDate = &scheduled
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, caller, "schedule", updated)
	return updated, nil
}

func (s *Service) Start(ctx context.Context, caller authdomain.Caller, id string) (*installationdomain.InstallationRequest, error) {
	return s.work(ctx, caller, id, installationdomain.StatusInProgress, "start", nil)
}

func (s *Service) Complete(ctx context.Context, caller authdomain.Caller, id string, req installationdomain.CompleteRequest) (*installationdomain.InstallationRequest, error) {
	return s.work(ctx, caller, id, installationdomain.StatusCompleted, "complete", func(item *installationdomain.InstallationRequest) {
		now := s.clock.Now()
		item.CompletedDate = &now
		if req.CompletionNotes != nil {
			item.CompletionNotes = trimmedOrNil(req.CompletionNotes)
		}
		if req.CustomerSignature != nil {
			item.CustomerSignature = trimmedOrNil(req.CustomerSignature)
		}
	})
}

func (s *Service) Fail(ctx context.Context, caller authdomain.Caller, id string, req installationdomain.FailRequest) (*installationdomain.InstallationRequest, error) {
	notes := strings.TrimSpace(req.Notes)
	if notes == "" {
		return nil, installationdomain.ErrInvalidNotes
	}
	return s.work(ctx, caller, id, installationdomain.StatusFailed, "fail", func(item *installationdomain.InstallationRequest) {
		item.CompletionNotes = &notes
	})
}

func (s *Service) Cancel(ctx context.Context, caller authdomain.Caller, id string) (*installationdomain.InstallationRequest, error) {
	installationID, err := parseID(id, installationdomain.ErrInvalidInstallation)
	if err != nil {
		return nil, err
	}
	current, err := s.find(ctx, installationID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, caller, current.UserID, authorization.SelfOrAdmin); err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, installationID, installationdomain.StatusCancelled, nil)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, caller, "cancel", updated)
	return updated, nil
}

// work runs a field transition; technicians may only act on their own assignments.
func (s *Service) work(ctx context.Context, caller authdomain.Caller, id string, to installationdomain.Status, action string, apply func(item *installationdomain.InstallationRequest)) (*installationdomain.InstallationRequest, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOrTechnician); err != nil {
		return nil, err
	}
	installationID, err := parseID(id, installationdomain.ErrInvalidInstallation)
	if err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, installationID, to, func(_ *gorm.DB, item *installationdomain.InstallationRequest) error {
		if !caller.IsAdmin() && !isAssignee(item, caller.ID) {
			return errNotAssignee
		}
		if apply != nil {
			apply(item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, caller, action, updated)
	return updated, nil
}

// mutate locks the row, checks the transition to the target status and persists fn's changes.
func (s *Service) mutate(ctx context.Context, id snowflake.ID, to installationdomain.Status, fn func(tx *gorm.DB, item *installationdomain.InstallationRequest) error) (*installationdomain.InstallationRequest, error) {
	var updated *installationdomain.InstallationRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return installationdomain.ErrNotFound
		}
		if fn != nil {
			if err := fn(tx, item); err != nil {
				return err
			}
		}
		if !installationdomain.CanTransition(item.Status, to) {
			return fmt.Errorf("%w: %s to %s", installationdomain.ErrIllegalTransition, item.Status, to)
		}
		item.Status = to
		item.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) list(ctx context.Context, filter installationdomain.ListFilter, req installationdomain.ListRequest) (installationdomain.ListResponse, error) {
	if strings.TrimSpace(req.Status) != "" {
		status, err := installationdomain.ParseStatus(req.Status)
		if err != nil {
			return installationdomain.ListResponse{}, err
		}
		filter.Status = status
	}

	probe := req.Pagination.Probe()
	filter.Offset = probe.Skip
	filter.Limit = probe.Limit

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return installationdomain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildPageInfo(items, req.Pagination)
	return installationdomain.ListResponse{PageInfo: pageInfo, Installations: items}, nil
}

func (s *Service) find(ctx context.Context, id snowflake.ID) (*installationdomain.InstallationRequest, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, installationdomain.ErrNotFound
	}
	return item, nil
}

func (s *Service) audit(ctx context.Context, caller authdomain.Caller, action string, item *installationdomain.InstallationRequest) {
	s.log.Info("installation "+action,
		zap.String("installation_id", item.ID.String()),
		zap.String("status", string(item.Status)),
		zap.String("actor_id", caller.Subject()),
	)
	if s.auditSvc == nil {
		return
	}

	actorID := caller.Subject()
	targetID := item.ID.String()
	metadata := map[string]any{
		"status":  string(item.Status),
		"user_id": item.UserID.String(),
	}
	if item.TechnicianID != nil {
		metadata["technician_id"] = item.TechnicianID.String()
	}
	if item.ScheduledDate != nil {
		metadata["scheduled_date"] = item.ScheduledDate.Format(time.RFC3339)
	}
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &actorID, "installation."+action, "installation", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func isAssignee(item *installationdomain.InstallationRequest, callerID snowflake.ID) bool {
	return item.TechnicianID != nil && *item.TechnicianID == callerID
}

func validateCoordinates(lat, lng *float64) error {
	if (lat == nil) != (lng == nil) {
		return installationdomain.ErrInvalidCoordinates
	}
	if lat != nil && (*lat < -90 || *lat > 90 || *lng < -180 || *lng > 180) {
		return installationdomain.ErrInvalidCoordinates
	}
	return nil
}

func cleanList(values []string) []string {
	cleaned := lo.Uniq(lo.FilterMap(values, func(v string, _ int) (string, bool) {
		v = strings.TrimSpace(v)
		return v, v != ""
	}))
	if cleaned == nil {
		return []string{}
	}
	return cleaned
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
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
