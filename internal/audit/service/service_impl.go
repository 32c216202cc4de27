package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	"github.com/smallbiznis/sekarnet/internal/audit/masking"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/internal/reqctx"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
	Authz authorization.Service
}

// Service writes the portal activity log. Writes are best effort from the
// caller's point of view: lifecycle services log and ignore a failed entry.
type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
	authz authorization.Service
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		authz: p.Authz,
	}
}

func (s *Service) AuditLog(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	entry, err := s.newEntry(ctx, actorType, actorID, action, targetType, targetID)
	if err != nil {
		return err
	}

	details := masking.Redact(metadata)
	if requestID := reqctx.RequestIDFromContext(ctx); requestID != "" {
		if details == nil {
			details = map[string]any{}
		}
		details["request_id"] = requestID
	}
	entry.Metadata = datatypes.JSONMap(details)

	if err := s.repo.Insert(ctx, s.db, entry); err != nil {
		s.log.Warn("activity entry not stored",
			zap.String("action", entry.Action),
			zap.String("target_type", entry.TargetType),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (s *Service) newEntry(ctx context.Context, actorType string, actorID *string, action string, targetType string, targetID *string) (*auditdomain.AuditLog, error) {
	action = strings.TrimSpace(action)
	if action == "" {
		return nil, auditdomain.ErrInvalidAction
	}
	targetType = strings.TrimSpace(targetType)
	if targetType == "" {
		targetType = "unknown"
	}

	actorType = strings.TrimSpace(actorType)
	if actorType == "" {
		ctxType, ctxID := reqctx.ActorFromContext(ctx)
		actorType = ctxType
		if trimmedOrNil(actorID) == nil && ctxID != "" {
			actorID = &ctxID
		}
	}
	if actorType == "" {
		actorType = string(auditdomain.ActorTypeSystem)
	}

	entry := &auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  actorType,
		ActorID:    trimmedOrNil(actorID),
		Action:     action,
		TargetType: targetType,
		TargetID:   trimmedOrNil(targetID),
		CreatedAt:  s.clock.Now(),
	}
	if ip := reqctx.IPAddressFromContext(ctx); ip != "" {
		entry.IPAddress = &ip
	}
	if ua := reqctx.UserAgentFromContext(ctx); ua != "" {
		entry.UserAgent = &ua
	}
	return entry, nil
}

func (s *Service) List(ctx context.Context, caller authdomain.Caller, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}
	if req.StartAt != nil && req.EndAt != nil && req.EndAt.Before(*req.StartAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	window := req.Pagination.Probe()
	rows, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		Action:     strings.TrimSpace(req.Action),
		TargetType: strings.TrimSpace(req.TargetType),
		TargetID:   strings.TrimSpace(req.TargetID),
		ActorType:  strings.TrimSpace(req.ActorType),
		ActorID:    strings.TrimSpace(req.ActorID),
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Offset:     window.Skip,
		Limit:      window.Limit,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	rows, info := pagination.BuildPageInfo(rows, req.Pagination)
	return auditdomain.ListAuditLogResponse{PageInfo: info, AuditLogs: rows}, nil
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
