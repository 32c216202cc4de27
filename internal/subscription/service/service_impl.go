package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	catalogdomain "github.com/smallbiznis/sekarnet/internal/catalog/domain"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/sekarnet/internal/subscription/domain"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	repo     subscriptiondomain.Repository
	userRepo authdomain.Repository
	authz    authorization.Service

	catalogsvc catalogdomain.Service
	auditSvc   auditdomain.Service
	metrics    *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     subscriptiondomain.Repository
	UserRepo authdomain.Repository
	Authz    authorization.Service

	CatalogSvc catalogdomain.Service
	AuditSvc   auditdomain.Service `optional:"true"`
	Metrics    *metrics.Metrics    `optional:"true"`
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		authz:    p.Authz,

		catalogsvc: p.CatalogSvc,
		auditSvc:   p.AuditSvc,
		metrics:    p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, caller authdomain.Caller, req subscriptiondomain.CreateSubscriptionRequest) (*subscriptiondomain.Subscription, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return nil, err
	}

	userID, err := s.parseID(req.UserID, subscriptiondomain.ErrInvalidUser)
	if err != nil {
		return nil, err
	}
	packageID, err := s.parseID(req.PackageID, subscriptiondomain.ErrInvalidPackage)
	if err != nil {
		return nil, err
	}

	status := subscriptiondomain.SubscriptionStatusPending
	if strings.TrimSpace(req.Status) != "" {
		status, err = subscriptiondomain.ParseStatus(req.Status)
		if err != nil {
			return nil, err
		}
	}

	cycle := subscriptiondomain.BillingCycleMonthly
	if strings.TrimSpace(req.BillingCycle) != "" {
		cycle, err = subscriptiondomain.ParseBillingCycle(req.BillingCycle)
		if err != nil {
			return nil, err
		}
	}

	billingDay := subscriptiondomain.MinBillingDay
	if req.BillingDay != nil {
		billingDay = *req.BillingDay
	}
	if !subscriptiondomain.ValidBillingDay(billingDay) {
		return nil, subscriptiondomain.ErrInvalidBillingDay
	}

	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return nil, subscriptiondomain.ErrInvalidPeriod
	}

	var nextPaymentDate *time.Time
	if req.StartDate != nil {
		next, err := subscriptiondomain.NextPaymentDate(*req.StartDate, cycle, billingDay)
		if err != nil {
			return nil, err
		}
		nextPaymentDate = &next
	}

	autoRenew := true
	if req.AutoRenew != nil {
		autoRenew = *req.AutoRenew
	}

	if _, err := s.catalogsvc.Lookup(ctx, packageID); err != nil {
		if errors.Is(err, catalogdomain.ErrNotFound) {
			return nil, subscriptiondomain.ErrPackageNotFound
		}
		return nil, err
	}

	now := s.clock.Now()
	subscription := &subscriptiondomain.Subscription{
		ID:              s.genID.Generate(),
		UserID:          userID,
		PackageID:       packageID,
		Status:          status,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		AutoRenew:       autoRenew,
		IPAddress:       trimmedOrNil(req.IPAddress),
		MACAddress:      trimmedOrNil(req.MACAddress),
		BillingCycle:    cycle,
		BillingDay:      billingDay,
		NextPaymentDate: nextPaymentDate,
		Notes:           trimmedOrNil(req.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return subscriptiondomain.ErrUserNotFound
		}
		return s.repo.Insert(ctx, tx, subscription)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, caller, "create", subscription)
	return subscription, nil
}

func (s *Service) Update(ctx context.Context, caller authdomain.Caller, id string, req subscriptiondomain.UpdateSubscriptionRequest) (*subscriptiondomain.Subscription, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return nil, err
	}
	subscriptionID, err := s.parseID(id, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}

	var status *subscriptiondomain.SubscriptionStatus
	if req.Status != nil {
		parsed, err := subscriptiondomain.ParseStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		status = &parsed
	}
	var cycle *subscriptiondomain.BillingCycle
	if req.BillingCycle != nil {
		parsed, err := subscriptiondomain.ParseBillingCycle(*req.BillingCycle)
		if err != nil {
			return nil, err
		}
		cycle = &parsed
	}
	if req.BillingDay != nil && !subscriptiondomain.ValidBillingDay(*req.BillingDay) {
		return nil, subscriptiondomain.ErrInvalidBillingDay
	}

	updated, err := s.mutate(ctx, subscriptionID, func(sub *subscriptiondomain.Subscription) error {
		if status != nil {
			sub.Status = *status
		}
		if req.StartDate != nil {
			sub.StartDate = req.StartDate
		}
		if req.EndDate != nil {
			sub.EndDate = req.EndDate
		}
		if req.AutoRenew != nil {
			sub.AutoRenew = *req.AutoRenew
		}
		if req.IPAddress != nil {
			sub.IPAddress = trimmedOrNil(req.IPAddress)
		}
		if req.MACAddress != nil {
			sub.MACAddress = trimmedOrNil(req.MACAddress)
		}
		if cycle != nil {
			sub.BillingCycle = *cycle
		}
		if req.BillingDay != nil {
			sub.BillingDay = *req.BillingDay
		}
		if req.LastPaymentDate != nil {
			sub.LastPaymentDate = req.LastPaymentDate
		}
		if req.NextPaymentDate != nil {
			sub.NextPaymentDate = req.NextPaymentDate
		}
		if req.Notes != nil {
			sub.Notes = trimmedOrNil(req.Notes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, caller, "update", updated)
	return updated, nil
}

// Suspend moves any subscription to suspended regardless of its current status.
func (s *Service) Suspend(ctx context.Context, caller authdomain.Caller, id string) (*subscriptiondomain.Subscription, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return nil, err
	}
	subscriptionID, err := s.parseID(id, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, subscriptionID, func(sub *subscriptiondomain.Subscription) error {
		sub.Status = subscriptiondomain.SubscriptionStatusSuspended
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, caller, "suspend", updated)
	return updated, nil
}

// Activate marks the subscription active and stamps a missing start date with now.
// next_payment_date is left as stored.
func (s *Service) Activate(ctx context.Context, caller authdomain.Caller, id string) (*subscriptiondomain.Subscription, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return nil, err
	}
	subscriptionID, err := s.parseID(id, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, subscriptionID, func(sub *subscriptiondomain.Subscription) error {
		sub.Status = subscriptiondomain.SubscriptionStatusActive
		if sub.StartDate == nil {
			now := s.clock.Now()
			sub.StartDate = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, caller, "activate", updated)
	return updated, nil
}

func (s *Service) Cancel(ctx context.Context, caller authdomain.Caller, id string) (*subscriptiondomain.Subscription, error) {
	subscriptionID, err := s.parseID(id, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}
	current, err := s.find(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, caller, current.UserID, authorization.SelfOrAdmin); err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, subscriptionID, func(sub *subscriptiondomain.Subscription) error {
		sub.Status = subscriptiondomain.SubscriptionStatusCancelled
		sub.AutoRenew = false
		if sub.EndDate == nil && sub.NextPaymentDate != nil {
			end := *sub.NextPaymentDate
			sub.EndDate = &end
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, caller, "cancel", updated)
	return updated, nil
}

func (s *Service) Get(ctx context.Context, caller authdomain.Caller, id string) (*subscriptiondomain.Subscription, error) {
	subscriptionID, err := s.parseID(id, subscriptiondomain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}
	item, err := s.find(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, caller, item.UserID, authorization.SelfOrAdmin); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) ListMine(ctx context.Context, caller authdomain.Caller, req subscriptiondomain.ListSubscriptionRequest) (subscriptiondomain.ListSubscriptionResponse, error) {
	if err := s.authz.RequireActive(ctx, caller); err != nil {
		return subscriptiondomain.ListSubscriptionResponse{}, err
	}
	userID := caller.ID
	return s.list(ctx, &userID, req)
}

func (s *Service) ListAll(ctx context.Context, caller authdomain.Caller, req subscriptiondomain.ListSubscriptionRequest) (subscriptiondomain.ListSubscriptionResponse, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return subscriptiondomain.ListSubscriptionResponse{}, err
	}
	var userID *snowflake.ID
	if strings.TrimSpace(req.UserID) != "" {
		parsed, err := s.parseID(req.UserID, subscriptiondomain.ErrInvalidUser)
		if err != nil {
			return subscriptiondomain.ListSubscriptionResponse{}, err
		}
		userID = &parsed
	}
	return s.list(ctx, userID, req)
}

func (s *Service) list(ctx context.Context, userID *snowflake.ID, req subscriptiondomain.ListSubscriptionRequest) (subscriptiondomain.ListSubscriptionResponse, error) {
	filter := subscriptiondomain.ListFilter{UserID: userID}
	if strings.TrimSpace(req.Status) != "" {
		status, err := subscriptiondomain.ParseStatus(req.Status)
		if err != nil {
			return subscriptiondomain.ListSubscriptionResponse{}, err
		}
		filter.Status = status
	}

	probe := req.Pagination.Probe()
	filter.Offset = probe.Skip
	filter.Limit = probe.Limit

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return subscriptiondomain.ListSubscriptionResponse{}, err
	}

	items, pageInfo := pagination.BuildPageInfo(items, req.Pagination)
	return subscriptiondomain.ListSubscriptionResponse{PageInfo: pageInfo, Subscriptions: items}, nil
}

// mutate applies fn to the locked row and persists it in one transaction.
func (s *Service) mutate(ctx context.Context, id snowflake.ID, fn func(sub *subscriptiondomain.Subscription) error) (*subscriptiondomain.Subscription, error) {
	var updated *subscriptiondomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		if err := fn(sub); err != nil {
			return err
		}
		sub.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}
		updated = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) find(ctx context.Context, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return item, nil
}

func (s *Service) recordTransition(ctx context.Context, caller authdomain.Caller, action string, sub *subscriptiondomain.Subscription) {
	s.metrics.RecordSubscriptionTransition(ctx, action, string(sub.Status))
	s.log.Info("subscription "+action,
		zap.String("subscription_id", sub.ID.String()),
		zap.String("status", string(sub.Status)),
		zap.String("actor_id", caller.Subject()),
	)

	if s.auditSvc == nil {
		return
	}
	actorID := caller.Subject()
	targetID := sub.ID.String()
	metadata := map[string]any{
		"status":     string(sub.Status),
		"user_id":    sub.UserID.String(),
		"auto_renew": sub.AutoRenew,
	}
	if sub.NextPaymentDate != nil {
		metadata["next_payment_date"] = sub.NextPaymentDate.Format(time.RFC3339)
	}
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &actorID, "subscription."+action, "subscription", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) parseID(value string, invalidErr error) (snowflake.ID, error) {
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
