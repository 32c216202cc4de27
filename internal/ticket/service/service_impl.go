package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	"github.com/smallbiznis/sekarnet/internal/clock"
	ticketdomain "github.com/smallbiznis/sekarnet/internal/ticket/domain"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	errNotAssignee = fmt.Errorf("%w: ticket is assigned to another technician", authorization.ErrForbidden)
	errStaffField  = fmt.Errorf("%w: only staff may change status or priority", authorization.ErrForbidden)
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	repo     ticketdomain.Repository
	userRepo authdomain.Repository
	authz    authorization.Service

	auditSvc auditdomain.Service
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     ticketdomain.Repository
	UserRepo authdomain.Repository
	Authz    authorization.Service

	AuditSvc auditdomain.Service `optional:"true"`
}

func NewService(p ServiceParam) ticketdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("ticket.service"),

		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		userRepo: p.UserRepo,
		authz:    p.Authz,

		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, caller authdomain.Caller, req ticketdomain.CreateRequest) (*ticketdomain.Ticket, error) {
	if err := s.authz.RequireActive(ctx, caller); err != nil {
		return nil, err
	}

	userID := caller.ID
	if strings.TrimSpace(req.UserID) != "" {
		parsed, err := parseID(req.UserID, ticketdomain.ErrInvalidUser)
		if err != nil {
			return nil, err
		}
		userID = parsed
	}
	if err := s.authz.Authorize(ctx, caller, userID, authorization.SelfOrAdmin); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, ticketdomain.ErrInvalidTitle
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, ticketdomain.ErrInvalidDescription
	}
	category := ticketdomain.CategoryTechnical
	if strings.TrimSpace(req.Category) != "" {
		parsed, err := ticketdomain.ParseCategory(req.Category)
		if err != nil {
			return nil, err
		}
		category = parsed
	}
	priority := ticketdomain.PriorityMedium
	if strings.TrimSpace(req.Priority) != "" {
		parsed, err := ticketdomain.ParsePriority(req.Priority)
		if err != nil {
			return nil, err
		}
		priority = parsed
	}

	now := s.clock.Now()
	item := &ticketdomain.Ticket{
		ID:          s.genID.Generate(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Category:    category,
		Status:      ticketdomain.StatusOpen,
		Priority:    priority,
		OpenedAt:    now,
		Attachments: datatypes.NewJSONType(cleanList(req.Attachments)),
		Notes:       trimmedOrNil(req.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.userRepo.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ticketdomain.ErrUserNotFound
		}
		return s.repo.Insert(ctx, tx, item)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, caller, "create", item)
	return item, nil
}

// Get returns the ticket with its replies. It is open to the owner, admins
// and the assigned technician.
func (s *Service) Get(ctx context.Context, caller authdomain.Caller, id string) (*ticketdomain.Ticket, error) {
	ticketID, err := parseID(id, ticketdomain.ErrInvalidTicket)
	if err != nil {
		return nil, err
	}
	item, err := s.find(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.access(ctx, caller, item); err != nil {
		return nil, err
	}
	replies, err := s.repo.ListReplies(ctx, s.db, item.ID)
	if err != nil {
		return nil, err
	}
	item.Replies = replies
	return item, nil
}

// List scopes by role: admins see every ticket, technicians their
// assignments and customers their own.
func (s *Service) List(ctx context.Context, caller authdomain.Caller, req ticketdomain.ListRequest) (ticketdomain.ListResponse, error) {
	if err := s.authz.RequireActive(ctx, caller); err != nil {
		return ticketdomain.ListResponse{}, err
	}

	filter := ticketdomain.ListFilter{}
	switch {
	case caller.IsAdmin():
		if strings.TrimSpace(req.UserID) != "" {
			userID, err := parseID(req.UserID, ticketdomain.ErrInvalidUser)
			if err != nil {
				return ticketdomain.ListResponse{}, err
			}
			filter.UserID = &userID
		}
		if strings.TrimSpace(req.TechnicianID) != "" {
			technicianID, err := parseID(req.TechnicianID, ticketdomain.ErrInvalidTechnician)
			if err != nil {
				return ticketdomain.ListResponse{}, err
			}
			filter.TechnicianID = &technicianID
		}
	case caller.IsTechnician():
		technicianID := caller.ID
		filter.TechnicianID = &technicianID
	default:
		userID := caller.ID
		filter.UserID = &userID
	}

	if strings.TrimSpace(req.Status) != "" {
		status, err := ticketdomain.ParseStatus(req.Status)
		if err != nil {
			return ticketdomain.ListResponse{}, err
		}
		filter.Status = status
	}
	if strings.TrimSpace(req.Priority) != "" {
		priority, err := ticketdomain.ParsePriority(req.Priority)
		if err != nil {
			return ticketdomain.ListResponse{}, err
		}
		filter.Priority = priority
	}
	if strings.TrimSpace(req.Category) != "" {
		category, err := ticketdomain.ParseCategory(req.Category)
		if err != nil {
			return ticketdomain.ListResponse{}, err
		}
		filter.Category = category
	}

	page := req.Pagination.Probe()
	filter.Offset = page.Skip
	filter.Limit = page.Limit

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return ticketdomain.ListResponse{}, err
	}

	items, pageInfo := pagination.BuildPageInfo(items, req.Pagination)
	return ticketdomain.ListResponse{PageInfo: pageInfo, Tickets: items}, nil
}

// Update patches a ticket. Participants may edit its content; status and
// priority belong to admins and the assigned technician.
func (s *Service) Update(ctx context.Context, caller authdomain.Caller, id string, req ticketdomain.UpdateRequest) (*ticketdomain.Ticket, error) {
	ticketID, err := parseID(id, ticketdomain.ErrInvalidTicket)
	if err != nil {
		return nil, err
	}

	var (
		title       *string
		description *string
		category    *ticketdomain.Category
		priority    *ticketdomain.Priority
		status      *ticketdomain.Status
	)
	if req.Title != nil {
		v := strings.TrimSpace(*req.Title)
		if v == "" {
			return nil, ticketdomain.ErrInvalidTitle
		}
		title = &v
	}
	if req.Description != nil {
		v := strings.TrimSpace(*req.Description)
		if v == "" {
			return nil, ticketdomain.ErrInvalidDescription
		}
		description = &v
	}
	if req.Category != nil {
		v, err := ticketdomain.ParseCategory(*req.Category)
		if err != nil {
			return nil, err
		}
		category = &v
	}
	if req.Priority != nil {
		v, err := ticketdomain.ParsePriority(*req.Priority)
		if err != nil {
			return nil, err
		}
		priority = &v
	}
	if req.Status != nil {
		v, err := ticketdomain.ParseStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		status = &v
	}

	current, err := s.find(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.access(ctx, caller, current); err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, ticketID, func(_ *gorm.DB, item *ticketdomain.Ticket) error {
		if (status != nil || priority != nil) && !s.isStaff(caller, item) {
			return errStaffField
		}
		if item.Status == ticketdomain.StatusClosed {
			return fmt.Errorf("%w: ticket is closed", ticketdomain.ErrIllegalTransition)
		}
		if status != nil && *status != item.Status {
			if err := s.transition(item, *status); err != nil {
				return err
			}
		}
		if title != nil {
			item.Title = *title
		}
		if description != nil {
			item.Description = *description
		}
		if category != nil {
			item.Category = *category
		}
		if priority != nil {
			item.Priority = *priority
		}
		if req.Attachments != nil {
			item.Attachments = datatypes.NewJSONType(cleanList(*req.Attachments))
		}
		if req.Notes != nil {
			item.Notes = trimmedOrNil(req.Notes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, caller, "update", updated)
	return updated, nil
}

// Assign hands the ticket to an active technician. An open ticket moves to
// in_progress; an in_progress ticket may be reassigned.
func (s *Service) Assign(ctx context.Context, caller authdomain.Caller, id string, req ticketdomain.AssignRequest) (*ticketdomain.Ticket, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return nil, err
	}
	ticketID, err := parseID(id, ticketdomain.ErrInvalidTicket)
	if err != nil {
		return nil, err
	}
	technicianID, err := parseID(req.TechnicianID, ticketdomain.ErrInvalidTechnician)
	if err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, ticketID, func(tx *gorm.DB, item *ticketdomain.Ticket) error {
		if item.Status != ticketdomain.StatusOpen && item.Status != ticketdomain.StatusInProgress {
			return fmt.Errorf("%w: cannot assign a %s ticket", ticketdomain.ErrIllegalTransition, item.Status)
		}
		technician, err := s.userRepo.FindByID(ctx, tx, technicianID)
		if err != nil {
			return err
		}
		if technician == nil || technician.Role != authdomain.RoleTechnician || !technician.IsActive {
			return ticketdomain.ErrInvalidTechnician
		}
		now := s.clock.Now()
		item.TechnicianID = &technicianID
		item.AssignedAt = &now
		item.Status = ticketdomain.StatusInProgress
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, caller, "assign", updated)
	return updated, nil
}

func (s *Service) Resolve(ctx context.Context, caller authdomain.Caller, id string, req ticketdomain.ResolveRequest) (*ticketdomain.Ticket, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOrTechnician); err != nil {
		return nil, err
	}
	ticketID, err := parseID(id, ticketdomain.ErrInvalidTicket)
	if err != nil {
		return nil, err
	}
	resolution := strings.TrimSpace(req.Resolution)
	if resolution == "" {
		return nil, ticketdomain.ErrInvalidResolution
	}

	updated, err := s.mutate(ctx, ticketID, func(_ *gorm.DB, item *ticketdomain.Ticket) error {
		if !caller.IsAdmin() && !isAssignee(item, caller.ID) {
			return errNotAssignee
		}
		if err := s.transition(item, ticketdomain.StatusResolved); err != nil {
			return err
		}
		item.Resolution = &resolution
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, caller, "resolve", updated)
	return updated, nil
}

func (s *Service) Close(ctx context.Context, caller authdomain.Caller, id string) (*ticketdomain.Ticket, error) {
	ticketID, err := parseID(id, ticketdomain.ErrInvalidTicket)
	if err != nil {
		return nil, err
	}

	current, err := s.find(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, caller, current.UserID, authorization.SelfOrAdmin); err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, ticketID, func(_ *gorm.DB, item *ticketdomain.Ticket) error {
		return s.transition(item, ticketdomain.StatusClosed)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, caller, "close", updated)
	return updated, nil
}

func (s *Service) AddReply(ctx context.Context, caller authdomain.Caller, id string, req ticketdomain.ReplyRequest) (*ticketdomain.Reply, error) {
	ticketID, err := parseID(id, ticketdomain.ErrInvalidTicket)
	if err != nil {
		return nil, err
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ticketdomain.ErrInvalidMessage
	}

	current, err := s.find(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.access(ctx, caller, current); err != nil {
		return nil, err
	}

	var reply *ticketdomain.Reply
	updated, err := s.mutate(ctx, ticketID, func(tx *gorm.DB, item *ticketdomain.Ticket) error {
		if item.Status == ticketdomain.StatusClosed {
			return fmt.Errorf("%w: ticket is closed", ticketdomain.ErrIllegalTransition)
		}
		now := s.clock.Now()
		reply = &ticketdomain.Reply{
			ID:          s.genID.Generate(),
			TicketID:    item.ID,
			UserID:      caller.ID,
			Message:     message,
			Attachments: datatypes.NewJSONType(cleanList(req.Attachments)),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return s.repo.InsertReply(ctx, tx, reply)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, caller, "reply", updated)
	return reply, nil
}

func (s *Service) ListReplies(ctx context.Context, caller authdomain.Caller, id string) ([]ticketdomain.Reply, error) {
	ticketID, err := parseID(id, ticketdomain.ErrInvalidTicket)
	if err != nil {
		return nil, err
	}
	item, err := s.find(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.access(ctx, caller, item); err != nil {
		return nil, err
	}
	return s.repo.ListReplies(ctx, s.db, item.ID)
}

// access admits the owner, admins and the assigned technician.
func (s *Service) access(ctx context.Context, caller authdomain.Caller, item *ticketdomain.Ticket) error {
	if caller.IsTechnician() && isAssignee(item, caller.ID) {
		return s.authz.RequireActive(ctx, caller)
	}
	return s.authz.Authorize(ctx, caller, item.UserID, authorization.SelfOrAdmin)
}

func (s *Service) isStaff(caller authdomain.Caller, item *ticketdomain.Ticket) bool {
	return caller.IsAdmin() || (caller.IsTechnician() && isAssignee(item, caller.ID))
}

// transition moves item to status and stamps the matching timestamp.
func (s *Service) transition(item *ticketdomain.Ticket, to ticketdomain.Status) error {
	if !ticketdomain.CanTransition(item.Status, to) {
		return fmt.Errorf("%w: %s to %s", ticketdomain.ErrIllegalTransition, item.Status, to)
	}
	now := s.clock.Now()
	switch to {
	case ticketdomain.StatusResolved:
		item.ResolvedAt = &now
	case ticketdomain.StatusClosed:
		item.ClosedAt = &now
	}
	item.Status = to
	return nil
}

// mutate locks the row and persists fn's changes.
func (s *Service) mutate(ctx context.Context, id snowflake.ID, fn func(tx *gorm.DB, item *ticketdomain.Ticket) error) (*ticketdomain.Ticket, error) {
	var updated *ticketdomain.Ticket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return ticketdomain.ErrNotFound
		}
		if err := fn(tx, item); err != nil {
			return err
		}
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

func (s *Service) find(ctx context.Context, id snowflake.ID) (*ticketdomain.Ticket, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ticketdomain.ErrNotFound
	}
	return item, nil
}

func (s *Service) audit(ctx context.Context, caller authdomain.Caller, action string, item *ticketdomain.Ticket) {
	s.log.Info("ticket "+action,
		zap.String("ticket_id", item.ID.String()),
		zap.String("status", string(item.Status)),
		zap.String("actor_id", caller.Subject()),
	)
	if s.auditSvc == nil {
		return
	}

	actorID := caller.Subject()
	targetID := item.ID.String()
	metadata := map[string]any{
		"status":   string(item.Status),
		"priority": string(item.Priority),
		"user_id":  item.UserID.String(),
	}
	if item.TechnicianID != nil {
		metadata["technician_id"] = item.TechnicianID.String()
	}
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &actorID, "ticket."+action, "support_ticket", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func isAssignee(item *ticketdomain.Ticket, callerID snowflake.ID) bool {
	return item.TechnicianID != nil && *item.TechnicianID == callerID
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
