package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/sekarnet/internal/audit/domain"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	billdomain "github.com/smallbiznis/sekarnet/internal/bill/domain"
	"github.com/smallbiznis/sekarnet/internal/bill/format"
	"github.com/smallbiznis/sekarnet/internal/clock"
	"github.com/smallbiznis/sekarnet/internal/config"
	"github.com/smallbiznis/sekarnet/internal/filestore"
	"github.com/smallbiznis/sekarnet/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/sekarnet/internal/subscription/domain"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	QuoteValidity   = 24 * time.Hour
	proofKeyPrefix  = "payment-proofs"
	proofTimeLayout = "20060102150405"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	repo     billdomain.Repository
	subRepo  subscriptiondomain.Repository
	userRepo authdomain.Repository
	authz    authorization.Service
	store    filestore.Store
	portal   *config.PortalConfigHolder

	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     billdomain.Repository
	SubRepo  subscriptiondomain.Repository
	UserRepo authdomain.Repository
	Authz    authorization.Service
	Store    filestore.Store
	Portal   *config.PortalConfigHolder

	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

func NewService(p ServiceParam) billdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("bill.service"),

		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		subRepo:  p.SubRepo,
		userRepo: p.UserRepo,
		authz:    p.Authz,
		store:    p.Store,
		portal:   p.Portal,

		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, caller authdomain.Caller, req billdomain.CreateBillRequest) (*billdomain.Bill, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return nil, err
	}

	subscriptionID, err := parseID(req.SubscriptionID, billdomain.ErrInvalidSubscription)
	if err != nil {
		return nil, err
	}
	userID, err := parseID(req.UserID, billdomain.ErrInvalidUser)
	if err != nil {
		return nil, err
	}
	if req.Amount == nil || req.TotalAmount == nil {
		return nil, billdomain.ErrInvalidAmount
	}
	if req.Amount.IsNegative() || req.Tax.IsNegative() || req.TotalAmount.IsNegative() {
		return nil, billdomain.ErrInvalidAmount
	}
	if req.DueDate.IsZero() {
		return nil, billdomain.ErrInvalidDueDate
	}

	status := billdomain.PaymentStatusPending
	if strings.TrimSpace(req.PaymentStatus) != "" {
		status, err = billdomain.ParsePaymentStatus(req.PaymentStatus)
		if err != nil {
			return nil, err
		}
	}
	method, err := parseMethodPtr(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	billDate := req.BillDate
	if billDate.IsZero() {
		billDate = now
	}

	bill := &billdomain.Bill{
		ID:             s.genID.Generate(),
		SubscriptionID: subscriptionID,
		UserID:         userID,
		Amount:         *req.Amount,
		Tax:            req.Tax,
		TotalAmount:    *req.TotalAmount,
		Description:    trimmedOrNil(req.Description),
		BillDate:       billDate,
		DueDate:        req.DueDate,
		PaymentStatus:  status,
		PaymentMethod:  method,
		Notes:          trimmedOrNil(req.Notes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.subRepo.FindByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return billdomain.ErrSubscriptionNotFound
		}
		user, err := s.userRepo.FindByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return billdomain.ErrUserNotFound
		}
		return s.repo.Insert(ctx, tx, bill)
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, caller, "create", bill, nil)
	return bill, nil
}

func (s *Service) Update(ctx context.Context, caller authdomain.Caller, id string, req billdomain.UpdateBillRequest) (*billdomain.Bill, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return nil, err
	}
	billID, err := parseID(id, billdomain.ErrInvalidBill)
	if err != nil {
		return nil, err
	}

	for _, amount := range []*decimal.Decimal{req.Amount, req.Tax, req.TotalAmount} {
		if amount != nil && amount.IsNegative() {
			return nil, billdomain.ErrInvalidAmount
		}
	}
	var status *billdomain.PaymentStatus
	if req.PaymentStatus != nil {
		parsed, err := billdomain.ParsePaymentStatus(*req.PaymentStatus)
		if err != nil {
			return nil, err
		}
		status = &parsed
	}
	method, err := parseMethodPtr(req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if req.DueDate != nil && req.DueDate.IsZero() {
		return nil, billdomain.ErrInvalidDueDate
	}

	updated, err := s.mutate(ctx, billID, func(bill *billdomain.Bill) error {
		if req.Amount != nil {
			bill.Amount = *req.Amount
		}
		if req.Tax != nil {
			bill.Tax = *req.Tax
		}
		if req.TotalAmount != nil {
			bill.TotalAmount = *req.TotalAmount
		}
		if req.Description != nil {
			bill.Description = trimmedOrNil(req.Description)
		}
		if req.BillDate != nil {
			bill.BillDate = *req.BillDate
		}
		if req.DueDate != nil {
			bill.DueDate = *req.DueDate
		}
		if status != nil {
			bill.PaymentStatus = *status
		}
		if method != nil {
			bill.PaymentMethod = method
		}
		if req.PaymentDate != nil {
			bill.PaymentDate = req.PaymentDate
		}
		if req.PaymentProof != nil {
			bill.PaymentProof = trimmedOrNil(req.PaymentProof)
		}
		if req.PaymentReference != nil {
			bill.PaymentReference = trimmedOrNil(req.PaymentReference)
		}
		if req.Notes != nil {
			bill.Notes = trimmedOrNil(req.Notes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, caller, "update", updated, nil)
	return updated, nil
}

// Pay records a payment reported by the owner or an admin. Any valid status is
// accepted as the new status.
func (s *Service) Pay(ctx context.Context, caller authdomain.Caller, id string, req billdomain.PayBillRequest) (*billdomain.Bill, error) {
	billID, err := parseID(id, billdomain.ErrInvalidBill)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, caller, billID); err != nil {
		return nil, err
	}
	status, err := billdomain.ParsePaymentStatus(req.PaymentStatus)
	if err != nil {
		return nil, err
	}
	method, err := billdomain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	paymentDate := req.PaymentDate
	updated, err := s.mutate(ctx, billID, func(bill *billdomain.Bill) error {
		bill.PaymentStatus = status
		bill.PaymentMethod = &method
		bill.PaymentDate = &paymentDate
		if proof := strings.TrimSpace(req.PaymentProof); proof != "" {
			bill.PaymentProof = &proof
		}
		if reference := strings.TrimSpace(req.PaymentReference); reference != "" {
			bill.PaymentReference = &reference
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, caller, "pay", updated, map[string]any{"payment_method": string(method)})
	return updated, nil
}

// UploadProof stores a proof file as-is and resets the bill to pending.
func (s *Service) UploadProof(ctx context.Context, caller authdomain.Caller, id string, upload billdomain.Upload) (*billdomain.Bill, error) {
	billID, err := parseID(id, billdomain.ErrInvalidBill)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, caller, billID); err != nil {
		return nil, err
	}
	if upload.Content == nil {
		return nil, billdomain.ErrEmptyFile
	}

	now := s.clock.Now()
	key := path.Join(proofKeyPrefix, fmt.Sprintf("payment_proof_%d_%d_%s%s",
		billID.Int64(), caller.ID.Int64(), now.Format(proofTimeLayout), safeExt(upload.Filename)))

	contentType := mediaType(upload.ContentType)
	if contentType == "" {
		contentType = octetStream
	}
	ref, err := s.store.Save(ctx, key, upload.Content, contentType)
	if err != nil {
		s.metrics.RecordProofUpload(ctx, "simple", "storage_failure")
		return nil, err
	}

	updated, err := s.mutate(ctx, billID, func(bill *billdomain.Bill) error {
		bill.PaymentProof = &ref
		bill.PaymentStatus = billdomain.PaymentStatusPending
		return nil
	})
	if err != nil {
		s.discardProof(ctx, ref)
		return nil, err
	}

	s.metrics.RecordProofUpload(ctx, "simple", "accepted")
	s.record(ctx, caller, "proof_uploaded", updated, map[string]any{"content_type": contentType})
	return updated, nil
}

// SubmitQRISProof validates the proof, stores it and moves the bill to
// pending_verification with payment_date stamped to now.
func (s *Service) SubmitQRISProof(ctx context.Context, caller authdomain.Caller, id string, upload billdomain.Upload) (*billdomain.Bill, error) {
	billID, err := parseID(id, billdomain.ErrInvalidBill)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(ctx, caller, billID); err != nil {
		return nil, err
	}

	proof, err := checkQRISProof(upload, s.maxProofBytes())
	if err != nil {
		s.metrics.RecordProofUpload(ctx, "qris", "rejected")
		s.log.Info("qris proof rejected",
			zap.String("bill_id", billID.String()),
			zap.String("declared_type", upload.ContentType),
			zap.Error(err),
		)
		return nil, err
	}

	now := s.clock.Now()
	key := path.Join(proofKeyPrefix, fmt.Sprintf("payment-proof-%d-%d-%s%s",
		billID.Int64(), caller.ID.Int64(), now.Format(proofTimeLayout), proof.ext))

	ref, err := s.store.Save(ctx, key, proof.body, proof.contentType)
	if err != nil {
		s.metrics.RecordProofUpload(ctx, "qris", "storage_failure")
		return nil, err
	}

	updated, err := s.mutate(ctx, billID, func(bill *billdomain.Bill) error {
		bill.PaymentProof = &ref
		bill.PaymentStatus = billdomain.PaymentStatusPendingVerification
		bill.PaymentDate = &now
		return nil
	})
	if err != nil {
		s.discardProof(ctx, ref)
		return nil, err
	}

	s.metrics.RecordProofUpload(ctx, "qris", "accepted")
	s.record(ctx, caller, "qris_proof_submitted", updated, map[string]any{
		"content_type": proof.contentType,
		"size_bytes":   proof.size,
	})
	return updated, nil
}

// VerifyPayment is the only guarded transition: pending to paid.
func (s *Service) VerifyPayment(ctx context.Context, caller authdomain.Caller, id string) (*billdomain.Bill, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return nil, err
	}
	billID, err := parseID(id, billdomain.ErrInvalidBill)
	if err != nil {
		return nil, err
	}

	updated, err := s.mutate(ctx, billID, func(bill *billdomain.Bill) error {
		if bill.PaymentStatus != billdomain.PaymentStatusPending {
			return fmt.Errorf("%w: cannot verify payment with status %s", billdomain.ErrIllegalTransition, bill.PaymentStatus)
		}
		bill.PaymentStatus = billdomain.PaymentStatusPaid
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, caller, "verified", updated, nil)
	return updated, nil
}

func (s *Service) QRISQuote(ctx context.Context, caller authdomain.Caller, id string) (*billdomain.QRISQuote, error) {
	bill, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	portal := config.DefaultPortalConfig()
	if s.portal != nil {
		portal = s.portal.Get()
	}

	number := format.BillNumber(bill.ID)
	period := format.Period(bill.Description, bill.BillDate)
	validUntil := s.clock.Now().Add(QuoteValidity)

	return &billdomain.QRISQuote{
		QRISData: billdomain.QRISData{
			BillID:       bill.ID,
			Amount:       bill.TotalAmount,
			MerchantName: portal.MerchantName,
			MerchantCity: portal.MerchantCity,
			PostalCode:   portal.MerchantPostalCode,
			BillNumber:   number,
			Reference1:   format.Reference(bill.ID),
			Reference2:   period,
			QRImageURL:   portal.QRImageURL,
			ValidUntil:   validUntil.Format(time.RFC3339),
		},
		DownloadURL:  strings.ReplaceAll(portal.QRDownloadURL, "{id}", bill.ID.String()),
		Instructions: append([]string(nil), portal.Instructions...),
		PaymentDetails: billdomain.PaymentDetails{
			Amount:     format.Rupiah(bill.TotalAmount),
			Period:     period,
			DueDate:    format.DueDate(bill.DueDate),
			BillNumber: number,
		},
	}, nil
}

func (s *Service) Get(ctx context.Context, caller authdomain.Caller, id string) (*billdomain.Bill, error) {
	billID, err := parseID(id, billdomain.ErrInvalidBill)
	if err != nil {
		return nil, err
	}
	bill, err := s.find(ctx, billID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, caller, bill.UserID, authorization.SelfOrAdmin); err != nil {
		return nil, err
	}
	return bill, nil
}

func (s *Service) ListMine(ctx context.Context, caller authdomain.Caller, req billdomain.ListBillRequest) (billdomain.ListBillResponse, error) {
	if err := s.authz.RequireActive(ctx, caller); err != nil {
		return billdomain.ListBillResponse{}, err
	}
	userID := caller.ID
	filter := billdomain.ListFilter{UserID: &userID}
	if strings.TrimSpace(req.SubscriptionID) != "" {
		subscriptionID, err := parseID(req.SubscriptionID, billdomain.ErrInvalidSubscription)
		if err != nil {
			return billdomain.ListBillResponse{}, err
		}
		filter.SubscriptionID = &subscriptionID
	}
	return s.list(ctx, filter, req)
}

func (s *Service) ListAll(ctx context.Context, caller authdomain.Caller, req billdomain.ListBillRequest) (billdomain.ListBillResponse, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return billdomain.ListBillResponse{}, err
	}
	filter := billdomain.ListFilter{}
	if strings.TrimSpace(req.UserID) != "" {
		userID, err := parseID(req.UserID, billdomain.ErrInvalidUser)
		if err != nil {
			return billdomain.ListBillResponse{}, err
		}
		filter.UserID = &userID
	}
	if strings.TrimSpace(req.SubscriptionID) != "" {
		subscriptionID, err := parseID(req.SubscriptionID, billdomain.ErrInvalidSubscription)
		if err != nil {
			return billdomain.ListBillResponse{}, err
		}
		filter.SubscriptionID = &subscriptionID
	}
	return s.list(ctx, filter, req)
}

// OpenProof streams the stored proof for the bill owner or an admin.
func (s *Service) OpenProof(ctx context.Context, caller authdomain.Caller, id string) (*billdomain.ProofFile, error) {
	bill, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if bill.PaymentProof == nil || *bill.PaymentProof == "" {
		return nil, billdomain.ErrProofNotFound
	}

	content, err := s.store.Open(ctx, *bill.PaymentProof)
	if err != nil {
		if errors.Is(err, filestore.ErrObjectNotFound) || errors.Is(err, filestore.ErrInvalidKey) {
			return nil, billdomain.ErrProofNotFound
		}
		return nil, err
	}
	return &billdomain.ProofFile{Name: path.Base(*bill.PaymentProof), Content: content}, nil
}

func (s *Service) list(ctx context.Context, filter billdomain.ListFilter, req billdomain.ListBillRequest) (billdomain.ListBillResponse, error) {
	if strings.TrimSpace(req.PaymentStatus) != "" {
		status, err := billdomain.ParsePaymentStatus(req.PaymentStatus)
		if err != nil {
			return billdomain.ListBillResponse{}, err
		}
		filter.PaymentStatus = status
	}

	probe := req.Pagination.Probe()
	filter.Offset = probe.Skip
	filter.Limit = probe.Limit

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return billdomain.ListBillResponse{}, err
	}

	items, pageInfo := pagination.BuildPageInfo(items, req.Pagination)
	return billdomain.ListBillResponse{PageInfo: pageInfo, Bills: items}, nil
}

func (s *Service) authorizeOwner(ctx context.Context, caller authdomain.Caller, billID snowflake.ID) error {
	bill, err := s.find(ctx, billID)
	if err != nil {
		return err
	}
	return s.authz.Authorize(ctx, caller, bill.UserID, authorization.SelfOrAdmin)
}

// mutate applies fn to the locked row and persists it in one transaction.
// The row is left untouched when fn fails.
func (s *Service) mutate(ctx context.Context, id snowflake.ID, fn func(bill *billdomain.Bill) error) (*billdomain.Bill, error) {
	var updated *billdomain.Bill
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bill, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if bill == nil {
			return billdomain.ErrBillNotFound
		}
		if err := fn(bill); err != nil {
			return err
		}
		bill.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, bill); err != nil {
			return err
		}
		updated = bill
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) find(ctx context.Context, id snowflake.ID) (*billdomain.Bill, error) {
	bill, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if bill == nil {
		return nil, billdomain.ErrBillNotFound
	}
	return bill, nil
}

// discardProof removes a stored proof whose bill update did not commit.
func (s *Service) discardProof(ctx context.Context, ref string) {
	if err := s.store.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.log.Warn("orphaned payment proof", zap.String("ref", ref), zap.Error(err))
	}
}

func (s *Service) maxProofBytes() int64 {
	if s.portal != nil {
		if limit := s.portal.Get().MaxProofBytes; limit > 0 {
			return limit
		}
	}
	return config.DefaultPortalConfig().MaxProofBytes
}

func (s *Service) record(ctx context.Context, caller authdomain.Caller, action string, bill *billdomain.Bill, extra map[string]any) {
	s.metrics.RecordBillPaymentEvent(ctx, action, string(bill.PaymentStatus))
	s.log.Info("bill "+action,
		zap.String("bill_id", bill.ID.String()),
		zap.String("payment_status", string(bill.PaymentStatus)),
		zap.String("actor_id", caller.Subject()),
	)

	if s.auditSvc == nil {
		return
	}
	actorID := caller.Subject()
	targetID := bill.ID.String()
	metadata := map[string]any{
		"payment_status": string(bill.PaymentStatus),
		"user_id":        bill.UserID.String(),
		"total_amount":   bill.TotalAmount.String(),
	}
	if bill.PaymentReference != nil {
		metadata["payment_reference"] = *bill.PaymentReference
	}
	for k, v := range extra {
		metadata[k] = v
	}
	if err := s.auditSvc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &actorID, "bill."+action, "bill", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func parseMethodPtr(raw *string) (*billdomain.PaymentMethod, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	method, err := billdomain.ParsePaymentMethod(*raw)
	if err != nil {
		return nil, err
	}
	return &method, nil
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
