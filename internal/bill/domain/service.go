package domain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/pkg/db/pagination"
)

type CreateBillRequest struct {
	SubscriptionID string           `json:"subscription_id" binding:"required"`
	UserID         string           `json:"user_id" binding:"required"`
	Amount         *decimal.Decimal `json:"amount" binding:"required"`
	Tax            decimal.Decimal  `json:"tax"`
	TotalAmount    *decimal.Decimal `json:"total_amount" binding:"required"`
	Description    *string          `json:"description,omitempty"`
	BillDate       time.Time        `json:"bill_date" binding:"required"`
	DueDate        time.Time        `json:"due_date" binding:"required"`
	PaymentStatus  string           `json:"payment_status"`
	PaymentMethod  *string          `json:"payment_method,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
}

// UpdateBillRequest is a partial patch; nil fields are left untouched.
type UpdateBillRequest struct {
	Amount           *decimal.Decimal `json:"amount,omitempty"`
	Tax              *decimal.Decimal `json:"tax,omitempty"`
	TotalAmount      *decimal.Decimal `json:"total_amount,omitempty"`
	Description      *string          `json:"description,omitempty"`
	BillDate         *time.Time       `json:"bill_date,omitempty"`
	DueDate          *time.Time       `json:"due_date,omitempty"`
	PaymentStatus    *string          `json:"payment_status,omitempty"`
	PaymentMethod    *string          `json:"payment_method,omitempty"`
	PaymentDate      *time.Time       `json:"payment_date,omitempty"`
	PaymentProof     *string          `json:"payment_proof,omitempty"`
	PaymentReference *string          `json:"payment_reference,omitempty"`
	Notes            *string          `json:"notes,omitempty"`
}

type PayBillRequest struct {
	PaymentStatus    string    `json:"payment_status" binding:"required"`
	PaymentMethod    string    `json:"payment_method" binding:"required"`
	PaymentDate      time.Time `json:"payment_date" binding:"required"`
	PaymentProof     string    `json:"payment_proof"`
	PaymentReference string    `json:"payment_reference"`
}

type ListBillRequest struct {
	pagination.Pagination
	PaymentStatus  string `form:"payment_status"`
	UserID         string `form:"user_id"`
	SubscriptionID string `form:"subscription_id"`
}

type ListBillResponse struct {
	pagination.PageInfo
	Bills []Bill `json:"bills"`
}

// ProofFile is an opened payment proof.
type ProofFile struct {
	Name    string
	Content io.ReadCloser
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	Create(ctx context.Context, caller authdomain.Caller, req CreateBillRequest) (*Bill, error)
	Update(ctx context.Context, caller authdomain.Caller, id string, req UpdateBillRequest) (*Bill, error)
	Pay(ctx context.Context, caller authdomain.Caller, id string, req PayBillRequest) (*Bill, error)
	UploadProof(ctx context.Context, caller authdomain.Caller, id string, upload Upload) (*Bill, error)
	SubmitQRISProof(ctx context.Context, caller authdomain.Caller, id string, upload Upload) (*Bill, error)
	VerifyPayment(ctx context.Context, caller authdomain.Caller, id string) (*Bill, error)
	QRISQuote(ctx context.Context, caller authdomain.Caller, id string) (*QRISQuote, error)
	Get(ctx context.Context, caller authdomain.Caller, id string) (*Bill, error)
	ListMine(ctx context.Context, caller authdomain.Caller, req ListBillRequest) (ListBillResponse, error)
	ListAll(ctx context.Context, caller authdomain.Caller, req ListBillRequest) (ListBillResponse, error)
	OpenProof(ctx context.Context, caller authdomain.Caller, id string) (*ProofFile, error)
}

var (
	ErrBillNotFound         = errors.New("bill_not_found")
	ErrSubscriptionNotFound = errors.New("subscription_not_found")
	ErrUserNotFound         = errors.New("user_not_found")
	ErrProofNotFound        = errors.New("payment_proof_not_found")
	ErrIllegalTransition    = errors.New("illegal_transition")
	ErrInvalidFile          = errors.New("invalid_file")
	ErrFileTooLarge         = fmt.Errorf("%w: file_too_large", ErrInvalidFile)
	ErrUnsupportedFileType  = fmt.Errorf("%w: unsupported_file_type", ErrInvalidFile)
	ErrEmptyFile            = fmt.Errorf("%w: empty_file", ErrInvalidFile)
	ErrInvalidBill          = errors.New("invalid_bill")
	ErrInvalidSubscription  = errors.New("invalid_subscription")
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidDueDate       = errors.New("invalid_due_date")
	ErrInvalidPaymentStatus = errors.New("invalid_payment_status")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
)
