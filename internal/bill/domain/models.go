// Package domain contains persistence models and rules for customer bills.
package domain

import (
	"io"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents payment states for a bill.
type PaymentStatus string

const (
	PaymentStatusPending             PaymentStatus = "pending"
	PaymentStatusPendingVerification PaymentStatus = "pending_verification"
	PaymentStatusPaid                PaymentStatus = "paid"
	PaymentStatusOverdue             PaymentStatus = "overdue"
	PaymentStatusCancelled           PaymentStatus = "cancelled"
)

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case PaymentStatusPending,
		PaymentStatusPendingVerification,
		PaymentStatusPaid,
		PaymentStatusOverdue,
		PaymentStatusCancelled:
		return status, nil
	default:
		return "", ErrInvalidPaymentStatus
	}
}

type PaymentMethod string

const (
	PaymentMethodBankTransfer  PaymentMethod = "bank_transfer"
	PaymentMethodCreditCard    PaymentMethod = "credit_card"
	PaymentMethodCash          PaymentMethod = "cash"
	PaymentMethodOnlinePayment PaymentMethod = "online_payment"
	PaymentMethodOther         PaymentMethod = "other"
)

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(raw)))
	switch method {
	case PaymentMethodBankTransfer,
		PaymentMethodCreditCard,
		PaymentMethodCash,
		PaymentMethodOnlinePayment,
		PaymentMethodOther:
		return method, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

// Bill is one billing event for a subscription. Amounts are stored as supplied;
// total_amount is never derived from amount and tax.
type Bill struct {
	ID               snowflake.ID    `json:"id" gorm:"primaryKey"`
	SubscriptionID   snowflake.ID    `json:"subscription_id" gorm:"not null;index"`
	UserID           snowflake.ID    `json:"user_id" gorm:"not null;index"`
	Amount           decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	Tax              decimal.Decimal `json:"tax" gorm:"type:numeric(14,2);not null;default:0"`
	TotalAmount      decimal.Decimal `json:"total_amount" gorm:"type:numeric(14,2);not null"`
	Description      *string         `json:"description,omitempty" gorm:"type:text"`
	BillDate         time.Time       `json:"bill_date" gorm:"not null"`
	DueDate          time.Time       `json:"due_date" gorm:"not null;index"`
	PaymentStatus    PaymentStatus   `json:"payment_status" gorm:"type:text;not null;index"`
	PaymentMethod    *PaymentMethod  `json:"payment_method,omitempty" gorm:"type:text"`
	PaymentDate      *time.Time      `json:"payment_date,omitempty"`
	PaymentProof     *string         `json:"payment_proof,omitempty" gorm:"type:text"`
	PaymentReference *string         `json:"payment_reference,omitempty" gorm:"type:text"`
	Notes            *string         `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt        time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time       `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bills" }

// QRISQuote is the display payload for paying a bill with the static QRIS code.
type QRISQuote struct {
	QRISData       QRISData       `json:"qris_data"`
	DownloadURL    string         `json:"download_url"`
	Instructions   []string       `json:"instructions"`
	PaymentDetails PaymentDetails `json:"payment_details"`
}

type QRISData struct {
	BillID       snowflake.ID    `json:"bill_id"`
	Amount       decimal.Decimal `json:"amount"`
	MerchantName string          `json:"merchant_name"`
	MerchantCity string          `json:"merchant_city"`
	PostalCode   string          `json:"postal_code"`
	BillNumber   string          `json:"bill_number"`
	Reference1   string          `json:"reference1"`
	Reference2   string          `json:"reference2"`
	QRImageURL   string          `json:"qr_image_url"`
	ValidUntil   string          `json:"valid_until"`
}

type PaymentDetails struct {
	Amount     string `json:"amount"`
	Period     string `json:"period"`
	DueDate    string `json:"due_date"`
	BillNumber string `json:"bill_number"`
}

// Upload is a proof file as received from the transport layer.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}
