package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
)

// StatisticsRequest bounds bills by bill_date. Both ends are optional.
type StatisticsRequest struct {
	Start *time.Time
	End   *time.Time
}

type StatusBreakdown struct {
	Status string          `json:"status"`
	Count  int64           `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

type PaymentStatistics struct {
	TotalBills               int64             `json:"total_bills"`
	PaidBills                int64             `json:"paid_bills"`
	PendingBills             int64             `json:"pending_bills"`
	PendingVerificationBills int64             `json:"pending_verification_bills"`
	OverdueBills             int64             `json:"overdue_bills"`
	CancelledBills           int64             `json:"cancelled_bills"`
	TotalRevenue             decimal.Decimal   `json:"total_revenue"`
	PendingRevenue           decimal.Decimal   `json:"pending_revenue"`
	OverdueAmount            decimal.Decimal   `json:"overdue_amount"`
	ByStatus                 []StatusBreakdown `json:"by_status"`
	HasData                  bool              `json:"has_data"`
}

type Service interface {
	GetPaymentStatistics(ctx context.Context, caller authdomain.Caller, req StatisticsRequest) (PaymentStatistics, error)
}

var ErrInvalidRange = errors.New("invalid_range")
