package service

import (
	"context"

	"github.com/shopspring/decimal"
	authdomain "github.com/smallbiznis/sekarnet/internal/auth/domain"
	"github.com/smallbiznis/sekarnet/internal/authorization"
	billdomain "github.com/smallbiznis/sekarnet/internal/bill/domain"
	billingoverview "github.com/smallbiznis/sekarnet/internal/billingoverview/domain"
	"github.com/smallbiznis/sekarnet/pkg/db/option"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Authz authorization.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	authz authorization.Service
}

func NewService(p Params) billingoverview.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("billingoverview.service"),
		authz: p.Authz,
	}
}

type statusRow struct {
	PaymentStatus string
	BillCount     int64
	Total         decimal.Decimal
}

// GetPaymentStatistics counts bills per payment status and sums their totals.
// Pending revenue covers both pending and pending_verification bills.
func (s *Service) GetPaymentStatistics(ctx context.Context, caller authdomain.Caller, req billingoverview.StatisticsRequest) (billingoverview.PaymentStatistics, error) {
	if err := s.authz.Authorize(ctx, caller, 0, authorization.AdminOnly); err != nil {
		return billingoverview.PaymentStatistics{}, err
	}
	if req.Start != nil && req.End != nil && req.End.Before(*req.Start) {
		return billingoverview.PaymentStatistics{}, billingoverview.ErrInvalidRange
	}

	rows, err := s.listStatusTotals(ctx, req)
	if err != nil {
		return billingoverview.PaymentStatistics{}, err
	}

	stats := billingoverview.PaymentStatistics{
		TotalRevenue:   decimal.Zero,
		PendingRevenue: decimal.Zero,
		OverdueAmount:  decimal.Zero,
		ByStatus:       make([]billingoverview.StatusBreakdown, 0, len(rows)),
	}
	for _, row := range rows {
		stats.TotalBills += row.BillCount
		stats.ByStatus = append(stats.ByStatus, billingoverview.StatusBreakdown{
			Status: row.PaymentStatus,
			Count:  row.BillCount,
			Total:  row.Total,
		})
		switch billdomain.PaymentStatus(row.PaymentStatus) {
		case billdomain.PaymentStatusPaid:
			stats.PaidBills = row.BillCount
			stats.TotalRevenue = row.Total
		case billdomain.PaymentStatusPending:
			stats.PendingBills = row.BillCount
			stats.PendingRevenue = stats.PendingRevenue.Add(row.Total)
		case billdomain.PaymentStatusPendingVerification:
			stats.PendingVerificationBills = row.BillCount
			stats.PendingRevenue = stats.PendingRevenue.Add(row.Total)
		case billdomain.PaymentStatusOverdue:
			stats.OverdueBills = row.BillCount
			stats.OverdueAmount = row.Total
		case billdomain.PaymentStatusCancelled:
			stats.CancelledBills = row.BillCount
		default:
			s.log.Warn("unknown payment status in statistics", zap.String("status", row.PaymentStatus))
		}
	}
	stats.HasData = stats.TotalBills > 0
	return stats, nil
}

func (s *Service) listStatusTotals(ctx context.Context, req billingoverview.StatisticsRequest) ([]statusRow, error) {
	stmt := s.db.WithContext(ctx).
		Model(&billdomain.Bill{}).
		Select("payment_status, COUNT(1) AS bill_count, COALESCE(SUM(total_amount), 0) AS total")
	if req.Start != nil {
		stmt = option.ApplyOperator(option.Condition{Field: "bill_date", Operator: option.GTE, Value: *req.Start}).Apply(stmt)
	}
	if req.End != nil {
		stmt = option.ApplyOperator(option.Condition{Field: "bill_date", Operator: option.LTE, Value: *req.End}).Apply(stmt)
	}

	var rows []statusRow
	if err := stmt.Group("payment_status").Order("payment_status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
