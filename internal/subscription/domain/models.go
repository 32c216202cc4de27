// Package domain contains persistence models and rules for customer subscriptions.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusInactive  SubscriptionStatus = "inactive"
)

func ParseStatus(raw string) (SubscriptionStatus, error) {
	status := SubscriptionStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case SubscriptionStatusPending,
		SubscriptionStatusActive,
		SubscriptionStatusSuspended,
		SubscriptionStatusCancelled,
		SubscriptionStatusInactive:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

type BillingCycle string

const (
	BillingCycleMonthly   BillingCycle = "monthly"
	BillingCycleQuarterly BillingCycle = "quarterly"
	BillingCycleYearly    BillingCycle = "yearly"
)

func ParseBillingCycle(raw string) (BillingCycle, error) {
	cycle := BillingCycle(strings.ToLower(strings.TrimSpace(raw)))
	switch cycle {
	case BillingCycleMonthly, BillingCycleQuarterly, BillingCycleYearly:
		return cycle, nil
	default:
		return "", ErrInvalidBillingCycle
	}
}

// Subscription is one customer's instance of a package.
type Subscription struct {
	ID              snowflake.ID       `json:"id" gorm:"primaryKey"`
	UserID          snowflake.ID       `json:"user_id" gorm:"not null;index"`
	PackageID       snowflake.ID       `json:"package_id" gorm:"not null;index"`
	Status          SubscriptionStatus `json:"status" gorm:"type:text;not null;index"`
	StartDate       *time.Time         `json:"start_date,omitempty"`
	EndDate         *time.Time         `json:"end_date,omitempty"`
	AutoRenew       bool               `json:"auto_renew" gorm:"not null;default:true"`
	IPAddress       *string            `json:"ip_address,omitempty" gorm:"type:text"`
	MACAddress      *string            `json:"mac_address,omitempty" gorm:"type:text"`
	BillingCycle    BillingCycle       `json:"billing_cycle" gorm:"type:text;not null;default:monthly"`
	BillingDay      int                `json:"billing_day" gorm:"not null;default:1"`
	LastPaymentDate *time.Time         `json:"last_payment_date,omitempty"`
	NextPaymentDate *time.Time         `json:"next_payment_date,omitempty"`
	Notes           *string            `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt       time.Time          `json:"created_at" gorm:"not null"`
	UpdatedAt       time.Time          `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }
