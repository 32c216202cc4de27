// Package domain contains persistence models and rules for support tickets.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func ParsePriority(raw string) (Priority, error) {
	priority := Priority(strings.ToLower(strings.TrimSpace(raw)))
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return priority, nil
	default:
		return "", ErrInvalidPriority
	}
}

type Category string

const (
	CategoryTechnical    Category = "technical"
	CategoryBilling      Category = "billing"
	CategoryService      Category = "service"
	CategoryInstallation Category = "installation"
	CategoryOther        Category = "other"
)

func ParseCategory(raw string) (Category, error) {
	category := Category(strings.ToLower(strings.TrimSpace(raw)))
	switch category {
	case CategoryTechnical, CategoryBilling, CategoryService, CategoryInstallation, CategoryOther:
		return category, nil
	default:
		return "", ErrInvalidCategory
	}
}

var transitions = map[Status]map[Status]struct{}{
	StatusOpen:       {StatusInProgress: {}, StatusResolved: {}, StatusClosed: {}},
	StatusInProgress: {StatusOpen: {}, StatusResolved: {}, StatusClosed: {}},
	StatusResolved:   {StatusInProgress: {}, StatusClosed: {}},
}

// CanTransition reports whether a ticket may move between statuses.
// Closed is terminal; a resolved ticket may be reopened into in_progress.
func CanTransition(from, to Status) bool {
	_, ok := transitions[from][to]
	return ok
}

type Ticket struct {
	ID           snowflake.ID                 `json:"id" gorm:"primaryKey"`
	UserID       snowflake.ID                 `json:"user_id" gorm:"not null;index"`
	TechnicianID *snowflake.ID                `json:"technician_id,omitempty" gorm:"index"`
	Title        string                       `json:"title" gorm:"type:text;not null"`
	Description  string                       `json:"description" gorm:"type:text;not null"`
	Category     Category                     `json:"category" gorm:"type:text;not null"`
	Status       Status                       `json:"status" gorm:"type:text;not null;index"`
	Priority     Priority                     `json:"priority" gorm:"type:text;not null;index"`
	OpenedAt     time.Time                    `json:"opened_at" gorm:"not null"`
	AssignedAt   *time.Time                   `json:"assigned_at,omitempty"`
	ResolvedAt   *time.Time                   `json:"resolved_at,omitempty"`
	ClosedAt     *time.Time                   `json:"closed_at,omitempty"`
	Resolution   *string                      `json:"resolution,omitempty" gorm:"type:text"`
	Attachments  datatypes.JSONType[[]string] `json:"attachments"`
	Notes        *string                      `json:"notes,omitempty" gorm:"type:text"`
	CreatedAt    time.Time                    `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time                    `json:"updated_at" gorm:"not null"`

	Replies []Reply `json:"replies,omitempty" gorm:"-"`
}

func (Ticket) TableName() string { return "support_tickets" }

type Reply struct {
	ID          snowflake.ID                 `json:"id" gorm:"primaryKey"`
	TicketID    snowflake.ID                 `json:"ticket_id" gorm:"not null;index"`
	UserID      snowflake.ID                 `json:"user_id" gorm:"not null;index"`
	Message     string                       `json:"message" gorm:"type:text;not null"`
	Attachments datatypes.JSONType[[]string] `json:"attachments"`
	CreatedAt   time.Time                    `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time                    `json:"updated_at" gorm:"not null"`
}

func (Reply) TableName() string { return "ticket_replies" }
