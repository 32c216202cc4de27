// Package domain contains persistence models and rules for installation requests.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusFailed     Status = "failed"
)

func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case StatusPending, StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled, StatusFailed:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

var transitions = map[Status]map[Status]struct{}{
	StatusPending:    {StatusScheduled: {}, StatusCancelled: {}},
	StatusScheduled:  {StatusScheduled: {}, StatusInProgress: {}, StatusCancelled: {}},
	StatusInProgress: {StatusCompleted: {}, StatusFailed: {}},
}

// CanTransition reports whether an installation may move from one status to another.
// Rescheduling keeps a scheduled request in scheduled.
func CanTransition(from, to Status) bool {
	_, ok := transitions[from][to]
	return ok
}

// InstallationRequest is a customer's request to have a package installed on site.
type InstallationRequest struct {
	ID                snowflake.ID                 `json:"id" gorm:"primaryKey"`
	UserID            snowflake.ID                 `json:"user_id" gorm:"not null;index"`
	PackageID         snowflake.ID                 `json:"package_id" gorm:"not null;index"`
	TechnicianID      *snowflake.ID                `json:"technician_id,omitempty" gorm:"index"`
	RequestedDate     time.Time                    `json:"requested_date" gorm:"not null"`
	ScheduledDate     *time.Time                   `json:"scheduled_date,omitempty"`
	CompletedDate     *time.Time                   `json:"completed_date,omitempty"`
	Status            Status                       `json:"status" gorm:"type:text;not null;index"`
	Address           string                       `json:"address" gorm:"type:text;not null"`
	Latitude          *float64                     `json:"latitude,omitempty"`
	Longitude         *float64                     `json:"longitude,omitempty"`
	LocationNotes     *string                      `json:"location_notes,omitempty" gorm:"type:text"`
	EquipmentNeeded   datatypes.JSONType[[]string] `json:"equipment_needed"`
	InstallationNotes *string                      `json:"installation_notes,omitempty" gorm:"type:text"`
	CompletionNotes   *string                      `json:"completion_notes,omitempty" gorm:"type:text"`
	CustomerSignature *string                      `json:"customer_signature,omitempty" gorm:"type:text"`
	CreatedAt         time.Time                    `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time                    `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (InstallationRequest) TableName() string { return "installation_requests" }
