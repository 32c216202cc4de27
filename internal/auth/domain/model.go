// Package domain contains core types for portal accounts and caller identity.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleTechnician, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole normalizes raw and rejects anything outside the closed role set.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

// User represents a portal account.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Username     string       `gorm:"type:text;not null;uniqueIndex" json:"username"`
	Email        string       `gorm:"type:text;not null;uniqueIndex" json:"email"`
	FullName     string       `gorm:"type:text;not null" json:"full_name"`
	Phone        *string      `gorm:"type:text" json:"phone,omitempty"`
	Address      *string      `gorm:"type:text" json:"address,omitempty"`
	Role         Role         `gorm:"type:text;not null;default:customer;index" json:"role"`
	IsActive     bool         `gorm:"not null;default:true" json:"is_active"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	LastLoginAt  *time.Time   `json:"last_login_at,omitempty"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

func (u User) Caller() Caller {
	return Caller{ID: u.ID, Role: u.Role, IsActive: u.IsActive}
}

// Caller is the authenticated identity handed to every service operation.
type Caller struct {
	ID       snowflake.ID
	Role     Role
	IsActive bool
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

func (c Caller) IsTechnician() bool { return c.Role == RoleTechnician }

// Subject is the actor id recorded in the activity log.
func (c Caller) Subject() string { return c.ID.String() }
