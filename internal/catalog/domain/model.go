package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Package is an internet plan customers subscribe to. Packages are never removed, only deactivated.
type Package struct {
	ID          snowflake.ID                  `json:"id" gorm:"primaryKey"`
	Code        string                        `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Name        string                        `json:"name" gorm:"type:text;not null"`
	Description *string                       `json:"description,omitempty" gorm:"type:text"`
	Speed       string                        `json:"speed" gorm:"type:text;not null"`
	Price       decimal.Decimal               `json:"price" gorm:"type:numeric(14,2);not null"`
	SetupFee    decimal.Decimal               `json:"setup_fee" gorm:"type:numeric(14,2);not null;default:0"`
	Features    datatypes.JSONType[[]string] `json:"features"`
	IsActive    bool                          `json:"is_active" gorm:"not null;default:true;index"`
	CreatedAt   time.Time                     `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time                     `json:"updated_at" gorm:"not null"`
}

func (Package) TableName() string { return "packages" }
