package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tenant is the isolation boundary of the platform. Every other row carries a
// TenantID foreign key and every query filters on it.
type Tenant struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"type:varchar(255);not null"`
	Plan      string         `json:"plan" gorm:"type:varchar(50);default:'starter'"`
	Config    datatypes.JSON `json:"config" gorm:"type:jsonb"`
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
