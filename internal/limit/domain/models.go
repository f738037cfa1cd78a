// Package domain contains the limit catalog: named regulated capabilities
// and their global default values.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Limit struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_limits_name"`
	Default   int64        `gorm:"column:default_value;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Limit) TableName() string { return "limits" }
