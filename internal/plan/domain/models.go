// Package domain contains the plan catalog: named bundles of limit overrides
// and the free-default fallback invariant.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PlanKind classifies how a plan is obtained and billed.
type PlanKind string

const (
	// PlanKindFreeDefault is the fallback plan every customer starts on and
	// falls back to. Exactly one plan of this kind may exist.
	PlanKindFreeDefault PlanKind = "free_default"
	// PlanKindFreePrivate is a staff or comped plan, assigned manually.
	PlanKindFreePrivate PlanKind = "free_private"
	// PlanKindPaid is purchased through the payment processor and carries its
	// price identifier.
	PlanKindPaid PlanKind = "paid"
)

type Plan struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_plans_name"`
	Kind      PlanKind     `gorm:"type:text;not null"`
	PriceID   *string      `gorm:"type:text"`
	IsActive  bool         `gorm:"not null;default:true"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Plan) TableName() string { return "plans" }

// PlanLimit overrides one limit's value for one plan. Absence of a row means
// the limit's own default applies.
type PlanLimit struct {
	ID      snowflake.ID `gorm:"primaryKey"`
	PlanID  snowflake.ID `gorm:"not null;index"`
	LimitID snowflake.ID `gorm:"not null;index"`
	Value   int64        `gorm:"not null"`
}

func (PlanLimit) TableName() string { return "plan_limits" }
