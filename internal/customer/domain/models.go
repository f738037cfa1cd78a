// Package domain contains per-user billing state: the customer record, its
// payment state, and the derived effective state.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/quotient-hq/quotient/internal/plan/domain"
)

// PaymentState tracks the payment relationship with the processor. It is
// derived from processor events, not mirrored 1:1.
type PaymentState string

const (
	// PaymentStateFree means no paid relationship exists.
	PaymentStateFree PaymentState = "free"
	PaymentStateOK   PaymentState = "ok"
	// PaymentStatePastDue means the last renewal failed and the processor is
	// still retrying.
	PaymentStatePastDue PaymentState = "past_due"
	// PaymentStateCanceled means the subscription is set to lapse at period
	// end and no further payments are coming.
	PaymentStateCanceled PaymentState = "canceled"
)

type Customer struct {
	ID                     snowflake.ID `gorm:"primaryKey"`
	UserID                 int64        `gorm:"not null;uniqueIndex:ux_customers_user_id"`
	PlanID                 snowflake.ID `gorm:"not null;index"`
	ExternalCustomerID     *string      `gorm:"type:text"`
	ExternalSubscriptionID *string      `gorm:"type:text"`
	CurrentPeriodEnd       *time.Time   `gorm:""`
	PaymentState           PaymentState `gorm:"type:text;not null"`
	LastEventAppliedAt     *time.Time   `gorm:""`
	CreatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Customer) TableName() string { return "customers" }

// Expired reports whether the customer's plan period has lapsed.
func (c *Customer) Expired(now time.Time) bool {
	return c.CurrentPeriodEnd != nil && c.CurrentPeriodEnd.Before(now)
}

// FallsBackToFreeDefault reports whether limit resolution should use the
// free_default plan instead of the customer's own. An expired paid or
// free_private plan falls back; a paid plan with no period end is an
// incomplete signup and falls back too. A free_private plan with no period
// end never expires. The customer's plan reference is never rewritten for
// this; expiry is evaluated lazily at read time.
func FallsBackToFreeDefault(kind plandomain.PlanKind, periodEnd *time.Time, now time.Time) bool {
	if kind == plandomain.PlanKindFreeDefault {
		return false
	}
	if periodEnd != nil {
		return periodEnd.Before(now)
	}
	return kind == plandomain.PlanKindPaid
}

// EffectiveState derives the customer-facing state tag as a pure function of
// plan kind, payment state, period end and the current time. It is computed
// on read, never stored, so it cannot drift.
func EffectiveState(kind plandomain.PlanKind, paymentState PaymentState, periodEnd *time.Time, now time.Time) string {
	if kind == plandomain.PlanKindFreeDefault {
		return "free_default.new"
	}

	if periodEnd != nil && periodEnd.Before(now) {
		return "free_default.canceled"
	}

	switch kind {
	case plandomain.PlanKindFreePrivate:
		if periodEnd == nil {
			return "free_private.indefinite"
		}
		return "free_private.will_expire"
	case plandomain.PlanKindPaid:
		if periodEnd == nil {
			// Initial signup that never completed payment.
			return "free_default.incomplete"
		}
		switch paymentState {
		case PaymentStateOK:
			return "paid.ok"
		case PaymentStatePastDue:
			return "paid.past_due"
		case PaymentStateCanceled:
			return "paid.will_cancel"
		default:
			return "paid.canceled"
		}
	}
	return "invalid"
}
