package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// StateChange carries the full set of fields a subscription-level event
// writes in one guarded statement.
type StateChange struct {
	PlanID                 snowflake.ID
	ExternalSubscriptionID *string
	CurrentPeriodEnd       *time.Time
	PaymentState           PaymentState
}

// Repository persists customers. Every Apply* method is a single conditional
// UPDATE guarded by last_event_applied_at: it returns false when a newer
// event has already been applied, so concurrent events for one customer can
// never interleave a stale write.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) (bool, error)
	FindByUserID(ctx context.Context, db *gorm.DB, userID int64) (*Customer, error)
	FindByExternalCustomerID(ctx context.Context, db *gorm.DB, externalID string) (*Customer, error)
	FindByExternalSubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*Customer, error)
	SetExternalCustomerID(ctx context.Context, db *gorm.DB, id snowflake.ID, externalID string) error

	ApplySubscriptionState(ctx context.Context, db *gorm.DB, id snowflake.ID, change StateChange, eventTime time.Time) (bool, error)
	ApplyPaymentState(ctx context.Context, db *gorm.DB, id snowflake.ID, state PaymentState, eventTime time.Time) (bool, error)
	ApplyInvoicePaid(ctx context.Context, db *gorm.DB, id snowflake.ID, periodEnd *time.Time, eventTime time.Time) (bool, error)
}
