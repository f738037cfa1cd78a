package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/quotient-hq/quotient/internal/customer/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const customerColumns = `id, user_id, plan_id, external_customer_id, external_subscription_id,
	current_period_end, payment_state, last_event_applied_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO customers (
			id, user_id, plan_id, external_customer_id, external_subscription_id,
			current_period_end, payment_state, last_event_applied_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		customer.ID,
		customer.UserID,
		customer.PlanID,
		customer.ExternalCustomerID,
		customer.ExternalSubscriptionID,
		customer.CurrentPeriodEnd,
		customer.PaymentState,
		customer.LastEventAppliedAt,
		customer.CreatedAt,
		customer.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByUserID(ctx context.Context, db *gorm.DB, userID int64) (*domain.Customer, error) {
	var item domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT `+customerColumns+`
		 FROM customers
		 WHERE user_id = ?
		 LIMIT 1`,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByExternalCustomerID(ctx context.Context, db *gorm.DB, externalID string) (*domain.Customer, error) {
	var item domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT `+customerColumns+`
		 FROM customers
		 WHERE external_customer_id = ?
		 LIMIT 1`,
		externalID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByExternalSubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*domain.Customer, error) {
	var item domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT `+customerColumns+`
		 FROM customers
		 WHERE external_subscription_id = ?
		 LIMIT 1`,
		subscriptionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) SetExternalCustomerID(ctx context.Context, db *gorm.DB, id snowflake.ID, externalID string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customers
		 SET external_customer_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		externalID,
		id,
	).Error
}

// The ordering guard: each write compares the event timestamp against
// last_event_applied_at inside the statement itself, so the read-compare-write
// is one atomic unit per customer row. Equal timestamps re-apply, which is
// safe because effects are set-based.

func (r *repo) ApplySubscriptionState(ctx context.Context, db *gorm.DB, id snowflake.ID, change domain.StateChange, eventTime time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE customers
		 SET plan_id = ?,
		     external_subscription_id = ?,
		     current_period_end = ?,
		     payment_state = ?,
		     last_event_applied_at = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		   AND (last_event_applied_at IS NULL OR last_event_applied_at <= ?)`,
		change.PlanID,
		change.ExternalSubscriptionID,
		change.CurrentPeriodEnd,
		change.PaymentState,
		eventTime,
		id,
		eventTime,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ApplyPaymentState(ctx context.Context, db *gorm.DB, id snowflake.ID, state domain.PaymentState, eventTime time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE customers
		 SET payment_state = ?,
		     last_event_applied_at = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		   AND (last_event_applied_at IS NULL OR last_event_applied_at <= ?)`,
		state,
		eventTime,
		id,
		eventTime,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ApplyInvoicePaid(ctx context.Context, db *gorm.DB, id snowflake.ID, periodEnd *time.Time, eventTime time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE customers
		 SET payment_state = ?,
		     current_period_end = COALESCE(?, current_period_end),
		     last_event_applied_at = ?,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		   AND (last_event_applied_at IS NULL OR last_event_applied_at <= ?)`,
		domain.PaymentStateOK,
		periodEnd,
		eventTime,
		id,
		eventTime,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
