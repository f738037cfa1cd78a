// Package domain contains the processor event log and the event vocabulary
// the reconciler acts on.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusProcessed EventStatus = "processed"
	EventStatusIgnored   EventStatus = "ignored"
	EventStatusFailed    EventStatus = "failed"
)

// Recognized processor event types. Everything else is recorded and ignored:
// only subscription, invoice and payment-method lifecycle signals are trusted
// as authoritative.
const (
	EventTypeSubscriptionUpdated  = "customer.subscription.updated"
	EventTypeSubscriptionDeleted  = "customer.subscription.deleted"
	EventTypeInvoicePaid          = "invoice.paid"
	EventTypeInvoicePaymentFailed = "invoice.payment_failed"
	EventTypePaymentMethodUpdated = "payment_method.automatically_updated"
)

// Subscription statuses acted upon. incomplete, incomplete_expired and
// unpaid are ignored by policy; canceled arrives terminally through the
// deleted event.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusTrialing = "trialing"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
)

// ProcessorEvent is one inbound payment-provider notification, persisted
// before any dedup decision and immutable once processed.
type ProcessorEvent struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	ExternalEventID string         `gorm:"type:text;not null;uniqueIndex:ux_processor_events_external_id"`
	Type            string         `gorm:"type:text;not null"`
	Payload         datatypes.JSON `gorm:"type:jsonb;not null"`
	CustomerRef     string         `gorm:"type:text"`
	Status          EventStatus    `gorm:"type:text;not null"`
	Note            string         `gorm:"type:text"`
	ReceivedAt      time.Time      `gorm:"not null"`
	ProcessedAt     *time.Time     `gorm:""`
}

func (ProcessorEvent) TableName() string { return "processor_events" }

var (
	ErrInvalidPayload  = errors.New("invalid_event_payload")
	ErrUnknownPrice    = errors.New("unknown_price_reference")
	ErrUnknownCustomer = errors.New("unknown_customer_reference")
)
