// Package domain defines the payment provider capability consumed by the
// core. The provider, not this system, is the source of truth: every call
// here eventually answers back through the webhook ingestion path.
package domain

import (
	"context"
	"errors"
)

type Client interface {
	// CreateCustomer registers the user with the processor and returns the
	// processor-assigned customer identifier.
	CreateCustomer(ctx context.Context, email string, name string) (string, error)

	// CancelSubscription terminates a subscription at the processor. The
	// resulting customer.subscription.deleted event arrives via ingestion.
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// RetryLatestInvoice asks the processor to retry the customer's most
	// recent open invoice. The outcome arrives later as invoice.paid or
	// invoice.payment_failed.
	RetryLatestInvoice(ctx context.Context, customerID string) error
}

var (
	ErrNoOpenInvoice  = errors.New("no_open_invoice")
	ErrProviderConfig = errors.New("payment_provider_not_configured")
)
