package domain

import (
	"context"
	"errors"
)

type Service interface {
	// EnsureCustomer returns the customer for a user, creating one on the
	// free_default plan if absent. Idempotent; called by the boundary layer
	// before invoking anything else.
	EnsureCustomer(ctx context.Context, userID int64) (*Customer, error)
	Get(ctx context.Context, userID int64) (*Customer, error)

	// ResolveLimit returns the effective value of a named limit: the
	// effective plan's override when present, else the limit's default.
	ResolveLimit(ctx context.Context, userID int64, limitName string) (int64, error)

	// DescribeState returns the derived effective state tag.
	DescribeState(ctx context.Context, customer *Customer) (string, error)

	AttachExternalCustomer(ctx context.Context, userID int64, externalID string) error

	// ProvisionExternalCustomer registers the user with the payment provider
	// and stores the returned customer id. Idempotent: an already attached
	// customer keeps its id.
	ProvisionExternalCustomer(ctx context.Context, userID int64, email string, name string) (string, error)

	// Deactivate cancels any live provider subscription for the user. Called
	// when the owning user is deleted or deactivated; the resulting state
	// change arrives later through the normal event path.
	Deactivate(ctx context.Context, userID int64) error
}

var (
	ErrInvalidUser = errors.New("invalid_user")
	ErrNotFound    = errors.New("customer_not_found")
)
