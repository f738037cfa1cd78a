package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Plan, error)
	List(ctx context.Context) ([]Plan, error)
	Get(ctx context.Context, id snowflake.ID) (*Plan, error)
	GetByPriceID(ctx context.Context, priceID string) (*Plan, error)
	SetLimit(ctx context.Context, planID snowflake.ID, limitName string, value int64) error

	// EnsureFreeDefault returns the single free_default plan, creating it if
	// absent. A create race is resolved by re-reading under the storage
	// uniqueness constraint. Finding more than one is a data-integrity error
	// and is surfaced, never repaired.
	EnsureFreeDefault(ctx context.Context) (*Plan, error)
}

type CreateRequest struct {
	Name    string   `json:"name"`
	Kind    PlanKind `json:"kind"`
	PriceID *string  `json:"price_id,omitempty"`
}

var (
	ErrInvalidName         = errors.New("invalid_plan_name")
	ErrInvalidKind         = errors.New("invalid_plan_kind")
	ErrPriceIDRequired     = errors.New("paid_plan_requires_price_id")
	ErrPriceIDForbidden    = errors.New("price_id_only_on_paid_plan")
	ErrNotFound            = errors.New("plan_not_found")
	ErrAlreadyExists       = errors.New("plan_already_exists")
	ErrMultipleFreeDefault = errors.New("multiple_free_default_plans")
)
