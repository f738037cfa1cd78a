package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	FindByPriceID(ctx context.Context, db *gorm.DB, priceID string) (*Plan, error)
	ListByKind(ctx context.Context, db *gorm.DB, kind PlanKind) ([]Plan, error)
	List(ctx context.Context, db *gorm.DB) ([]Plan, error)

	UpsertPlanLimit(ctx context.Context, db *gorm.DB, pl *PlanLimit) error
	FindOverride(ctx context.Context, db *gorm.DB, planID snowflake.ID, limitName string) (*PlanLimit, error)
}
