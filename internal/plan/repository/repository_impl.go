package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/quotient-hq/quotient/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO plans (id, name, kind, price_id, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		plan.ID,
		plan.Name,
		plan.Kind,
		plan.PriceID,
		plan.IsActive,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Plan, error) {
	var item domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, kind, price_id, is_active, created_at, updated_at
		 FROM plans
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindByPriceID(ctx context.Context, db *gorm.DB, priceID string) (*domain.Plan, error) {
	var item domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, kind, price_id, is_active, created_at, updated_at
		 FROM plans
		 WHERE price_id = ?
		 LIMIT 1`,
		priceID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListByKind(ctx context.Context, db *gorm.DB, kind domain.PlanKind) ([]domain.Plan, error) {
	var items []domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, kind, price_id, is_active, created_at, updated_at
		 FROM plans
		 WHERE kind = ?
		 ORDER BY id`,
		kind,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Plan, error) {
	var items []domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, kind, price_id, is_active, created_at, updated_at
		 FROM plans
		 ORDER BY created_at`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertPlanLimit(ctx context.Context, db *gorm.DB, pl *domain.PlanLimit) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO plan_limits (id, plan_id, limit_id, value)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (plan_id, limit_id) DO UPDATE SET value = excluded.value`,
		pl.ID,
		pl.PlanID,
		pl.LimitID,
		pl.Value,
	).Error
}

func (r *repo) FindOverride(ctx context.Context, db *gorm.DB, planID snowflake.ID, limitName string) (*domain.PlanLimit, error) {
	var item domain.PlanLimit
	err := db.WithContext(ctx).Raw(
		`SELECT pl.id, pl.plan_id, pl.limit_id, pl.value
		 FROM plan_limits pl
		 JOIN limits l ON l.id = pl.limit_id
		 WHERE pl.plan_id = ? AND l.name = ?
		 LIMIT 1`,
		planID,
		limitName,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
