package repository

import (
	"context"

	"github.com/quotient-hq/quotient/internal/limit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, limit *domain.Limit) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO limits (id, name, default_value, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		limit.ID,
		limit.Name,
		limit.Default,
		limit.CreatedAt,
		limit.UpdatedAt,
	).Error
}

func (r *repo) FindByName(ctx context.Context, db *gorm.DB, name string) (*domain.Limit, error) {
	var item domain.Limit
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, default_value, created_at, updated_at
		 FROM limits
		 WHERE name = ?
		 LIMIT 1`,
		name,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Limit, error) {
	var items []domain.Limit
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, default_value, created_at, updated_at
		 FROM limits
		 ORDER BY name`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdateDefault(ctx context.Context, db *gorm.DB, name string, value int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE limits
		 SET default_value = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE name = ?`,
		value,
		name,
	).Error
}
