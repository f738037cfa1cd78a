package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, limit *Limit) error
	FindByName(ctx context.Context, db *gorm.DB, name string) (*Limit, error)
	List(ctx context.Context, db *gorm.DB) ([]Limit, error)
	UpdateDefault(ctx context.Context, db *gorm.DB, name string, value int64) error
}
