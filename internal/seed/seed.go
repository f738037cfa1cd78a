package seed

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/quotient-hq/quotient/internal/plan/domain"
	"gorm.io/gorm"
)

// EnsureDefaults seeds the free default plan so every installation can
// attach customers from the first request.
func EnsureDefaults(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return ensureFreeDefaultPlanTx(ctx, tx, node)
	})
}

func ensureFreeDefaultPlanTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM plans WHERE kind = ?`,
		plandomain.PlanKindFreeDefault,
	).Scan(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	return tx.WithContext(ctx).Exec(
		`INSERT INTO plans (id, name, kind, price_id, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, NULL, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		 ON CONFLICT DO NOTHING`,
		node.Generate(),
		"Default (Free)",
		plandomain.PlanKindFreeDefault,
		true,
	).Error
}
