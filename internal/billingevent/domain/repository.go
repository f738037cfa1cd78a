package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Insert persists a pending event, returning false when the external
	// event id was already seen. Dedup check and insert are one statement.
	Insert(ctx context.Context, db *gorm.DB, event *ProcessorEvent) (bool, error)
	FindByExternalID(ctx context.Context, db *gorm.DB, externalEventID string) (*ProcessorEvent, error)
	SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status EventStatus, note string, processedAt *time.Time) error
	List(ctx context.Context, db *gorm.DB, status EventStatus, limit int) ([]ProcessorEvent, error)
}
