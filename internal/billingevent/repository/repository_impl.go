package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/quotient-hq/quotient/internal/billingevent/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.ProcessorEvent) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO processor_events (
			id, external_event_id, type, payload, customer_ref, status, note, received_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (external_event_id) DO NOTHING`,
		event.ID,
		event.ExternalEventID,
		event.Type,
		event.Payload,
		event.CustomerRef,
		event.Status,
		event.Note,
		event.ReceivedAt,
		event.ProcessedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindByExternalID(ctx context.Context, db *gorm.DB, externalEventID string) (*domain.ProcessorEvent, error) {
	var item domain.ProcessorEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, external_event_id, type, payload, customer_ref, status, note, received_at, processed_at
		 FROM processor_events
		 WHERE external_event_id = ?
		 LIMIT 1`,
		externalEventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) SetStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.EventStatus, note string, processedAt *time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE processor_events
		 SET status = ?, note = ?, processed_at = ?
		 WHERE id = ?`,
		status,
		note,
		processedAt,
		id,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, status domain.EventStatus, limit int) ([]domain.ProcessorEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []domain.ProcessorEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, external_event_id, type, payload, customer_ref, status, note, received_at, processed_at
		 FROM processor_events
		 WHERE status = ?
		 ORDER BY received_at DESC
		 LIMIT ?`,
		status,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
