package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/quotient-hq/quotient/internal/billingevent/domain"
	"github.com/quotient-hq/quotient/internal/clock"
	customerdomain "github.com/quotient-hq/quotient/internal/customer/domain"
	"github.com/quotient-hq/quotient/internal/dunning"
	obsmetrics "github.com/quotient-hq/quotient/internal/observability/metrics"
	plandomain "github.com/quotient-hq/quotient/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Customers  customerdomain.Repository
	PlanSvc    plandomain.Service
	DunningSvc *dunning.Service
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

// Service is the reconciliation engine: it ingests processor events
// idempotently and applies them to customer state under the ordering guard.
type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	customers customerdomain.Repository
	planSvc   plandomain.Service
	dunning   *dunning.Service
	metrics   *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("billingevent.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		customers: p.Customers,
		planSvc:   p.PlanSvc,
		dunning:   p.DunningSvc,
		metrics:   p.Metrics,
	}
}

func (s *Service) Ingest(ctx context.Context, payload []byte) (domain.Result, error) {
	now := s.clock.Now()
	parsed, err := parseEvent(payload, now)
	if err != nil {
		return domain.Result{}, err
	}

	record := &domain.ProcessorEvent{
		ID:              s.genID.Generate(),
		ExternalEventID: parsed.ExternalID,
		Type:            parsed.Type,
		Payload:         datatypes.JSON(payload),
		CustomerRef:     parsed.CustomerRef,
		Status:          domain.EventStatusPending,
		ReceivedAt:      now,
	}

	inserted, err := s.repo.Insert(ctx, s.db, record)
	if err != nil {
		return domain.Result{}, err
	}
	if !inserted {
		existing, err := s.repo.FindByExternalID(ctx, s.db, parsed.ExternalID)
		if err != nil {
			return domain.Result{}, err
		}
		s.log.Debug("duplicate event delivery",
			zap.String("external_event_id", parsed.ExternalID),
			zap.String("type", parsed.Type),
		)
		s.metrics.RecordEvent(parsed.Type, "duplicate")
		return domain.Result{Accepted: false, Record: existing}, nil
	}

	if err := s.dispatch(ctx, record, parsed); err != nil {
		if markErr := s.mark(ctx, record, domain.EventStatusFailed, err.Error()); markErr != nil {
			s.log.Error("failed to mark event failed", zap.Error(markErr))
		}
		s.metrics.RecordEvent(parsed.Type, string(domain.EventStatusFailed))
		return domain.Result{Accepted: true, Record: record}, err
	}

	s.metrics.RecordEvent(parsed.Type, string(record.Status))
	return domain.Result{Accepted: true, Record: record}, nil
}

func (s *Service) dispatch(ctx context.Context, record *domain.ProcessorEvent, parsed *parsedEvent) error {
	switch parsed.Type {
	case domain.EventTypeSubscriptionUpdated:
		return s.applySubscriptionUpdated(ctx, record, parsed)
	case domain.EventTypeSubscriptionDeleted:
		return s.applySubscriptionDeleted(ctx, record, parsed)
	case domain.EventTypeInvoicePaid:
		return s.applyInvoicePaid(ctx, record, parsed)
	case domain.EventTypeInvoicePaymentFailed:
		return s.applyInvoicePaymentFailed(ctx, record, parsed)
	case domain.EventTypePaymentMethodUpdated:
		if err := s.dunning.OnPaymentMethodUpdated(ctx, parsed.CustomerRef); err != nil {
			return err
		}
		return s.mark(ctx, record, domain.EventStatusProcessed, "")
	default:
		// Received, not acted on. Only lifecycle signals are authoritative.
		return s.mark(ctx, record, domain.EventStatusIgnored, "unrecognized event type")
	}
}

func (s *Service) applySubscriptionUpdated(ctx context.Context, record *domain.ProcessorEvent, parsed *parsedEvent) error {
	customer, err := s.findCustomer(ctx, parsed)
	if err != nil {
		return err
	}
	if customer == nil {
		return fmt.Errorf("%w: customer_ref=%s", domain.ErrUnknownCustomer, parsed.CustomerRef)
	}

	switch parsed.SubscriptionStatus {
	case domain.SubscriptionStatusActive, domain.SubscriptionStatusTrialing:
		plan, err := s.planSvc.GetByPriceID(ctx, parsed.PriceID)
		if err != nil {
			if errors.Is(err, plandomain.ErrNotFound) {
				// A configuration error, not a transient fault.
				return fmt.Errorf("%w: price_id=%s", domain.ErrUnknownPrice, parsed.PriceID)
			}
			return err
		}
		subID := parsed.SubscriptionID
		applied, err := s.customers.ApplySubscriptionState(ctx, s.db, customer.ID, customerdomain.StateChange{
			PlanID:                 plan.ID,
			ExternalSubscriptionID: &subID,
			CurrentPeriodEnd:       parsed.PeriodEnd,
			PaymentState:           customerdomain.PaymentStateOK,
		}, parsed.OccurredAt)
		if err != nil {
			return err
		}
		return s.finish(ctx, record, applied, parsed)

	case domain.SubscriptionStatusPastDue:
		applied, err := s.customers.ApplyPaymentState(ctx, s.db, customer.ID, customerdomain.PaymentStatePastDue, parsed.OccurredAt)
		if err != nil {
			return err
		}
		return s.finish(ctx, record, applied, parsed)

	case domain.SubscriptionStatusCanceled:
		applied, err := s.customers.ApplyPaymentState(ctx, s.db, customer.ID, customerdomain.PaymentStateCanceled, parsed.OccurredAt)
		if err != nil {
			return err
		}
		return s.finish(ctx, record, applied, parsed)

	default:
		return s.mark(ctx, record, domain.EventStatusIgnored,
			fmt.Sprintf("subscription status %q not acted on", parsed.SubscriptionStatus))
	}
}

func (s *Service) applySubscriptionDeleted(ctx context.Context, record *domain.ProcessorEvent, parsed *parsedEvent) error {
	customer, err := s.findCustomer(ctx, parsed)
	if err != nil {
		return err
	}
	if customer == nil {
		// Happens when the owning user was hard deleted before the final
		// cancellation arrived.
		s.log.Warn("subscription deleted for unknown customer",
			zap.String("customer_ref", parsed.CustomerRef),
			zap.String("subscription_id", parsed.SubscriptionID),
		)
		return s.mark(ctx, record, domain.EventStatusIgnored, "customer not found")
	}

	freeDefault, err := s.planSvc.EnsureFreeDefault(ctx)
	if err != nil {
		return err
	}

	applied, err := s.customers.ApplySubscriptionState(ctx, s.db, customer.ID, customerdomain.StateChange{
		PlanID:                 freeDefault.ID,
		ExternalSubscriptionID: nil,
		CurrentPeriodEnd:       nil,
		PaymentState:           customerdomain.PaymentStateFree,
	}, parsed.OccurredAt)
	if err != nil {
		return err
	}
	return s.finish(ctx, record, applied, parsed)
}

func (s *Service) applyInvoicePaid(ctx context.Context, record *domain.ProcessorEvent, parsed *parsedEvent) error {
	customer, err := s.findCustomer(ctx, parsed)
	if err != nil {
		return err
	}
	if customer == nil {
		return fmt.Errorf("%w: customer_ref=%s", domain.ErrUnknownCustomer, parsed.CustomerRef)
	}

	// A paid invoice with no prior failure and no period end is bookkeeping
	// only: there is nothing to clear and nothing to refresh.
	if customer.PaymentState != customerdomain.PaymentStatePastDue && parsed.PeriodEnd == nil {
		return s.mark(ctx, record, domain.EventStatusProcessed, "")
	}

	applied, err := s.customers.ApplyInvoicePaid(ctx, s.db, customer.ID, parsed.PeriodEnd, parsed.OccurredAt)
	if err != nil {
		return err
	}
	return s.finish(ctx, record, applied, parsed)
}

func (s *Service) applyInvoicePaymentFailed(ctx context.Context, record *domain.ProcessorEvent, parsed *parsedEvent) error {
	customer, err := s.findCustomer(ctx, parsed)
	if err != nil {
		return err
	}
	if customer == nil {
		return fmt.Errorf("%w: customer_ref=%s", domain.ErrUnknownCustomer, parsed.CustomerRef)
	}

	applied, err := s.customers.ApplyPaymentState(ctx, s.db, customer.ID, customerdomain.PaymentStatePastDue, parsed.OccurredAt)
	if err != nil {
		return err
	}
	return s.finish(ctx, record, applied, parsed)
}

func (s *Service) findCustomer(ctx context.Context, parsed *parsedEvent) (*customerdomain.Customer, error) {
	if parsed.CustomerRef != "" {
		customer, err := s.customers.FindByExternalCustomerID(ctx, s.db, parsed.CustomerRef)
		if err != nil || customer != nil {
			return customer, err
		}
	}
	if parsed.SubscriptionID != "" {
		return s.customers.FindByExternalSubscriptionID(ctx, s.db, parsed.SubscriptionID)
	}
	return nil, nil
}

// finish records the terminal status after an Apply* attempt: processed when
// the guarded write went through, ignored when a newer event had already been
// applied and the write was discarded as stale.
func (s *Service) finish(ctx context.Context, record *domain.ProcessorEvent, applied bool, parsed *parsedEvent) error {
	if !applied {
		s.log.Info("stale event discarded",
			zap.String("external_event_id", parsed.ExternalID),
			zap.String("type", parsed.Type),
			zap.Time("occurred_at", parsed.OccurredAt),
		)
		return s.mark(ctx, record, domain.EventStatusIgnored, "stale: newer event already applied")
	}
	return s.mark(ctx, record, domain.EventStatusProcessed, "")
}

func (s *Service) mark(ctx context.Context, record *domain.ProcessorEvent, status domain.EventStatus, note string) error {
	var processedAt *time.Time
	if status == domain.EventStatusProcessed {
		now := s.clock.Now()
		processedAt = &now
	}
	if err := s.repo.SetStatus(ctx, s.db, record.ID, status, note, processedAt); err != nil {
		return err
	}
	record.Status = status
	record.Note = note
	record.ProcessedAt = processedAt
	return nil
}
