package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/quotient-hq/quotient/internal/clock"
	"github.com/quotient-hq/quotient/internal/customer/domain"
	limitdomain "github.com/quotient-hq/quotient/internal/limit/domain"
	plandomain "github.com/quotient-hq/quotient/internal/plan/domain"
	providerdomain "github.com/quotient-hq/quotient/internal/providers/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	PlanSvc   plandomain.Service
	PlanRepo  plandomain.Repository
	LimitRepo limitdomain.Repository
	Provider  providerdomain.Client
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	planSvc   plandomain.Service
	planRepo  plandomain.Repository
	limitRepo limitdomain.Repository
	provider  providerdomain.Client
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("customer.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		planSvc:   p.PlanSvc,
		planRepo:  p.PlanRepo,
		limitRepo: p.LimitRepo,
		provider:  p.Provider,
	}
}

func (s *Service) EnsureCustomer(ctx context.Context, userID int64) (*domain.Customer, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	existing, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	freeDefault, err := s.planSvc.EnsureFreeDefault(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	candidate := domain.Customer{
		ID:           s.genID.Generate(),
		UserID:       userID,
		PlanID:       freeDefault.ID,
		PaymentState: domain.PaymentStateFree,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	inserted, err := s.repo.Insert(ctx, s.db, &candidate)
	if err != nil {
		return nil, err
	}
	if inserted {
		return &candidate, nil
	}

	// Lost a create race; the winner's row is authoritative.
	existing, err = s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.ErrNotFound
	}
	return existing, nil
}

func (s *Service) Get(ctx context.Context, userID int64) (*domain.Customer, error) {
	customer, err := s.repo.FindByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, domain.ErrNotFound
	}
	return customer, nil
}

func (s *Service) ResolveLimit(ctx context.Context, userID int64, limitName string) (int64, error) {
	limitName = strings.TrimSpace(limitName)
	customer, err := s.Get(ctx, userID)
	if err != nil {
		return 0, err
	}

	plan, err := s.planSvc.Get(ctx, customer.PlanID)
	if err != nil {
		return 0, err
	}

	effective := plan
	if domain.FallsBackToFreeDefault(plan.Kind, customer.CurrentPeriodEnd, s.clock.Now()) {
		effective, err = s.planSvc.EnsureFreeDefault(ctx)
		if err != nil {
			return 0, err
		}
	}

	override, err := s.planRepo.FindOverride(ctx, s.db, effective.ID, limitName)
	if err != nil {
		return 0, err
	}
	if override != nil {
		return override.Value, nil
	}

	lim, err := s.limitRepo.FindByName(ctx, s.db, limitName)
	if err != nil {
		return 0, err
	}
	if lim == nil {
		return 0, limitdomain.ErrNotFound
	}
	return lim.Default, nil
}

func (s *Service) DescribeState(ctx context.Context, customer *domain.Customer) (string, error) {
	if customer == nil {
		return "", domain.ErrNotFound
	}
	plan, err := s.planSvc.Get(ctx, customer.PlanID)
	if err != nil {
		return "", err
	}
	return domain.EffectiveState(plan.Kind, customer.PaymentState, customer.CurrentPeriodEnd, s.clock.Now()), nil
}

func (s *Service) AttachExternalCustomer(ctx context.Context, userID int64, externalID string) error {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return domain.ErrInvalidUser
	}
	customer, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	return s.repo.SetExternalCustomerID(ctx, s.db, customer.ID, externalID)
}

func (s *Service) ProvisionExternalCustomer(ctx context.Context, userID int64, email string, name string) (string, error) {
	customer, err := s.EnsureCustomer(ctx, userID)
	if err != nil {
		return "", err
	}
	if customer.ExternalCustomerID != nil {
		return *customer.ExternalCustomerID, nil
	}

	externalID, err := s.provider.CreateCustomer(ctx, email, name)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetExternalCustomerID(ctx, s.db, customer.ID, externalID); err != nil {
		return "", err
	}
	s.log.Info("external customer provisioned",
		zap.Int64("user_id", userID),
		zap.String("external_customer_id", externalID),
	)
	return externalID, nil
}

func (s *Service) Deactivate(ctx context.Context, userID int64) error {
	customer, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if customer.ExternalSubscriptionID == nil || customer.PaymentState != domain.PaymentStateOK {
		return nil
	}

	if err := s.provider.CancelSubscription(ctx, *customer.ExternalSubscriptionID); err != nil {
		return err
	}
	s.log.Info("provider subscription cancel requested",
		zap.Int64("user_id", userID),
		zap.String("subscription_id", *customer.ExternalSubscriptionID),
	)
	// The customer record is not touched here; the deletion event coming
	// back through ingestion performs the fallback.
	return nil
}
