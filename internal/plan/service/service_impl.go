package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	limitdomain "github.com/quotient-hq/quotient/internal/limit/domain"
	"github.com/quotient-hq/quotient/internal/plan/domain"
	"github.com/quotient-hq/quotient/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const freeDefaultName = "Default (Free)"

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	LimitRepo limitdomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      domain.Repository
	limitRepo limitdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("plan.service"),
		genID:     p.GenID,
		repo:      p.Repo,
		limitRepo: p.LimitRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Plan, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	switch req.Kind {
	case domain.PlanKindFreeDefault, domain.PlanKindFreePrivate, domain.PlanKindPaid:
	default:
		return nil, domain.ErrInvalidKind
	}

	priceID := normalizePriceID(req.PriceID)
	if req.Kind == domain.PlanKindPaid && priceID == nil {
		return nil, domain.ErrPriceIDRequired
	}
	if req.Kind != domain.PlanKindPaid && priceID != nil {
		return nil, domain.ErrPriceIDForbidden
	}

	now := time.Now().UTC()
	plan := domain.Plan{
		ID:        s.genID.Generate(),
		Name:      name,
		Kind:      req.Kind,
		PriceID:   priceID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, s.db, &plan); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return &plan, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Plan, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Plan, error) {
	plan, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrNotFound
	}
	return plan, nil
}

func (s *Service) GetByPriceID(ctx context.Context, priceID string) (*domain.Plan, error) {
	priceID = strings.TrimSpace(priceID)
	if priceID == "" {
		return nil, domain.ErrNotFound
	}
	plan, err := s.repo.FindByPriceID(ctx, s.db, priceID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrNotFound
	}
	return plan, nil
}

func (s *Service) SetLimit(ctx context.Context, planID snowflake.ID, limitName string, value int64) error {
	plan, err := s.Get(ctx, planID)
	if err != nil {
		return err
	}

	lim, err := s.limitRepo.FindByName(ctx, s.db, strings.TrimSpace(limitName))
	if err != nil {
		return err
	}
	if lim == nil {
		return limitdomain.ErrNotFound
	}

	return s.repo.UpsertPlanLimit(ctx, s.db, &domain.PlanLimit{
		ID:      s.genID.Generate(),
		PlanID:  plan.ID,
		LimitID: lim.ID,
		Value:   value,
	})
}

// EnsureFreeDefault returns the free_default plan, lazily creating it. The
// partial unique index on plans(kind) is the authoritative guard: a losing
// concurrent creator re-reads instead of erroring.
func (s *Service) EnsureFreeDefault(ctx context.Context) (*domain.Plan, error) {
	plan, err := s.findFreeDefault(ctx)
	if err != nil || plan != nil {
		return plan, err
	}

	now := time.Now().UTC()
	candidate := domain.Plan{
		ID:        s.genID.Generate(),
		Name:      freeDefaultName,
		Kind:      domain.PlanKindFreeDefault,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, s.db, &candidate); err != nil && !db.IsDuplicateKeyErr(err) {
		return nil, err
	}

	plan, err = s.findFreeDefault(ctx)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrNotFound
	}
	return plan, nil
}

func (s *Service) findFreeDefault(ctx context.Context) (*domain.Plan, error) {
	plans, err := s.repo.ListByKind(ctx, s.db, domain.PlanKindFreeDefault)
	if err != nil {
		return nil, err
	}
	switch len(plans) {
	case 0:
		return nil, nil
	case 1:
		return &plans[0], nil
	default:
		// Picking one arbitrarily could silently change live customers'
		// entitlements, so this is surfaced instead.
		s.log.Error("free_default plan invariant violated", zap.Int("count", len(plans)))
		return nil, domain.ErrMultipleFreeDefault
	}
}

func normalizePriceID(priceID *string) *string {
	if priceID == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*priceID)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
