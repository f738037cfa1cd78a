package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/quotient-hq/quotient/internal/limit/domain"
	"github.com/quotient-hq/quotient/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("limit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Limit, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	now := time.Now().UTC()
	item := domain.Limit{
		ID:        s.genID.Generate(),
		Name:      name,
		Default:   req.Default,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, s.db, &item); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return &item, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Limit, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) Get(ctx context.Context, name string) (*domain.Limit, error) {
	item, err := s.repo.FindByName(ctx, s.db, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) SetDefault(ctx context.Context, name string, value int64) error {
	item, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	return s.repo.UpdateDefault(ctx, s.db, item.Name, value)
}
