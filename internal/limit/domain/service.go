package domain

import (
	"context"
	"errors"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Limit, error)
	List(ctx context.Context) ([]Limit, error)
	Get(ctx context.Context, name string) (*Limit, error)
	SetDefault(ctx context.Context, name string, value int64) error
}

type CreateRequest struct {
	Name    string `json:"name"`
	Default int64  `json:"default"`
}

var (
	ErrInvalidName   = errors.New("invalid_limit_name")
	ErrNotFound      = errors.New("limit_not_found")
	ErrAlreadyExists = errors.New("limit_already_exists")
)
