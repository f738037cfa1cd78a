package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	limitdomain "github.com/quotient-hq/quotient/internal/limit/domain"
	limitrepo "github.com/quotient-hq/quotient/internal/limit/repository"
	limitservice "github.com/quotient-hq/quotient/internal/limit/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newService(t, db)

	created, err := svc.Create(ctx, limitdomain.CreateRequest{Name: "projects", Default: 3})
	require.NoError(t, err)
	require.Equal(t, "projects", created.Name)
	require.EqualValues(t, 3, created.Default)

	got, err := svc.Get(ctx, "projects")
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)

	_, err = svc.Get(ctx, "missing")
	require.ErrorIs(t, err, limitdomain.ErrNotFound)
}

func TestCreateRejectsDuplicateAndEmptyName(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newService(t, db)

	_, err := svc.Create(ctx, limitdomain.CreateRequest{Name: "  ", Default: 1})
	require.ErrorIs(t, err, limitdomain.ErrInvalidName)

	_, err = svc.Create(ctx, limitdomain.CreateRequest{Name: "seats", Default: 5})
	require.NoError(t, err)

	_, err = svc.Create(ctx, limitdomain.CreateRequest{Name: "seats", Default: 10})
	require.ErrorIs(t, err, limitdomain.ErrAlreadyExists)
}

func TestSetDefault(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	svc := newService(t, db)

	_, err := svc.Create(ctx, limitdomain.CreateRequest{Name: "seats", Default: 5})
	require.NoError(t, err)

	require.NoError(t, svc.SetDefault(ctx, "seats", 8))

	got, err := svc.Get(ctx, "seats")
	require.NoError(t, err)
	require.EqualValues(t, 8, got.Default)

	require.ErrorIs(t, svc.SetDefault(ctx, "missing", 1), limitdomain.ErrNotFound)
}

func newService(t *testing.T, db *gorm.DB) limitdomain.Service {
	t.Helper()

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	return limitservice.New(limitservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  limitrepo.Provide(),
	})
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE limits (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			default_value BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_limits_name ON limits(name)`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}
