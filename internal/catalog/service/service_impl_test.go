package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/streamcart/streamcart/internal/accountctx"
	"github.com/streamcart/streamcart/internal/catalog/domain"
	"github.com/streamcart/streamcart/internal/catalog/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec(`
		CREATE TABLE products (
			id INTEGER PRIMARY KEY,
			account_id INTEGER,
			sku TEXT,
			name TEXT,
			description TEXT,
			unit_price INTEGER,
			vat_rate INTEGER,
			reserved_qty INTEGER DEFAULT 0,
			active BOOLEAN,
			created_at DATETIME,
			updated_at DATETIME
		)
	`).Error)
	return db
}

func newTestService(t *testing.T, db *gorm.DB) (domain.Service, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, node
}

func accountContext(node *snowflake.Node) (context.Context, snowflake.ID) {
	accountID := node.Generate()
	return accountctx.WithAccountID(context.Background(), int64(accountID)), accountID
}

func TestCreateAndGetProduct(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db)
	ctx, accountID := accountContext(node)

	created, err := svc.Create(ctx, domain.CreateRequest{
		SKU:       "COAT-1",
		Name:      "Wool Coat",
		UnitPrice: 12900,
		VATRate:   1900,
	})
	require.NoError(t, err)
	require.Equal(t, accountID.String(), created.AccountID)
	require.True(t, created.Active)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "Wool Coat", got.Name)
	require.Equal(t, int64(12900), got.UnitPrice)
	require.Equal(t, int64(0), got.ReservedQty)
}

func TestCreateValidation(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db)
	ctx, _ := accountContext(node)

	_, err := svc.Create(ctx, domain.CreateRequest{Name: "No SKU"})
	require.ErrorIs(t, err, domain.ErrInvalidSKU)

	_, err = svc.Create(ctx, domain.CreateRequest{SKU: "X"})
	require.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateRequest{SKU: "X", Name: "X", UnitPrice: -1})
	require.ErrorIs(t, err, domain.ErrInvalidUnitPrice)

	_, err = svc.Create(context.Background(), domain.CreateRequest{SKU: "X", Name: "X"})
	require.ErrorIs(t, err, domain.ErrInvalidAccount)
}

func TestGetScopedToAccount(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db)
	ctxA, _ := accountContext(node)
	ctxB, _ := accountContext(node)

	created, err := svc.Create(ctxA, domain.CreateRequest{SKU: "COAT-1", Name: "Wool Coat"})
	require.NoError(t, err)

	_, err = svc.Get(ctxB, created.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetRejectsMalformedID(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db)
	ctx, _ := accountContext(node)

	_, err := svc.Get(ctx, "not-a-snowflake")
	require.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListFiltersByActive(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db)
	ctx, _ := accountContext(node)

	inactive := false
	_, err := svc.Create(ctx, domain.CreateRequest{SKU: "A", Name: "Active Coat"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{SKU: "B", Name: "Retired Coat", Active: &inactive})
	require.NoError(t, err)

	active := true
	list, err := svc.List(ctx, domain.ListRequest{Active: &active})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Active Coat", list[0].Name)
}
