package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/streamcart/streamcart/internal/clock"
	"github.com/streamcart/streamcart/internal/order/domain"
	"github.com/streamcart/streamcart/internal/order/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	statements := []string{
		`CREATE TABLE orders (
			id INTEGER PRIMARY KEY,
			account_id INTEGER,
			viewer_id INTEGER,
			number TEXT,
			status TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE order_groups (
			id INTEGER PRIMARY KEY,
			account_id INTEGER,
			order_id INTEGER,
			operator_id INTEGER,
			status TEXT,
			created_at DATETIME
		)`,
		`CREATE TABLE order_items (
			id INTEGER PRIMARY KEY,
			account_id INTEGER,
			order_id INTEGER,
			group_id INTEGER,
			product_id INTEGER,
			name TEXT,
			sku TEXT,
			quantity INTEGER,
			unit_price INTEGER,
			vat_rate INTEGER,
			provenance TEXT,
			created_at DATETIME
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}

	return db
}

func newTestService(t *testing.T, db *gorm.DB) (domain.Service, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.SystemClock{},
		Repo:  repository.Provide(),
	})
	return svc, node
}

func TestFindOrCreateOpenGroupReusesGroup(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db)
	accountID := node.Generate()
	viewerID := node.Generate()

	first, err := svc.FindOrCreateOpenGroup(context.Background(), accountID, viewerID, nil)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := svc.FindOrCreateOpenGroup(context.Background(), accountID, viewerID, nil)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first.OrderID != second.OrderID || first.GroupID != second.GroupID {
		t.Fatalf("expected open group reuse, got %+v and %+v", first, second)
	}

	var orders int64
	db.Raw(`SELECT COUNT(*) FROM orders`).Scan(&orders)
	if orders != 1 {
		t.Fatalf("expected 1 order, got %d", orders)
	}

	var number string
	db.Raw(`SELECT number FROM orders WHERE id = ?`, first.OrderID).Scan(&number)
	if number == "" {
		t.Fatal("expected order number assigned")
	}
}

func TestFindOrCreateOpenGroupSeparatesViewers(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db)
	accountID := node.Generate()

	first, err := svc.FindOrCreateOpenGroup(context.Background(), accountID, node.Generate(), nil)
	if err != nil {
		t.Fatalf("first viewer: %v", err)
	}
	second, err := svc.FindOrCreateOpenGroup(context.Background(), accountID, node.Generate(), nil)
	if err != nil {
		t.Fatalf("second viewer: %v", err)
	}
	if first.OrderID == second.OrderID {
		t.Fatal("expected distinct orders per viewer")
	}
}

func TestFindOrCreateOpenGroupIgnoresClosedOrders(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db)
	accountID := node.Generate()
	viewerID := node.Generate()

	first, err := svc.FindOrCreateOpenGroup(context.Background(), accountID, viewerID, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Exec(`UPDATE orders SET status = ? WHERE id = ?`, domain.OrderStatusCompleted, first.OrderID).Error; err != nil {
		t.Fatalf("close order: %v", err)
	}

	second, err := svc.FindOrCreateOpenGroup(context.Background(), accountID, viewerID, nil)
	if err != nil {
		t.Fatalf("recreate: %v", err)
	}
	if second.OrderID == first.OrderID {
		t.Fatal("expected a fresh order after the previous one closed")
	}
}

func TestAddLineItemValidation(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db)
	accountID := node.Generate()

	group, err := svc.FindOrCreateOpenGroup(context.Background(), accountID, node.Generate(), nil)
	if err != nil {
		t.Fatalf("open group: %v", err)
	}

	base := domain.AddLineItemRequest{
		AccountID:  accountID,
		OrderID:    group.OrderID,
		GroupID:    group.GroupID,
		Name:       "Wool Coat",
		Quantity:   1,
		UnitPrice:  12900,
		Provenance: domain.ProvenanceLive,
	}

	noName := base
	noName.Name = "  "
	if err := svc.AddLineItem(context.Background(), noName); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}

	badQty := base
	badQty.Quantity = 0
	if err := svc.AddLineItem(context.Background(), badQty); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}

	badProvenance := base
	badProvenance.Provenance = "imported"
	if err := svc.AddLineItem(context.Background(), badProvenance); !errors.Is(err, domain.ErrInvalidProvenance) {
		t.Fatalf("expected ErrInvalidProvenance, got %v", err)
	}

	if err := svc.AddLineItem(context.Background(), base); err != nil {
		t.Fatalf("add line item: %v", err)
	}

	items, err := repository.Provide().CountItems(context.Background(), db, accountID, group.OrderID)
	if err != nil {
		t.Fatalf("count items: %v", err)
	}
	if items != 1 {
		t.Fatalf("expected 1 item, got %d", items)
	}
}
