package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/streamcart/streamcart/internal/audit/domain"
	"github.com/streamcart/streamcart/internal/clock"
	"github.com/streamcart/streamcart/internal/reservation/domain"
	"github.com/streamcart/streamcart/internal/reservation/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockAuditSvc struct{ err error }

func (m *mockAuditSvc) AuditLog(ctx context.Context, accountID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	return m.err
}

func (m *mockAuditSvc) List(ctx context.Context, req auditdomain.ListAuditLogRequest) ([]auditdomain.AuditLog, error) {
	return nil, nil
}

type failingGuard struct{ err error }

func (g *failingGuard) CheckOpen(ctx context.Context, tx *gorm.DB, req domain.OpenRequest) error {
	return g.err
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	// SQLite support hack: remove FOR UPDATE clauses
	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripForUpdate)
	db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripForUpdate)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec(`
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
	`).Error; err != nil {
		t.Fatalf("create products table: %v", err)
	}
	if err := db.Exec(`
		CREATE TABLE reservations (
			id INTEGER PRIMARY KEY,
			account_id INTEGER,
			product_id INTEGER,
			viewer_id INTEGER,
			broadcast_id INTEGER,
			quantity INTEGER,
			status TEXT,
			source_type TEXT,
			source_row_id INTEGER,
			created_at DATETIME,
			reserved_at DATETIME,
			committed_at DATETIME,
			released_at DATETIME
		)
	`).Error; err != nil {
		t.Fatalf("create reservations table: %v", err)
	}

	return db
}

func newTestService(t *testing.T, db *gorm.DB, guard domain.AvailabilityGuard) (domain.Service, *snowflake.Node) {
	return buildService(t, db, guard, clock.SystemClock{}, &mockAuditSvc{})
}

func buildService(t *testing.T, db *gorm.DB, guard domain.AvailabilityGuard, clk clock.Clock, audit auditdomain.Service) (domain.Service, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clk,
		Repo:     repository.Provide(),
		AuditSvc: audit,
		Guard:    guard,
	})
	return svc, node
}

func seedProduct(t *testing.T, db *gorm.DB, node *snowflake.Node, accountID snowflake.ID) snowflake.ID {
	t.Helper()

	productID := node.Generate()
	if err := db.Exec(
		`INSERT INTO products (id, account_id, sku, name, unit_price, vat_rate, reserved_qty, active) VALUES (?, ?, ?, ?, ?, ?, 0, 1)`,
		productID, accountID, "SKU-1", "Wool Coat", 4990, 1900,
	).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return productID
}

func reservedQty(t *testing.T, db *gorm.DB, productID snowflake.ID) int64 {
	t.Helper()

	var qty int64
	if err := db.Raw(`SELECT reserved_qty FROM products WHERE id = ?`, productID).Scan(&qty).Error; err != nil {
		t.Fatalf("read reserved_qty: %v", err)
	}
	return qty
}

func ledgerReserved(t *testing.T, db *gorm.DB, accountID, productID snowflake.ID) int64 {
	t.Helper()

	total, err := repository.Provide().SumReserved(context.Background(), db, accountID, productID)
	if err != nil {
		t.Fatalf("sum reserved: %v", err)
	}
	return total
}

func TestOpenReservationUpdatesCache(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db, nil)
	accountID := node.Generate()
	productID := seedProduct(t, db, node, accountID)

	id, err := svc.Open(context.Background(), domain.OpenRequest{
		AccountID:   accountID,
		ProductID:   productID,
		Quantity:    3,
		SourceType:  domain.SourceTypeManual,
		SourceRowID: node.Generate(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if id == 0 {
		t.Fatal("expected reservation id")
	}

	var status string
	if err := db.Raw(`SELECT status FROM reservations WHERE id = ?`, id).Scan(&status).Error; err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status != string(domain.StatusReserved) {
		t.Fatalf("expected status reserved, got %q", status)
	}
	if qty := reservedQty(t, db, productID); qty != 3 {
		t.Fatalf("expected reserved_qty 3, got %d", qty)
	}
}

func TestOpenValidation(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db, nil)
	accountID := node.Generate()
	productID := seedProduct(t, db, node, accountID)

	cases := []struct {
		name string
		req  domain.OpenRequest
		want error
	}{
		{"missing account", domain.OpenRequest{ProductID: productID, Quantity: 1, SourceType: domain.SourceTypeManual, SourceRowID: 1}, domain.ErrInvalidAccount},
		{"missing product", domain.OpenRequest{AccountID: accountID, Quantity: 1, SourceType: domain.SourceTypeManual, SourceRowID: 1}, domain.ErrInvalidProduct},
		{"zero quantity", domain.OpenRequest{AccountID: accountID, ProductID: productID, SourceType: domain.SourceTypeManual, SourceRowID: 1}, domain.ErrInvalidQuantity},
		{"negative quantity", domain.OpenRequest{AccountID: accountID, ProductID: productID, Quantity: -2, SourceType: domain.SourceTypeManual, SourceRowID: 1}, domain.ErrInvalidQuantity},
		{"bad source type", domain.OpenRequest{AccountID: accountID, ProductID: productID, Quantity: 1, SourceType: "bogus", SourceRowID: 1}, domain.ErrInvalidSource},
		{"missing source row", domain.OpenRequest{AccountID: accountID, ProductID: productID, Quantity: 1, SourceType: domain.SourceTypeLiveCart}, domain.ErrInvalidSource},
	}
	for _, tc := range cases {
		if _, err := svc.Open(context.Background(), tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	var count int64
	if err := db.Raw(`SELECT COUNT(*) FROM reservations`).Scan(&count).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no reservations, got %d", count)
	}
}

func TestOpenRejectedByGuard(t *testing.T) {
	db := setupDB(t)
	guardErr := errors.New("stock ceiling reached")
	svc, node := newTestService(t, db, &failingGuard{err: guardErr})
	accountID := node.Generate()
	productID := seedProduct(t, db, node, accountID)

	_, err := svc.Open(context.Background(), domain.OpenRequest{
		AccountID:   accountID,
		ProductID:   productID,
		Quantity:    1,
		SourceType:  domain.SourceTypeManual,
		SourceRowID: node.Generate(),
	})
	if !errors.Is(err, guardErr) {
		t.Fatalf("expected guard error, got %v", err)
	}

	var count int64
	db.Raw(`SELECT COUNT(*) FROM reservations`).Scan(&count)
	if count != 0 {
		t.Fatalf("expected rollback, found %d reservations", count)
	}
}

func TestCommitTransitionsAndRecomputes(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db, nil)
	accountID := node.Generate()
	productID := seedProduct(t, db, node, accountID)

	first, err := svc.Open(context.Background(), domain.OpenRequest{
		AccountID: accountID, ProductID: productID, Quantity: 2,
		SourceType: domain.SourceTypeManual, SourceRowID: node.Generate(),
	})
	if err != nil {
		t.Fatalf("open first: %v", err)
	}
	_, err = svc.Open(context.Background(), domain.OpenRequest{
		AccountID: accountID, ProductID: productID, Quantity: 5,
		SourceType: domain.SourceTypeManual, SourceRowID: node.Generate(),
	})
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	if qty := reservedQty(t, db, productID); qty != 7 {
		t.Fatalf("expected reserved_qty 7, got %d", qty)
	}

	committed, err := svc.Commit(context.Background(), first)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !committed {
		t.Fatal("expected commit to report a transition")
	}

	var committedAt int64
	db.Raw(`SELECT COUNT(*) FROM reservations WHERE id = ? AND status = ? AND committed_at IS NOT NULL`, first, domain.StatusCommitted).Scan(&committedAt)
	if committedAt != 1 {
		t.Fatal("expected committed row with committed_at set")
	}
	if qty := reservedQty(t, db, productID); qty != 5 {
		t.Fatalf("expected reserved_qty 5 after commit, got %d", qty)
	}
}

func TestCommitUnknownReservation(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db, nil)

	if _, err := svc.Commit(context.Background(), node.Generate()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCommitAlreadySettledIsNoOp(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db, nil)
	accountID := node.Generate()
	productID := seedProduct(t, db, node, accountID)

	id, err := svc.Open(context.Background(), domain.OpenRequest{
		AccountID: accountID, ProductID: productID, Quantity: 1,
		SourceType: domain.SourceTypeManual, SourceRowID: node.Generate(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	released, err := svc.Release(context.Background(), id)
	if err != nil || !released {
		t.Fatalf("release: settled=%v err=%v", released, err)
	}

	// Second settlement attempt reports false and mutates nothing.
	committed, err := svc.Commit(context.Background(), id)
	if err != nil {
		t.Fatalf("commit after release: %v", err)
	}
	if committed {
		t.Fatal("expected no-op commit on released reservation")
	}

	var status string
	db.Raw(`SELECT status FROM reservations WHERE id = ?`, id).Scan(&status)
	if status != string(domain.StatusReleased) {
		t.Fatalf("expected status to remain released, got %q", status)
	}
	if qty := reservedQty(t, db, productID); qty != 0 {
		t.Fatalf("expected reserved_qty 0, got %d", qty)
	}
}

func TestReleaseFreesReservedStock(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db, nil)
	accountID := node.Generate()
	productID := seedProduct(t, db, node, accountID)

	id, err := svc.Open(context.Background(), domain.OpenRequest{
		AccountID: accountID, ProductID: productID, Quantity: 4,
		SourceType: domain.SourceTypeManual, SourceRowID: node.Generate(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	released, err := svc.Release(context.Background(), id)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !released {
		t.Fatal("expected release to report a transition")
	}

	var withReleasedAt int64
	db.Raw(`SELECT COUNT(*) FROM reservations WHERE id = ? AND status = ? AND released_at IS NOT NULL`, id, domain.StatusReleased).Scan(&withReleasedAt)
	if withReleasedAt != 1 {
		t.Fatal("expected released row with released_at set")
	}
	if qty := reservedQty(t, db, productID); qty != 0 {
		t.Fatalf("expected reserved_qty 0 after release, got %d", qty)
	}
}

func TestCommitBySourceSettlesAllRows(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db, nil)
	accountID := node.Generate()
	productID := seedProduct(t, db, node, accountID)
	sourceRowID := node.Generate()

	for _, qty := range []int64{1, 2} {
		_, err := svc.Open(context.Background(), domain.OpenRequest{
			AccountID: accountID, ProductID: productID, Quantity: qty,
			SourceType: domain.SourceTypeLiveCart, SourceRowID: sourceRowID,
		})
		if err != nil {
			t.Fatalf("open: %v", err)
		}
	}

	done, err := svc.CommitBySource(context.Background(), accountID, domain.SourceTypeLiveCart, sourceRowID)
	if err != nil {
		t.Fatalf("commit by source: %v", err)
	}
	if !done {
		t.Fatal("expected commit by source to succeed")
	}

	var open int64
	db.Raw(`SELECT COUNT(*) FROM reservations WHERE status = ?`, domain.StatusReserved).Scan(&open)
	if open != 0 {
		t.Fatalf("expected all rows settled, %d still reserved", open)
	}
	if qty := reservedQty(t, db, productID); qty != 0 {
		t.Fatalf("expected reserved_qty 0, got %d", qty)
	}
}

func TestCommitBySourceNothingToCommit(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db, nil)

	done, err := svc.CommitBySource(context.Background(), node.Generate(), domain.SourceTypeLiveCart, node.Generate())
	if err != nil {
		t.Fatalf("commit by source: %v", err)
	}
	if !done {
		t.Fatal("expected empty source to be treated as settled")
	}
}

func TestBatchSettleRecomputesOncePerProduct(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db, nil)
	accountID := node.Generate()
	productA := seedProduct(t, db, node, accountID)

	productB := node.Generate()
	if err := db.Exec(
		`INSERT INTO products (id, account_id, sku, name, unit_price, vat_rate, reserved_qty, active) VALUES (?, ?, ?, ?, ?, ?, 0, 1)`,
		productB, accountID, "SKU-2", "Silk Scarf", 2990, 1900,
	).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	sourceRowID := node.Generate()
	for _, productID := range []snowflake.ID{productA, productA, productB} {
		_, err := svc.Open(context.Background(), domain.OpenRequest{
			AccountID: accountID, ProductID: productID, Quantity: 1,
			SourceType: domain.SourceTypeLiveCart, SourceRowID: sourceRowID,
		})
		if err != nil {
			t.Fatalf("open: %v", err)
		}
	}

	var cacheWrites int
	db.Callback().Raw().Before("gorm:raw").Register("count_cache_writes", func(d *gorm.DB) {
		if strings.Contains(d.Statement.SQL.String(), "UPDATE products") {
			cacheWrites++
		}
	})

	done, err := svc.ReleaseBySource(context.Background(), accountID, domain.SourceTypeLiveCart, sourceRowID)
	if err != nil {
		t.Fatalf("release by source: %v", err)
	}
	if !done {
		t.Fatal("expected release by source to succeed")
	}
	// Three rows but two distinct products: exactly two cache writes.
	if cacheWrites != 2 {
		t.Fatalf("expected 2 cache recomputes, got %d", cacheWrites)
	}
}

func TestCacheDerivedFromLedger(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db, nil)
	accountID := node.Generate()
	productID := seedProduct(t, db, node, accountID)

	// Poison the cache; any ledger write must overwrite it with the
	// recomputed aggregate rather than an increment.
	if err := db.Exec(`UPDATE products SET reserved_qty = 999 WHERE id = ?`, productID).Error; err != nil {
		t.Fatalf("poison cache: %v", err)
	}

	_, err := svc.Open(context.Background(), domain.OpenRequest{
		AccountID: accountID, ProductID: productID, Quantity: 2,
		SourceType: domain.SourceTypeManual, SourceRowID: node.Generate(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	if qty := reservedQty(t, db, productID); qty != 2 {
		t.Fatalf("expected cache rebuilt to 2, got %d", qty)
	}
	if ledger := ledgerReserved(t, db, accountID, productID); ledger != 2 {
		t.Fatalf("expected ledger sum 2, got %d", ledger)
	}
}

func TestSettlementTimestampsComeFromClock(t *testing.T) {
	db := setupDB(t)
	openedAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(openedAt)
	svc, node := buildService(t, db, nil, clk, &mockAuditSvc{})
	accountID := node.Generate()
	productID := seedProduct(t, db, node, accountID)

	id, err := svc.Open(context.Background(), domain.OpenRequest{
		AccountID: accountID, ProductID: productID, Quantity: 1,
		SourceType: domain.SourceTypeManual, SourceRowID: node.Generate(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	var reservedRows int64
	db.Raw(`SELECT COUNT(*) FROM reservations WHERE id = ? AND reserved_at = ?`, id, openedAt).Scan(&reservedRows)
	if reservedRows != 1 {
		t.Fatal("expected reserved_at to be the clock's time at open")
	}

	clk.Advance(45 * time.Minute)
	if _, err := svc.Commit(context.Background(), id); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var committedRows int64
	db.Raw(`SELECT COUNT(*) FROM reservations WHERE id = ? AND committed_at = ?`, id, openedAt.Add(45*time.Minute)).Scan(&committedRows)
	if committedRows != 1 {
		t.Fatal("expected committed_at to be the clock's time at commit")
	}
}

func TestCommitSurvivesCacheRecomputeFailure(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db, nil)
	accountID := node.Generate()
	productID := seedProduct(t, db, node, accountID)

	id, err := svc.Open(context.Background(), domain.OpenRequest{
		AccountID: accountID, ProductID: productID, Quantity: 1,
		SourceType: domain.SourceTypeManual, SourceRowID: node.Generate(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	// Take the cache target away so the savepoint-scoped recompute
	// fails; the status transition must still land.
	if err := db.Exec(`DROP TABLE products`).Error; err != nil {
		t.Fatalf("drop products: %v", err)
	}

	committed, err := svc.Commit(context.Background(), id)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !committed {
		t.Fatal("expected commit to report a transition")
	}

	var status string
	db.Raw(`SELECT status FROM reservations WHERE id = ?`, id).Scan(&status)
	if status != string(domain.StatusCommitted) {
		t.Fatalf("expected status committed, got %q", status)
	}
}

func TestAuditFailureNeverBlocksSettlement(t *testing.T) {
	db := setupDB(t)
	audit := &mockAuditSvc{err: errors.New("audit store unavailable")}
	svc, node := buildService(t, db, nil, clock.SystemClock{}, audit)
	accountID := node.Generate()
	productID := seedProduct(t, db, node, accountID)

	id, err := svc.Open(context.Background(), domain.OpenRequest{
		AccountID: accountID, ProductID: productID, Quantity: 2,
		SourceType: domain.SourceTypeManual, SourceRowID: node.Generate(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	committed, err := svc.Commit(context.Background(), id)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !committed {
		t.Fatal("expected commit to report a transition")
	}
	if qty := reservedQty(t, db, productID); qty != 0 {
		t.Fatalf("expected reserved_qty 0 after commit, got %d", qty)
	}
}
