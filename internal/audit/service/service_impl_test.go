package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/streamcart/streamcart/internal/accountctx"
	auditdomain "github.com/streamcart/streamcart/internal/audit/domain"
	"github.com/streamcart/streamcart/internal/audit/repository"
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

	if err := db.Exec(`
		CREATE TABLE audit_logs (
			id INTEGER PRIMARY KEY,
			account_id INTEGER,
			actor_type TEXT,
			actor_id TEXT,
			action TEXT,
			target_type TEXT,
			target_id TEXT,
			metadata TEXT,
			created_at DATETIME
		)
	`).Error; err != nil {
		t.Fatalf("create audit_logs table: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) (auditdomain.Service, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, node
}

func TestAuditLogWritesEntry(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db)
	accountID := node.Generate()

	target := "12345"
	err := svc.AuditLog(context.Background(), &accountID, "operator", nil, "reservation.opened", "reservation", &target, map[string]any{
		"quantity": int64(2),
	})
	if err != nil {
		t.Fatalf("audit log: %v", err)
	}

	var count int64
	db.Raw(`SELECT COUNT(*) FROM audit_logs WHERE account_id = ? AND action = ? AND target_id = ?`, accountID, "reservation.opened", target).Scan(&count)
	if count != 1 {
		t.Fatalf("expected 1 entry, got %d", count)
	}
}

func TestAuditLogResolvesAccountFromContext(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db)
	accountID := node.Generate()

	ctx := accountctx.WithAccountID(context.Background(), int64(accountID))
	if err := svc.AuditLog(ctx, nil, "", nil, "live.batch_finalized", "broadcast", nil, nil); err != nil {
		t.Fatalf("audit log: %v", err)
	}

	var got struct {
		AccountID snowflake.ID
		ActorType string
	}
	db.Raw(`SELECT account_id, actor_type FROM audit_logs`).Scan(&got)
	if got.AccountID != accountID {
		t.Fatalf("expected account from context, got %d", got.AccountID)
	}
	if got.ActorType != string(auditdomain.ActorTypeSystem) {
		t.Fatalf("expected system actor default, got %q", got.ActorType)
	}
}

func TestAuditLogRejectsEmptyAction(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db)
	accountID := node.Generate()

	err := svc.AuditLog(context.Background(), &accountID, "", nil, "  ", "reservation", nil, nil)
	if !errors.Is(err, auditdomain.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
}

func TestListScopesToAccount(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db)
	accountA := node.Generate()
	accountB := node.Generate()

	for i, accountID := range []snowflake.ID{accountA, accountA, accountB} {
		target := "t"
		action := "reservation.opened"
		if i == 1 {
			action = "reservation.committed"
		}
		if err := svc.AuditLog(context.Background(), &accountID, "system", nil, action, "reservation", &target, nil); err != nil {
			t.Fatalf("audit log: %v", err)
		}
	}

	ctx := accountctx.WithAccountID(context.Background(), int64(accountA))
	logs, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs for account, got %d", len(logs))
	}

	filtered, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "reservation.committed"})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 1 {
		t.Fatalf("expected 1 filtered log, got %d", len(filtered))
	}
}

func TestListRejectsInvertedTimeRange(t *testing.T) {
	db := setupDB(t)
	svc, node := newTestService(t, db)

	ctx := accountctx.WithAccountID(context.Background(), int64(node.Generate()))
	now := time.Now().UTC()
	earlier := now.Add(-time.Hour)
	_, err := svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &now, EndAt: &earlier})
	if !errors.Is(err, auditdomain.ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
}

func TestListRequiresAccountContext(t *testing.T) {
	db := setupDB(t)
	svc, _ := newTestService(t, db)

	_, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	if !errors.Is(err, auditdomain.ErrInvalidAccount) {
		t.Fatalf("expected ErrInvalidAccount, got %v", err)
	}
}
