package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type OpenRequest struct {
	AccountID   snowflake.ID
	ProductID   snowflake.ID
	ViewerID    *snowflake.ID
	BroadcastID *snowflake.ID
	Quantity    int64
	SourceType  SourceType
	SourceRowID snowflake.ID
}

// Service is the stock reservation ledger. Open inserts a reserved row;
// Commit and Release are the only valid transitions out of it. Each call
// runs in its own transaction unless enclosed via WithTx.
type Service interface {
	// WithTx returns a Service bound to tx so callers can run ledger
	// operations inside their own transaction.
	WithTx(tx *gorm.DB) Service

	Open(ctx context.Context, req OpenRequest) (snowflake.ID, error)

	// Commit transitions reserved to committed. Returns false without
	// mutation when the reservation is no longer reserved.
	Commit(ctx context.Context, id snowflake.ID) (bool, error)

	// CommitBySource commits every reserved row created by the given
	// source row. Returns true when there was nothing left to commit.
	CommitBySource(ctx context.Context, accountID snowflake.ID, sourceType SourceType, sourceRowID snowflake.ID) (bool, error)

	Release(ctx context.Context, id snowflake.ID) (bool, error)
	ReleaseBySource(ctx context.Context, accountID snowflake.ID, sourceType SourceType, sourceRowID snowflake.ID) (bool, error)
}

// AvailabilityGuard is an optional ceiling check consulted before a
// reservation row is inserted. The ledger itself only bookkeeps demand;
// whether an account enforces a stock limit is up to the guard wired in.
type AvailabilityGuard interface {
	CheckOpen(ctx context.Context, tx *gorm.DB, req OpenRequest) error
}

var (
	ErrInvalidAccount  = errors.New("invalid_account")
	ErrInvalidProduct  = errors.New("invalid_product")
	ErrInvalidQuantity = errors.New("invalid_quantity")
	ErrInvalidSource   = errors.New("invalid_source")
	ErrNotFound        = errors.New("reservation_not_found")
)
