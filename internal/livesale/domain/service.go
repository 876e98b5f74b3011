package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidAccount   = errors.New("invalid_account")
	ErrInvalidBroadcast = errors.New("invalid_broadcast")
	ErrInvalidViewer    = errors.New("invalid_viewer")
	ErrInvalidQuantity  = errors.New("invalid_quantity")
	ErrProductNotFound  = errors.New("product_not_found")
)

// AddClaimRequest captures one viewer claim as called out during a
// broadcast. ProductID is optional; without it the row is staged as a
// custom item. UnitPrice and VATRate left nil fall back to the catalog
// snapshot, then to zero price and the account default rate.
type AddClaimRequest struct {
	AccountID   snowflake.ID
	BroadcastID snowflake.ID
	ViewerID    snowflake.ID
	OperatorID  *snowflake.ID
	ProductID   *snowflake.ID
	Name        string
	SKU         string
	Quantity    int64
	UnitPrice   *int64
	VATRate     *int32
}

type FinalizeBatchRequest struct {
	AccountID   snowflake.ID
	BroadcastID snowflake.ID
	OperatorID  *snowflake.ID
}

type Service interface {
	// AddClaim stages a claim and, for catalog-backed rows, opens the
	// matching stock reservation in the same transaction.
	AddClaim(ctx context.Context, req AddClaimRequest) (*StagedLineItem, error)

	// FinalizeBatch migrates every pending staged row of a broadcast
	// into durable order lines and commits their reservations. The
	// whole batch succeeds or nothing is migrated. Returns the number
	// of rows migrated; zero pending rows is a successful no-op.
	FinalizeBatch(ctx context.Context, req FinalizeBatchRequest) (int, error)
}
