package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// OpenGroup identifies the order and group a line item should land in.
type OpenGroup struct {
	OrderID snowflake.ID
	GroupID snowflake.ID
}

type AddLineItemRequest struct {
	AccountID  snowflake.ID
	OrderID    snowflake.ID
	GroupID    snowflake.ID
	ProductID  *snowflake.ID
	Name       string
	SKU        string
	Quantity   int64
	UnitPrice  int64
	VATRate    int32
	Provenance Provenance
}

// Service materializes durable order data. The live finalization
// coordinator drives it inside its own batch transaction via WithTx.
type Service interface {
	WithTx(tx *gorm.DB) Service

	// FindOrCreateOpenGroup returns the viewer's open order and group,
	// creating both when the viewer has none.
	FindOrCreateOpenGroup(ctx context.Context, accountID, viewerID snowflake.ID, operatorID *snowflake.ID) (*OpenGroup, error)

	AddLineItem(ctx context.Context, req AddLineItemRequest) error
}

var (
	ErrInvalidAccount    = errors.New("invalid_account")
	ErrInvalidViewer     = errors.New("invalid_viewer")
	ErrInvalidOrder      = errors.New("invalid_order")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidProvenance = errors.New("invalid_provenance")
)
