package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SourceType says whether a staged claim points at a catalog product or
// was typed in free-form by the operator.
type SourceType string

const (
	SourceTypeCatalog SourceType = "catalog"
	SourceTypeCustom  SourceType = "custom"
)

// StagedLineItem is a provisional claim captured during a broadcast.
// The name/sku/price/vat fields are a point-in-time snapshot; later
// catalog edits never reach back into a staged row. Once TransferredAt
// is set the row is terminal.
type StagedLineItem struct {
	ID            snowflake.ID  `gorm:"primaryKey"`
	AccountID     snowflake.ID  `gorm:"not null;index"`
	BroadcastID   snowflake.ID  `gorm:"not null;index:ix_staged_live_items_broadcast,priority:1"`
	ViewerID      snowflake.ID  `gorm:"not null;index"`
	OperatorID    *snowflake.ID ``
	ProductID     *snowflake.ID `gorm:"index"`
	Name          string        `gorm:"type:text;not null"`
	SKU           string        `gorm:"type:text"`
	Quantity      int64         `gorm:"not null"`
	UnitPrice     int64         `gorm:"not null"`
	VATRate       int32         `gorm:"not null"`
	SourceType    SourceType    `gorm:"type:text;not null"`
	ReservationID *snowflake.ID `gorm:"index"`
	TransferredAt *time.Time    `gorm:"index:ix_staged_live_items_broadcast,priority:2"`
	TargetOrderID *snowflake.ID ``
	TargetGroupID *snowflake.ID ``
	CreatedAt     time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (StagedLineItem) TableName() string { return "staged_live_items" }
