package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status is the reservation state machine. A row starts reserved and
// ends committed (stock sold) or released (stock freed). Rows are never
// deleted; the ledger is an append-only trail of stock movement.
type Status string

const (
	StatusReserved  Status = "reserved"
	StatusCommitted Status = "committed"
	StatusReleased  Status = "released"
)

// SourceType identifies which feature created a reservation. The pair
// (SourceType, SourceRowID) decouples the ledger from the schemas of
// its callers.
type SourceType string

const (
	SourceTypeLiveCart SourceType = "live_cart"
	SourceTypeManual   SourceType = "manual"
)

func (t SourceType) Valid() bool {
	switch t {
	case SourceTypeLiveCart, SourceTypeManual:
		return true
	default:
		return false
	}
}

// Reservation is a ledger entry holding stock against a pending claim.
type Reservation struct {
	ID          snowflake.ID  `gorm:"primaryKey"`
	AccountID   snowflake.ID  `gorm:"not null;index"`
	ProductID   snowflake.ID  `gorm:"not null;index"`
	ViewerID    *snowflake.ID `gorm:"index"`
	BroadcastID *snowflake.ID `gorm:"index"`
	Quantity    int64         `gorm:"not null"`
	Status      Status        `gorm:"type:text;not null;index"`
	SourceType  SourceType    `gorm:"type:text;not null;index:ix_reservations_source,priority:1"`
	SourceRowID snowflake.ID  `gorm:"not null;index:ix_reservations_source,priority:2"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
	ReservedAt  time.Time     `gorm:"not null"`
	CommittedAt *time.Time
	ReleasedAt  *time.Time
}

func (Reservation) TableName() string { return "reservations" }
