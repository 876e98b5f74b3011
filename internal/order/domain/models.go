package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Provenance tags where a line item entered the system.
type Provenance string

const (
	ProvenanceLive   Provenance = "live"
	ProvenanceManual Provenance = "manual"
)

func (p Provenance) Valid() bool {
	switch p {
	case ProvenanceLive, ProvenanceManual:
		return true
	default:
		return false
	}
}

// Order is the durable order a viewer accumulates across a sale.
type Order struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	AccountID snowflake.ID `gorm:"not null;index"`
	ViewerID  snowflake.ID `gorm:"not null;index"`
	Number    string       `gorm:"type:text;not null;uniqueIndex"`
	Status    OrderStatus  `gorm:"type:text;not null;index"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Order) TableName() string { return "orders" }

// OrderGroup batches line items added together, e.g. one broadcast's
// finalization. An order has at most one open group at a time.
type OrderGroup struct {
	ID         snowflake.ID  `gorm:"primaryKey"`
	AccountID  snowflake.ID  `gorm:"not null;index"`
	OrderID    snowflake.ID  `gorm:"not null;index"`
	OperatorID *snowflake.ID ``
	Status     OrderStatus   `gorm:"type:text;not null"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrderGroup) TableName() string { return "order_groups" }

// OrderItem is a committed line item with an immutable price snapshot.
type OrderItem struct {
	ID         snowflake.ID  `gorm:"primaryKey"`
	AccountID  snowflake.ID  `gorm:"not null;index"`
	OrderID    snowflake.ID  `gorm:"not null;index"`
	GroupID    snowflake.ID  `gorm:"not null;index"`
	ProductID  *snowflake.ID `gorm:"index"`
	Name       string        `gorm:"type:text;not null"`
	SKU        string        `gorm:"type:text"`
	Quantity   int64         `gorm:"not null"`
	UnitPrice  int64         `gorm:"not null"`
	VATRate    int32         `gorm:"not null"`
	Provenance Provenance    `gorm:"type:text;not null"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrderItem) TableName() string { return "order_items" }
