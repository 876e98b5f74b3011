package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Product is a catalog item. UnitPrice is in minor currency units and
// VATRate in basis points. ReservedQty mirrors the sum of open
// reservations for the product; it is derived data for fast reads and
// is only ever written by the reservation ledger's recompute.
type Product struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	AccountID   snowflake.ID `json:"account_id" gorm:"column:account_id;not null;index:ux_products_account_sku,priority:1"`
	SKU         string       `json:"sku" gorm:"column:sku;type:text;not null;index:ux_products_account_sku,priority:2"`
	Name        string       `json:"name" gorm:"type:text;not null"`
	Description *string      `json:"description,omitempty" gorm:"type:text"`
	UnitPrice   int64        `json:"unit_price" gorm:"not null;default:0"`
	VATRate     int32        `json:"vat_rate" gorm:"not null;default:0"`
	ReservedQty int64        `json:"reserved_qty" gorm:"not null;default:0"`
	Active      bool         `json:"active" gorm:"not null;default:true"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }
