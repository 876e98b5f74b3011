package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindOpenGroup(ctx context.Context, db *gorm.DB, accountID, viewerID snowflake.ID) (*OpenGroup, error)
	CreateOrder(ctx context.Context, db *gorm.DB, order *Order) error
	CreateGroup(ctx context.Context, db *gorm.DB, group *OrderGroup) error
	InsertItem(ctx context.Context, db *gorm.DB, item *OrderItem) error
	CountItems(ctx context.Context, db *gorm.DB, accountID, orderID snowflake.ID) (int64, error)
}
