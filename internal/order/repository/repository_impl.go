package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/streamcart/streamcart/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindOpenGroup(ctx context.Context, db *gorm.DB, accountID, viewerID snowflake.ID) (*domain.OpenGroup, error) {
	var group domain.OpenGroup
	err := db.WithContext(ctx).Raw(
		`SELECT o.id AS order_id, g.id AS group_id
		 FROM orders o
		 JOIN order_groups g ON g.order_id = o.id AND g.status = ?
		 WHERE o.account_id = ? AND o.viewer_id = ? AND o.status = ?
		 ORDER BY g.created_at DESC
		 LIMIT 1`,
		domain.OrderStatusOpen,
		accountID,
		viewerID,
		domain.OrderStatusOpen,
	).Scan(&group).Error
	if err != nil {
		return nil, err
	}
	if group.OrderID == 0 {
		return nil, nil
	}
	return &group, nil
}

func (r *repo) CreateOrder(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (id, account_id, viewer_id, number, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.AccountID,
		order.ViewerID,
		order.Number,
		order.Status,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) CreateGroup(ctx context.Context, db *gorm.DB, group *domain.OrderGroup) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_groups (id, account_id, order_id, operator_id, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		group.ID,
		group.AccountID,
		group.OrderID,
		group.OperatorID,
		group.Status,
		group.CreatedAt,
	).Error
}

func (r *repo) InsertItem(ctx context.Context, db *gorm.DB, item *domain.OrderItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO order_items (id, account_id, order_id, group_id, product_id, name, sku, quantity, unit_price, vat_rate, provenance, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.AccountID,
		item.OrderID,
		item.GroupID,
		item.ProductID,
		item.Name,
		item.SKU,
		item.Quantity,
		item.UnitPrice,
		item.VATRate,
		item.Provenance,
		item.CreatedAt,
	).Error
}

func (r *repo) CountItems(ctx context.Context, db *gorm.DB, accountID, orderID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM order_items WHERE account_id = ? AND order_id = ?`,
		accountID,
		orderID,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
