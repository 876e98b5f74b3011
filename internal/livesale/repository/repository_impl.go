package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/streamcart/streamcart/internal/livesale/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, item *domain.StagedLineItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO staged_live_items (id, account_id, broadcast_id, viewer_id, operator_id, product_id, name, sku, quantity, unit_price, vat_rate, source_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.AccountID,
		item.BroadcastID,
		item.ViewerID,
		item.OperatorID,
		item.ProductID,
		item.Name,
		item.SKU,
		item.Quantity,
		item.UnitPrice,
		item.VATRate,
		item.SourceType,
		item.CreatedAt,
	).Error
}

func (r *repo) SetReservation(ctx context.Context, db *gorm.DB, id, reservationID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE staged_live_items SET reservation_id = ? WHERE id = ?`,
		reservationID, id,
	).Error
}

func (r *repo) FindPendingByBroadcastForUpdate(ctx context.Context, db *gorm.DB, accountID, broadcastID snowflake.ID) ([]domain.StagedLineItem, error) {
	var items []domain.StagedLineItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, broadcast_id, viewer_id, operator_id, product_id, name, sku, quantity, unit_price, vat_rate, source_type, reservation_id, transferred_at, target_order_id, target_group_id, created_at
		 FROM staged_live_items
		 WHERE account_id = ? AND broadcast_id = ? AND transferred_at IS NULL
		 ORDER BY id ASC
		 FOR UPDATE`,
		accountID,
		broadcastID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkTransferred(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time, orderID, groupID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE staged_live_items SET transferred_at = ?, target_order_id = ?, target_group_id = ? WHERE id = ?`,
		at, orderID, groupID, id,
	).Error
}
