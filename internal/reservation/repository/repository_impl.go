package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/streamcart/streamcart/internal/reservation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reservation *domain.Reservation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO reservations (id, account_id, product_id, viewer_id, broadcast_id, quantity, status, source_type, source_row_id, created_at, reserved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reservation.ID,
		reservation.AccountID,
		reservation.ProductID,
		reservation.ViewerID,
		reservation.BroadcastID,
		reservation.Quantity,
		reservation.Status,
		reservation.SourceType,
		reservation.SourceRowID,
		reservation.CreatedAt,
		reservation.ReservedAt,
	).Error
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Reservation, error) {
	var reservation domain.Reservation
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, product_id, viewer_id, broadcast_id, quantity, status, source_type, source_row_id, created_at, reserved_at, committed_at, released_at
		 FROM reservations
		 WHERE id = ?
		 FOR UPDATE`,
		id,
	).Scan(&reservation).Error
	if err != nil {
		return nil, err
	}
	if reservation.ID == 0 {
		return nil, nil
	}
	return &reservation, nil
}

func (r *repo) FindReservedBySourceForUpdate(ctx context.Context, db *gorm.DB, accountID snowflake.ID, sourceType domain.SourceType, sourceRowID snowflake.ID) ([]domain.Reservation, error) {
	var reservations []domain.Reservation
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, product_id, viewer_id, broadcast_id, quantity, status, source_type, source_row_id, created_at, reserved_at, committed_at, released_at
		 FROM reservations
		 WHERE account_id = ? AND source_type = ? AND source_row_id = ? AND status = ?
		 ORDER BY id ASC
		 FOR UPDATE`,
		accountID,
		sourceType,
		sourceRowID,
		domain.StatusReserved,
	).Scan(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, to domain.Status, at time.Time) (bool, error) {
	var result *gorm.DB
	switch to {
	case domain.StatusCommitted:
		result = db.WithContext(ctx).Exec(
			`UPDATE reservations SET status = ?, committed_at = ? WHERE id = ? AND status = ?`,
			to, at, id, domain.StatusReserved,
		)
	case domain.StatusReleased:
		result = db.WithContext(ctx).Exec(
			`UPDATE reservations SET status = ?, released_at = ? WHERE id = ? AND status = ?`,
			to, at, id, domain.StatusReserved,
		)
	default:
		return false, fmt.Errorf("invalid target status %q", to)
	}
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) RecomputeReservedCache(ctx context.Context, db *gorm.DB, accountID, productID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE products
		 SET reserved_qty = (
		 	SELECT COALESCE(SUM(quantity), 0)
		 	FROM reservations
		 	WHERE account_id = ? AND product_id = ? AND status = ?
		 )
		 WHERE account_id = ? AND id = ?`,
		accountID,
		productID,
		domain.StatusReserved,
		accountID,
		productID,
	).Error
}

func (r *repo) SumReserved(ctx context.Context, db *gorm.DB, accountID, productID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(quantity), 0)
		 FROM reservations
		 WHERE account_id = ? AND product_id = ? AND status = ?`,
		accountID,
		productID,
		domain.StatusReserved,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
