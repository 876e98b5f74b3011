package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reservation *Reservation) error
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Reservation, error)
	FindReservedBySourceForUpdate(ctx context.Context, db *gorm.DB, accountID snowflake.ID, sourceType SourceType, sourceRowID snowflake.ID) ([]Reservation, error)
	// UpdateStatus transitions a row out of reserved. Returns false when
	// the row was not in reserved state anymore.
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, to Status, at time.Time) (bool, error)
	// RecomputeReservedCache re-aggregates products.reserved_qty from the
	// ledger. Always a full recompute, never a delta.
	RecomputeReservedCache(ctx context.Context, db *gorm.DB, accountID, productID snowflake.ID) error
	SumReserved(ctx context.Context, db *gorm.DB, accountID, productID snowflake.ID) (int64, error)
}
