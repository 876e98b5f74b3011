package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *StagedLineItem) error
	SetReservation(ctx context.Context, db *gorm.DB, id, reservationID snowflake.ID) error

	// FindPendingByBroadcastForUpdate returns the not-yet-transferred
	// rows of a broadcast, oldest first, locked for the duration of the
	// surrounding transaction.
	FindPendingByBroadcastForUpdate(ctx context.Context, db *gorm.DB, accountID, broadcastID snowflake.ID) ([]StagedLineItem, error)

	MarkTransferred(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time, orderID, groupID snowflake.ID) error
}
