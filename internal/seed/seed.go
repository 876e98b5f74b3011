package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/streamcart/streamcart/internal/account/domain"
	"gorm.io/gorm"
)

const defaultAccountName = "Main"

// EnsureDefaultAccount seeds the bootstrap seller account so a fresh
// install can serve requests without manual setup.
func EnsureDefaultAccount(db *gorm.DB) error {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}
	return EnsureDefaultAccountWithID(db, int64(node.Generate()))
}

func EnsureDefaultAccountWithID(db *gorm.DB, id int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if id == 0 {
		return errors.New("seed account id is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing accountdomain.Account
		err := tx.WithContext(ctx).Raw(
			`SELECT id, name, default_vat_rate, created_at, updated_at FROM accounts WHERE id = ?`,
			snowflake.ID(id),
		).Scan(&existing).Error
		if err != nil {
			return err
		}
		if existing.ID != 0 {
			return nil
		}

		now := time.Now().UTC()
		return tx.WithContext(ctx).Exec(
			`INSERT INTO accounts (id, name, default_vat_rate, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			snowflake.ID(id), defaultAccountName, 0, now, now,
		).Error
	})
}
