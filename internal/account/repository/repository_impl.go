package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/streamcart/streamcart/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, default_vat_rate, created_at, updated_at
		 FROM accounts WHERE id = ?`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, name, default_vat_rate, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		account.ID,
		account.Name,
		account.DefaultVATRate,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}
