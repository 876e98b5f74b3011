package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/streamcart/streamcart/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (id, account_id, sku, name, description, unit_price, vat_rate, reserved_qty, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.AccountID,
		product.SKU,
		product.Name,
		product.Description,
		product.UnitPrice,
		product.VATRate,
		product.ReservedQty,
		product.Active,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, accountID, id snowflake.ID) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, sku, name, description, unit_price, vat_rate, reserved_qty, active, created_at, updated_at
		 FROM products WHERE account_id = ? AND id = ?`,
		accountID,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, accountID snowflake.ID, filter domain.ListRequest) ([]domain.Product, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Product{}).
		Where("account_id = ?", accountID)

	if filter.Name != "" {
		stmt = stmt.Where("name = ?", filter.Name)
	}
	if filter.Active != nil {
		stmt = stmt.Where("active = ?", *filter.Active)
	}

	var items []domain.Product
	if err := stmt.Order("created_at ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
