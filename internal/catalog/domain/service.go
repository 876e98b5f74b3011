package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
}

type ListRequest struct {
	Name   string
	Active *bool
}

type CreateRequest struct {
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	UnitPrice   int64   `json:"unit_price"`
	VATRate     int32   `json:"vat_rate"`
	Active      *bool   `json:"active"`
}

type Response struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	UnitPrice   int64     `json:"unit_price"`
	VATRate     int32     `json:"vat_rate"`
	ReservedQty int64     `json:"reserved_qty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var (
	ErrInvalidAccount   = errors.New("invalid_account")
	ErrInvalidSKU       = errors.New("invalid_sku")
	ErrInvalidName      = errors.New("invalid_name")
	ErrInvalidUnitPrice = errors.New("invalid_unit_price")
	ErrInvalidID        = errors.New("invalid_id")
	ErrNotFound         = errors.New("not_found")
)
