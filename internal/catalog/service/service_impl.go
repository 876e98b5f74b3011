package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/streamcart/streamcart/internal/accountctx"
	"github.com/streamcart/streamcart/internal/catalog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	accountID, ok := accountctx.AccountIDFromContext(ctx)
	if !ok || accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}

	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		return nil, domain.ErrInvalidSKU
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.UnitPrice < 0 {
		return nil, domain.ErrInvalidUnitPrice
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := time.Now().UTC()
	product := domain.Product{
		ID:          s.genID.Generate(),
		AccountID:   accountID,
		SKU:         sku,
		Name:        name,
		Description: req.Description,
		UnitPrice:   req.UnitPrice,
		VATRate:     req.VATRate,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, s.db, &product); err != nil {
		return nil, err
	}

	resp := toResponse(product)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	accountID, ok := accountctx.AccountIDFromContext(ctx)
	if !ok || accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}

	items, err := s.repo.List(ctx, s.db, accountID, req)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Response, 0, len(items))
	for _, item := range items {
		out = append(out, toResponse(item))
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	accountID, ok := accountctx.AccountIDFromContext(ctx)
	if !ok || accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}

	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || productID == 0 {
		return nil, domain.ErrInvalidID
	}

	product, err := s.repo.FindByID(ctx, s.db, accountID, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, domain.ErrNotFound
	}

	resp := toResponse(*product)
	return &resp, nil
}

func toResponse(p domain.Product) domain.Response {
	return domain.Response{
		ID:          p.ID.String(),
		AccountID:   p.AccountID.String(),
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		UnitPrice:   p.UnitPrice,
		VATRate:     p.VATRate,
		ReservedQty: p.ReservedQty,
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
