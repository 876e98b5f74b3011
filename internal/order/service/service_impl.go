package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/streamcart/streamcart/internal/clock"
	"github.com/streamcart/streamcart/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("order.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) WithTx(tx *gorm.DB) domain.Service {
	clone := *s
	clone.db = tx
	return &clone
}

func (s *Service) FindOrCreateOpenGroup(ctx context.Context, accountID, viewerID snowflake.ID, operatorID *snowflake.ID) (*domain.OpenGroup, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	if viewerID == 0 {
		return nil, domain.ErrInvalidViewer
	}

	existing, err := s.repo.FindOpenGroup(ctx, s.db, accountID, viewerID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:        s.genID.Generate(),
		AccountID: accountID,
		ViewerID:  viewerID,
		Number:    uuid.NewString(),
		Status:    domain.OrderStatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateOrder(ctx, s.db, &order); err != nil {
		return nil, err
	}

	group := domain.OrderGroup{
		ID:         s.genID.Generate(),
		AccountID:  accountID,
		OrderID:    order.ID,
		OperatorID: operatorID,
		Status:     domain.OrderStatusOpen,
		CreatedAt:  now,
	}
	if err := s.repo.CreateGroup(ctx, s.db, &group); err != nil {
		return nil, err
	}

	s.log.Debug("opened order group",
		zap.String("order_id", order.ID.String()),
		zap.String("group_id", group.ID.String()),
		zap.String("viewer_id", viewerID.String()),
	)
	return &domain.OpenGroup{OrderID: order.ID, GroupID: group.ID}, nil
}

func (s *Service) AddLineItem(ctx context.Context, req domain.AddLineItemRequest) error {
	if req.AccountID == 0 {
		return domain.ErrInvalidAccount
	}
	if req.OrderID == 0 || req.GroupID == 0 {
		return domain.ErrInvalidOrder
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ErrInvalidName
	}
	if req.Quantity <= 0 {
		return domain.ErrInvalidQuantity
	}
	if !req.Provenance.Valid() {
		return domain.ErrInvalidProvenance
	}

	item := domain.OrderItem{
		ID:         s.genID.Generate(),
		AccountID:  req.AccountID,
		OrderID:    req.OrderID,
		GroupID:    req.GroupID,
		ProductID:  req.ProductID,
		Name:       name,
		SKU:        strings.TrimSpace(req.SKU),
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
		VATRate:    req.VATRate,
		Provenance: req.Provenance,
		CreatedAt:  s.clock.Now(),
	}
	return s.repo.InsertItem(ctx, s.db, &item)
}
