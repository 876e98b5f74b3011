package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/streamcart/streamcart/internal/account/domain"
	auditdomain "github.com/streamcart/streamcart/internal/audit/domain"
	catalogdomain "github.com/streamcart/streamcart/internal/catalog/domain"
	"github.com/streamcart/streamcart/internal/clock"
	"github.com/streamcart/streamcart/internal/livesale/domain"
	obsmetrics "github.com/streamcart/streamcart/internal/observability/metrics"
	orderdomain "github.com/streamcart/streamcart/internal/order/domain"
	reservationdomain "github.com/streamcart/streamcart/internal/reservation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	CatalogRepo  catalogdomain.Repository
	AccountRepo  accountdomain.Repository
	Reservations reservationdomain.Service
	Orders       orderdomain.Service
	AuditSvc     auditdomain.Service
	Metrics      *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	catalogRepo  catalogdomain.Repository
	accountRepo  accountdomain.Repository
	reservations reservationdomain.Service
	orders       orderdomain.Service
	auditSvc     auditdomain.Service
	metrics      *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("livesale.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		catalogRepo:  p.CatalogRepo,
		accountRepo:  p.AccountRepo,
		reservations: p.Reservations,
		orders:       p.Orders,
		auditSvc:     p.AuditSvc,
		metrics:      p.Metrics,
	}
}

// Operators often leave the default label of the overlay form in place.
// Those labels carry no information, so a claim named like one is
// treated as unnamed and snapshots the catalog name instead.
var placeholderNames = map[string]struct{}{
	"product": {},
	"item":    {},
	"produkt": {},
	"artikel": {},
}

func normalizeName(raw string) string {
	name := strings.TrimSpace(raw)
	if _, ok := placeholderNames[strings.ToLower(name)]; ok {
		return ""
	}
	return name
}

func (s *Service) AddClaim(ctx context.Context, req domain.AddClaimRequest) (*domain.StagedLineItem, error) {
	if req.AccountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	if req.BroadcastID == 0 {
		return nil, domain.ErrInvalidBroadcast
	}
	if req.ViewerID == 0 {
		return nil, domain.ErrInvalidViewer
	}
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	name := normalizeName(req.Name)
	sku := strings.TrimSpace(req.SKU)
	unitPrice := req.UnitPrice
	vatRate := req.VATRate

	var staged *domain.StagedLineItem
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var product *catalogdomain.Product
		if req.ProductID != nil && *req.ProductID != 0 {
			var err error
			product, err = s.catalogRepo.FindByID(ctx, tx, req.AccountID, *req.ProductID)
			if err != nil {
				return err
			}
			if product == nil {
				return domain.ErrProductNotFound
			}
			if name == "" {
				name = product.Name
			}
			if sku == "" {
				sku = product.SKU
			}
			if unitPrice == nil {
				unitPrice = &product.UnitPrice
			}
			if vatRate == nil {
				vatRate = &product.VATRate
			}
		}

		if vatRate == nil {
			account, err := s.accountRepo.FindByID(ctx, tx, req.AccountID)
			if err != nil {
				return err
			}
			if account == nil {
				return domain.ErrInvalidAccount
			}
			vatRate = &account.DefaultVATRate
		}
		if unitPrice == nil {
			// A claim without any price source is staged as free rather
			// than rejected; the operator settles pricing before checkout.
			zero := int64(0)
			unitPrice = &zero
		}
		if name == "" {
			name = "Product"
		}

		sourceType := domain.SourceTypeCustom
		if product != nil {
			sourceType = domain.SourceTypeCatalog
		}

		item := domain.StagedLineItem{
			ID:          s.genID.Generate(),
			AccountID:   req.AccountID,
			BroadcastID: req.BroadcastID,
			ViewerID:    req.ViewerID,
			OperatorID:  req.OperatorID,
			ProductID:   req.ProductID,
			Name:        name,
			SKU:         sku,
			Quantity:    req.Quantity,
			UnitPrice:   *unitPrice,
			VATRate:     *vatRate,
			SourceType:  sourceType,
			CreatedAt:   s.clock.Now(),
		}
		if err := s.repo.Insert(ctx, tx, &item); err != nil {
			return err
		}

		// Catalog claims open their stock reservation in the same
		// transaction, so a staged catalog row without a reservation
		// can never be observed.
		if product != nil {
			reservationID, err := s.reservations.WithTx(tx).Open(ctx, reservationdomain.OpenRequest{
				AccountID:   req.AccountID,
				ProductID:   product.ID,
				ViewerID:    &req.ViewerID,
				BroadcastID: &req.BroadcastID,
				Quantity:    req.Quantity,
				SourceType:  reservationdomain.SourceTypeLiveCart,
				SourceRowID: item.ID,
			})
			if err != nil {
				return err
			}
			if err := s.repo.SetReservation(ctx, tx, item.ID, reservationID); err != nil {
				return err
			}
			item.ReservationID = &reservationID
		}

		staged = &item
		return nil
	})
	if err != nil {
		s.log.Error("failed to stage live claim",
			zap.String("account_id", req.AccountID.String()),
			zap.String("broadcast_id", req.BroadcastID.String()),
			zap.String("viewer_id", req.ViewerID.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.ClaimStaged(string(staged.SourceType))
	return staged, nil
}

func (s *Service) FinalizeBatch(ctx context.Context, req domain.FinalizeBatchRequest) (int, error) {
	if req.AccountID == 0 {
		return 0, domain.ErrInvalidAccount
	}
	if req.BroadcastID == 0 {
		return 0, domain.ErrInvalidBroadcast
	}

	attempted := 0
	migrated := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		items, err := s.repo.FindPendingByBroadcastForUpdate(ctx, tx, req.AccountID, req.BroadcastID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		attempted = len(items)

		ordersTx := s.orders.WithTx(tx)
		reservationsTx := s.reservations.WithTx(tx)
		now := s.clock.Now()

		for _, item := range items {
			group, err := ordersTx.FindOrCreateOpenGroup(ctx, item.AccountID, item.ViewerID, req.OperatorID)
			if err != nil {
				return err
			}

			if err := ordersTx.AddLineItem(ctx, orderdomain.AddLineItemRequest{
				AccountID:  item.AccountID,
				OrderID:    group.OrderID,
				GroupID:    group.GroupID,
				ProductID:  item.ProductID,
				Name:       item.Name,
				SKU:        item.SKU,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				VATRate:    item.VATRate,
				Provenance: orderdomain.ProvenanceLive,
			}); err != nil {
				return err
			}

			if item.ReservationID != nil {
				committed, err := reservationsTx.Commit(ctx, *item.ReservationID)
				if err != nil {
					return err
				}
				if !committed {
					s.log.Warn("staged item reservation was already settled",
						zap.String("staged_item_id", item.ID.String()),
						zap.String("reservation_id", item.ReservationID.String()),
					)
				}
			}

			if err := s.repo.MarkTransferred(ctx, tx, item.ID, now, group.OrderID, group.GroupID); err != nil {
				return err
			}
			migrated++
		}

		s.writeAudit(ctx, req.AccountID, "live.batch_finalized", req.BroadcastID, map[string]any{
			"count": migrated,
		})
		return nil
	})
	if err != nil {
		s.metrics.FinalizeFailed()
		s.log.Error("live finalization failed, batch rolled back",
			zap.String("account_id", req.AccountID.String()),
			zap.String("broadcast_id", req.BroadcastID.String()),
			zap.Int("pending_items", attempted),
			zap.Error(err),
		)
		return 0, fmt.Errorf("finalize live batch %s: %w", req.BroadcastID, err)
	}

	s.metrics.ItemsFinalized(migrated)
	return migrated, nil
}

func (s *Service) writeAudit(ctx context.Context, accountID snowflake.ID, action string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	target := targetID.String()
	if err := s.auditSvc.AuditLog(ctx, &accountID, "", nil, action, "broadcast", &target, metadata); err != nil {
		s.log.Warn("failed to write live finalization audit log", zap.String("action", action), zap.Error(err))
	}
}
