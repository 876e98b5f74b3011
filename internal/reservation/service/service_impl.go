package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/streamcart/streamcart/internal/audit/domain"
	"github.com/streamcart/streamcart/internal/clock"
	obsmetrics "github.com/streamcart/streamcart/internal/observability/metrics"
	"github.com/streamcart/streamcart/internal/reservation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service
	Guard    domain.AvailabilityGuard `optional:"true"`
	Metrics  *obsmetrics.Metrics      `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
	guard    domain.AvailabilityGuard
	metrics  *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("reservation.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
		guard:    p.Guard,
		metrics:  p.Metrics,
	}
}

func (s *Service) WithTx(tx *gorm.DB) domain.Service {
	clone := *s
	clone.db = tx
	return &clone
}

func (s *Service) Open(ctx context.Context, req domain.OpenRequest) (snowflake.ID, error) {
	if req.AccountID == 0 {
		return 0, domain.ErrInvalidAccount
	}
	if req.ProductID == 0 {
		return 0, domain.ErrInvalidProduct
	}
	if req.Quantity <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	if !req.SourceType.Valid() || req.SourceRowID == 0 {
		return 0, domain.ErrInvalidSource
	}

	var reservationID snowflake.ID
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if s.guard != nil {
			if err := s.guard.CheckOpen(ctx, tx, req); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		reservation := domain.Reservation{
			ID:          s.genID.Generate(),
			AccountID:   req.AccountID,
			ProductID:   req.ProductID,
			ViewerID:    req.ViewerID,
			BroadcastID: req.BroadcastID,
			Quantity:    req.Quantity,
			Status:      domain.StatusReserved,
			SourceType:  req.SourceType,
			SourceRowID: req.SourceRowID,
			CreatedAt:   now,
			ReservedAt:  now,
		}
		if err := s.repo.Insert(ctx, tx, &reservation); err != nil {
			return err
		}
		reservationID = reservation.ID

		s.writeAudit(ctx, req.AccountID, "reservation.opened", reservation.ID, map[string]any{
			"product_id":    req.ProductID.String(),
			"quantity":      req.Quantity,
			"source_type":   string(req.SourceType),
			"source_row_id": req.SourceRowID.String(),
		})

		// Cache recompute stays the last write of the transaction so
		// readers never observe a cache ahead of the rows behind it.
		s.recomputeCache(ctx, tx, req.AccountID, req.ProductID)
		return nil
	})
	if err != nil {
		s.log.Error("failed to open reservation",
			zap.String("account_id", req.AccountID.String()),
			zap.String("product_id", req.ProductID.String()),
			zap.Error(err),
		)
		return 0, err
	}

	s.metrics.ReservationOpened(string(req.SourceType))
	return reservationID, nil
}

func (s *Service) Commit(ctx context.Context, id snowflake.ID) (bool, error) {
	return s.transition(ctx, id, domain.StatusCommitted)
}

func (s *Service) Release(ctx context.Context, id snowflake.ID) (bool, error) {
	return s.transition(ctx, id, domain.StatusReleased)
}

func (s *Service) CommitBySource(ctx context.Context, accountID snowflake.ID, sourceType domain.SourceType, sourceRowID snowflake.ID) (bool, error) {
	return s.transitionBySource(ctx, accountID, sourceType, sourceRowID, domain.StatusCommitted)
}

func (s *Service) ReleaseBySource(ctx context.Context, accountID snowflake.ID, sourceType domain.SourceType, sourceRowID snowflake.ID) (bool, error) {
	return s.transitionBySource(ctx, accountID, sourceType, sourceRowID, domain.StatusReleased)
}

func (s *Service) transition(ctx context.Context, id snowflake.ID, to domain.Status) (bool, error) {
	if id == 0 {
		return false, domain.ErrNotFound
	}

	transitioned := false
	err := s.db.Transaction(func(tx *gorm.DB) error {
		reservation, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if reservation == nil {
			return domain.ErrNotFound
		}
		if reservation.Status != domain.StatusReserved {
			s.log.Warn("reservation already settled",
				zap.String("reservation_id", id.String()),
				zap.String("status", string(reservation.Status)),
				zap.String("requested", string(to)),
			)
			return nil
		}

		ok, err := s.repo.UpdateStatus(ctx, tx, reservation.ID, to, s.clock.Now())
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		transitioned = true

		s.writeAudit(ctx, reservation.AccountID, "reservation."+string(to), reservation.ID, map[string]any{
			"product_id": reservation.ProductID.String(),
			"quantity":   reservation.Quantity,
		})

		s.recomputeCache(ctx, tx, reservation.AccountID, reservation.ProductID)
		return nil
	})
	if err != nil {
		s.log.Error("failed to settle reservation",
			zap.String("reservation_id", id.String()),
			zap.String("requested", string(to)),
			zap.Error(err),
		)
		return false, err
	}

	if transitioned {
		s.recordSettled(to, 1)
	}
	return transitioned, nil
}

func (s *Service) transitionBySource(ctx context.Context, accountID snowflake.ID, sourceType domain.SourceType, sourceRowID snowflake.ID, to domain.Status) (bool, error) {
	if accountID == 0 {
		return false, domain.ErrInvalidAccount
	}
	if !sourceType.Valid() || sourceRowID == 0 {
		return false, domain.ErrInvalidSource
	}

	settled := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		reservations, err := s.repo.FindReservedBySourceForUpdate(ctx, tx, accountID, sourceType, sourceRowID)
		if err != nil {
			return err
		}
		if len(reservations) == 0 {
			return nil
		}

		now := s.clock.Now()
		products := make(map[snowflake.ID]struct{}, len(reservations))
		for _, reservation := range reservations {
			ok, err := s.repo.UpdateStatus(ctx, tx, reservation.ID, to, now)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			settled++
			products[reservation.ProductID] = struct{}{}
		}

		s.writeAudit(ctx, accountID, "reservation.batch_"+string(to), sourceRowID, map[string]any{
			"source_type": string(sourceType),
			"count":       settled,
		})

		// One recompute per distinct product, not one per row.
		for productID := range products {
			s.recomputeCache(ctx, tx, accountID, productID)
		}
		return nil
	})
	if err != nil {
		s.log.Error("failed to settle reservations by source",
			zap.String("account_id", accountID.String()),
			zap.String("source_type", string(sourceType)),
			zap.String("source_row_id", sourceRowID.String()),
			zap.String("requested", string(to)),
			zap.Error(err),
		)
		return false, err
	}

	s.recordSettled(to, settled)
	return true, nil
}

// recomputeCache refreshes the denormalized reserved quantity on the
// product row. A failure here leaves the cache stale, never wrong in the
// other direction, so it is logged and swallowed rather than rolling
// back the status write. The nested transaction scopes the failed
// statement to a savepoint.
func (s *Service) recomputeCache(ctx context.Context, tx *gorm.DB, accountID, productID snowflake.ID) {
	err := tx.Transaction(func(inner *gorm.DB) error {
		return s.repo.RecomputeReservedCache(ctx, inner, accountID, productID)
	})
	if err != nil {
		s.log.Warn("failed to recompute reserved stock cache",
			zap.String("account_id", accountID.String()),
			zap.String("product_id", productID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) writeAudit(ctx context.Context, accountID snowflake.ID, action string, targetID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	target := targetID.String()
	if err := s.auditSvc.AuditLog(ctx, &accountID, "", nil, action, "reservation", &target, metadata); err != nil {
		s.log.Warn("failed to write reservation audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) recordSettled(to domain.Status, n int) {
	switch to {
	case domain.StatusCommitted:
		s.metrics.ReservationsCommitted(n)
	case domain.StatusReleased:
		s.metrics.ReservationsReleased(n)
	}
}
