package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/paychunk/paychunk/internal/audit/domain"
	"github.com/paychunk/paychunk/internal/clock"
	"github.com/paychunk/paychunk/internal/observability/metrics"
	platformdomain "github.com/paychunk/paychunk/internal/platform/domain"
	resourcedomain "github.com/paychunk/paychunk/internal/resource/domain"
	"github.com/paychunk/paychunk/internal/session/domain"
	walletdomain "github.com/paychunk/paychunk/internal/wallet/domain"
	"github.com/paychunk/paychunk/pkg/db/pagination"
	"github.com/paychunk/paychunk/pkg/safemath"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	GenID        *snowflake.Node
	Repo         domain.Repository
	ResourceRepo resourcedomain.Repository
	PlatformRepo platformdomain.Repository
	Ledger       walletdomain.Ledger
	Audit        auditdomain.Service
	Metrics      *metrics.Metrics `optional:"true"`
}

type service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	genID        *snowflake.Node
	repo         domain.Repository
	resourceRepo resourcedomain.Repository
	platformRepo platformdomain.Repository
	ledger       walletdomain.Ledger
	audit        auditdomain.Service
	metrics      *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &service{
		db:           p.DB,
		log:          p.Log.Named("session.service"),
		clock:        p.Clock,
		genID:        p.GenID,
		repo:         p.Repo,
		resourceRepo: p.ResourceRepo,
		platformRepo: p.PlatformRepo,
		ledger:       p.Ledger,
		audit:        p.Audit,
		metrics:      p.Metrics,
	}
}

func (s *service) Authorize(ctx context.Context, req domain.AuthorizeRequest) (*domain.View, error) {
	consumer := strings.TrimSpace(req.Consumer)
	if consumer == "" || len(consumer) > platformdomain.MaxAccountIDLength {
		return nil, domain.ErrInvalidConsumer
	}
	if req.RequestedUnits == 0 || req.RequestedUnits > domain.MaxUnitsPerApproval {
		return nil, domain.ErrInvalidUnitsRequested
	}

	now := s.clock.Now().UTC()
	var (
		session   *domain.Session
		delegated uint64
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resource, err := s.resourceRepo.Get(ctx, tx, req.ResourceID)
		if err != nil {
			return err
		}
		if resource == nil {
			return resourcedomain.ErrResourceNotFound
		}
		if !resource.Active {
			return resourcedomain.ErrResourceInactive
		}

		cfg, err := s.platformRepo.Get(ctx, tx)
		if err != nil {
			return err
		}
		if cfg == nil {
			return platformdomain.ErrNotInitialized
		}

		session, err = s.repo.Get(ctx, tx, consumer, req.ResourceID)
		if err != nil {
			return err
		}

		isNew := session == nil
		if isNew {
			session = &domain.Session{
				ID:              s.genID.Generate(),
				Consumer:        consumer,
				ResourceID:      resource.ID,
				LockedPrice:     resource.PricePerUnit,
				ApprovedCeiling: req.RequestedUnits,
				OpenedAt:        now,
				LastActivityAt:  now,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
		} else {
			if session.IsExpired(now) {
				return domain.ErrSessionExpired
			}
			if session.IsInactive(now) {
				return domain.ErrSessionInactive
			}
			// Re-authorization extends the ceiling by the requested units.
			session.ApprovedCeiling, err = safemath.AddU32(session.ApprovedCeiling, req.RequestedUnits)
			if err != nil {
				return err
			}
			session.LastActivityAt = now
			session.UpdatedAt = now
		}
		remaining := session.RemainingApproval()

		delegated, err = safemath.MulU64(uint64(remaining), session.LockedPrice)
		if err != nil {
			return err
		}

		account, err := s.ledger.GetAccount(ctx, tx, consumer)
		if err != nil {
			return err
		}
		if account == nil || account.Balance < delegated {
			return domain.ErrInsufficientFundsForApproval
		}

		// The delegation is set, not added to. Re-authorizing always leaves
		// the delegate able to spend exactly the unpaid remainder.
		if err := s.ledger.Approve(ctx, tx, consumer, cfg.Authority, delegated); err != nil {
			return err
		}

		if isNew {
			if err := s.repo.Insert(ctx, tx, session); err != nil {
				return err
			}
			cfg.TotalSessions, err = safemath.AddU64(cfg.TotalSessions, 1)
			if err != nil {
				return err
			}
			cfg.UpdatedAt = now
			if err := s.platformRepo.UpdateTotals(ctx, tx, cfg); err != nil {
				return err
			}
		} else {
			if err := s.repo.Update(ctx, tx, session); err != nil {
				return err
			}
		}

		s.audit.Record(ctx, tx, consumer, auditdomain.ActionDelegationApproved,
			"session", session.ID.String(), map[string]any{
				"resource_id":      resource.ID,
				"requested_units":  req.RequestedUnits,
				"unit_ceiling":     session.ApprovedCeiling,
				"locked_price":     session.LockedPrice,
				"delegated_amount": delegated,
				"reapproval":       !isNew,
			})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuthorization(ctx)
	s.log.Info("session authorized",
		zap.String("consumer", consumer),
		zap.String("resource_id", req.ResourceID),
		zap.Uint32("unit_ceiling", session.ApprovedCeiling),
		zap.Uint64("delegated_amount", delegated),
	)
	return s.view(session, now, delegated), nil
}

func (s *service) SettleUnit(ctx context.Context, req domain.SettleUnitRequest) (*domain.Receipt, error) {
	now := s.clock.Now().UTC()
	var receipt *domain.Receipt

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, resource, cfg, err := s.loadSettlementState(ctx, tx, req.Consumer, req.ResourceID)
		if err != nil {
			return err
		}

		if session.IsExpired(now) {
			return domain.ErrSessionExpired
		}
		if session.IsInactive(now) {
			return domain.ErrSessionInactive
		}
		if req.UnitIndex >= resource.UnitCount {
			return domain.ErrInvalidUnitIndex
		}
		if session.RemainingApproval() == 0 {
			return domain.ErrInsufficientApproval
		}
		if req.UnitIndex != session.NextUnitIndex() {
			return domain.ErrOutOfSequenceUnit
		}
		// Price lock: the resource's current price must still match what the
		// session locked in. A repriced resource cannot charge open sessions
		// the new rate, and cannot serve them at the old one either.
		if resource.PricePerUnit != session.LockedPrice {
			return domain.ErrPriceChanged
		}
		// The consumer also confirms the price it expects to pay.
		if req.PricePerUnit != session.LockedPrice {
			return domain.ErrPriceChanged
		}

		fee, err := cfg.CalculateFee(session.LockedPrice)
		if err != nil {
			return err
		}
		ownerAmount := session.LockedPrice - fee

		if err := s.payOut(ctx, tx, session.Consumer, cfg.Authority, resource.Owner, ownerAmount, fee); err != nil {
			return err
		}

		session.UnitsConsumed, err = safemath.AddU32(session.UnitsConsumed, 1)
		if err != nil {
			return err
		}
		paidIndex := req.UnitIndex
		session.LastUnitIndex = &paidIndex
		session.TotalPaid, err = safemath.AddU64(session.TotalPaid, session.LockedPrice)
		if err != nil {
			return err
		}
		session.LastActivityAt = now
		session.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, session); err != nil {
			return err
		}

		if err := s.resourceRepo.AddEarnings(ctx, tx, resource.ID, ownerAmount, 1, now); err != nil {
			return err
		}

		firstConsumption := session.UnitsConsumed == 1
		if err := s.recordTotals(ctx, tx, cfg, resource.ID, fee, firstConsumption, now); err != nil {
			return err
		}

		s.audit.Record(ctx, tx, session.Consumer, auditdomain.ActionUnitPaid,
			"session", session.ID.String(), map[string]any{
				"resource_id":      resource.ID,
				"unit_index":       req.UnitIndex,
				"payment_sequence": session.UnitsConsumed,
				"amount":           session.LockedPrice,
				"fee":              fee,
				"owner_amount":     ownerAmount,
				"units_remaining":  session.RemainingApproval(),
			})

		receipt = &domain.Receipt{
			SessionID:   session.ID.String(),
			ResourceID:  resource.ID,
			Units:       1,
			Amount:      session.LockedPrice,
			Fee:         fee,
			OwnerAmount: ownerAmount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordSettlement(ctx, "unit", receipt)
	return receipt, nil
}

func (s *service) SettleBatch(ctx context.Context, req domain.SettleBatchRequest) (*domain.Receipt, error) {
	if req.UnitCount == 0 {
		return nil, domain.ErrInvalidUnitCount
	}

	now := s.clock.Now().UTC()
	var receipt *domain.Receipt

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, resource, cfg, err := s.loadSettlementState(ctx, tx, req.Consumer, req.ResourceID)
		if err != nil {
			return err
		}

		if session.IsExpired(now) {
			return domain.ErrSessionExpired
		}
		if req.PricePerUnit != session.LockedPrice {
			return domain.ErrPriceChanged
		}
		// Inactivity is tolerated here: the units were already delivered,
		// refusing payment would only strand the owner's revenue.

		consumed, err := safemath.AddU32(session.UnitsConsumed, req.UnitCount)
		if err != nil {
			return err
		}
		if consumed > session.ApprovedCeiling {
			return domain.ErrSettlementExceedsApproval
		}

		reportedAt := req.ReportedAt.UTC()
		if reportedAt.Before(session.OpenedAt) {
			return domain.ErrSettlementTooOld
		}
		if reportedAt.After(now) {
			return domain.ErrSettlementInFuture
		}

		total, err := safemath.MulU64(uint64(req.UnitCount), session.LockedPrice)
		if err != nil {
			return err
		}
		fee, err := cfg.CalculateFee(total)
		if err != nil {
			return err
		}
		ownerAmount := total - fee

		if err := s.payOut(ctx, tx, session.Consumer, cfg.Authority, resource.Owner, ownerAmount, fee); err != nil {
			return err
		}

		// The sequential marker is left alone: batch settlement pays for
		// delivery the resource server already performed, it does not move
		// the consumer's position in the unit sequence.
		session.UnitsConsumed = consumed
		session.TotalPaid, err = safemath.AddU64(session.TotalPaid, total)
		if err != nil {
			return err
		}
		session.LastActivityAt = now
		session.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, session); err != nil {
			return err
		}

		if err := s.resourceRepo.AddEarnings(ctx, tx, resource.ID, ownerAmount, uint64(req.UnitCount), now); err != nil {
			return err
		}

		firstConsumption := session.UnitsConsumed == req.UnitCount
		if err := s.recordTotals(ctx, tx, cfg, resource.ID, fee, firstConsumption, now); err != nil {
			return err
		}

		s.audit.Record(ctx, tx, session.Consumer, auditdomain.ActionSessionSettled,
			"session", session.ID.String(), map[string]any{
				"resource_id":     resource.ID,
				"unit_count":      req.UnitCount,
				"amount":          total,
				"fee":             fee,
				"owner_amount":    ownerAmount,
				"units_consumed":  session.UnitsConsumed,
				"units_remaining": session.RemainingApproval(),
				"reported_at":     reportedAt.Format(time.RFC3339Nano),
			})

		receipt = &domain.Receipt{
			SessionID:   session.ID.String(),
			ResourceID:  resource.ID,
			Units:       req.UnitCount,
			Amount:      total,
			Fee:         fee,
			OwnerAmount: ownerAmount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordSettlement(ctx, "batch", receipt)
	return receipt, nil
}

func (s *service) Revoke(ctx context.Context, consumer, resourceID string) (*domain.View, error) {
	now := s.clock.Now().UTC()
	var session *domain.Session

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		session, err = s.repo.Get(ctx, tx, consumer, resourceID)
		if err != nil {
			return err
		}
		if session == nil {
			return domain.ErrSessionNotFound
		}

		cfg, err := s.platformRepo.Get(ctx, tx)
		if err != nil {
			return err
		}
		if cfg == nil {
			return platformdomain.ErrNotInitialized
		}

		if err := s.ledger.Revoke(ctx, tx, consumer, cfg.Authority); err != nil {
			return err
		}

		// The session row is left as-is. With the delegation gone, any
		// further settlement fails until the consumer re-authorizes.
		s.audit.Record(ctx, tx, consumer, auditdomain.ActionDelegationRevoked,
			"session", session.ID.String(), map[string]any{
				"resource_id":    resourceID,
				"units_consumed": session.UnitsConsumed,
				"total_paid":     session.TotalPaid,
			})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.view(session, now, 0), nil
}

func (s *service) Close(ctx context.Context, consumer, resourceID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		session, err := s.repo.Get(ctx, tx, consumer, resourceID)
		if err != nil {
			return err
		}
		if session == nil {
			return domain.ErrSessionNotFound
		}

		cfg, err := s.platformRepo.Get(ctx, tx)
		if err != nil {
			return err
		}
		if cfg != nil {
			err = s.ledger.Revoke(ctx, tx, consumer, cfg.Authority)
			if err != nil && !errors.Is(err, walletdomain.ErrNoDelegation) {
				return err
			}
		}

		if err := s.repo.Delete(ctx, tx, session.ID); err != nil {
			return err
		}

		s.audit.Record(ctx, tx, consumer, auditdomain.ActionSessionClosed,
			"session", session.ID.String(), map[string]any{
				"resource_id":    resourceID,
				"units_consumed": session.UnitsConsumed,
				"total_paid":     session.TotalPaid,
			})
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("session closed",
		zap.String("consumer", consumer),
		zap.String("resource_id", resourceID),
	)
	return nil
}

func (s *service) Get(ctx context.Context, consumer, resourceID string) (*domain.View, error) {
	session, err := s.repo.Get(ctx, s.db, consumer, resourceID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	return s.view(session, s.clock.Now().UTC(), s.delegatedAmount(ctx, consumer)), nil
}

func (s *service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	consumer := strings.TrimSpace(req.Consumer)
	if consumer == "" {
		return domain.ListResponse{}, domain.ErrInvalidConsumer
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	filter := domain.ListFilter{Consumer: consumer, Limit: pageSize + 1}
	if req.PageToken != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		openedAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		filter.Cursor = &domain.SessionCursor{ID: id, OpenedAt: openedAt}
	}

	sessions, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}

	sessions, pageInfo := pagination.BuildCursorPageInfo(sessions, pageSize, func(item *domain.Session) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.OpenedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	now := s.clock.Now().UTC()
	delegated := s.delegatedAmount(ctx, consumer)
	views := make([]domain.View, 0, len(sessions))
	for i := range sessions {
		views = append(views, *s.view(&sessions[i], now, delegated))
	}
	return domain.ListResponse{Data: views, PageInfo: pageInfo}, nil
}

// loadSettlementState fetches the session, its resource, and the platform
// config for a settlement. Missing rows and a deactivated resource map to
// domain errors.
func (s *service) loadSettlementState(ctx context.Context, tx *gorm.DB, consumer, resourceID string) (*domain.Session, *resourcedomain.Resource, *platformdomain.PlatformConfig, error) {
	session, err := s.repo.Get(ctx, tx, consumer, resourceID)
	if err != nil {
		return nil, nil, nil, err
	}
	if session == nil {
		return nil, nil, nil, domain.ErrSessionNotFound
	}

	resource, err := s.resourceRepo.Get(ctx, tx, resourceID)
	if err != nil {
		return nil, nil, nil, err
	}
	if resource == nil {
		return nil, nil, nil, resourcedomain.ErrResourceNotFound
	}
	if !resource.Active {
		return nil, nil, nil, resourcedomain.ErrResourceInactive
	}

	cfg, err := s.platformRepo.Get(ctx, tx)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg == nil {
		return nil, nil, nil, platformdomain.ErrNotInitialized
	}
	return session, resource, cfg, nil
}

// payOut moves the owner's share and the platform fee out of the consumer's
// account under the platform delegation.
func (s *service) payOut(ctx context.Context, tx *gorm.DB, consumer, authority, owner string, ownerAmount, fee uint64) error {
	if ownerAmount > 0 {
		if err := s.ledger.Transfer(ctx, tx, consumer, authority, owner, ownerAmount); err != nil {
			return err
		}
	}
	if fee > 0 {
		if err := s.ledger.Transfer(ctx, tx, consumer, authority, authority, fee); err != nil {
			return err
		}
	}
	return nil
}

// recordTotals accumulates platform revenue and, on a session's first ever
// consumption, the resource's session counters.
func (s *service) recordTotals(ctx context.Context, tx *gorm.DB, cfg *platformdomain.PlatformConfig, resourceID string, fee uint64, firstConsumption bool, now time.Time) error {
	var err error
	cfg.TotalRevenue, err = safemath.AddU64(cfg.TotalRevenue, fee)
	if err != nil {
		return err
	}
	cfg.UpdatedAt = now
	if err := s.platformRepo.UpdateTotals(ctx, tx, cfg); err != nil {
		return err
	}
	if firstConsumption {
		if err := s.resourceRepo.IncrementSessions(ctx, tx, resourceID, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) recordSettlement(ctx context.Context, path string, receipt *domain.Receipt) {
	s.metrics.RecordSettlement(ctx, path, receipt.Units, receipt.Fee)

	s.log.Info("settlement",
		zap.String("path", path),
		zap.String("session_id", receipt.SessionID),
		zap.String("resource_id", receipt.ResourceID),
		zap.Uint32("units", receipt.Units),
		zap.Uint64("amount", receipt.Amount),
		zap.Uint64("fee", receipt.Fee),
	)
}

func (s *service) delegatedAmount(ctx context.Context, consumer string) uint64 {
	cfg, err := s.platformRepo.Get(ctx, s.db)
	if err != nil || cfg == nil {
		return 0
	}
	delegation, err := s.ledger.GetDelegation(ctx, s.db, consumer, cfg.Authority)
	if err != nil || delegation == nil {
		return 0
	}
	return delegation.Amount
}

func (s *service) view(session *domain.Session, now time.Time, delegated uint64) *domain.View {
	return &domain.View{
		Session:         *session,
		Status:          session.StatusAt(now),
		RemainingUnits:  session.RemainingApproval(),
		DelegatedAmount: delegated,
	}
}
