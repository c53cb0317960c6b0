package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/paychunk/paychunk/internal/audit/domain"
	"github.com/paychunk/paychunk/internal/clock"
	platformdomain "github.com/paychunk/paychunk/internal/platform/domain"
	"github.com/paychunk/paychunk/internal/resource/domain"
	"github.com/paychunk/paychunk/pkg/db"
	"github.com/paychunk/paychunk/pkg/db/pagination"
	"github.com/paychunk/paychunk/pkg/safemath"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Repo         domain.Repository
	PlatformRepo platformdomain.Repository
	Platform     platformdomain.Service
	Audit        auditdomain.Service
}

type service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	repo         domain.Repository
	platformRepo platformdomain.Repository
	platform     platformdomain.Service
	audit        auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &service{
		db:           p.DB,
		log:          p.Log.Named("resource.service"),
		clock:        p.Clock,
		repo:         p.Repo,
		platformRepo: p.PlatformRepo,
		platform:     p.Platform,
		audit:        p.Audit,
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Resource, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" || len(id) > domain.MaxResourceIDLength {
		return nil, domain.ErrInvalidResourceID
	}
	hash := strings.TrimSpace(req.ContentHash)
	if hash == "" || len(hash) > domain.MaxContentHashLength {
		return nil, domain.ErrInvalidContentHash
	}
	title := strings.TrimSpace(req.Title)
	if title == "" || len(title) > domain.MaxTitleLength {
		return nil, domain.ErrInvalidTitle
	}
	if len(req.Description) > domain.MaxDescriptionLength {
		return nil, domain.ErrInvalidDescription
	}
	if req.UnitCount == 0 || req.UnitCount > domain.MaxUnitsPerResource {
		return nil, domain.ErrInvalidUnitCount
	}

	cfg, err := s.platform.Get(ctx)
	if err != nil {
		return nil, err
	}
	if req.PricePerUnit < cfg.MinPricePerUnit {
		return nil, domain.ErrPriceTooLow
	}

	now := s.clock.Now().UTC()
	resource := &domain.Resource{
		ID:           id,
		Owner:        req.Owner,
		ContentHash:  hash,
		Title:        title,
		Description:  req.Description,
		UnitCount:    req.UnitCount,
		PricePerUnit: req.PricePerUnit,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	earnings := &domain.Earnings{
		ResourceID: id,
		Owner:      req.Owner,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, resource, earnings); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrResourceExists
			}
			return err
		}

		txCfg, err := s.platformRepo.Get(ctx, tx)
		if err != nil {
			return err
		}
		txCfg.TotalResources, err = safemath.AddU64(txCfg.TotalResources, 1)
		if err != nil {
			return err
		}
		txCfg.UpdatedAt = now
		if err := s.platformRepo.UpdateTotals(ctx, tx, txCfg); err != nil {
			return err
		}

		s.audit.Record(ctx, tx, req.Owner, auditdomain.ActionResourceCreated,
			"resource", id, map[string]any{
				"unit_count":     req.UnitCount,
				"price_per_unit": req.PricePerUnit,
			})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("resource created",
		zap.String("resource_id", id),
		zap.String("owner", req.Owner),
		zap.Uint32("unit_count", req.UnitCount),
		zap.Uint64("price_per_unit", req.PricePerUnit),
	)
	return resource, nil
}

func (s *service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Resource, error) {
	if req.Title == nil && req.Description == nil && req.PricePerUnit == nil && req.Active == nil {
		return nil, domain.ErrNoUpdateProvided
	}

	var resource *domain.Resource
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		resource, err = s.repo.Get(ctx, tx, req.ID)
		if err != nil {
			return err
		}
		if resource == nil {
			return domain.ErrResourceNotFound
		}
		if resource.Owner != req.Owner {
			return domain.ErrNotResourceOwner
		}

		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" || len(title) > domain.MaxTitleLength {
				return domain.ErrInvalidTitle
			}
			resource.Title = title
		}
		if req.Description != nil {
			if len(*req.Description) > domain.MaxDescriptionLength {
				return domain.ErrInvalidDescription
			}
			resource.Description = *req.Description
		}
		if req.PricePerUnit != nil {
			cfg, err := s.platform.Get(ctx)
			if err != nil {
				return err
			}
			if *req.PricePerUnit < cfg.MinPricePerUnit {
				return domain.ErrPriceTooLow
			}
			resource.PricePerUnit = *req.PricePerUnit
		}
		if req.Active != nil {
			resource.Active = *req.Active
		}

		resource.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Update(ctx, tx, resource); err != nil {
			return err
		}

		s.audit.Record(ctx, tx, req.Owner, auditdomain.ActionResourceUpdated,
			"resource", req.ID, map[string]any{
				"price_per_unit": resource.PricePerUnit,
				"active":         resource.Active,
			})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resource, nil
}

func (s *service) Get(ctx context.Context, id string) (*domain.Resource, error) {
	resource, err := s.repo.Get(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, domain.ErrResourceNotFound
	}
	return resource, nil
}

func (s *service) GetEarnings(ctx context.Context, id string) (*domain.Earnings, error) {
	earnings, err := s.repo.GetEarnings(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if earnings == nil {
		return nil, domain.ErrResourceNotFound
	}
	return earnings, nil
}

func (s *service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter := domain.ListFilter{
		Owner:      strings.TrimSpace(req.Owner),
		ActiveOnly: req.ActiveOnly,
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}
	filter.Limit = pageSize + 1

	if req.PageToken != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil || decoded.ID == "" {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		filter.Cursor = &domain.ResourceCursor{CreatedAt: createdAt, ID: decoded.ID}
	}

	resources, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListResponse{}, err
	}

	data, pageInfo := pagination.BuildCursorPageInfo(resources, pageSize, func(r *domain.Resource) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        r.ID,
			CreatedAt: r.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	return domain.ListResponse{Data: data, PageInfo: pageInfo}, nil
}
