package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/paychunk/paychunk/internal/resource/domain"
	"github.com/paychunk/paychunk/pkg/safemath"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, resource *domain.Resource, earnings *domain.Earnings) error {
	err := db.WithContext(ctx).Exec(`
		INSERT INTO resources (
			id, owner, content_hash, title, description,
			unit_count, price_per_unit, active, units_served, total_sessions,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		resource.ID, resource.Owner, resource.ContentHash, resource.Title, resource.Description,
		resource.UnitCount, resource.PricePerUnit, resource.Active, resource.UnitsServed,
		resource.TotalSessions, resource.CreatedAt, resource.UpdatedAt,
	).Error
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Exec(`
		INSERT INTO earnings (
			resource_id, owner, total_earned, units_sold, total_sessions, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		earnings.ResourceID, earnings.Owner, earnings.TotalEarned, earnings.UnitsSold,
		earnings.TotalSessions, earnings.CreatedAt, earnings.UpdatedAt,
	).Error
}

func (r *repository) Get(ctx context.Context, db *gorm.DB, id string) (*domain.Resource, error) {
	var resource domain.Resource
	err := db.WithContext(ctx).Raw(`
		SELECT id, owner, content_hash, title, description,
			unit_count, price_per_unit, active, units_served, total_sessions,
			created_at, updated_at
		FROM resources
		WHERE id = ?
	`, id).Scan(&resource).Error
	if err != nil {
		return nil, err
	}
	if resource.ID == "" {
		return nil, nil
	}
	return &resource, nil
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, resource *domain.Resource) error {
	return db.WithContext(ctx).Exec(`
		UPDATE resources SET
			title = ?, description = ?, price_per_unit = ?, active = ?, updated_at = ?
		WHERE id = ?
	`,
		resource.Title, resource.Description, resource.PricePerUnit, resource.Active,
		resource.UpdatedAt, resource.ID,
	).Error
}

func (r *repository) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Resource, error) {
	query := `
		SELECT id, owner, content_hash, title, description,
			unit_count, price_per_unit, active, units_served, total_sessions,
			created_at, updated_at
		FROM resources
	`
	conds := make([]string, 0, 3)
	args := make([]any, 0, 5)

	if filter.Owner != "" {
		conds = append(conds, "owner = ?")
		args = append(args, filter.Owner)
	}
	if filter.ActiveOnly {
		conds = append(conds, "active = ?")
		args = append(args, true)
	}
	if filter.Cursor != nil {
		conds = append(conds, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, filter.Limit)

	var resources []domain.Resource
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (r *repository) IncrementSessions(ctx context.Context, db *gorm.DB, id string, updatedAt time.Time) error {
	var current uint64
	err := db.WithContext(ctx).Raw(`
		SELECT total_sessions FROM resources WHERE id = ?
	`, id).Scan(&current).Error
	if err != nil {
		return err
	}
	next, err := safemath.AddU64(current, 1)
	if err != nil {
		return err
	}
	err = db.WithContext(ctx).Exec(`
		UPDATE resources SET total_sessions = ?, updated_at = ? WHERE id = ?
	`, next, updatedAt, id).Error
	if err != nil {
		return err
	}

	var earned uint64
	err = db.WithContext(ctx).Raw(`
		SELECT total_sessions FROM earnings WHERE resource_id = ?
	`, id).Scan(&earned).Error
	if err != nil {
		return err
	}
	earnedNext, err := safemath.AddU64(earned, 1)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`
		UPDATE earnings SET total_sessions = ?, updated_at = ? WHERE resource_id = ?
	`, earnedNext, updatedAt, id).Error
}

func (r *repository) GetEarnings(ctx context.Context, db *gorm.DB, resourceID string) (*domain.Earnings, error) {
	var earnings domain.Earnings
	err := db.WithContext(ctx).Raw(`
		SELECT resource_id, owner, total_earned, units_sold, total_sessions, created_at, updated_at
		FROM earnings
		WHERE resource_id = ?
	`, resourceID).Scan(&earnings).Error
	if err != nil {
		return nil, err
	}
	if earnings.ResourceID == "" {
		return nil, nil
	}
	return &earnings, nil
}

func (r *repository) AddEarnings(ctx context.Context, db *gorm.DB, resourceID string, amount, units uint64, updatedAt time.Time) error {
	earnings, err := r.GetEarnings(ctx, db, resourceID)
	if err != nil {
		return err
	}
	if earnings == nil {
		return domain.ErrResourceNotFound
	}
	totalEarned, err := safemath.AddU64(earnings.TotalEarned, amount)
	if err != nil {
		return err
	}
	unitsSold, err := safemath.AddU64(earnings.UnitsSold, units)
	if err != nil {
		return err
	}
	err = db.WithContext(ctx).Exec(`
		UPDATE earnings SET total_earned = ?, units_sold = ?, updated_at = ?
		WHERE resource_id = ?
	`, totalEarned, unitsSold, updatedAt, resourceID).Error
	if err != nil {
		return err
	}

	var served uint64
	err = db.WithContext(ctx).Raw(`
		SELECT units_served FROM resources WHERE id = ?
	`, resourceID).Scan(&served).Error
	if err != nil {
		return err
	}
	servedNext, err := safemath.AddU64(served, units)
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`
		UPDATE resources SET units_served = ?, updated_at = ? WHERE id = ?
	`, servedNext, updatedAt, resourceID).Error
}
