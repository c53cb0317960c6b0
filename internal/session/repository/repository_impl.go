package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/paychunk/paychunk/internal/session/domain"
)

type repository struct{}

func Provide() domain.Repository {
	return &repository{}
}

func (r *repository) Insert(ctx context.Context, db *gorm.DB, session *domain.Session) error {
	return db.WithContext(ctx).Exec(`
		INSERT INTO sessions (
			id, consumer, resource_id, locked_price, approved_ceiling,
			units_consumed, last_unit_index, total_paid,
			opened_at, last_activity_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		session.ID, session.Consumer, session.ResourceID, session.LockedPrice, session.ApprovedCeiling,
		session.UnitsConsumed, session.LastUnitIndex, session.TotalPaid,
		session.OpenedAt, session.LastActivityAt, session.CreatedAt, session.UpdatedAt,
	).Error
}

func (r *repository) Get(ctx context.Context, db *gorm.DB, consumer, resourceID string) (*domain.Session, error) {
	var session domain.Session
	err := db.WithContext(ctx).Raw(`
		SELECT id, consumer, resource_id, locked_price, approved_ceiling,
			units_consumed, last_unit_index, total_paid,
			opened_at, last_activity_at, created_at, updated_at
		FROM sessions
		WHERE consumer = ? AND resource_id = ?
	`, consumer, resourceID).Scan(&session).Error
	if err != nil {
		return nil, err
	}
	if session.ID == 0 {
		return nil, nil
	}
	return &session, nil
}

func (r *repository) Update(ctx context.Context, db *gorm.DB, session *domain.Session) error {
	return db.WithContext(ctx).Exec(`
		UPDATE sessions SET
			approved_ceiling = ?, units_consumed = ?, last_unit_index = ?,
			total_paid = ?, last_activity_at = ?, updated_at = ?
		WHERE id = ?
	`,
		session.ApprovedCeiling, session.UnitsConsumed, session.LastUnitIndex,
		session.TotalPaid, session.LastActivityAt, session.UpdatedAt,
		session.ID,
	).Error
}

func (r *repository) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	res := db.WithContext(ctx).Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Session, error) {
	query := `
		SELECT id, consumer, resource_id, locked_price, approved_ceiling,
			units_consumed, last_unit_index, total_paid,
			opened_at, last_activity_at, created_at, updated_at
		FROM sessions
		WHERE consumer = ?
	`
	args := []any{filter.Consumer}

	if filter.Cursor != nil {
		query += " AND (opened_at < ? OR (opened_at = ? AND id < ?))"
		args = append(args, filter.Cursor.OpenedAt, filter.Cursor.OpenedAt, filter.Cursor.ID)
	}
	query += " ORDER BY opened_at DESC, id DESC LIMIT ?"
	args = append(args, filter.Limit)

	var sessions []domain.Session
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
