package repository

import (
	"context"
	"strings"

	auditdomain "github.com/paychunk/paychunk/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() auditdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *auditdomain.AuditLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO audit_logs (id, actor, action, target_type, target_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Actor,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.Metadata,
		entry.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter auditdomain.ListFilter) ([]auditdomain.AuditLog, error) {
	query := `SELECT id, actor, action, target_type, target_id, metadata, created_at FROM audit_logs`
	conds := make([]string, 0, 6)
	args := make([]any, 0, 6)

	if filter.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.TargetType != "" {
		conds = append(conds, "target_type = ?")
		args = append(args, filter.TargetType)
	}
	if filter.TargetID != "" {
		conds = append(conds, "target_id = ?")
		args = append(args, filter.TargetID)
	}
	if filter.StartAt != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.EndAt.UTC())
	}
	if filter.Cursor != nil {
		conds = append(conds, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, filter.Limit+1)

	var entries []auditdomain.AuditLog
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
