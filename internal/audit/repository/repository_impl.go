package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/campus/internal/audit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.ManualEnrollmentAudit) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO student_manualenrollmentaudit (
			id, enrollment_id, enrolled_by, enrolled_email, time_stamp, state_transition, reason, role
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.EnrollmentID,
		entry.EnrolledBy,
		entry.EnrolledEmail,
		entry.TimeStamp,
		entry.StateTransition,
		entry.Reason,
		entry.Role,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.ManualEnrollmentAudit, error) {
	var items []domain.ManualEnrollmentAudit
	stmt := db.WithContext(ctx).Model(&domain.ManualEnrollmentAudit{})

	if filter.EnrollmentID != nil {
		stmt = stmt.Where("enrollment_id = ?", *filter.EnrollmentID)
	}
	if email := strings.TrimSpace(filter.Email); email != "" {
		stmt = stmt.Where("enrolled_email = ?", email)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(time_stamp < ?) OR (time_stamp = ? AND id < ?)",
			filter.Cursor.TimeStamp,
			filter.Cursor.TimeStamp,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("time_stamp desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
