package repository

import (
	"context"

	"github.com/smallbiznis/campus/internal/course/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, course *domain.Course) error {
	return db.WithContext(ctx).Create(course).Error
}

func (r *repo) FindByCourseID(ctx context.Context, db *gorm.DB, courseID string) (*domain.Course, error) {
	var c domain.Course
	err := db.WithContext(ctx).Raw(
		`SELECT id, course_id, org, display_name, enrollment_start, enrollment_end,
		 invitation_only, max_student_enrollments_allowed, modes, created_at
		 FROM course_overviews WHERE course_id = ?`,
		courseID,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) ListByOrg(ctx context.Context, db *gorm.DB, org string) ([]domain.Course, error) {
	var items []domain.Course
	err := db.WithContext(ctx).
		Where("org = ?", org).
		Order("course_id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
