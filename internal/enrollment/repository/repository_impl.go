package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/campus/internal/enrollment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, e *domain.Enrollment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO student_courseenrollment (id, user_id, course_id, org, is_active, mode, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.UserID,
		e.CourseID,
		e.Org,
		e.IsActive,
		e.Mode,
		e.CreatedAt,
		e.UpdatedAt,
	).Error
}

func (r *repo) FindByUserAndCourse(ctx context.Context, db *gorm.DB, userID int64, courseID string) (*domain.Enrollment, error) {
	var e domain.Enrollment
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, course_id, org, is_active, mode, created_at, updated_at
		 FROM student_courseenrollment WHERE user_id = ? AND course_id = ?`,
		userID,
		courseID,
	).Scan(&e).Error
	if err != nil {
		return nil, err
	}
	if e.ID == 0 {
		return nil, nil
	}
	return &e, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Enrollment, error) {
	var e domain.Enrollment
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, course_id, org, is_active, mode, created_at, updated_at
		 FROM student_courseenrollment WHERE id = ?`,
		id,
	).Scan(&e).Error
	if err != nil {
		return nil, err
	}
	if e.ID == 0 {
		return nil, nil
	}
	return &e, nil
}

func (r *repo) UpdateState(ctx context.Context, db *gorm.DB, id int64, isActive bool, mode string, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE student_courseenrollment SET is_active = ?, mode = ?, updated_at = ? WHERE id = ?`,
		isActive,
		mode,
		updatedAt,
		id,
	).Error
}

func (r *repo) CountActive(ctx context.Context, db *gorm.DB, courseID string) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.Enrollment{}).
		Where("course_id = ? AND is_active = ?", courseID, true).
		Count(&count).Error
	return count, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Enrollment, error) {
	var items []domain.Enrollment
	stmt := db.WithContext(ctx).
		Model(&domain.Enrollment{}).
		Where("user_id = ?", filter.UserID)

	if filter.ActiveOnly {
		stmt = stmt.Where("is_active = ?", true)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertAttribute(ctx context.Context, db *gorm.DB, attr *domain.EnrollmentAttribute) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "enrollment_id"}, {Name: "namespace"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(attr).Error
}

func (r *repo) ListAttributes(ctx context.Context, db *gorm.DB, enrollmentID int64) ([]domain.EnrollmentAttribute, error) {
	var items []domain.EnrollmentAttribute
	err := db.WithContext(ctx).
		Where("enrollment_id = ?", enrollmentID).
		Order("namespace ASC, name ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
