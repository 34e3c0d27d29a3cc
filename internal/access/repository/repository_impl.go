package repository

import (
	"context"

	"github.com/smallbiznis/campus/internal/access/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, allowed *domain.CourseEnrollmentAllowed) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO student_courseenrollmentallowed (id, email, course_id, auto_enroll, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		allowed.ID,
		allowed.Email,
		allowed.CourseID,
		allowed.AutoEnroll,
		allowed.UserID,
		allowed.CreatedAt,
	).Error
}

func (r *repo) UpdateAutoEnroll(ctx context.Context, db *gorm.DB, id int64, autoEnroll bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE student_courseenrollmentallowed SET auto_enroll = ? WHERE id = ?`,
		autoEnroll,
		id,
	).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, email, courseID string) (*domain.CourseEnrollmentAllowed, error) {
	var row domain.CourseEnrollmentAllowed
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, course_id, auto_enroll, user_id, created_at
		 FROM student_courseenrollmentallowed WHERE email = ? AND course_id = ?`,
		email,
		courseID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) ListAutoEnroll(ctx context.Context, db *gorm.DB, email string) ([]domain.CourseEnrollmentAllowed, error) {
	var items []domain.CourseEnrollmentAllowed
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, course_id, auto_enroll, user_id, created_at
		 FROM student_courseenrollmentallowed WHERE email = ? AND auto_enroll = ? ORDER BY created_at ASC, id ASC`,
		email,
		true,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) LinkUser(ctx context.Context, db *gorm.DB, email string, userID int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE student_courseenrollmentallowed SET user_id = ? WHERE email = ? AND user_id IS NULL`,
		userID,
		email,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, email, courseID string) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM student_courseenrollmentallowed WHERE email = ? AND course_id = ?`,
		email,
		courseID,
	)
	return res.RowsAffected, res.Error
}
