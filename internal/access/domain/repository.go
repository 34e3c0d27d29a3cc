package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, allowed *CourseEnrollmentAllowed) error
	UpdateAutoEnroll(ctx context.Context, db *gorm.DB, id int64, autoEnroll bool) error
	Find(ctx context.Context, db *gorm.DB, email, courseID string) (*CourseEnrollmentAllowed, error)
	ListAutoEnroll(ctx context.Context, db *gorm.DB, email string) ([]CourseEnrollmentAllowed, error)
	LinkUser(ctx context.Context, db *gorm.DB, email string, userID int64) error
	Delete(ctx context.Context, db *gorm.DB, email, courseID string) (int64, error)
}
