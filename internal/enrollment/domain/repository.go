package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, enrollment *Enrollment) error
	FindByUserAndCourse(ctx context.Context, db *gorm.DB, userID int64, courseID string) (*Enrollment, error)
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Enrollment, error)
	UpdateState(ctx context.Context, db *gorm.DB, id int64, isActive bool, mode string, updatedAt time.Time) error
	CountActive(ctx context.Context, db *gorm.DB, courseID string) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Enrollment, error)

	UpsertAttribute(ctx context.Context, db *gorm.DB, attr *EnrollmentAttribute) error
	ListAttributes(ctx context.Context, db *gorm.DB, enrollmentID int64) ([]EnrollmentAttribute, error)
}
