package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, course *Course) error
	FindByCourseID(ctx context.Context, db *gorm.DB, courseID string) (*Course, error)
	ListByOrg(ctx context.Context, db *gorm.DB, org string) ([]Course, error)
}
