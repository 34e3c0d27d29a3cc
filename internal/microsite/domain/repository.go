package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, m *Microsite) error
	Update(ctx context.Context, db *gorm.DB, m *Microsite) error
	Delete(ctx context.Context, db *gorm.DB, id int64) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Microsite, error)
	FindBySubdomain(ctx context.Context, db *gorm.DB, subdomain string) (*Microsite, error)
	List(ctx context.Context, db *gorm.DB) ([]Microsite, error)
	AppendHistory(ctx context.Context, db *gorm.DB, h *History) error
	ListHistory(ctx context.Context, db *gorm.DB, micrositeID int64) ([]History, error)
}
