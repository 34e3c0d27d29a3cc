package repository

import (
	"context"

	"github.com/smallbiznis/campus/internal/microsite/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, m *domain.Microsite) error {
	return db.WithContext(ctx).Create(m).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, m *domain.Microsite) error {
	return db.WithContext(ctx).
		Model(&domain.Microsite{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"key":        m.Key,
			"subdomain":  m.Subdomain,
			"values":     m.Values,
			"updated_at": m.UpdatedAt,
		}).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM microsite_configuration_microsite WHERE id = ?`, id,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Microsite, error) {
	var items []domain.Microsite
	if err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// FindBySubdomain returns the oldest row when duplicates exist.
func (r *repo) FindBySubdomain(ctx context.Context, db *gorm.DB, subdomain string) (*domain.Microsite, error) {
	var items []domain.Microsite
	err := db.WithContext(ctx).
		Where("subdomain = ?", subdomain).
		Order("id ASC").
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Microsite, error) {
	var items []domain.Microsite
	if err := db.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) AppendHistory(ctx context.Context, db *gorm.DB, h *domain.History) error {
	return db.WithContext(ctx).Create(h).Error
}

func (r *repo) ListHistory(ctx context.Context, db *gorm.DB, micrositeID int64) ([]domain.History, error) {
	var items []domain.History
	err := db.WithContext(ctx).
		Where("microsite_id = ?", micrositeID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
