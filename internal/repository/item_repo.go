package repository

import (
	"context"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ItemRepository defines the data access contract for items.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via stubs.
type ItemRepository interface {
	Create(ctx context.Context, it *model.Item) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Item, error)
	List(ctx context.Context, itemType string, activeOnly bool) ([]model.Item, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type itemRepo struct{ db *gorm.DB }

func NewItemRepository(db *gorm.DB) ItemRepository { return &itemRepo{db: db} }

func (r *itemRepo) Create(ctx context.Context, it *model.Item) error {
	return r.db.WithContext(ctx).Create(it).Error
}

func (r *itemRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	var it model.Item
	err := r.db.WithContext(ctx).First(&it, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *itemRepo) List(ctx context.Context, itemType string, activeOnly bool) ([]model.Item, error) {
	q := r.db.WithContext(ctx).Model(&model.Item{}).Order("name")
	if itemType != "" {
		q = q.Where("type = ?", itemType)
	}
	if activeOnly {
		q = q.Where("active = true")
	}
	var items []model.Item
	err := q.Find(&items).Error
	return items, err
}

func (r *itemRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Item{}).
		Where("id = ?", id).Update("active", false).Error
}
