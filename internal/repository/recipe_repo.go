package repository

import (
	"context"

	"stockledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RecipeRepository interface {
	Create(ctx context.Context, rec *model.Recipe) error
	// FindByID loads the recipe with its components and their items.
	FindByID(ctx context.Context, id uuid.UUID) (*model.Recipe, error)
	List(ctx context.Context) ([]model.Recipe, error)
}

type recipeRepo struct{ db *gorm.DB }

func NewRecipeRepository(db *gorm.DB) RecipeRepository { return &recipeRepo{db: db} }

func (r *recipeRepo) Create(ctx context.Context, rec *model.Recipe) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *recipeRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Recipe, error) {
	var rec model.Recipe
	err := r.db.WithContext(ctx).
		Preload("FGItem").
		Preload("Components").
		Preload("Components.RMItem").
		First(&rec, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recipeRepo) List(ctx context.Context) ([]model.Recipe, error) {
	var recs []model.Recipe
	err := r.db.WithContext(ctx).
		Preload("FGItem").
		Preload("Components").
		Preload("Components.RMItem").
		Order("created_at").
		Find(&recs).Error
	return recs, err
}
