package service

import (
	"context"
	"fmt"

	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
)

// CatalogService serves item and recipe reads for the client's forms, plus
// item/recipe creation. Items referenced by ledger rows are never deleted,
// only deactivated.
type CatalogService interface {
	CreateItem(ctx context.Context, req dto.CreateItemRequest) (*dto.ItemResponse, error)
	ListItems(ctx context.Context, itemType string, activeOnly bool) ([]dto.ItemResponse, error)
	DeactivateItem(ctx context.Context, id uuid.UUID) error

	CreateRecipe(ctx context.Context, req dto.CreateRecipeRequest) (*dto.RecipeResponse, error)
	ListRecipes(ctx context.Context) ([]dto.RecipeResponse, error)
}

type catalogService struct {
	items   repository.ItemRepository
	recipes repository.RecipeRepository
}

func NewCatalogService(items repository.ItemRepository, recipes repository.RecipeRepository) CatalogService {
	return &catalogService{items: items, recipes: recipes}
}

func (s *catalogService) CreateItem(ctx context.Context, req dto.CreateItemRequest) (*dto.ItemResponse, error) {
	it := &model.Item{
		Name:     req.Name,
		Type:     req.Type,
		BaseUnit: req.BaseUnit,
		Active:   true,
	}
	if err := s.items.Create(ctx, it); err != nil {
		return nil, err
	}
	return itemToResponse(it), nil
}

func (s *catalogService) ListItems(ctx context.Context, itemType string, activeOnly bool) ([]dto.ItemResponse, error) {
	items, err := s.items.List(ctx, itemType, activeOnly)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ItemResponse, 0, len(items))
	for i := range items {
		out = append(out, *itemToResponse(&items[i]))
	}
	return out, nil
}

func (s *catalogService) DeactivateItem(ctx context.Context, id uuid.UUID) error {
	return s.items.Deactivate(ctx, id)
}

func (s *catalogService) CreateRecipe(ctx context.Context, req dto.CreateRecipeRequest) (*dto.RecipeResponse, error) {
	fgID, err := uuid.Parse(req.FGItemID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid fg_item_id", ErrValidation)
	}
	fg, err := s.items.FindByID(ctx, fgID)
	if err != nil {
		return nil, fmt.Errorf("%w: finished good %s not found", ErrValidation, req.FGItemID)
	}
	if fg.Type != model.ItemTypeFinished {
		return nil, fmt.Errorf("%w: recipe output must be a finished good", ErrValidation)
	}

	rec := &model.Recipe{FGItemID: fgID, WastePct: req.WastePct}
	for _, c := range req.Components {
		rmID, err := uuid.Parse(c.RMItemID)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid rm_item_id", ErrValidation)
		}
		if _, err := s.items.FindByID(ctx, rmID); err != nil {
			return nil, fmt.Errorf("%w: component item %s not found", ErrValidation, c.RMItemID)
		}
		rec.Components = append(rec.Components, model.RecipeComponent{
			RMItemID:     rmID,
			QtyPerFGUnit: c.QtyPerFGUnit,
			Unit:         c.Unit,
		})
	}
	if err := s.recipes.Create(ctx, rec); err != nil {
		return nil, err
	}
	full, err := s.recipes.FindByID(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	return recipeToResponse(full), nil
}

func (s *catalogService) ListRecipes(ctx context.Context) ([]dto.RecipeResponse, error) {
	recs, err := s.recipes.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.RecipeResponse, 0, len(recs))
	for i := range recs {
		out = append(out, *recipeToResponse(&recs[i]))
	}
	return out, nil
}

func itemToResponse(it *model.Item) *dto.ItemResponse {
	return &dto.ItemResponse{
		ID:       it.ID.String(),
		Name:     it.Name,
		Type:     it.Type,
		BaseUnit: it.BaseUnit,
		Active:   it.Active,
	}
}

func recipeToResponse(rec *model.Recipe) *dto.RecipeResponse {
	resp := &dto.RecipeResponse{
		ID:       rec.ID.String(),
		FGItemID: rec.FGItemID.String(),
		WastePct: rec.WastePct,
	}
	if rec.FGItem != nil {
		resp.FGItemName = rec.FGItem.Name
		resp.FGUnit = rec.FGItem.BaseUnit
	}
	for _, c := range rec.Components {
		cr := dto.RecipeComponentResponse{
			RMItemID:     c.RMItemID.String(),
			QtyPerFGUnit: c.QtyPerFGUnit,
			Unit:         c.Unit,
		}
		if c.RMItem != nil {
			cr.RMItemName = c.RMItem.Name
		}
		resp.Components = append(resp.Components, cr)
	}
	return resp
}
