package dto

import "github.com/shopspring/decimal"

type ItemResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	BaseUnit string `json:"base_unit"`
	Active   bool   `json:"active"`
}

type CreateItemRequest struct {
	Name     string `json:"name" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=raw packaging finished"`
	BaseUnit string `json:"base_unit" validate:"required"`
}

type RecipeComponentResponse struct {
	RMItemID     string          `json:"rm_item_id"`
	RMItemName   string          `json:"rm_item_name"`
	QtyPerFGUnit decimal.Decimal `json:"qty_per_fg_unit"`
	Unit         string          `json:"unit"`
}

type RecipeResponse struct {
	ID         string                    `json:"id"`
	FGItemID   string                    `json:"fg_item_id"`
	FGItemName string                    `json:"fg_item_name"`
	FGUnit     string                    `json:"fg_unit"`
	WastePct   decimal.Decimal           `json:"waste_pct"`
	Components []RecipeComponentResponse `json:"components"`
}

type CreateRecipeRequest struct {
	FGItemID   string                         `json:"fg_item_id" validate:"required,uuid"`
	WastePct   decimal.Decimal                `json:"waste_pct" validate:"min=0,max=100"`
	Components []CreateRecipeComponentRequest `json:"components" validate:"required,min=1,dive"`
}

type CreateRecipeComponentRequest struct {
	RMItemID     string          `json:"rm_item_id" validate:"required,uuid"`
	QtyPerFGUnit decimal.Decimal `json:"qty_per_fg_unit" validate:"required,gt=0"`
	Unit         string          `json:"unit" validate:"required"`
}
