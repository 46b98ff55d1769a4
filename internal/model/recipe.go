package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Recipe converts raw materials into one finished-good item. WastePct is a
// yield-reduction factor: producing N declared units yields
// N * (1 - WastePct/100) into stock while consuming the full component mass.
type Recipe struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	FGItemID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	WastePct  decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	CreatedAt time.Time

	FGItem     *Item             `gorm:"foreignKey:FGItemID"`
	Components []RecipeComponent `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
}

func (Recipe) TableName() string { return "recipes" }

// RecipeComponent is one raw-material line of a recipe. Components are owned
// by their recipe and have no independent lifecycle.
type RecipeComponent struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RecipeID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	RMItemID     uuid.UUID       `gorm:"type:uuid;not null"`
	QtyPerFGUnit decimal.Decimal `gorm:"type:decimal(14,3);not null"`
	Unit         string          `gorm:"not null"`

	RMItem *Item `gorm:"foreignKey:RMItemID"`
}

func (RecipeComponent) TableName() string { return "recipe_components" }
