package model

import (
	"time"

	"github.com/google/uuid"
)

// Item types. Raw materials are received into Storage, finished goods are
// the only type dispatchable from Exit.
const (
	ItemTypeRaw       = "raw"
	ItemTypePackaging = "packaging"
	ItemTypeFinished  = "finished"
)

// Item is a tracked inventory article. Items referenced by movement events
// are never deleted; deactivation hides them from future operations only.
type Item struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name      string    `gorm:"index;not null"`
	Type      string    `gorm:"not null"` // "raw" | "packaging" | "finished"
	BaseUnit  string    `gorm:"not null;default:'kg'"`
	Active    bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Item) TableName() string { return "items" }
