package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// The three fixed locations stock moves through.
const (
	LocationStorage    = "Storage"
	LocationProcessing = "Processing"
	LocationExit       = "Exit"
)

// ValidLocation reports whether loc is one of the three fixed locations.
func ValidLocation(loc string) bool {
	return loc == LocationStorage || loc == LocationProcessing || loc == LocationExit
}

// Movement types recorded in the ledger.
const (
	MovementReceive  = "Receive"
	MovementTransfer = "Transfer"
	MovementConsume  = "Consume"
	MovementYield    = "Yield"
	MovementDispatch = "Dispatch"
)

// MovementEvent is one append-only ledger row: one atomic quantity change of
// one item at one location. Exactly one of QtyIn/QtyOut is set, always > 0.
// Rows are never updated or deleted; stock is derived by summing them.
type MovementEvent struct {
	ID           uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ItemID       uuid.UUID        `gorm:"type:uuid;not null;index:idx_ledger_item_location,priority:1"`
	MovementType string           `gorm:"not null"`
	QtyIn        *decimal.Decimal `gorm:"type:decimal(14,3)"`
	QtyOut       *decimal.Decimal `gorm:"type:decimal(14,3)"`
	Location     string           `gorm:"not null;index:idx_ledger_item_location,priority:2"`
	Unit         string           `gorm:"not null"`
	UnitCost     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	SellPrice    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Reference    *string
	Notes        *string
	ClientUUID   uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt    time.Time

	Item *Item `gorm:"foreignKey:ItemID"`
}

func (MovementEvent) TableName() string { return "ledger" }

// AppliedOperation is the idempotency registry: one row per accepted
// client_uuid, inserted in the same transaction as the ledger rows it
// produced. A replayed key hits the primary key and is answered with the
// original result instead of being applied again.
type AppliedOperation struct {
	ClientUUID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind       string    `gorm:"not null"` // "receive" | "transfer" | "produce" | "dispatch"
	AppliedAt  time.Time `gorm:"not null"`
}

func (AppliedOperation) TableName() string { return "applied_operations" }
