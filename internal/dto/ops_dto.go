package dto

import (
	"github.com/shopspring/decimal"
)

// Wire payloads for the four authority procedures. Each request carries the
// client-generated idempotency key; the same struct is what the offline queue
// persists, so a replayed request is byte-identical to the first attempt.

type ReceiveRequest struct {
	ItemID     string           `json:"item_id" validate:"required,uuid"`
	Qty        decimal.Decimal  `json:"qty" validate:"required,gt=0"`
	UnitCost   *decimal.Decimal `json:"unit_cost,omitempty"`
	Reference  *string          `json:"reference,omitempty"`
	Notes      *string          `json:"notes,omitempty"`
	ClientUUID string           `json:"client_uuid" validate:"required,uuid"`
}

type TransferRequest struct {
	ItemID     string          `json:"item_id" validate:"required,uuid"`
	Qty        decimal.Decimal `json:"qty" validate:"required,gt=0"`
	From       string          `json:"from" validate:"required,oneof=Storage Processing Exit"`
	To         string          `json:"to" validate:"required,oneof=Storage Processing Exit"`
	Reference  *string         `json:"reference,omitempty"`
	ClientUUID string          `json:"client_uuid" validate:"required,uuid"`
}

type ProduceRequest struct {
	RecipeID   string          `json:"recipe_id" validate:"required,uuid"`
	FGQty      decimal.Decimal `json:"fg_qty" validate:"required,gt=0"`
	Reference  *string         `json:"reference,omitempty"`
	Notes      *string         `json:"notes,omitempty"`
	ClientUUID string          `json:"client_uuid" validate:"required,uuid"`
}

type DispatchRequest struct {
	ItemID     string           `json:"item_id" validate:"required,uuid"`
	Qty        decimal.Decimal  `json:"qty" validate:"required,gt=0"`
	SellPrice  *decimal.Decimal `json:"sell_price,omitempty"`
	Reference  *string          `json:"reference,omitempty"`
	Notes      *string          `json:"notes,omitempty"`
	ClientUUID string           `json:"client_uuid" validate:"required,uuid"`
}

// OpResponse is returned by every procedure endpoint. Replayed keys return
// the original response with Replayed=true and no new ledger rows.
type OpResponse struct {
	ClientUUID string `json:"client_uuid"`
	Events     int    `json:"events"`
	Replayed   bool   `json:"replayed"`
}
