package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockByLocationRow is the derived balance of one item split across the
// three locations. Balances are always computed from the ledger, never
// stored.
type StockByLocationRow struct {
	ItemID        string          `json:"item_id"`
	ItemName      string          `json:"item_name"`
	Unit          string          `json:"unit"`
	StorageQty    decimal.Decimal `json:"storage_qty"`
	ProcessingQty decimal.Decimal `json:"processing_qty"`
	ExitQty       decimal.Decimal `json:"exit_qty"`
}

// StockOnHandRow is the per-item total across all locations.
type StockOnHandRow struct {
	ItemID   string          `json:"item_id"`
	ItemName string          `json:"item_name"`
	Unit     string          `json:"unit"`
	TotalQty decimal.Decimal `json:"total_qty"`
}

// MovementHistoryRow is one ledger row joined with its item, as shown on the
// history screen and in the CSV export.
type MovementHistoryRow struct {
	ID           string           `json:"id"`
	CreatedAt    time.Time        `json:"created_at"`
	ItemID       string           `json:"item_id"`
	ItemName     string           `json:"item_name"`
	MovementType string           `json:"movement_type"`
	QtyIn        *decimal.Decimal `json:"qty_in"`
	QtyOut       *decimal.Decimal `json:"qty_out"`
	Location     string           `json:"location"`
	Unit         string           `json:"unit"`
	UnitCost     *decimal.Decimal `json:"unit_cost"`
	SellPrice    *decimal.Decimal `json:"sell_price"`
	Reference    *string          `json:"reference"`
	Notes        *string          `json:"notes"`
	ClientUUID   string           `json:"client_uuid"`
}

type HistoryFilter struct {
	ItemID       *string
	MovementType string
	Location     string
	Limit        int
}
