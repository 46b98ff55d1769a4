package syncer

import (
	"stockledger/internal/dto"
	"stockledger/internal/model"

	"github.com/shopspring/decimal"
)

// Snapshot is a cached stock-by-location view used for optimistic pre-checks.
// It can be stale: the authority remains the only enforcer of non-negativity.
// A nil *Snapshot disables pre-checks entirely.
type Snapshot struct {
	byItem map[string]dto.StockByLocationRow
}

func NewSnapshot(rows []dto.StockByLocationRow) *Snapshot {
	s := &Snapshot{byItem: make(map[string]dto.StockByLocationRow, len(rows))}
	for _, r := range rows {
		s.byItem[r.ItemID] = r
	}
	return s
}

// Available returns the cached balance of an item at a location.
// Unknown items report zero.
func (s *Snapshot) Available(itemID, location string) decimal.Decimal {
	if s == nil {
		return decimal.Zero
	}
	row, ok := s.byItem[itemID]
	if !ok {
		return decimal.Zero
	}
	switch location {
	case model.LocationStorage:
		return row.StorageQty
	case model.LocationProcessing:
		return row.ProcessingQty
	case model.LocationExit:
		return row.ExitQty
	default:
		return decimal.Zero
	}
}
