package repository

import (
	"context"

	"stockledger/internal/dto"
	"stockledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository is the only write path into the ledger table. Writes go
// through *Tx methods so the service can compose an atomic batch: lock the
// item, check the derived balance, append all rows, record the idempotency
// key — or nothing.
type LedgerRepository interface {
	// LockItemTx loads the item under FOR UPDATE, serializing every
	// operation that touches the same item for the duration of the tx.
	LockItemTx(tx *gorm.DB, id uuid.UUID) (*model.Item, error)
	// BalanceTx sums qty_in - qty_out for (item, location) inside the tx.
	BalanceTx(tx *gorm.DB, itemID uuid.UUID, location string) (decimal.Decimal, error)
	AppendTx(tx *gorm.DB, events []*model.MovementEvent) error
	MarkAppliedTx(tx *gorm.DB, op *model.AppliedOperation) error

	FindApplied(ctx context.Context, clientUUID uuid.UUID) (*model.AppliedOperation, error)
	CountEvents(ctx context.Context, clientUUID uuid.UUID) (int64, error)

	StockByLocation(ctx context.Context) ([]dto.StockByLocationRow, error)
	StockOnHand(ctx context.Context) ([]dto.StockOnHandRow, error)
	History(ctx context.Context, filter dto.HistoryFilter) ([]dto.MovementHistoryRow, error)

	// DB exposes the underlying *gorm.DB so the service can open transactions.
	DB() *gorm.DB
}

type ledgerRepo struct{ db *gorm.DB }

func NewLedgerRepository(db *gorm.DB) LedgerRepository { return &ledgerRepo{db: db} }

func (r *ledgerRepo) DB() *gorm.DB { return r.db }

func (r *ledgerRepo) LockItemTx(tx *gorm.DB, id uuid.UUID) (*model.Item, error) {
	var it model.Item
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&it, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *ledgerRepo) BalanceTx(tx *gorm.DB, itemID uuid.UUID, location string) (decimal.Decimal, error) {
	var balance decimal.NullDecimal
	err := tx.Model(&model.MovementEvent{}).
		Select("COALESCE(SUM(COALESCE(qty_in, 0) - COALESCE(qty_out, 0)), 0)").
		Where("item_id = ? AND location = ?", itemID, location).
		Scan(&balance).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !balance.Valid {
		return decimal.Zero, nil
	}
	return balance.Decimal, nil
}

func (r *ledgerRepo) AppendTx(tx *gorm.DB, events []*model.MovementEvent) error {
	for _, ev := range events {
		if err := tx.Create(ev).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *ledgerRepo) MarkAppliedTx(tx *gorm.DB, op *model.AppliedOperation) error {
	return tx.Create(op).Error
}

func (r *ledgerRepo) FindApplied(ctx context.Context, clientUUID uuid.UUID) (*model.AppliedOperation, error) {
	var op model.AppliedOperation
	err := r.db.WithContext(ctx).First(&op, "client_uuid = ?", clientUUID).Error
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *ledgerRepo) CountEvents(ctx context.Context, clientUUID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.MovementEvent{}).
		Where("client_uuid = ?", clientUUID).Count(&n).Error
	return n, err
}

func (r *ledgerRepo) StockByLocation(ctx context.Context) ([]dto.StockByLocationRow, error) {
	var rows []dto.StockByLocationRow
	err := r.db.WithContext(ctx).Model(&model.MovementEvent{}).
		Select(`items.id AS item_id, items.name AS item_name, items.base_unit AS unit,
			COALESCE(SUM(CASE WHEN location = 'Storage' THEN COALESCE(qty_in,0) - COALESCE(qty_out,0) ELSE 0 END), 0) AS storage_qty,
			COALESCE(SUM(CASE WHEN location = 'Processing' THEN COALESCE(qty_in,0) - COALESCE(qty_out,0) ELSE 0 END), 0) AS processing_qty,
			COALESCE(SUM(CASE WHEN location = 'Exit' THEN COALESCE(qty_in,0) - COALESCE(qty_out,0) ELSE 0 END), 0) AS exit_qty`).
		Joins("JOIN items ON items.id = ledger.item_id").
		Group("items.id, items.name, items.base_unit").
		Order("items.name").
		Scan(&rows).Error
	return rows, err
}

func (r *ledgerRepo) StockOnHand(ctx context.Context) ([]dto.StockOnHandRow, error) {
	var rows []dto.StockOnHandRow
	err := r.db.WithContext(ctx).Model(&model.MovementEvent{}).
		Select(`items.id AS item_id, items.name AS item_name, items.base_unit AS unit,
			COALESCE(SUM(COALESCE(qty_in,0) - COALESCE(qty_out,0)), 0) AS total_qty`).
		Joins("JOIN items ON items.id = ledger.item_id").
		Group("items.id, items.name, items.base_unit").
		Order("items.name").
		Scan(&rows).Error
	return rows, err
}

func (r *ledgerRepo) History(ctx context.Context, filter dto.HistoryFilter) ([]dto.MovementHistoryRow, error) {
	q := r.db.WithContext(ctx).Model(&model.MovementEvent{}).
		Select(`ledger.id, ledger.created_at, ledger.item_id, items.name AS item_name,
			ledger.movement_type, ledger.qty_in, ledger.qty_out, ledger.location,
			ledger.unit, ledger.unit_cost, ledger.sell_price, ledger.reference,
			ledger.notes, ledger.client_uuid`).
		Joins("JOIN items ON items.id = ledger.item_id")
	if filter.ItemID != nil {
		q = q.Where("ledger.item_id = ?", *filter.ItemID)
	}
	if filter.MovementType != "" {
		q = q.Where("ledger.movement_type = ?", filter.MovementType)
	}
	if filter.Location != "" {
		q = q.Where("ledger.location = ?", filter.Location)
	}
	limit := filter.Limit
	if limit < 1 || limit > 1000 {
		limit = 500
	}
	var rows []dto.MovementHistoryRow
	err := q.Order("ledger.created_at DESC").Limit(limit).Scan(&rows).Error
	return rows, err
}
