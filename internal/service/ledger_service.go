package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService is the authority's write surface: four effectful procedures,
// each atomic and idempotent by client_uuid. It is the single funnel through
// which ledger rows are created — nothing else constructs movement events.
type LedgerService interface {
	Receive(ctx context.Context, req dto.ReceiveRequest) (*dto.OpResponse, error)
	Transfer(ctx context.Context, req dto.TransferRequest) (*dto.OpResponse, error)
	ProduceBatch(ctx context.Context, req dto.ProduceRequest) (*dto.OpResponse, error)
	DispatchWithSales(ctx context.Context, req dto.DispatchRequest) (*dto.OpResponse, error)

	StockByLocation(ctx context.Context) ([]dto.StockByLocationRow, error)
	StockOnHand(ctx context.Context) ([]dto.StockOnHandRow, error)
	History(ctx context.Context, filter dto.HistoryFilter) ([]dto.MovementHistoryRow, error)
}

type ledgerService struct {
	ledger  repository.LedgerRepository
	recipes repository.RecipeRepository
}

func NewLedgerService(ledger repository.LedgerRepository, recipes repository.RecipeRepository) LedgerService {
	return &ledgerService{ledger: ledger, recipes: recipes}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// replay answers a previously-seen idempotency key with the original result.
// Returns nil when the key is fresh.
func (s *ledgerService) replay(ctx context.Context, clientUUID uuid.UUID) (*dto.OpResponse, error) {
	if _, err := s.ledger.FindApplied(ctx, clientUUID); err != nil {
		return nil, nil
	}
	n, err := s.ledger.CountEvents(ctx, clientUUID)
	if err != nil {
		return nil, err
	}
	return &dto.OpResponse{ClientUUID: clientUUID.String(), Events: int(n), Replayed: true}, nil
}

// commitErr converts a duplicate-key failure on applied_operations into a
// replay response. Two racing submissions of the same key both pass the
// pre-check; the loser hits the primary key at commit and must be treated
// as a successful no-op, not an error.
func (s *ledgerService) commitErr(ctx context.Context, clientUUID uuid.UUID, err error) (*dto.OpResponse, error) {
	if err == nil {
		return nil, nil
	}
	if resp, rerr := s.replay(ctx, clientUUID); rerr == nil && resp != nil {
		return resp, nil
	}
	return nil, err
}

func (s *ledgerService) Receive(ctx context.Context, req dto.ReceiveRequest) (*dto.OpResponse, error) {
	itemID, clientUUID, err := parseIDs(req.ItemID, req.ClientUUID)
	if err != nil {
		return nil, err
	}
	if !req.Qty.IsPositive() {
		return nil, fmt.Errorf("%w: qty must be positive", ErrValidation)
	}
	if resp, err := s.replay(ctx, clientUUID); err != nil || resp != nil {
		return resp, err
	}

	txErr := runTx(ctx, s.ledger.DB(), func(tx *gorm.DB) error {
		item, err := s.ledger.LockItemTx(tx, itemID)
		if err != nil {
			return fmt.Errorf("%w: item %s not found", ErrValidation, req.ItemID)
		}
		if !item.Active {
			return fmt.Errorf("%w: item %s is inactive", ErrValidation, item.Name)
		}
		qty := req.Qty
		ev := &model.MovementEvent{
			ItemID:       itemID,
			MovementType: model.MovementReceive,
			QtyIn:        &qty,
			Location:     model.LocationStorage,
			Unit:         item.BaseUnit,
			UnitCost:     req.UnitCost,
			Reference:    req.Reference,
			Notes:        req.Notes,
			ClientUUID:   clientUUID,
		}
		if err := s.ledger.AppendTx(tx, []*model.MovementEvent{ev}); err != nil {
			return err
		}
		return s.ledger.MarkAppliedTx(tx, &model.AppliedOperation{
			ClientUUID: clientUUID, Kind: "receive", AppliedAt: time.Now().UTC(),
		})
	})
	if txErr != nil {
		return s.commitErr(ctx, clientUUID, txErr)
	}
	return &dto.OpResponse{ClientUUID: clientUUID.String(), Events: 1}, nil
}

// Transfer writes both legs (qty_out at source, qty_in at destination) in one
// transaction — both or neither, same as produce's all-or-nothing rule.
func (s *ledgerService) Transfer(ctx context.Context, req dto.TransferRequest) (*dto.OpResponse, error) {
	itemID, clientUUID, err := parseIDs(req.ItemID, req.ClientUUID)
	if err != nil {
		return nil, err
	}
	if !req.Qty.IsPositive() {
		return nil, fmt.Errorf("%w: qty must be positive", ErrValidation)
	}
	if req.From == req.To {
		return nil, fmt.Errorf("%w: source and destination are the same", ErrValidation)
	}
	if !model.ValidLocation(req.From) || !model.ValidLocation(req.To) {
		return nil, fmt.Errorf("%w: unknown location", ErrValidation)
	}
	if resp, err := s.replay(ctx, clientUUID); err != nil || resp != nil {
		return resp, err
	}

	txErr := runTx(ctx, s.ledger.DB(), func(tx *gorm.DB) error {
		item, err := s.ledger.LockItemTx(tx, itemID)
		if err != nil {
			return fmt.Errorf("%w: item %s not found", ErrValidation, req.ItemID)
		}
		if !item.Active {
			return fmt.Errorf("%w: item %s is inactive", ErrValidation, item.Name)
		}
		balance, err := s.ledger.BalanceTx(tx, itemID, req.From)
		if err != nil {
			return err
		}
		if balance.LessThan(req.Qty) {
			return fmt.Errorf("%w: %s has %s %s at %s, need %s",
				ErrInsufficientStock, item.Name, balance, item.BaseUnit, req.From, req.Qty)
		}
		out, in := req.Qty, req.Qty
		events := []*model.MovementEvent{
			{
				ItemID: itemID, MovementType: model.MovementTransfer,
				QtyOut: &out, Location: req.From, Unit: item.BaseUnit,
				Reference: req.Reference, ClientUUID: clientUUID,
			},
			{
				ItemID: itemID, MovementType: model.MovementTransfer,
				QtyIn: &in, Location: req.To, Unit: item.BaseUnit,
				Reference: req.Reference, ClientUUID: clientUUID,
			},
		}
		if err := s.ledger.AppendTx(tx, events); err != nil {
			return err
		}
		return s.ledger.MarkAppliedTx(tx, &model.AppliedOperation{
			ClientUUID: clientUUID, Kind: "transfer", AppliedAt: time.Now().UTC(),
		})
	})
	if txErr != nil {
		return s.commitErr(ctx, clientUUID, txErr)
	}
	return &dto.OpResponse{ClientUUID: clientUUID.String(), Events: 2}, nil
}

// ProduceBatch inserts one Consume row per recipe component and one Yield row
// for the finished good, all-or-nothing. The yield quantity is the declared
// fg_qty reduced by the recipe's waste percentage; consumption is the full
// component mass for the declared quantity.
func (s *ledgerService) ProduceBatch(ctx context.Context, req dto.ProduceRequest) (*dto.OpResponse, error) {
	recipeID, clientUUID, err := parseIDs(req.RecipeID, req.ClientUUID)
	if err != nil {
		return nil, err
	}
	if !req.FGQty.IsPositive() {
		return nil, fmt.Errorf("%w: fg_qty must be positive", ErrValidation)
	}
	if resp, err := s.replay(ctx, clientUUID); err != nil || resp != nil {
		return resp, err
	}

	recipe, err := s.recipes.FindByID(ctx, recipeID)
	if err != nil {
		return nil, fmt.Errorf("%w: recipe %s not found", ErrValidation, req.RecipeID)
	}
	if len(recipe.Components) == 0 {
		return nil, fmt.Errorf("%w: recipe has no components", ErrValidation)
	}

	reference := req.Reference
	if reference == nil || *reference == "" {
		ref := fmt.Sprintf("BATCH-%d", time.Now().UnixMilli())
		reference = &ref
	}

	// Lock components in a fixed order so two concurrent batches over the
	// same materials cannot deadlock.
	components := make([]model.RecipeComponent, len(recipe.Components))
	copy(components, recipe.Components)
	sort.Slice(components, func(i, j int) bool {
		return components[i].RMItemID.String() < components[j].RMItemID.String()
	})

	nEvents := len(components) + 1
	txErr := runTx(ctx, s.ledger.DB(), func(tx *gorm.DB) error {
		var events []*model.MovementEvent
		for _, comp := range components {
			rm, err := s.ledger.LockItemTx(tx, comp.RMItemID)
			if err != nil {
				return fmt.Errorf("%w: component item %s not found", ErrValidation, comp.RMItemID)
			}
			required := comp.QtyPerFGUnit.Mul(req.FGQty)
			balance, err := s.ledger.BalanceTx(tx, comp.RMItemID, model.LocationProcessing)
			if err != nil {
				return err
			}
			if balance.LessThan(required) {
				return fmt.Errorf("%w: %s has %s %s at Processing, need %s",
					ErrInsufficientStock, rm.Name, balance, rm.BaseUnit, required)
			}
			out := required
			events = append(events, &model.MovementEvent{
				ItemID: comp.RMItemID, MovementType: model.MovementConsume,
				QtyOut: &out, Location: model.LocationProcessing, Unit: comp.Unit,
				Reference: reference, Notes: req.Notes, ClientUUID: clientUUID,
			})
		}

		fg, err := s.ledger.LockItemTx(tx, recipe.FGItemID)
		if err != nil {
			return fmt.Errorf("%w: finished good %s not found", ErrValidation, recipe.FGItemID)
		}
		if !fg.Active {
			return fmt.Errorf("%w: finished good %s is inactive", ErrValidation, fg.Name)
		}
		yield := netYield(req.FGQty, recipe.WastePct)
		events = append(events, &model.MovementEvent{
			ItemID: recipe.FGItemID, MovementType: model.MovementYield,
			QtyIn: &yield, Location: model.LocationProcessing, Unit: fg.BaseUnit,
			Reference: reference, Notes: req.Notes, ClientUUID: clientUUID,
		})

		if err := s.ledger.AppendTx(tx, events); err != nil {
			return err
		}
		return s.ledger.MarkAppliedTx(tx, &model.AppliedOperation{
			ClientUUID: clientUUID, Kind: "produce", AppliedAt: time.Now().UTC(),
		})
	})
	if txErr != nil {
		return s.commitErr(ctx, clientUUID, txErr)
	}
	return &dto.OpResponse{ClientUUID: clientUUID.String(), Events: nEvents}, nil
}

func (s *ledgerService) DispatchWithSales(ctx context.Context, req dto.DispatchRequest) (*dto.OpResponse, error) {
	itemID, clientUUID, err := parseIDs(req.ItemID, req.ClientUUID)
	if err != nil {
		return nil, err
	}
	if !req.Qty.IsPositive() {
		return nil, fmt.Errorf("%w: qty must be positive", ErrValidation)
	}
	if resp, err := s.replay(ctx, clientUUID); err != nil || resp != nil {
		return resp, err
	}

	txErr := runTx(ctx, s.ledger.DB(), func(tx *gorm.DB) error {
		item, err := s.ledger.LockItemTx(tx, itemID)
		if err != nil {
			return fmt.Errorf("%w: item %s not found", ErrValidation, req.ItemID)
		}
		if item.Type != model.ItemTypeFinished {
			return fmt.Errorf("%w: only finished goods can be dispatched", ErrValidation)
		}
		balance, err := s.ledger.BalanceTx(tx, itemID, model.LocationExit)
		if err != nil {
			return err
		}
		if balance.LessThan(req.Qty) {
			return fmt.Errorf("%w: %s has %s %s at Exit, need %s",
				ErrInsufficientStock, item.Name, balance, item.BaseUnit, req.Qty)
		}
		out := req.Qty
		ev := &model.MovementEvent{
			ItemID:       itemID,
			MovementType: model.MovementDispatch,
			QtyOut:       &out,
			Location:     model.LocationExit,
			Unit:         item.BaseUnit,
			SellPrice:    req.SellPrice,
			Reference:    req.Reference,
			Notes:        req.Notes,
			ClientUUID:   clientUUID,
		}
		if err := s.ledger.AppendTx(tx, []*model.MovementEvent{ev}); err != nil {
			return err
		}
		return s.ledger.MarkAppliedTx(tx, &model.AppliedOperation{
			ClientUUID: clientUUID, Kind: "dispatch", AppliedAt: time.Now().UTC(),
		})
	})
	if txErr != nil {
		return s.commitErr(ctx, clientUUID, txErr)
	}
	return &dto.OpResponse{ClientUUID: clientUUID.String(), Events: 1}, nil
}

func (s *ledgerService) StockByLocation(ctx context.Context) ([]dto.StockByLocationRow, error) {
	return s.ledger.StockByLocation(ctx)
}

func (s *ledgerService) StockOnHand(ctx context.Context) ([]dto.StockOnHandRow, error) {
	return s.ledger.StockOnHand(ctx)
}

func (s *ledgerService) History(ctx context.Context, filter dto.HistoryFilter) ([]dto.MovementHistoryRow, error) {
	return s.ledger.History(ctx, filter)
}

func parseIDs(entityID, clientUUID string) (uuid.UUID, uuid.UUID, error) {
	eid, err := uuid.Parse(entityID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: invalid id %q", ErrValidation, entityID)
	}
	cid, err := uuid.Parse(clientUUID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: invalid client_uuid %q", ErrValidation, clientUUID)
	}
	return eid, cid, nil
}

var hundred = decimal.NewFromInt(100)

// netYield applies the recipe's waste percentage as a yield-reduction factor.
func netYield(fgQty, wastePct decimal.Decimal) decimal.Decimal {
	return fgQty.Mul(hundred.Sub(wastePct)).Div(hundred)
}
