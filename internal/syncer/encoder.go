package syncer

import (
	"encoding/json"
	"fmt"
	"time"

	"stockledger/internal/dto"
	"stockledger/internal/model"
	"stockledger/internal/queue"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Encoder turns a validated user intent into a deterministic, idempotent
// operation payload. It is the single funnel producing operations — nothing
// else constructs wire payloads or idempotency keys. Each encode generates
// exactly one fresh client_uuid; the key travels with the payload and is
// never regenerated on retry.
type Encoder struct {
	items   map[string]dto.ItemResponse
	recipes map[string]dto.RecipeResponse
}

// NewEncoder builds an encoder over the cached catalog (items and recipes
// fetched from the authority while online).
func NewEncoder(items []dto.ItemResponse, recipes []dto.RecipeResponse) *Encoder {
	e := &Encoder{
		items:   make(map[string]dto.ItemResponse, len(items)),
		recipes: make(map[string]dto.RecipeResponse, len(recipes)),
	}
	for _, it := range items {
		e.items[it.ID] = it
	}
	for _, r := range recipes {
		e.recipes[r.ID] = r
	}
	return e
}

func (e *Encoder) activeItem(itemID string) (dto.ItemResponse, error) {
	it, ok := e.items[itemID]
	if !ok {
		return dto.ItemResponse{}, validationf("unknown item %s", itemID)
	}
	if !it.Active {
		return dto.ItemResponse{}, validationf("item %s is inactive", it.Name)
	}
	return it, nil
}

// EncodeReceive captures a goods-in intent at Storage.
func (e *Encoder) EncodeReceive(itemID string, qty decimal.Decimal, unitCost *decimal.Decimal, reference, notes *string) (*queue.Operation, error) {
	if !qty.IsPositive() {
		return nil, validationf("quantity must be positive")
	}
	if _, err := e.activeItem(itemID); err != nil {
		return nil, err
	}
	return marshalOp(queue.KindReceive, dto.ReceiveRequest{
		ItemID:     itemID,
		Qty:        qty,
		UnitCost:   unitCost,
		Reference:  reference,
		Notes:      notes,
		ClientUUID: uuid.NewString(),
	}, func(r dto.ReceiveRequest) string { return r.ClientUUID })
}

// EncodeTransfer captures a move between two of the three locations. When a
// stock snapshot is supplied, the source balance is pre-checked optimistically.
func (e *Encoder) EncodeTransfer(itemID string, qty decimal.Decimal, from, to string, reference *string, snap *Snapshot) (*queue.Operation, error) {
	if !qty.IsPositive() {
		return nil, validationf("quantity must be positive")
	}
	if from == to {
		return nil, validationf("source and destination are the same")
	}
	if !model.ValidLocation(from) || !model.ValidLocation(to) {
		return nil, validationf("unknown location")
	}
	it, err := e.activeItem(itemID)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		if avail := snap.Available(itemID, from); avail.LessThan(qty) {
			return nil, validationf("%s has only %s at %s (cached)", it.Name, avail, from)
		}
	}
	return marshalOp(queue.KindTransfer, dto.TransferRequest{
		ItemID:     itemID,
		Qty:        qty,
		From:       from,
		To:         to,
		Reference:  reference,
		ClientUUID: uuid.NewString(),
	}, func(r dto.TransferRequest) string { return r.ClientUUID })
}

// EncodeProduce captures a recipe-based conversion. The consume quantities
// are derived here only for the advisory pre-check; the authority recomputes
// them from the recipe when the batch is applied.
func (e *Encoder) EncodeProduce(recipeID string, fgQty decimal.Decimal, reference, notes *string, snap *Snapshot) (*queue.Operation, error) {
	if !fgQty.IsPositive() {
		return nil, validationf("quantity must be positive")
	}
	recipe, ok := e.recipes[recipeID]
	if !ok {
		return nil, validationf("unknown recipe %s", recipeID)
	}
	if snap != nil {
		for _, comp := range recipe.Components {
			required := comp.QtyPerFGUnit.Mul(fgQty)
			if avail := snap.Available(comp.RMItemID, model.LocationProcessing); avail.LessThan(required) {
				return nil, &InsufficientMaterialError{
					ItemName:  comp.RMItemName,
					Required:  required,
					Available: avail,
				}
			}
		}
	}
	if reference == nil || *reference == "" {
		// Batch token groups the consume set with its yield.
		ref := fmt.Sprintf("BATCH-%d", time.Now().UnixMilli())
		reference = &ref
	}
	return marshalOp(queue.KindProduce, dto.ProduceRequest{
		RecipeID:   recipeID,
		FGQty:      fgQty,
		Reference:  reference,
		Notes:      notes,
		ClientUUID: uuid.NewString(),
	}, func(r dto.ProduceRequest) string { return r.ClientUUID })
}

// EncodeDispatch captures a sale/exit of a finished good.
func (e *Encoder) EncodeDispatch(itemID string, qty decimal.Decimal, sellPrice *decimal.Decimal, reference, notes *string) (*queue.Operation, error) {
	if !qty.IsPositive() {
		return nil, validationf("quantity must be positive")
	}
	it, err := e.activeItem(itemID)
	if err != nil {
		return nil, err
	}
	if it.Type != model.ItemTypeFinished {
		return nil, validationf("%s is not a finished good", it.Name)
	}
	return marshalOp(queue.KindDispatch, dto.DispatchRequest{
		ItemID:     itemID,
		Qty:        qty,
		SellPrice:  sellPrice,
		Reference:  reference,
		Notes:      notes,
		ClientUUID: uuid.NewString(),
	}, func(r dto.DispatchRequest) string { return r.ClientUUID })
}

func marshalOp[T any](kind queue.Kind, req T, key func(T) string) (*queue.Operation, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", kind, err)
	}
	return &queue.Operation{
		ID:      key(req),
		Kind:    kind,
		Payload: payload,
	}, nil
}
