package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"stockledger/internal/dto"
	"stockledger/internal/model"
)

// stubLedgerRepo keeps the ledger in memory. DB() returns nil, which makes
// runTx call the transaction body directly.
type stubLedgerRepo struct {
	items   map[uuid.UUID]*model.Item
	events  []*model.MovementEvent
	applied map[uuid.UUID]*model.AppliedOperation
}

func newStubLedgerRepo() *stubLedgerRepo {
	return &stubLedgerRepo{
		items:   make(map[uuid.UUID]*model.Item),
		applied: make(map[uuid.UUID]*model.AppliedOperation),
	}
}

func (r *stubLedgerRepo) DB() *gorm.DB { return nil }

func (r *stubLedgerRepo) LockItemTx(_ *gorm.DB, id uuid.UUID) (*model.Item, error) {
	it, ok := r.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return it, nil
}

func (r *stubLedgerRepo) BalanceTx(_ *gorm.DB, itemID uuid.UUID, location string) (decimal.Decimal, error) {
	return r.balance(itemID, location), nil
}

func (r *stubLedgerRepo) balance(itemID uuid.UUID, location string) decimal.Decimal {
	total := decimal.Zero
	for _, ev := range r.events {
		if ev.ItemID != itemID || ev.Location != location {
			continue
		}
		if ev.QtyIn != nil {
			total = total.Add(*ev.QtyIn)
		}
		if ev.QtyOut != nil {
			total = total.Sub(*ev.QtyOut)
		}
	}
	return total
}

func (r *stubLedgerRepo) AppendTx(_ *gorm.DB, events []*model.MovementEvent) error {
	r.events = append(r.events, events...)
	return nil
}

func (r *stubLedgerRepo) MarkAppliedTx(_ *gorm.DB, op *model.AppliedOperation) error {
	if _, ok := r.applied[op.ClientUUID]; ok {
		return gorm.ErrDuplicatedKey
	}
	r.applied[op.ClientUUID] = op
	return nil
}

func (r *stubLedgerRepo) FindApplied(_ context.Context, clientUUID uuid.UUID) (*model.AppliedOperation, error) {
	op, ok := r.applied[clientUUID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return op, nil
}

func (r *stubLedgerRepo) CountEvents(_ context.Context, clientUUID uuid.UUID) (int64, error) {
	var n int64
	for _, ev := range r.events {
		if ev.ClientUUID == clientUUID {
			n++
		}
	}
	return n, nil
}

func (r *stubLedgerRepo) StockByLocation(context.Context) ([]dto.StockByLocationRow, error) {
	return nil, nil
}

func (r *stubLedgerRepo) StockOnHand(context.Context) ([]dto.StockOnHandRow, error) {
	return nil, nil
}

func (r *stubLedgerRepo) History(context.Context, dto.HistoryFilter) ([]dto.MovementHistoryRow, error) {
	return nil, nil
}

func (r *stubLedgerRepo) eventsFor(clientUUID uuid.UUID) []*model.MovementEvent {
	var out []*model.MovementEvent
	for _, ev := range r.events {
		if ev.ClientUUID == clientUUID {
			out = append(out, ev)
		}
	}
	return out
}

type stubRecipeRepo struct {
	recipes map[uuid.UUID]*model.Recipe
}

func newStubRecipeRepo() *stubRecipeRepo {
	return &stubRecipeRepo{recipes: make(map[uuid.UUID]*model.Recipe)}
}

func (r *stubRecipeRepo) Create(_ context.Context, rec *model.Recipe) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	r.recipes[rec.ID] = rec
	return nil
}

func (r *stubRecipeRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Recipe, error) {
	rec, ok := r.recipes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return rec, nil
}

func (r *stubRecipeRepo) List(context.Context) ([]model.Recipe, error) { return nil, nil }

type ledgerFixture struct {
	svc    LedgerService
	ledger *stubLedgerRepo
	rec    *stubRecipeRepo

	flour *model.Item
	sugar *model.Item
	cake  *model.Item
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	ledger := newStubLedgerRepo()
	rec := newStubRecipeRepo()
	f := &ledgerFixture{
		svc:    NewLedgerService(ledger, rec),
		ledger: ledger,
		rec:    rec,
		flour:  &model.Item{ID: uuid.New(), Name: "Flour", Type: model.ItemTypeRaw, BaseUnit: "kg", Active: true},
		sugar:  &model.Item{ID: uuid.New(), Name: "Sugar", Type: model.ItemTypeRaw, BaseUnit: "kg", Active: true},
		cake:   &model.Item{ID: uuid.New(), Name: "Cake", Type: model.ItemTypeFinished, BaseUnit: "unit", Active: true},
	}
	for _, it := range []*model.Item{f.flour, f.sugar, f.cake} {
		ledger.items[it.ID] = it
	}
	return f
}

func (f *ledgerFixture) receive(t *testing.T, item *model.Item, qty string) {
	t.Helper()
	_, err := f.svc.Receive(context.Background(), dto.ReceiveRequest{
		ItemID:     item.ID.String(),
		Qty:        decimal.RequireFromString(qty),
		ClientUUID: uuid.NewString(),
	})
	require.NoError(t, err)
}

func (f *ledgerFixture) transfer(t *testing.T, item *model.Item, qty, from, to string) {
	t.Helper()
	_, err := f.svc.Transfer(context.Background(), dto.TransferRequest{
		ItemID:     item.ID.String(),
		Qty:        decimal.RequireFromString(qty),
		From:       from,
		To:         to,
		ClientUUID: uuid.NewString(),
	})
	require.NoError(t, err)
}

func (f *ledgerFixture) addRecipe(wastePct string, comps ...model.RecipeComponent) *model.Recipe {
	rec := &model.Recipe{
		ID:         uuid.New(),
		FGItemID:   f.cake.ID,
		WastePct:   decimal.RequireFromString(wastePct),
		Components: comps,
	}
	f.rec.recipes[rec.ID] = rec
	return rec
}

func (f *ledgerFixture) assertBalance(t *testing.T, item *model.Item, location, want string) {
	t.Helper()
	got := f.ledger.balance(item.ID, location)
	assert.True(t, got.Equal(decimal.RequireFromString(want)),
		"%s at %s: want %s, got %s", item.Name, location, want, got)
}

func TestReceiveAppendsOneRow(t *testing.T) {
	f := newLedgerFixture(t)
	cost := decimal.RequireFromString("2.50")
	key := uuid.NewString()

	resp, err := f.svc.Receive(context.Background(), dto.ReceiveRequest{
		ItemID:     f.flour.ID.String(),
		Qty:        decimal.NewFromInt(100),
		UnitCost:   &cost,
		ClientUUID: key,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Events)
	assert.False(t, resp.Replayed)

	evs := f.ledger.eventsFor(uuid.MustParse(key))
	require.Len(t, evs, 1)
	ev := evs[0]
	assert.Equal(t, model.MovementReceive, ev.MovementType)
	assert.Equal(t, model.LocationStorage, ev.Location)
	assert.Equal(t, "kg", ev.Unit)
	require.NotNil(t, ev.QtyIn)
	assert.True(t, ev.QtyIn.Equal(decimal.NewFromInt(100)))
	assert.Nil(t, ev.QtyOut)
	require.NotNil(t, ev.UnitCost)
	assert.True(t, ev.UnitCost.Equal(cost))
}

func TestReceiveValidation(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.svc.Receive(ctx, dto.ReceiveRequest{
		ItemID: "not-a-uuid", Qty: decimal.NewFromInt(1), ClientUUID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Receive(ctx, dto.ReceiveRequest{
		ItemID: f.flour.ID.String(), Qty: decimal.Zero, ClientUUID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Receive(ctx, dto.ReceiveRequest{
		ItemID: uuid.NewString(), Qty: decimal.NewFromInt(1), ClientUUID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, ErrValidation)

	f.flour.Active = false
	_, err = f.svc.Receive(ctx, dto.ReceiveRequest{
		ItemID: f.flour.ID.String(), Qty: decimal.NewFromInt(1), ClientUUID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, f.ledger.events)
}

func TestReceiveReplaySameKey(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	req := dto.ReceiveRequest{
		ItemID:     f.flour.ID.String(),
		Qty:        decimal.NewFromInt(50),
		ClientUUID: uuid.NewString(),
	}

	first, err := f.svc.Receive(ctx, req)
	require.NoError(t, err)
	require.False(t, first.Replayed)

	second, err := f.svc.Receive(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Events, second.Events)
	assert.Equal(t, first.ClientUUID, second.ClientUUID)

	// Replay wrote nothing.
	assert.Len(t, f.ledger.events, 1)
	f.assertBalance(t, f.flour, model.LocationStorage, "50")
}

func TestTransferWritesBothLegs(t *testing.T) {
	f := newLedgerFixture(t)
	f.receive(t, f.flour, "100")
	key := uuid.NewString()

	resp, err := f.svc.Transfer(context.Background(), dto.TransferRequest{
		ItemID:     f.flour.ID.String(),
		Qty:        decimal.NewFromInt(40),
		From:       model.LocationStorage,
		To:         model.LocationProcessing,
		ClientUUID: key,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Events)

	evs := f.ledger.eventsFor(uuid.MustParse(key))
	require.Len(t, evs, 2)

	// One out-leg, one in-leg, equal quantity: the transfer conserves total
	// stock exactly.
	totalIn, totalOut := decimal.Zero, decimal.Zero
	for _, ev := range evs {
		assert.Equal(t, model.MovementTransfer, ev.MovementType)
		if ev.QtyIn != nil {
			assert.Equal(t, model.LocationProcessing, ev.Location)
			totalIn = totalIn.Add(*ev.QtyIn)
		}
		if ev.QtyOut != nil {
			assert.Equal(t, model.LocationStorage, ev.Location)
			totalOut = totalOut.Add(*ev.QtyOut)
		}
	}
	assert.True(t, totalIn.Equal(totalOut))

	f.assertBalance(t, f.flour, model.LocationStorage, "60")
	f.assertBalance(t, f.flour, model.LocationProcessing, "40")
}

func TestTransferInsufficientStock(t *testing.T) {
	f := newLedgerFixture(t)
	f.receive(t, f.flour, "10")
	before := len(f.ledger.events)

	_, err := f.svc.Transfer(context.Background(), dto.TransferRequest{
		ItemID:     f.flour.ID.String(),
		Qty:        decimal.NewFromInt(11),
		From:       model.LocationStorage,
		To:         model.LocationProcessing,
		ClientUUID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Neither leg was written.
	assert.Len(t, f.ledger.events, before)
	f.assertBalance(t, f.flour, model.LocationStorage, "10")
}

func TestTransferValidation(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, err := f.svc.Transfer(ctx, dto.TransferRequest{
		ItemID: f.flour.ID.String(), Qty: decimal.NewFromInt(1),
		From: model.LocationStorage, To: model.LocationStorage,
		ClientUUID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Transfer(ctx, dto.TransferRequest{
		ItemID: f.flour.ID.String(), Qty: decimal.NewFromInt(1),
		From: "Warehouse", To: model.LocationProcessing,
		ClientUUID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProduceBatchConsumesAndYields(t *testing.T) {
	f := newLedgerFixture(t)
	rec := f.addRecipe("10",
		model.RecipeComponent{RMItemID: f.flour.ID, QtyPerFGUnit: decimal.NewFromInt(3), Unit: "kg"},
		model.RecipeComponent{RMItemID: f.sugar.ID, QtyPerFGUnit: decimal.NewFromInt(1), Unit: "kg"},
	)
	f.receive(t, f.flour, "100")
	f.receive(t, f.sugar, "50")
	f.transfer(t, f.flour, "40", model.LocationStorage, model.LocationProcessing)
	f.transfer(t, f.sugar, "20", model.LocationStorage, model.LocationProcessing)
	key := uuid.NewString()

	resp, err := f.svc.ProduceBatch(context.Background(), dto.ProduceRequest{
		RecipeID:   rec.ID.String(),
		FGQty:      decimal.NewFromInt(10),
		ClientUUID: key,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Events)

	evs := f.ledger.eventsFor(uuid.MustParse(key))
	require.Len(t, evs, 3)
	var sameRef *string
	for _, ev := range evs {
		require.NotNil(t, ev.Reference)
		if sameRef == nil {
			sameRef = ev.Reference
		}
		// All three rows share one batch token.
		assert.Equal(t, *sameRef, *ev.Reference)
		assert.Equal(t, model.LocationProcessing, ev.Location)
	}

	f.assertBalance(t, f.flour, model.LocationProcessing, "10")
	f.assertBalance(t, f.sugar, model.LocationProcessing, "10")
	// 10 declared units at 10% waste yield 9 into stock.
	f.assertBalance(t, f.cake, model.LocationProcessing, "9")
}

func TestProduceBatchInsufficientComponent(t *testing.T) {
	f := newLedgerFixture(t)
	rec := f.addRecipe("0",
		model.RecipeComponent{RMItemID: f.flour.ID, QtyPerFGUnit: decimal.NewFromInt(3), Unit: "kg"},
		model.RecipeComponent{RMItemID: f.sugar.ID, QtyPerFGUnit: decimal.NewFromInt(1), Unit: "kg"},
	)
	f.receive(t, f.flour, "100")
	f.transfer(t, f.flour, "100", model.LocationStorage, model.LocationProcessing)
	// No sugar at Processing at all.
	before := len(f.ledger.events)

	_, err := f.svc.ProduceBatch(context.Background(), dto.ProduceRequest{
		RecipeID:   rec.ID.String(),
		FGQty:      decimal.NewFromInt(1),
		ClientUUID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// No partial batch: flour untouched, no yield.
	assert.Len(t, f.ledger.events, before)
	f.assertBalance(t, f.flour, model.LocationProcessing, "100")
	f.assertBalance(t, f.cake, model.LocationProcessing, "0")
}

func TestProduceBatchUnknownRecipe(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.svc.ProduceBatch(context.Background(), dto.ProduceRequest{
		RecipeID:   uuid.NewString(),
		FGQty:      decimal.NewFromInt(1),
		ClientUUID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProduceBatchKeepsCallerReference(t *testing.T) {
	f := newLedgerFixture(t)
	rec := f.addRecipe("0",
		model.RecipeComponent{RMItemID: f.flour.ID, QtyPerFGUnit: decimal.NewFromInt(1), Unit: "kg"},
	)
	f.receive(t, f.flour, "10")
	f.transfer(t, f.flour, "10", model.LocationStorage, model.LocationProcessing)
	ref := "BATCH-RERUN-7"
	key := uuid.NewString()

	_, err := f.svc.ProduceBatch(context.Background(), dto.ProduceRequest{
		RecipeID:   rec.ID.String(),
		FGQty:      decimal.NewFromInt(2),
		Reference:  &ref,
		ClientUUID: key,
	})
	require.NoError(t, err)
	for _, ev := range f.ledger.eventsFor(uuid.MustParse(key)) {
		require.NotNil(t, ev.Reference)
		assert.Equal(t, ref, *ev.Reference)
	}
}

func TestDispatchRequiresFinishedGood(t *testing.T) {
	f := newLedgerFixture(t)
	f.receive(t, f.flour, "10")

	_, err := f.svc.DispatchWithSales(context.Background(), dto.DispatchRequest{
		ItemID:     f.flour.ID.String(),
		Qty:        decimal.NewFromInt(1),
		ClientUUID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDispatchChecksExitBalance(t *testing.T) {
	f := newLedgerFixture(t)
	// Put 5 cakes at Exit by hand.
	qty := decimal.NewFromInt(5)
	f.ledger.events = append(f.ledger.events, &model.MovementEvent{
		ItemID: f.cake.ID, MovementType: model.MovementTransfer,
		QtyIn: &qty, Location: model.LocationExit, Unit: "unit",
		ClientUUID: uuid.New(), CreatedAt: time.Now(),
	})
	ctx := context.Background()

	_, err := f.svc.DispatchWithSales(ctx, dto.DispatchRequest{
		ItemID:     f.cake.ID.String(),
		Qty:        decimal.NewFromInt(6),
		ClientUUID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	price := decimal.RequireFromString("12.00")
	resp, err := f.svc.DispatchWithSales(ctx, dto.DispatchRequest{
		ItemID:     f.cake.ID.String(),
		Qty:        decimal.NewFromInt(5),
		SellPrice:  &price,
		ClientUUID: uuid.NewString(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Events)
	f.assertBalance(t, f.cake, model.LocationExit, "0")
}

// End-to-end ledger walk: receive raw material, stage it, produce, and verify
// every derived balance plus the rejection of the batch that would overdraw.
func TestLedgerFlowDerivedBalances(t *testing.T) {
	f := newLedgerFixture(t)
	rec := f.addRecipe("0",
		model.RecipeComponent{RMItemID: f.flour.ID, QtyPerFGUnit: decimal.NewFromInt(3), Unit: "kg"},
	)
	ctx := context.Background()

	f.receive(t, f.flour, "100")
	f.transfer(t, f.flour, "40", model.LocationStorage, model.LocationProcessing)

	_, err := f.svc.ProduceBatch(ctx, dto.ProduceRequest{
		RecipeID:   rec.ID.String(),
		FGQty:      decimal.NewFromInt(10),
		ClientUUID: uuid.NewString(),
	})
	require.NoError(t, err)

	f.assertBalance(t, f.flour, model.LocationStorage, "60")
	f.assertBalance(t, f.flour, model.LocationProcessing, "10")
	f.assertBalance(t, f.cake, model.LocationProcessing, "10")

	// Only 10kg remain at Processing; 4 more units need 12kg.
	_, err = f.svc.ProduceBatch(ctx, dto.ProduceRequest{
		RecipeID:   rec.ID.String(),
		FGQty:      decimal.NewFromInt(4),
		ClientUUID: uuid.NewString(),
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	f.assertBalance(t, f.flour, model.LocationProcessing, "10")
	f.assertBalance(t, f.cake, model.LocationProcessing, "10")

	// Total flour across locations never exceeds what was received.
	total := f.ledger.balance(f.flour.ID, model.LocationStorage).
		Add(f.ledger.balance(f.flour.ID, model.LocationProcessing)).
		Add(f.ledger.balance(f.flour.ID, model.LocationExit))
	assert.True(t, total.Equal(decimal.NewFromInt(70)))
}

func TestNetYield(t *testing.T) {
	cases := []struct {
		fgQty, wastePct, want string
	}{
		{"10", "0", "10"},
		{"10", "10", "9"},
		{"7", "2.5", "6.825"},
		{"100", "100", "0"},
	}
	for _, c := range cases {
		got := netYield(decimal.RequireFromString(c.fgQty), decimal.RequireFromString(c.wastePct))
		assert.True(t, got.Equal(decimal.RequireFromString(c.want)),
			"netYield(%s, %s) = %s, want %s", c.fgQty, c.wastePct, got, c.want)
	}
}
