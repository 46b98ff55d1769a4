package syncer

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"stockledger/internal/queue"
)

// Status reports what happened to a submitted intent, from the caller's
// point of view.
type Status string

const (
	// StatusApplied means the authority accepted the operation during this
	// submission.
	StatusApplied Status = "applied"
	// StatusQueued means the operation is durably stored and will be applied
	// on a later drain.
	StatusQueued Status = "queued"
	// StatusRejected means the operation was removed from the queue without
	// being applied: the authority refused it, or delivery kept failing past
	// the retry limit.
	StatusRejected Status = "rejected"
	// StatusInvalid means local validation refused the intent before anything
	// was enqueued.
	StatusInvalid Status = "invalid"
)

// SubmitResult carries the outcome of one submission. Err is set for
// StatusInvalid and StatusRejected.
type SubmitResult struct {
	Status     Status
	ClientUUID string
	Err        error
}

// Submitter is the entry point the UI layer calls: it encodes an intent,
// enqueues it durably, and when online immediately drains the queue so the
// caller learns whether the authority accepted the operation. Offline, every
// valid intent lands as StatusQueued.
type Submitter struct {
	enc *Encoder
	eng *Engine
}

func NewSubmitter(enc *Encoder, eng *Engine) *Submitter {
	return &Submitter{enc: enc, eng: eng}
}

// SubmitReceive records goods arriving at Storage.
func (s *Submitter) SubmitReceive(ctx context.Context, itemID string, qty decimal.Decimal, unitCost *decimal.Decimal, reference, notes *string) SubmitResult {
	op, err := s.enc.EncodeReceive(itemID, qty, unitCost, reference, notes)
	return s.submit(ctx, op, err)
}

// SubmitTransfer records a move between locations.
func (s *Submitter) SubmitTransfer(ctx context.Context, itemID string, qty decimal.Decimal, from, to string, reference *string, snap *Snapshot) SubmitResult {
	op, err := s.enc.EncodeTransfer(itemID, qty, from, to, reference, snap)
	return s.submit(ctx, op, err)
}

// SubmitProduce records a recipe-based production batch.
func (s *Submitter) SubmitProduce(ctx context.Context, recipeID string, fgQty decimal.Decimal, reference, notes *string, snap *Snapshot) SubmitResult {
	op, err := s.enc.EncodeProduce(recipeID, fgQty, reference, notes, snap)
	return s.submit(ctx, op, err)
}

// SubmitDispatch records a finished good leaving through Exit.
func (s *Submitter) SubmitDispatch(ctx context.Context, itemID string, qty decimal.Decimal, sellPrice *decimal.Decimal, reference, notes *string) SubmitResult {
	op, err := s.enc.EncodeDispatch(itemID, qty, sellPrice, reference, notes)
	return s.submit(ctx, op, err)
}

func (s *Submitter) submit(ctx context.Context, op *queue.Operation, encErr error) SubmitResult {
	if encErr != nil {
		return SubmitResult{Status: StatusInvalid, Err: encErr}
	}
	if err := s.eng.store.Enqueue(ctx, op); err != nil {
		// Every encode mints a fresh key, so a duplicate here is a programming
		// error, not a user one.
		log.Error().Err(err).Str("client_uuid", op.ID).Str("kind", string(op.Kind)).
			Msg("enqueue failed")
		return SubmitResult{Status: StatusInvalid, ClientUUID: op.ID, Err: err}
	}
	if !s.eng.Online() {
		return SubmitResult{Status: StatusQueued, ClientUUID: op.ID}
	}

	s.eng.Drain(ctx)

	res, ok := s.eng.takeResult(op.ID)
	if !ok {
		// Another drain slot owned the pass, or the pass paused before
		// reaching this operation. It stays queued either way.
		return SubmitResult{Status: StatusQueued, ClientUUID: op.ID}
	}
	switch res.outcome {
	case outcomeApplied:
		return SubmitResult{Status: StatusApplied, ClientUUID: op.ID}
	case outcomeRejected, outcomeAbandoned:
		return SubmitResult{Status: StatusRejected, ClientUUID: op.ID, Err: res.err}
	default:
		return SubmitResult{Status: StatusQueued, ClientUUID: op.ID}
	}
}
