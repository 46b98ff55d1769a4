package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"stockledger/internal/client"
	"stockledger/internal/infra"
	"stockledger/internal/queue"

	"github.com/rs/zerolog/log"
)

// RetryLimit is the number of retries after the initial attempt. An operation
// failing transiently is attempted RetryLimit+1 times total, then abandoned.
const RetryLimit = 3

// DefaultOpTimeout bounds each remote application; a timed-out attempt counts
// as a transient failure.
const DefaultOpTimeout = 15 * time.Second

// Invoker applies one queued operation remotely, carrying its unchanged
// idempotency key. *client.Authority satisfies this.
type Invoker interface {
	Apply(ctx context.Context, op queue.Operation) error
}

// Report summarizes one drain pass (or a coalesced run of passes).
type Report struct {
	Applied int `json:"applied"`
	Failed  int `json:"failed"`
}

func (r *Report) add(o Report) {
	r.Applied += o.Applied
	r.Failed += o.Failed
}

type outcome int

const (
	outcomeApplied outcome = iota
	outcomeRetained
	outcomeRejected
	outcomeAbandoned
)

type opResult struct {
	outcome outcome
	err     error
}

// errDrainPaused stops a pass without judging the remaining operations:
// circuit open or session expired — nothing is counted, no retries burned.
var errDrainPaused = errors.New("drain paused")

// Engine drains the durable queue against the remote authority. At most one
// drain runs at a time; a trigger while draining coalesces into one more pass
// after the current one completes. Operations are applied strictly in enqueue
// order, one at a time.
type Engine struct {
	store     *queue.Store
	invoker   Invoker
	cb        *infra.CircuitBreaker
	opTimeout time.Duration

	online    atomic.Bool
	draining  atomic.Bool
	rerun     atomic.Bool
	abandoned atomic.Int64

	// lastPass holds the outcomes of the most recent drain run, replaced
	// wholesale each run. Entries are consumed by takeResult.
	mu       sync.Mutex
	lastPass map[string]opResult
}

func NewEngine(store *queue.Store, invoker Invoker, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		invoker:   invoker,
		cb:        infra.NewCircuitBreaker(infra.DefaultCBConfig()),
		opTimeout: DefaultOpTimeout,
		lastPass:  make(map[string]opResult),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type EngineOption func(*Engine)

// WithOpTimeout overrides the per-operation remote call timeout.
func WithOpTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.opTimeout = d }
}

// WithCircuitBreaker overrides the default breaker (useful in tests).
func WithCircuitBreaker(cb *infra.CircuitBreaker) EngineOption {
	return func(e *Engine) { e.cb = cb }
}

// SetOnline feeds the external connectivity signal. An offline→online
// transition triggers a background drain.
func (e *Engine) SetOnline(on bool) {
	was := e.online.Swap(on)
	if !was && on {
		go e.Drain(context.Background())
	}
}

// Online reports the last connectivity signal received.
func (e *Engine) Online() bool { return e.online.Load() }

// QueueDepth returns the number of pending operations.
func (e *Engine) QueueDepth(ctx context.Context) (int, error) {
	return e.store.Depth(ctx)
}

// AbandonedCount is the cumulative number of operations dropped after
// exhausting their retries. Surfaced so failures are never silent.
func (e *Engine) AbandonedCount() int64 { return e.abandoned.Load() }

// Drain runs passes over the queue until no coalesced re-run is pending.
// A concurrent call while a drain is in flight does not interleave: it sets
// the re-run flag and returns an empty report immediately.
func (e *Engine) Drain(ctx context.Context) Report {
	if !e.draining.CompareAndSwap(false, true) {
		e.rerun.Store(true)
		return Report{}
	}
	defer e.draining.Store(false)

	results := make(map[string]opResult)
	var total Report
	for {
		total.add(e.drainOnce(ctx, results))
		if !e.rerun.Swap(false) {
			break
		}
	}

	// Replace rather than merge: only the latest run's outcomes are kept,
	// so the map never grows past one run's worth of operations.
	e.mu.Lock()
	e.lastPass = results
	e.mu.Unlock()
	return total
}

// drainOnce applies one snapshot of the queue in enqueue order, recording
// each outcome into results. Operations enqueued mid-pass are left for the
// next pass. A failing operation does not block independent ones behind it.
func (e *Engine) drainOnce(ctx context.Context, results map[string]opResult) Report {
	pending, err := e.store.ListPending(ctx)
	if err != nil {
		log.Error().Err(err).Msg("sync: failed to snapshot queue")
		return Report{}
	}
	if len(pending) == 0 {
		return Report{}
	}

	var rep Report
	for _, op := range pending {
		res, err := e.applyOne(ctx, op)
		if errors.Is(err, errDrainPaused) {
			log.Warn().Str("op", op.ID).Msg("sync: drain paused, leaving remaining operations queued")
			break
		}
		results[op.ID] = res
		switch res.outcome {
		case outcomeApplied:
			rep.Applied++
		case outcomeRetained, outcomeRejected, outcomeAbandoned:
			rep.Failed++
		}
	}
	return rep
}

func (e *Engine) applyOne(ctx context.Context, op queue.Operation) (opResult, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.opTimeout)
	defer cancel()

	// Business rejections mean the authority is alive and answering; only
	// transport-level failures feed the breaker.
	var terminal error
	err := e.cb.Execute(func() error {
		callErr := e.invoker.Apply(opCtx, op)
		if callErr != nil && !client.IsTransient(callErr) {
			terminal = callErr
			return nil
		}
		return callErr
	})

	switch {
	case err == nil && terminal == nil:
		if rmErr := e.store.Remove(ctx, op.ID); rmErr != nil {
			log.Error().Err(rmErr).Str("op", op.ID).Msg("sync: applied but failed to dequeue")
		}
		log.Info().Str("op", op.ID).Str("kind", string(op.Kind)).Msg("sync: applied")
		return opResult{outcome: outcomeApplied}, nil

	case errors.Is(err, infra.ErrCircuitOpen):
		return opResult{}, errDrainPaused

	case terminal != nil && errors.Is(terminal, client.ErrUnauthorized):
		// Session expired: not the operations' fault. Pause instead of
		// burning retries; draining resumes after a fresh login.
		return opResult{}, errDrainPaused

	case terminal != nil:
		// InsufficientStock or validation rejection — retrying cannot change
		// the business fact. Dequeue and surface immediately.
		if rmErr := e.store.Remove(ctx, op.ID); rmErr != nil {
			log.Error().Err(rmErr).Str("op", op.ID).Msg("sync: failed to dequeue rejected operation")
		}
		log.Warn().Err(terminal).Str("op", op.ID).Str("kind", string(op.Kind)).
			Msg("sync: rejected by authority")
		return opResult{outcome: outcomeRejected, err: terminal}, nil

	default:
		// Transient failure: keep queued until the retry ceiling.
		if op.RetryCount < RetryLimit {
			if _, bumpErr := e.store.BumpRetry(ctx, op.ID); bumpErr != nil {
				log.Error().Err(bumpErr).Str("op", op.ID).Msg("sync: failed to bump retry count")
			}
			log.Warn().Err(err).Str("op", op.ID).Int("retry_count", op.RetryCount+1).
				Msg("sync: transient failure, will retry")
			return opResult{outcome: outcomeRetained, err: err}, nil
		}
		if rmErr := e.store.Remove(ctx, op.ID); rmErr != nil {
			log.Error().Err(rmErr).Str("op", op.ID).Msg("sync: failed to dequeue abandoned operation")
		}
		e.abandoned.Add(1)
		log.Error().Err(err).Str("op", op.ID).Str("kind", string(op.Kind)).
			Int("attempts", op.RetryCount+1).
			Msg("sync: retry ceiling reached, operation abandoned")
		return opResult{outcome: outcomeAbandoned, err: err}, nil
	}
}

// takeResult consumes the recorded outcome for one operation id, if the
// most recent passes decided it.
func (e *Engine) takeResult(id string) (opResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	res, ok := e.lastPass[id]
	if ok {
		delete(e.lastPass, id)
	}
	return res, ok
}
