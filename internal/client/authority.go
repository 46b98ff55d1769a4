// Package client is the HTTP boundary to the remote ledger authority: one
// round trip per procedure, bearer session token, idempotency key in the body.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"stockledger/internal/dto"
	"stockledger/internal/queue"
)

// Authority talks to the remote transactional procedure store. It holds the
// opaque session token obtained from Login; all core logic receives the token
// through this client rather than reading ambient state.
type Authority struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

func NewAuthority(baseURL string, timeout time.Duration) *Authority {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Authority{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetToken installs the session token used on subsequent calls.
func (a *Authority) SetToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

func (a *Authority) currentToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// Login exchanges the PIN for a session token and installs it.
func (a *Authority) Login(ctx context.Context, pin string) error {
	var resp dto.LoginResponse
	if err := a.do(ctx, http.MethodPost, "/v1/auth/login", dto.LoginRequest{PIN: pin}, &resp); err != nil {
		return err
	}
	a.SetToken(resp.AccessToken)
	return nil
}

// ── Write procedures ──────────────────────────────────────────────────────────

func (a *Authority) Receive(ctx context.Context, req dto.ReceiveRequest) (*dto.OpResponse, error) {
	return a.op(ctx, "/v1/ops/receive", req)
}

func (a *Authority) Transfer(ctx context.Context, req dto.TransferRequest) (*dto.OpResponse, error) {
	return a.op(ctx, "/v1/ops/transfer", req)
}

func (a *Authority) Produce(ctx context.Context, req dto.ProduceRequest) (*dto.OpResponse, error) {
	return a.op(ctx, "/v1/ops/produce", req)
}

func (a *Authority) Dispatch(ctx context.Context, req dto.DispatchRequest) (*dto.OpResponse, error) {
	return a.op(ctx, "/v1/ops/dispatch", req)
}

// Apply replays a queued operation against the endpoint for its kind,
// byte-identical to the original submission (same idempotency key).
func (a *Authority) Apply(ctx context.Context, op queue.Operation) error {
	var path string
	switch op.Kind {
	case queue.KindReceive:
		path = "/v1/ops/receive"
	case queue.KindTransfer:
		path = "/v1/ops/transfer"
	case queue.KindProduce:
		path = "/v1/ops/produce"
	case queue.KindDispatch:
		path = "/v1/ops/dispatch"
	default:
		return fmt.Errorf("%w: unknown operation kind %q", ErrRejected, op.Kind)
	}
	var resp dto.OpResponse
	return a.doRaw(ctx, http.MethodPost, path, op.Payload, &resp)
}

// ── Reads ─────────────────────────────────────────────────────────────────────

func (a *Authority) FetchStockByLocation(ctx context.Context) ([]dto.StockByLocationRow, error) {
	var rows []dto.StockByLocationRow
	err := a.do(ctx, http.MethodGet, "/v1/stock/by-location", nil, &rows)
	return rows, err
}

func (a *Authority) FetchItems(ctx context.Context, itemType string) ([]dto.ItemResponse, error) {
	path := "/v1/items"
	if itemType != "" {
		path += "?type=" + itemType
	}
	var items []dto.ItemResponse
	err := a.do(ctx, http.MethodGet, path, nil, &items)
	return items, err
}

func (a *Authority) FetchRecipes(ctx context.Context) ([]dto.RecipeResponse, error) {
	var recipes []dto.RecipeResponse
	err := a.do(ctx, http.MethodGet, "/v1/recipes", nil, &recipes)
	return recipes, err
}

// ── Plumbing ──────────────────────────────────────────────────────────────────

func (a *Authority) op(ctx context.Context, path string, payload interface{}) (*dto.OpResponse, error) {
	var resp dto.OpResponse
	if err := a.do(ctx, http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *Authority) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}
	return a.doRaw(ctx, method, path, body, out)
}

func (a *Authority) doRaw(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token := a.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		// DNS failures, refused connections, context timeouts — all retryable
		return &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &TransientError{Err: fmt.Errorf("decode response: %w", err)}
		}
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, readDetail(resp))
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrInsufficientStock, readDetail(resp))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: %s", ErrRejected, readDetail(resp))
	default:
		return &TransientError{Err: fmt.Errorf("authority returned %d", resp.StatusCode)}
	}
}

func readDetail(resp *http.Response) string {
	var envelope struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Detail == "" {
		return resp.Status
	}
	return envelope.Detail
}
