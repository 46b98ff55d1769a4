package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/dto"
	"stockledger/internal/service"
)

// stubLedgerService returns canned results so the handler's binding,
// validation, and status mapping can be exercised without a database.
type stubLedgerService struct {
	receiveErr error
	history    []dto.MovementHistoryRow
	stock      []dto.StockByLocationRow
}

func (s *stubLedgerService) Receive(_ context.Context, req dto.ReceiveRequest) (*dto.OpResponse, error) {
	if s.receiveErr != nil {
		return nil, s.receiveErr
	}
	return &dto.OpResponse{ClientUUID: req.ClientUUID, Events: 1}, nil
}

func (s *stubLedgerService) Transfer(_ context.Context, req dto.TransferRequest) (*dto.OpResponse, error) {
	return &dto.OpResponse{ClientUUID: req.ClientUUID, Events: 2}, nil
}

func (s *stubLedgerService) ProduceBatch(_ context.Context, req dto.ProduceRequest) (*dto.OpResponse, error) {
	return &dto.OpResponse{ClientUUID: req.ClientUUID, Events: 3}, nil
}

func (s *stubLedgerService) DispatchWithSales(_ context.Context, req dto.DispatchRequest) (*dto.OpResponse, error) {
	return &dto.OpResponse{ClientUUID: req.ClientUUID, Events: 1}, nil
}

func (s *stubLedgerService) StockByLocation(context.Context) ([]dto.StockByLocationRow, error) {
	return s.stock, nil
}

func (s *stubLedgerService) StockOnHand(context.Context) ([]dto.StockOnHandRow, error) {
	return nil, nil
}

func (s *stubLedgerService) History(context.Context, dto.HistoryFilter) ([]dto.MovementHistoryRow, error) {
	return s.history, nil
}

func postJSON(t *testing.T, handlerFn gin.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/op", handlerFn)

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/op", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestReceiveEndpoint(t *testing.T) {
	h := NewOpsHandler(&stubLedgerService{})
	key := uuid.NewString()

	w := postJSON(t, h.Receive, dto.ReceiveRequest{
		ItemID:     uuid.NewString(),
		Qty:        decimal.NewFromInt(10),
		ClientUUID: key,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.OpResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, key, resp.ClientUUID)
	assert.Equal(t, 1, resp.Events)
}

func TestReceiveEndpointValidation(t *testing.T) {
	h := NewOpsHandler(&stubLedgerService{})

	// Missing client_uuid.
	w := postJSON(t, h.Receive, map[string]interface{}{
		"item_id": uuid.NewString(),
		"qty":     "10",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Malformed body.
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/op", h.Receive)
	req := httptest.NewRequest(http.MethodPost, "/op", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransferEndpointRejectsUnknownLocation(t *testing.T) {
	h := NewOpsHandler(&stubLedgerService{})

	w := postJSON(t, h.Transfer, map[string]interface{}{
		"item_id":     uuid.NewString(),
		"qty":         "5",
		"from":        "Warehouse",
		"to":          "Processing",
		"client_uuid": uuid.NewString(),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestOpErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"insufficient stock", fmt.Errorf("%w: no flour", service.ErrInsufficientStock), http.StatusConflict},
		{"validation", fmt.Errorf("%w: inactive item", service.ErrValidation), http.StatusUnprocessableEntity},
		{"internal", fmt.Errorf("connection lost"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			h := NewOpsHandler(&stubLedgerService{receiveErr: c.err})
			w := postJSON(t, h.Receive, dto.ReceiveRequest{
				ItemID:     uuid.NewString(),
				Qty:        decimal.NewFromInt(1),
				ClientUUID: uuid.NewString(),
			})
			assert.Equal(t, c.want, w.Code)
		})
	}
}

func TestStockCSVExport(t *testing.T) {
	h := NewStockHandler(&stubLedgerService{stock: []dto.StockByLocationRow{
		{
			ItemName:      "Flour",
			Unit:          "kg",
			StorageQty:    decimal.NewFromInt(60),
			ProcessingQty: decimal.NewFromInt(10),
			ExitQty:       decimal.Zero,
		},
	}})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/stock.csv", h.StockCSV)
	req := httptest.NewRequest(http.MethodGet, "/stock.csv", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Item", "Unit", "Storage", "Processing", "Exit", "Total"}, records[0])
	assert.Equal(t, []string{"Flour", "kg", "60", "10", "0", "70"}, records[1])
}

func TestHistoryCSVExport(t *testing.T) {
	qty := decimal.NewFromInt(100)
	ref := "PO-42"
	h := NewStockHandler(&stubLedgerService{history: []dto.MovementHistoryRow{
		{
			CreatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			ItemName:     "Flour",
			MovementType: "Receive",
			QtyIn:        &qty,
			Location:     "Storage",
			Unit:         "kg",
			Reference:    &ref,
			ClientUUID:   uuid.NewString(),
		},
	}})

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/history.csv", h.HistoryCSV)
	req := httptest.NewRequest(http.MethodGet, "/history.csv", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")

	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Date", records[0][0])
	assert.Equal(t, "Flour", records[1][1])
	assert.Equal(t, "100", records[1][2])
	assert.Equal(t, "", records[1][3])
	assert.Equal(t, "PO-42", records[1][8])
}
