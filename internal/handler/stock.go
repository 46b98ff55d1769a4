package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"stockledger/internal/apierror"
	"stockledger/internal/dto"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type StockHandler struct{ svc service.LedgerService }

func NewStockHandler(svc service.LedgerService) *StockHandler {
	return &StockHandler{svc: svc}
}

func (h *StockHandler) StockByLocation(c *gin.Context) {
	rows, err := h.svc.StockByLocation(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("failed to load stock"))
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *StockHandler) StockOnHand(c *gin.Context) {
	rows, err := h.svc.StockOnHand(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("failed to load stock"))
		return
	}
	c.JSON(http.StatusOK, rows)
}

func historyFilterFromQuery(c *gin.Context) dto.HistoryFilter {
	filter := dto.HistoryFilter{
		MovementType: c.Query("movement_type"),
		Location:     c.Query("location"),
	}
	if itemID := c.Query("item_id"); itemID != "" {
		filter.ItemID = &itemID
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = limit
	}
	return filter
}

func (h *StockHandler) History(c *gin.Context) {
	rows, err := h.svc.History(c.Request.Context(), historyFilterFromQuery(c))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("failed to load history"))
		return
	}
	c.JSON(http.StatusOK, rows)
}

// StockCSV streams the stock-by-location view as a CSV download.
func (h *StockHandler) StockCSV(c *gin.Context) {
	rows, err := h.svc.StockByLocation(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("failed to load stock"))
		return
	}

	filename := fmt.Sprintf("stock-%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"Item", "Unit", "Storage", "Processing", "Exit", "Total"})
	for _, row := range rows {
		total := row.StorageQty.Add(row.ProcessingQty).Add(row.ExitQty)
		_ = w.Write([]string{
			row.ItemName,
			row.Unit,
			row.StorageQty.String(),
			row.ProcessingQty.String(),
			row.ExitQty.String(),
			total.String(),
		})
	}
	w.Flush()
}

// HistoryCSV streams the movement history as a CSV download.
func (h *StockHandler) HistoryCSV(c *gin.Context) {
	rows, err := h.svc.History(c.Request.Context(), historyFilterFromQuery(c))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("failed to load history"))
		return
	}

	filename := fmt.Sprintf("transaction-history-%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"Date", "Item", "Qty In", "Qty Out", "Location", "Unit", "Unit Cost", "Sell Price", "Reference", "Notes", "Batch ID"})
	for _, row := range rows {
		ref, notes := "", ""
		if row.Reference != nil {
			ref = *row.Reference
		}
		if row.Notes != nil {
			notes = *row.Notes
		}
		_ = w.Write([]string{
			row.CreatedAt.Format(time.RFC3339),
			row.ItemName,
			decStr(row.QtyIn),
			decStr(row.QtyOut),
			row.Location,
			row.Unit,
			decStr(row.UnitCost),
			decStr(row.SellPrice),
			ref,
			notes,
			row.ClientUUID,
		})
	}
	w.Flush()
}

func decStr(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
