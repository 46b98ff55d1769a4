package handler

import (
	"net/http"

	"stockledger/internal/dto"
	"stockledger/internal/service"

	"github.com/gin-gonic/gin"
)

// OpsHandler exposes the four authority procedures. Each endpoint is one
// round trip: the whole batch is applied, replayed, or rejected.
type OpsHandler struct{ svc service.LedgerService }

func NewOpsHandler(svc service.LedgerService) *OpsHandler {
	return &OpsHandler{svc: svc}
}

func (h *OpsHandler) Receive(c *gin.Context) {
	var req dto.ReceiveRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Receive(c.Request.Context(), req)
	if err != nil {
		writeOpError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OpsHandler) Transfer(c *gin.Context) {
	var req dto.TransferRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Transfer(c.Request.Context(), req)
	if err != nil {
		writeOpError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OpsHandler) Produce(c *gin.Context) {
	var req dto.ProduceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.ProduceBatch(c.Request.Context(), req)
	if err != nil {
		writeOpError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OpsHandler) Dispatch(c *gin.Context) {
	var req dto.DispatchRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.DispatchWithSales(c.Request.Context(), req)
	if err != nil {
		writeOpError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
