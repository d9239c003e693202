package handler

import (
	"net/http"

	"lendflow/internal/middleware"
	"lendflow/internal/model"
	"lendflow/internal/service"
	"lendflow/pkg/pagination"
	"lendflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type LedgerHandler struct {
	ledgerService service.LedgerService
}

func NewLedgerHandler(ledgerService service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerService: ledgerService}
}

func (h *LedgerHandler) RegisterRoutes(router *gin.RouterGroup) {
	ledger := router.Group("/api/ledger")
	ledger.Use(middleware.RequireRole())
	{
		ledger.GET("/clients/:clientId/statement", h.Statement)
		ledger.PUT("/entries/:id/flag", h.FlagForPayout)
		ledger.POST("/entries/:id/disputes", h.RaiseDispute)
	}

	payouts := router.Group("/api/payouts")
	payouts.Use(middleware.RequireRole())
	{
		payouts.POST("", h.RequestPayout)
		payouts.GET("", h.ListPayouts)
		payouts.PUT("/:id/approve", middleware.RequireRole(model.RoleCreditTeam), h.ApprovePayout)
		payouts.PUT("/:id/reject", middleware.RequireRole(model.RoleCreditTeam), h.RejectPayout)
	}
}

type disputeRequest struct {
	Message string `json:"message" binding:"required"`
}

type rejectPayoutRequest struct {
	Reason string `json:"reason"`
}

// Statement returns the client's ledger with per-entry running balances
// @Summary      Commission statement
// @Tags         ledger
// @Security     BearerAuth
// @Produce      json
// @Param        clientId  path      string  true  "Client ID"
// @Success      200       {object}  response.Response{data=service.StatementResponse}
// @Failure      403       {object}  response.Response
// @Router       /api/ledger/clients/{clientId}/statement [get]
func (h *LedgerHandler) Statement(c *gin.Context) {
	statement, err := h.ledgerService.Statement(c.Request.Context(), middleware.CurrentActor(c), c.Param("clientId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, statement))
}

// FlagForPayout marks a ledger entry as wanted in the next payout
// @Summary      Flag entry for payout
// @Tags         ledger
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Ledger entry ID"
// @Success      200  {object}  response.Response
// @Router       /api/ledger/entries/{id}/flag [put]
func (h *LedgerHandler) FlagForPayout(c *gin.Context) {
	if err := h.ledgerService.FlagForPayout(c.Request.Context(), middleware.CurrentActor(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "entry flagged"}))
}

// RaiseDispute opens a query thread against a ledger entry
// @Summary      Dispute ledger entry
// @Tags         ledger
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string          true  "Ledger entry ID"
// @Param        body  body      disputeRequest  true  "Dispute message"
// @Success      201   {object}  response.Response{data=service.QueryResponse}
// @Failure      409   {object}  response.Response  "Caller already has an open dispute on this entry"
// @Router       /api/ledger/entries/{id}/disputes [post]
func (h *LedgerHandler) RaiseDispute(c *gin.Context) {
	var req disputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	query, err := h.ledgerService.RaiseDispute(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, query))
}

// RequestPayout files a payout request against the available balance
// @Summary      Request payout
// @Tags         payouts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      service.RequestPayoutRequest  true  "Payout request"
// @Success      201   {object}  response.Response{data=service.PayoutResponse}
// @Failure      409   {object}  response.Response  "A pending request already exists"
// @Failure      422   {object}  response.Response  "Amount exceeds available balance"
// @Router       /api/payouts [post]
func (h *LedgerHandler) RequestPayout(c *gin.Context) {
	var req service.RequestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	payout, err := h.ledgerService.RequestPayout(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, payout))
}

// ListPayouts lists payout requests visible to the caller
// @Summary      List payouts
// @Tags         payouts
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Status filter (elevated roles only)"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Paged}
// @Router       /api/payouts [get]
func (h *LedgerHandler) ListPayouts(c *gin.Context) {
	params := pagination.Parse(c)

	payouts, total, err := h.ledgerService.ListPayouts(c.Request.Context(), middleware.CurrentActor(c),
		c.Query("status"), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.List(http.StatusOK, payouts, total, params.Page, params.Limit))
}

// ApprovePayout re-validates the balance and marks the request paid
// @Summary      Approve payout
// @Tags         payouts
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Payout request ID"
// @Success      200  {object}  response.Response{data=service.PayoutResponse}
// @Failure      422  {object}  response.Response  "Balance no longer covers the request"
// @Router       /api/payouts/{id}/approve [put]
func (h *LedgerHandler) ApprovePayout(c *gin.Context) {
	payout, err := h.ledgerService.ApprovePayout(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, payout))
}

// RejectPayout declines a pending payout request with a reason
// @Summary      Reject payout
// @Tags         payouts
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string               true  "Payout request ID"
// @Param        body  body      rejectPayoutRequest  true  "Rejection reason"
// @Success      200   {object}  response.Response{data=service.PayoutResponse}
// @Failure      400   {object}  response.Response  "Reason is required"
// @Router       /api/payouts/{id}/reject [put]
func (h *LedgerHandler) RejectPayout(c *gin.Context) {
	var req rejectPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.Reason = ""
	}

	payout, err := h.ledgerService.RejectPayout(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, payout))
}
