package handler

import (
	"net/http"

	"lendflow/internal/middleware"
	"lendflow/internal/service"
	"lendflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type QueryHandler struct {
	queryService service.QueryService
}

func NewQueryHandler(queryService service.QueryService) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

func (h *QueryHandler) RegisterRoutes(router *gin.RouterGroup) {
	queries := router.Group("/api/queries")
	queries.Use(middleware.RequireRole())
	{
		queries.POST("", h.Raise)
		queries.GET("", h.ListThreads)
		queries.POST("/:id/replies", h.Reply)
		queries.PUT("/:id/resolve", h.Resolve)
		queries.PUT("/:id", h.Edit)
	}
}

type replyRequest struct {
	Message string `json:"message" binding:"required"`
}

type resolveRequest struct {
	ResolutionNote string `json:"resolution_note"`
}

type editRequest struct {
	Message string `json:"message" binding:"required"`
}

// Raise opens a query thread on an application or a ledger entry
// @Summary      Raise query
// @Tags         queries
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      service.RaiseQueryRequest  true  "Query"
// @Success      201   {object}  response.Response{data=service.QueryResponse}
// @Failure      409   {object}  response.Response  "Caller already has an open query on this target"
// @Router       /api/queries [post]
func (h *QueryHandler) Raise(c *gin.Context) {
	var req service.RaiseQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	query, err := h.queryService.Raise(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, query))
}

// ListThreads returns all query threads on a target with derived awaiting flags
// @Summary      List query threads
// @Tags         queries
// @Security     BearerAuth
// @Produce      json
// @Param        target_id  query     string  true  "Application or ledger entry ID"
// @Success      200        {object}  response.Response{data=[]service.QueryThreadResponse}
// @Router       /api/queries [get]
func (h *QueryHandler) ListThreads(c *gin.Context) {
	threads, err := h.queryService.ListThreads(c.Request.Context(), c.Query("target_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, threads))
}

// Reply appends a message to an open thread
// @Summary      Reply to query
// @Tags         queries
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string        true  "Query ID"
// @Param        body  body      replyRequest  true  "Reply"
// @Success      201   {object}  response.Response{data=service.QueryReplyResponse}
// @Failure      409   {object}  response.Response  "Thread already resolved"
// @Router       /api/queries/{id}/replies [post]
func (h *QueryHandler) Reply(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	reply, err := h.queryService.Reply(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, reply))
}

// Resolve closes a thread
// @Summary      Resolve query
// @Tags         queries
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string          true   "Query ID"
// @Param        body  body      resolveRequest  false  "Resolution note"
// @Success      200   {object}  response.Response{data=service.QueryResponse}
// @Failure      409   {object}  response.Response  "Already resolved"
// @Router       /api/queries/{id}/resolve [put]
func (h *QueryHandler) Resolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req.ResolutionNote = ""
	}

	query, err := h.queryService.Resolve(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.ResolutionNote)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, query))
}

// Edit rewrites the root message of an unresolved thread within the edit window
// @Summary      Edit query
// @Tags         queries
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string       true  "Query ID"
// @Param        body  body      editRequest  true  "New message"
// @Success      200   {object}  response.Response{data=service.QueryResponse}
// @Failure      422   {object}  response.Response  "Edit window expired"
// @Router       /api/queries/{id} [put]
func (h *QueryHandler) Edit(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	query, err := h.queryService.Edit(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, query))
}
