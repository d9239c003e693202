package handler

import (
	"net/http"

	"lendflow/internal/middleware"
	"lendflow/internal/service"
	"lendflow/pkg/pagination"
	"lendflow/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApplicationHandler struct {
	appService service.ApplicationService
}

func NewApplicationHandler(appService service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{appService: appService}
}

func (h *ApplicationHandler) RegisterRoutes(router *gin.RouterGroup) {
	apps := router.Group("/api/applications")
	apps.Use(middleware.RequireRole())
	{
		apps.POST("", h.Create)
		apps.GET("", h.List)
		apps.GET("/:id", h.Get)
		apps.POST("/:id/transition", h.Transition)
		apps.POST("/:id/nbfcs", h.AssignNbfc)
	}
}

// Create files a new loan application in DRAFT
// @Summary      Create application
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      service.CreateApplicationRequest  true  "Application"
// @Success      201   {object}  response.Response{data=service.ApplicationResponse}
// @Failure      400   {object}  response.Response
// @Router       /api/applications [post]
func (h *ApplicationHandler) Create(c *gin.Context) {
	var req service.CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	app, err := h.appService.Create(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, app))
}

// List returns applications visible to the caller, optionally filtered by status
// @Summary      List applications
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Status filter"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=response.Paged}
// @Router       /api/applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	params := pagination.Parse(c)

	apps, total, err := h.appService.List(c.Request.Context(), middleware.CurrentActor(c),
		c.Query("status"), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.List(http.StatusOK, apps, total, params.Page, params.Limit))
}

// Get returns one application, its status trail, lenders, and query threads
// @Summary      Get application detail
// @Tags         applications
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Application ID"
// @Success      200  {object}  response.Response{data=service.ApplicationDetailResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	detail, err := h.appService.Get(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, detail))
}

// Transition moves an application to a new status
// @Summary      Transition application status
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string                     true  "Application ID"
// @Param        body  body      service.TransitionRequest  true  "Target status and payload"
// @Success      200   {object}  response.Response{data=service.ApplicationResponse}
// @Failure      409   {object}  response.Response  "Transition not defined from the current status"
// @Failure      403   {object}  response.Response  "Role may not make this transition"
// @Router       /api/applications/{id}/transition [post]
func (h *ApplicationHandler) Transition(c *gin.Context) {
	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	app, err := h.appService.Transition(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, app))
}

// AssignNbfc attaches a lending partner to an application under credit review
// @Summary      Assign NBFC
// @Tags         applications
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string                     true  "Application ID"
// @Param        body  body      service.AssignNbfcRequest  true  "Lender"
// @Success      200   {object}  response.Response
// @Router       /api/applications/{id}/nbfcs [post]
func (h *ApplicationHandler) AssignNbfc(c *gin.Context) {
	var req service.AssignNbfcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := h.appService.AssignNbfc(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "nbfc assigned"}))
}
