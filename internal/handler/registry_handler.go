package handler

import (
	"net/http"

	"lendflow/internal/middleware"
	"lendflow/internal/service"
	"lendflow/pkg/pagination"
	"lendflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// RegistryHandler serves the client registry, the NBFC partner registry, and
// the loan product catalog.
type RegistryHandler struct {
	clientService  service.ClientService
	productService service.ProductService
}

func NewRegistryHandler(clientService service.ClientService, productService service.ProductService) *RegistryHandler {
	return &RegistryHandler{clientService: clientService, productService: productService}
}

func (h *RegistryHandler) RegisterRoutes(router *gin.RouterGroup) {
	clients := router.Group("/api/clients")
	clients.Use(middleware.RequireRole())
	{
		clients.POST("", h.CreateClient)
		clients.GET("", h.ListClients)
		clients.GET("/:id", h.GetClient)
		clients.PUT("/:id/commission-rate", h.UpdateCommissionRate)
	}

	nbfcs := router.Group("/api/nbfcs")
	nbfcs.Use(middleware.RequireRole())
	{
		nbfcs.POST("", h.CreateNbfc)
		nbfcs.GET("", h.ListNbfcs)
	}

	products := router.Group("/api/products")
	products.Use(middleware.RequireRole())
	{
		products.POST("", h.CreateProduct)
		products.GET("", h.ListProducts)
	}
}

// CreateClient registers a borrower account
// @Summary      Create client
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      service.CreateClientRequest  true  "Client"
// @Success      201   {object}  response.Response{data=service.ClientResponse}
// @Router       /api/clients [post]
func (h *RegistryHandler) CreateClient(c *gin.Context) {
	var req service.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	client, err := h.clientService.CreateClient(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, client))
}

// ListClients lists clients visible to the caller
// @Summary      List clients
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Paged}
// @Router       /api/clients [get]
func (h *RegistryHandler) ListClients(c *gin.Context) {
	params := pagination.Parse(c)

	clients, total, err := h.clientService.ListClients(c.Request.Context(), middleware.CurrentActor(c), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.List(http.StatusOK, clients, total, params.Page, params.Limit))
}

// GetClient returns one client
// @Summary      Get client
// @Tags         clients
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Client ID"
// @Success      200  {object}  response.Response{data=service.ClientResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/clients/{id} [get]
func (h *RegistryHandler) GetClient(c *gin.Context) {
	client, err := h.clientService.GetClient(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, client))
}

// UpdateCommissionRate changes a client's forward-looking commission rate
// @Summary      Update commission rate
// @Tags         clients
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id    path      string                               true  "Client ID"
// @Param        body  body      service.UpdateCommissionRateRequest  true  "New rate"
// @Success      200   {object}  response.Response{data=service.ClientResponse}
// @Router       /api/clients/{id}/commission-rate [put]
func (h *RegistryHandler) UpdateCommissionRate(c *gin.Context) {
	var req service.UpdateCommissionRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	client, err := h.clientService.UpdateCommissionRate(c.Request.Context(), middleware.CurrentActor(c), c.Param("id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, client))
}

// CreateNbfc registers a lending partner
// @Summary      Create NBFC
// @Tags         nbfcs
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      service.CreateNbfcRequest  true  "Lending partner"
// @Success      201   {object}  response.Response{data=service.NbfcResponse}
// @Router       /api/nbfcs [post]
func (h *RegistryHandler) CreateNbfc(c *gin.Context) {
	var req service.CreateNbfcRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	nbfc, err := h.clientService.CreateNbfc(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, nbfc))
}

// ListNbfcs lists lending partners
// @Summary      List NBFCs
// @Tags         nbfcs
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=response.Paged}
// @Router       /api/nbfcs [get]
func (h *RegistryHandler) ListNbfcs(c *gin.Context) {
	params := pagination.Parse(c)

	nbfcs, total, err := h.clientService.ListNbfcs(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.List(http.StatusOK, nbfcs, total, params.Page, params.Limit))
}

// CreateProduct adds a loan product to the catalog
// @Summary      Create product
// @Tags         products
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      service.CreateProductRequest  true  "Product"
// @Success      201   {object}  response.Response{data=service.ProductResponse}
// @Router       /api/products [post]
func (h *RegistryHandler) CreateProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	product, err := h.productService.Create(c.Request.Context(), middleware.CurrentActor(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, product))
}

// ListProducts lists active loan products (cached)
// @Summary      List products
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.ProductResponse}
// @Router       /api/products [get]
func (h *RegistryHandler) ListProducts(c *gin.Context) {
	products, err := h.productService.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, products))
}
