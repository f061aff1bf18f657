package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"supplyhub/internal/core/apperror"
	"supplyhub/internal/domain"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/domain/orders"
	"supplyhub/internal/infrastructure/http/v1/dto"
)

// SupplierOrderHandler handles HTTP requests for supplier orders.
type SupplierOrderHandler struct {
	*BaseHandler
	service *orders.Service
}

// NewSupplierOrderHandler creates a new supplier order handler.
func NewSupplierOrderHandler(base *BaseHandler, service *orders.Service) *SupplierOrderHandler {
	return &SupplierOrderHandler{BaseHandler: base, service: service}
}

// RegisterRoutes mounts the handler on rg.
func (h *SupplierOrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/statistics", h.Statistics)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/items", h.AddItem)
	rg.POST("/:id/status", h.UpdateStatus)
	rg.POST("/:id/receive", h.Receive)
	rg.POST("/:id/copy", h.Copy)
	rg.GET("/:id/movements", h.Movements)
}

// Create handles POST /supplier-orders.
func (h *SupplierOrderHandler) Create(c *gin.Context) {
	var req dto.CreateSupplierOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	created, err := h.service.CreateOrder(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromCreatedOrder(created))
}

// List handles GET /supplier-orders.
// Query: supplierId, status, dateFrom, dateTo (inclusive days), limit, offset.
func (h *SupplierOrderHandler) List(c *gin.Context) {
	filter := orders.ListFilter{
		ListFilter: domain.ListFilter{
			Limit:  h.ParseIntQuery(c, "limit", 0),
			Offset: h.ParseIntQuery(c, "offset", 0),
		},
	}

	if v := c.Query("supplierId"); v != "" {
		supplierID, err := inventory.ParseSupplierID(v)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid supplierId").WithDetail("value", v))
			return
		}
		filter.SupplierID = &supplierID
	}
	if v := c.Query("status"); v != "" {
		status, err := orders.ParseStatus(v)
		if err != nil {
			h.Error(c, err)
			return
		}
		filter.Status = &status
	}
	var ok bool
	if filter.DateFrom, ok = h.parseDateQuery(c, "dateFrom"); !ok {
		return
	}
	if filter.DateTo, ok = h.parseDateQuery(c, "dateTo"); !ok {
		return
	}

	views, err := h.service.GetOrders(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(views, filter.Limit, filter.Offset))
}

func (h *SupplierOrderHandler) parseDateQuery(c *gin.Context, param string) (*time.Time, bool) {
	v := c.Query(param)
	if v == "" {
		return nil, true
	}
	t, err := dto.ParseDate(v)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+param).WithDetail("value", v))
		return nil, false
	}
	return &t, true
}

// Statistics handles GET /supplier-orders/statistics.
func (h *SupplierOrderHandler) Statistics(c *gin.Context) {
	stats, err := h.service.GetOrdersStatistics(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, stats)
}

// Get handles GET /supplier-orders/:id.
func (h *SupplierOrderHandler) Get(c *gin.Context) {
	orderID, ok := h.ParseID(c)
	if !ok {
		return
	}

	details, err := h.service.GetOrderDetails(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, details)
}

// Update handles PUT /supplier-orders/:id.
func (h *SupplierOrderHandler) Update(c *gin.Context) {
	orderID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.UpdateSupplierOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order, err := h.service.UpdateOrder(c.Request.Context(), orderID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// Delete handles DELETE /supplier-orders/:id.
func (h *SupplierOrderHandler) Delete(c *gin.Context) {
	orderID, ok := h.ParseID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteOrder(c.Request.Context(), orderID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// AddItem handles POST /supplier-orders/:id/items.
func (h *SupplierOrderHandler) AddItem(c *gin.Context) {
	orderID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.OrderItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.service.AddOrderItem(c.Request.Context(), orderID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, item)
}

// UpdateStatus handles POST /supplier-orders/:id/status.
func (h *SupplierOrderHandler) UpdateStatus(c *gin.Context) {
	orderID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.UpdateStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	status, err := orders.ParseStatus(req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}

	change, err := h.service.UpdateOrderStatus(c.Request.Context(), orderID, status, req.Notes)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, change)
}

// Receive handles POST /supplier-orders/:id/receive.
func (h *SupplierOrderHandler) Receive(c *gin.Context) {
	orderID, ok := h.ParseID(c)
	if !ok {
		return
	}
	var req dto.ReceiveOrderRequest
	if c.Request.ContentLength != 0 && !h.BindJSON(c, &req) {
		return
	}

	change, err := h.service.ReceiveOrder(c.Request.Context(), orderID, req.ToReceipts(), req.Notes)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, change)
}

// Copy handles POST /supplier-orders/:id/copy.
func (h *SupplierOrderHandler) Copy(c *gin.Context) {
	orderID, ok := h.ParseID(c)
	if !ok {
		return
	}

	created, err := h.service.DuplicateOrder(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromCreatedOrder(created))
}

// Movements handles GET /supplier-orders/:id/movements.
func (h *SupplierOrderHandler) Movements(c *gin.Context) {
	orderID, ok := h.ParseID(c)
	if !ok {
		return
	}

	movements, err := h.service.GetOrderMovements(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(movements, 0, 0))
}
