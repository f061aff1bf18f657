package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"supplyhub/internal/core/apperror"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/infrastructure/http/v1/dto"
)

// SupplierStore is the supplier directory plus the write side the API needs.
type SupplierStore interface {
	inventory.SupplierDirectory
	Save(ctx context.Context, s *inventory.Supplier) error
}

// SupplierHandler exposes the supplier directory.
type SupplierHandler struct {
	*BaseHandler
	suppliers SupplierStore
}

// NewSupplierHandler creates a new supplier handler.
func NewSupplierHandler(base *BaseHandler, suppliers SupplierStore) *SupplierHandler {
	return &SupplierHandler{BaseHandler: base, suppliers: suppliers}
}

// RegisterRoutes mounts the handler on rg.
func (h *SupplierHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Save)
}

// List handles GET /suppliers.
// Query: active=true, search (name contains, case-insensitive).
func (h *SupplierHandler) List(c *gin.Context) {
	filter := inventory.SupplierFilter{Search: c.Query("search")}
	if v := c.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid active").WithDetail("value", v))
			return
		}
		filter.ActiveOnly = active
	}

	suppliers, err := h.suppliers.GetAll(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(suppliers, 0, 0))
}

// Get handles GET /suppliers/:id.
func (h *SupplierHandler) Get(c *gin.Context) {
	supplierID, ok := h.parseSupplierID(c)
	if !ok {
		return
	}

	supplier, err := h.suppliers.GetByID(c.Request.Context(), supplierID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, supplier)
}

// Save handles PUT /suppliers/:id (create or replace).
func (h *SupplierHandler) Save(c *gin.Context) {
	supplierID, ok := h.parseSupplierID(c)
	if !ok {
		return
	}
	var req dto.SaveSupplierRequest
	if !h.BindJSON(c, &req) {
		return
	}

	supplier := req.ToEntity(supplierID)
	if err := h.suppliers.Save(c.Request.Context(), supplier); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, supplier)
}

func (h *SupplierHandler) parseSupplierID(c *gin.Context) (inventory.SupplierID, bool) {
	v, err := inventory.ParseSupplierID(c.Param("id"))
	if err != nil || v <= 0 {
		h.Error(c, apperror.NewValidation("invalid supplier id").WithDetail("id", c.Param("id")))
		return 0, false
	}
	return v, true
}
