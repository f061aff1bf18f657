package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"supplyhub/internal/core/tx"
	"supplyhub/internal/domain/inventory"
	"supplyhub/internal/infrastructure/http/v1/dto"
)

// ProductHandler exposes the product catalog and its stock lots.
type ProductHandler struct {
	*BaseHandler
	products inventory.ProductCatalog
	ledger   inventory.LotLedger
	txm      tx.Manager
}

// NewProductHandler creates a new product handler.
func NewProductHandler(base *BaseHandler, products inventory.ProductCatalog, ledger inventory.LotLedger, txm tx.Manager) *ProductHandler {
	return &ProductHandler{
		BaseHandler: base,
		products:    products,
		ledger:      ledger,
		txm:         txm,
	}
}

// RegisterRoutes mounts the handler on rg.
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/lots", h.Lots)
	rg.GET("/:id/average-cost", h.AverageCost)
	rg.POST("/:id/sync-stock", h.SyncStock)
}

// List handles GET /products.
func (h *ProductHandler) List(c *gin.Context) {
	products, err := h.products.GetAll(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(products, 0, 0))
}

// Create handles POST /products.
// Initial stock is booked as an opening lot in the same transaction.
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	product := req.ToEntity()

	err := h.txm.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		if err := h.products.Create(ctx, product); err != nil {
			return err
		}
		return h.ledger.EnsureProductHasLots(ctx, product.ID)
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, product)
}

// Get handles GET /products/:id.
func (h *ProductHandler) Get(c *gin.Context) {
	productID, ok := h.ParseProductID(c)
	if !ok {
		return
	}

	product, err := h.products.GetByID(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, product)
}

// Lots handles GET /products/:id/lots.
// Query: includeEmpty=true also lists depleted lots.
func (h *ProductHandler) Lots(c *gin.Context) {
	productID, ok := h.ParseProductID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.products.GetByID(ctx, productID); err != nil {
		h.Error(c, err)
		return
	}
	lots, err := h.ledger.GetProductLots(ctx, productID, inventory.LotQuery{
		IncludeEmpty: c.Query("includeEmpty") == "true",
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewListResponse(lots, 0, 0))
}

// AverageCost handles GET /products/:id/average-cost.
func (h *ProductHandler) AverageCost(c *gin.Context) {
	productID, ok := h.ParseProductID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.products.GetByID(ctx, productID); err != nil {
		h.Error(c, err)
		return
	}
	cost, err := h.ledger.CalculateAverageCost(ctx, productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.AverageCostResponse{ProductID: productID, AverageCost: cost})
}

// SyncStock handles POST /products/:id/sync-stock.
// Stock that predates lot tracking is first turned into an opening lot.
func (h *ProductHandler) SyncStock(c *gin.Context) {
	productID, ok := h.ParseProductID(c)
	if !ok {
		return
	}

	var resp dto.StockSyncResponse
	err := h.txm.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		if _, err := h.products.GetByID(ctx, productID); err != nil {
			return err
		}
		if err := h.ledger.EnsureProductHasLots(ctx, productID); err != nil {
			return err
		}
		stock, err := h.ledger.SyncProductStock(ctx, productID)
		if err != nil {
			return err
		}
		resp = dto.StockSyncResponse{ProductID: productID, Stock: stock}
		return nil
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, resp)
}
