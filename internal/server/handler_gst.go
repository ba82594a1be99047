package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	gstdomain "github.com/vyaparai/vyaparai/internal/gst/domain"
	storedomain "github.com/vyaparai/vyaparai/internal/store/domain"
	"go.uber.org/zap"
)

type GSTHandler struct {
	gst    gstdomain.Service
	stores storedomain.Service
	log    *zap.Logger
}

func NewGSTHandler(gst gstdomain.Service, stores storedomain.Service, log *zap.Logger) *GSTHandler {
	return &GSTHandler{gst: gst, stores: stores, log: log.Named("http.gst")}
}

func (h *GSTHandler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/gst")
	g.POST("/calculate/item", h.calculateItem)
	g.POST("/calculate/order", h.calculateOrder)
	g.POST("/resolve-rate", h.resolveRate)

	g.GET("/categories", h.listCategories)
	g.POST("/categories", h.createCategory)
	g.PATCH("/categories/:code", h.updateCategory)
	g.POST("/hsn-mappings", h.createHSNMapping)

	g.POST("/cache/invalidate", h.invalidateCache)
	g.GET("/cache/stats", h.cacheStats)
}

type itemRequest struct {
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  decimal.Decimal `json:"quantity"`

	// rate inputs; either an explicit rate or resolution hints
	Rate         *int            `json:"rate,omitempty"`
	CessRate     decimal.Decimal `json:"cess_rate"`
	CategoryCode string          `json:"category_code,omitempty"`
	HSNCode      string          `json:"hsn_code,omitempty"`
	ProductName  string          `json:"product_name,omitempty"`
}

type calculateOrderRequest struct {
	StoreID        string        `json:"store_id,omitempty"`
	BuyerStateCode string        `json:"buyer_state_code,omitempty"`
	InterState     *bool         `json:"inter_state,omitempty"`
	Items          []itemRequest `json:"items"`
}

// resolveItem turns one request line into a calculator input, resolving the
// rate through the service when the caller did not pin one explicitly.
func (h *GSTHandler) resolveItem(c *gin.Context, item itemRequest, interState bool) (gstdomain.LineItem, error) {
	line := gstdomain.LineItem{
		UnitPrice:  item.UnitPrice,
		Quantity:   item.Quantity,
		CessRate:   item.CessRate,
		InterState: interState,
	}

	if item.Rate != nil {
		slab, err := gstdomain.ParseRateSlab(*item.Rate)
		if err != nil {
			return line, err
		}
		line.Rate = slab
		return line, nil
	}

	resolution, err := h.gst.ResolveRateForProduct(c.Request.Context(), gstdomain.ResolveRateRequest{
		CategoryCode: item.CategoryCode,
		HSNCode:      item.HSNCode,
		ProductName:  item.ProductName,
	})
	if err != nil {
		return line, err
	}
	line.Rate = resolution.Rate
	if item.CessRate.IsZero() {
		line.CessRate = resolution.CessRate
	}
	return line, nil
}

func (h *GSTHandler) interState(c *gin.Context, req calculateOrderRequest) (bool, error) {
	if req.InterState != nil {
		return *req.InterState, nil
	}
	if req.StoreID == "" || req.BuyerStateCode == "" {
		return false, nil
	}
	store, err := h.stores.GetByCode(c.Request.Context(), req.StoreID)
	if err != nil {
		id, parseErr := parseID(req.StoreID)
		if parseErr != nil {
			return false, err
		}
		store, err = h.stores.Get(c.Request.Context(), id)
		if err != nil {
			return false, err
		}
	}
	return store.InterState(req.BuyerStateCode), nil
}

func (h *GSTHandler) calculateItem(c *gin.Context) {
	var req struct {
		itemRequest
		InterState bool `json:"inter_state"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	line, err := h.resolveItem(c, req.itemRequest, req.InterState)
	if err != nil {
		c.Error(err)
		return
	}
	breakdown := gstdomain.CalculateItemGST(line.UnitPrice, line.Quantity, line.Rate, line.CessRate, line.InterState)
	c.JSON(http.StatusOK, breakdown)
}

func (h *GSTHandler) calculateOrder(c *gin.Context) {
	var req calculateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	interState, err := h.interState(c, req)
	if err != nil {
		c.Error(err)
		return
	}

	lines := make([]gstdomain.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		line, err := h.resolveItem(c, item, interState)
		if err != nil {
			c.Error(err)
			return
		}
		lines = append(lines, line)
	}
	c.JSON(http.StatusOK, gstdomain.CalculateOrderGST(lines))
}

func (h *GSTHandler) resolveRate(c *gin.Context) {
	var req gstdomain.ResolveRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	resolution, err := h.gst.ResolveRateForProduct(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resolution)
}

func (h *GSTHandler) listCategories(c *gin.Context) {
	categories, err := h.gst.ListCategories(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *GSTHandler) createCategory(c *gin.Context) {
	var req gstdomain.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	category, err := h.gst.CreateCategory(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (h *GSTHandler) updateCategory(c *gin.Context) {
	var req gstdomain.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	req.Code = c.Param("code")
	category, err := h.gst.UpdateCategory(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func (h *GSTHandler) createHSNMapping(c *gin.Context) {
	var req gstdomain.CreateHSNMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	mapping, err := h.gst.CreateHSNMapping(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, mapping)
}

func (h *GSTHandler) invalidateCache(c *gin.Context) {
	scope := gstdomain.InvalidateScope(c.DefaultQuery("scope", string(gstdomain.InvalidateAll)))
	switch scope {
	case gstdomain.InvalidateAll, gstdomain.InvalidateCategories, gstdomain.InvalidateHSN:
	default:
		c.Error(fmt.Errorf("%w: unknown scope %q", errBadRequest, scope))
		return
	}
	h.gst.InvalidateCache(scope)
	c.JSON(http.StatusOK, gin.H{"invalidated": string(scope)})
}

func (h *GSTHandler) cacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.gst.CacheStats())
}
