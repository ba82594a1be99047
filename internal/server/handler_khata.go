package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	khatadomain "github.com/vyaparai/vyaparai/internal/khata/domain"
	"go.uber.org/zap"
)

type KhataHandler struct {
	khata khatadomain.Service
	log   *zap.Logger
}

func NewKhataHandler(khata khatadomain.Service, log *zap.Logger) *KhataHandler {
	return &KhataHandler{khata: khata, log: log.Named("http.khata")}
}

func (h *KhataHandler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/khata")
	g.POST("/credit-sales", h.submit(h.khata.RecordCreditSale))
	g.POST("/payments", h.submit(h.khata.RecordPayment))
	g.POST("/adjustments", h.submit(h.khata.RecordAdjustment))
	g.POST("/transactions/:id/reverse", h.reverse)

	g.GET("/balance", h.balance)
	g.GET("/customers/:id/ledger", h.ledger)
	g.GET("/stores/:id/outstanding", h.outstanding)
}

type submitRequest struct {
	CustomerID    string          `json:"customer_id"`
	StoreID       string          `json:"store_id"`
	Amount        decimal.Decimal `json:"amount"`
	ReferenceID   string          `json:"reference_id"`
	OverrideLimit bool            `json:"override_limit"`
	Note          string          `json:"note"`
	CreatedBy     string          `json:"created_by"`
}

// submit adapts the three ledger-write endpoints, which differ only in the
// service method they call. The idempotency key travels in the header.
func (h *KhataHandler) submit(record func(ctx context.Context, req khatadomain.RecordRequest) (*khatadomain.TransactionResult, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		customerID, err := parseID(req.CustomerID)
		if err != nil {
			c.Error(err)
			return
		}
		storeID, err := parseID(req.StoreID)
		if err != nil {
			c.Error(err)
			return
		}

		result, err := record(c.Request.Context(), khatadomain.RecordRequest{
			CustomerID:     customerID,
			StoreID:        storeID,
			Amount:         req.Amount,
			ReferenceID:    req.ReferenceID,
			IdempotencyKey: c.GetHeader("Idempotency-Key"),
			OverrideLimit:  req.OverrideLimit,
			Note:           req.Note,
			CreatedBy:      req.CreatedBy,
		})
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

func (h *KhataHandler) reverse(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	var req struct {
		Reason    string `json:"reason"`
		CreatedBy string `json:"created_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	result, err := h.khata.ReverseTransaction(c.Request.Context(), id, req.Reason, req.CreatedBy)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *KhataHandler) balance(c *gin.Context) {
	customerID, err := parseID(c.Query("customer_id"))
	if err != nil {
		c.Error(err)
		return
	}
	storeID, err := parseID(c.Query("store_id"))
	if err != nil {
		c.Error(err)
		return
	}
	balance, err := h.khata.GetBalance(c.Request.Context(), customerID, storeID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

func (h *KhataHandler) ledger(c *gin.Context) {
	customerID, err := parseID(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	storeID, err := parseID(c.Query("store_id"))
	if err != nil {
		c.Error(err)
		return
	}

	filter := khatadomain.LedgerFilter{PageToken: c.Query("page_token")}
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.Error(fmt.Errorf("%w: bad from date %q", errBadRequest, raw))
			return
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.Error(fmt.Errorf("%w: bad to date %q", errBadRequest, raw))
			return
		}
		filter.To = &to
	}

	transactions, pageInfo, err := h.khata.GetCustomerLedger(c.Request.Context(), customerID, storeID, filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"page_info":    pageInfo,
	})
}

func (h *KhataHandler) outstanding(c *gin.Context) {
	storeID, err := parseID(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	summary, err := h.khata.GetStoreOutstandingSummary(c.Request.Context(), storeID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
