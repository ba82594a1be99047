package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	customerdomain "github.com/vyaparai/vyaparai/internal/customer/domain"
	"github.com/vyaparai/vyaparai/pkg/db/pagination"
	"go.uber.org/zap"
)

type CustomerHandler struct {
	customers customerdomain.Service
	log       *zap.Logger
}

func NewCustomerHandler(customers customerdomain.Service, log *zap.Logger) *CustomerHandler {
	return &CustomerHandler{customers: customers, log: log.Named("http.customer")}
}

func (h *CustomerHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/customers", h.create)
	r.GET("/customers/:id", h.get)
	r.PUT("/customers/:id/credit-limit", h.updateCreditLimit)
	r.GET("/stores/:id/customers", h.listByStore)
}

type createCustomerRequest struct {
	StoreID     string          `json:"store_id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

func (h *CustomerHandler) create(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	storeID, err := parseID(req.StoreID)
	if err != nil {
		c.Error(err)
		return
	}
	customer, err := h.customers.Create(c.Request.Context(), customerdomain.CreateRequest{
		StoreID:     storeID,
		Name:        req.Name,
		Phone:       req.Phone,
		CreditLimit: req.CreditLimit,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *CustomerHandler) get(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	customer, err := h.customers.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *CustomerHandler) updateCreditLimit(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	var req struct {
		CreditLimit decimal.Decimal `json:"credit_limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	customer, err := h.customers.UpdateCreditLimit(c.Request.Context(), id, req.CreditLimit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *CustomerHandler) listByStore(c *gin.Context) {
	storeID, err := parseID(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	customers, pageInfo, err := h.customers.List(c.Request.Context(), storeID, pagination.Pagination{
		PageSize:  pageSize,
		PageToken: c.Query("page_token"),
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"customers": customers,
		"page_info": pageInfo,
	})
}
