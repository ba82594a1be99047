package server

import (
	"fmt"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	storedomain "github.com/vyaparai/vyaparai/internal/store/domain"
	"go.uber.org/zap"
)

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: bad id %q", errBadRequest, raw)
	}
	return id, nil
}

type StoreHandler struct {
	stores storedomain.Service
	log    *zap.Logger
}

func NewStoreHandler(stores storedomain.Service, log *zap.Logger) *StoreHandler {
	return &StoreHandler{stores: stores, log: log.Named("http.store")}
}

func (h *StoreHandler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/stores")
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
}

func (h *StoreHandler) create(c *gin.Context) {
	var req storedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	store, err := h.stores.Create(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, store)
}

func (h *StoreHandler) list(c *gin.Context) {
	stores, err := h.stores.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stores": stores})
}

func (h *StoreHandler) get(c *gin.Context) {
	raw := c.Param("id")
	if id, err := parseID(raw); err == nil {
		store, err := h.stores.Get(c.Request.Context(), id)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, store)
		return
	}

	// fall back to the slug for human-friendly lookups
	store, err := h.stores.GetByCode(c.Request.Context(), raw)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, store)
}
