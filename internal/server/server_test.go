package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vyaparai/vyaparai/internal/cache"
	"github.com/vyaparai/vyaparai/internal/clock"
	"github.com/vyaparai/vyaparai/internal/config"
	customerdomain "github.com/vyaparai/vyaparai/internal/customer/domain"
	customerrepository "github.com/vyaparai/vyaparai/internal/customer/repository"
	customerservice "github.com/vyaparai/vyaparai/internal/customer/service"
	gstdomain "github.com/vyaparai/vyaparai/internal/gst/domain"
	gstrepository "github.com/vyaparai/vyaparai/internal/gst/repository"
	gstservice "github.com/vyaparai/vyaparai/internal/gst/service"
	"github.com/vyaparai/vyaparai/internal/idempotency"
	khatadomain "github.com/vyaparai/vyaparai/internal/khata/domain"
	khatarepository "github.com/vyaparai/vyaparai/internal/khata/repository"
	khataservice "github.com/vyaparai/vyaparai/internal/khata/service"
	"github.com/vyaparai/vyaparai/internal/lock"
	obsmetrics "github.com/vyaparai/vyaparai/internal/observability/metrics"
	storedomain "github.com/vyaparai/vyaparai/internal/store/domain"
	storerepository "github.com/vyaparai/vyaparai/internal/store/repository"
	storeservice "github.com/vyaparai/vyaparai/internal/store/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&storedomain.Store{},
		&customerdomain.Customer{},
		&gstdomain.Category{},
		&gstdomain.HSNMapping{},
		&khatadomain.CustomerBalance{},
		&khatadomain.CreditTransaction{},
		&idempotency.Record{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	cfg := config.Config{AppName: "vyaparai", AppVersion: "test", IdempotencyTTLHours: 24}

	rates, err := config.NewRateConfigHolder()
	require.NoError(t, err)

	gst := gstservice.NewService(gstservice.Params{
		Repo:  gstrepository.NewRepository(db),
		Cache: cache.NewRateCacheWithOptions(5*time.Minute, clk),
		Rates: rates,
		Log:   log,
		GenID: node,
	})
	khata := khataservice.NewService(khataservice.Params{
		Repo:   khatarepository.NewRepository(db),
		Idem:   idempotency.NewStore(db, clk),
		Locker: lock.NewStripedLocker(),
		Clock:  clk,
		Log:    log,
		GenID:  node,
		Cfg:    cfg,
	})
	stores := storeservice.NewService(storeservice.Params{
		Repo:  storerepository.NewRepository(db),
		Clock: clk,
		Log:   log,
		GenID: node,
	})
	customers := customerservice.NewService(customerservice.Params{
		Repo:  customerrepository.NewRepository(db),
		Khata: khata,
		Clock: clk,
		Log:   log,
		GenID: node,
	})

	registry := prometheus.NewRegistry()
	return NewEngine(Params{
		Cfg:      cfg,
		Log:      log,
		Metrics:  obsmetrics.New(registry),
		Registry: registry,
		GST:      NewGSTHandler(gst, stores, log),
		Khata:    NewKhataHandler(khata, log),
		Store:    NewStoreHandler(stores, log),
		Customer: NewCustomerHandler(customers, log),
	})
}

func do(t *testing.T, engine *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

// registers a store and a customer, returns their ids
func setupStoreAndCustomer(t *testing.T, engine *gin.Engine, creditLimit string) (string, string) {
	t.Helper()

	w := do(t, engine, http.MethodPost, "/v1/stores",
		`{"name":"Gupta General Store","gstin":"27AAPFU0939F1ZV"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var store struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &store))

	w = do(t, engine, http.MethodPost, "/v1/customers",
		`{"store_id":"`+store.ID+`","name":"Ramesh","phone":"9812345678","credit_limit":"`+creditLimit+`"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var customer struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &customer))

	return store.ID, customer.ID
}

func TestHealth(t *testing.T) {
	engine := newTestEngine(t)

	w := do(t, engine, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestCalculateOrder(t *testing.T) {
	engine := newTestEngine(t)

	w := do(t, engine, http.MethodPost, "/v1/gst/calculate/order", `{
		"inter_state": false,
		"items": [
			{"unit_price": "250.00", "quantity": "2", "rate": 5},
			{"unit_price": "1000.00", "quantity": "1", "rate": 18}
		]
	}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary struct {
		Subtotal string `json:"subtotal"`
		TotalTax string `json:"total_tax"`
		Total    string `json:"total_amount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "1500", summary.Subtotal)
	assert.Equal(t, "205", summary.TotalTax)
	assert.Equal(t, "1705", summary.Total)
}

func TestCalculateItem_ResolvesRate(t *testing.T) {
	engine := newTestEngine(t)

	// empty rate table falls back to compiled-in defaults; 2202* is the
	// aerated drinks category at 28% plus cess
	w := do(t, engine, http.MethodPost, "/v1/gst/calculate/item", `{
		"unit_price": "100.00",
		"quantity": "1",
		"hsn_code": "22021010",
		"inter_state": false
	}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var breakdown struct {
		CGST string `json:"cgst"`
		SGST string `json:"sgst"`
		Cess string `json:"cess"`
		Rate int    `json:"rate"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &breakdown))
	assert.Equal(t, 28, breakdown.Rate)
	assert.Equal(t, "14", breakdown.CGST)
	assert.Equal(t, "14", breakdown.SGST)
	assert.Equal(t, "12", breakdown.Cess)
}

func TestCreditSaleFlow(t *testing.T) {
	engine := newTestEngine(t)
	storeID, customerID := setupStoreAndCustomer(t, engine, "5000")

	body := `{"customer_id":"` + customerID + `","store_id":"` + storeID + `","amount":"1200.00","reference_id":"order-1"}`
	headers := map[string]string{"Idempotency-Key": "sale-1"}

	w := do(t, engine, http.MethodPost, "/v1/khata/credit-sales", body, headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first struct {
		TransactionID string `json:"transaction_id"`
		BalanceAfter  string `json:"balance_after"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, "1200", first.BalanceAfter)

	// replay with the same key returns the recorded result
	w = do(t, engine, http.MethodPost, "/v1/khata/credit-sales", body, headers)
	require.Equal(t, http.StatusCreated, w.Code)
	var replay struct {
		TransactionID string `json:"transaction_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &replay))
	assert.Equal(t, first.TransactionID, replay.TransactionID)

	// missing key is a client error
	w = do(t, engine, http.MethodPost, "/v1/khata/credit-sales", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreditLimitMapsTo402(t *testing.T) {
	engine := newTestEngine(t)
	storeID, customerID := setupStoreAndCustomer(t, engine, "1000")

	w := do(t, engine, http.MethodPost, "/v1/khata/credit-sales",
		`{"customer_id":"`+customerID+`","store_id":"`+storeID+`","amount":"1500.00","reference_id":"order-big"}`,
		map[string]string{"Idempotency-Key": "big-sale"})

	require.Equal(t, http.StatusPaymentRequired, w.Code, w.Body.String())
	var resp struct {
		Error          string `json:"error"`
		CurrentBalance string `json:"current_balance"`
		CreditLimit    string `json:"credit_limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "credit_limit_exceeded", resp.Error)
	assert.Equal(t, "1000", resp.CreditLimit)
}

func TestReverseConflictsMapTo409(t *testing.T) {
	engine := newTestEngine(t)
	storeID, customerID := setupStoreAndCustomer(t, engine, "5000")

	w := do(t, engine, http.MethodPost, "/v1/khata/credit-sales",
		`{"customer_id":"`+customerID+`","store_id":"`+storeID+`","amount":"800.00","reference_id":"order-2"}`,
		map[string]string{"Idempotency-Key": "sale-2"})
	require.Equal(t, http.StatusCreated, w.Code)
	var sale struct {
		TransactionID string `json:"transaction_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sale))

	reverseBody := `{"reason":"entered twice","created_by":"owner"}`
	w = do(t, engine, http.MethodPost, "/v1/khata/transactions/"+sale.TransactionID+"/reverse", reverseBody, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, engine, http.MethodPost, "/v1/khata/transactions/"+sale.TransactionID+"/reverse", reverseBody, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, engine, http.MethodPost, "/v1/khata/transactions/42/reverse", reverseBody, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDuplicateStoreMapsTo409(t *testing.T) {
	engine := newTestEngine(t)

	body := `{"name":"Gupta General Store","state_code":"27"}`
	w := do(t, engine, http.MethodPost, "/v1/stores", body, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, engine, http.MethodPost, "/v1/stores", body, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestBadGSTINMapsTo400(t *testing.T) {
	engine := newTestEngine(t)

	w := do(t, engine, http.MethodPost, "/v1/stores", `{"name":"Bad","gstin":"not-a-gstin"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOutstandingSummary(t *testing.T) {
	engine := newTestEngine(t)
	storeID, customerID := setupStoreAndCustomer(t, engine, "5000")

	w := do(t, engine, http.MethodPost, "/v1/khata/credit-sales",
		`{"customer_id":"`+customerID+`","store_id":"`+storeID+`","amount":"2250.00","reference_id":"order-3"}`,
		map[string]string{"Idempotency-Key": "sale-3"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(t, engine, http.MethodGet, "/v1/khata/stores/"+storeID+"/outstanding", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary struct {
		TotalOutstanding     string `json:"total_outstanding"`
		CustomersWithBalance int64  `json:"customers_with_balance"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, "2250", summary.TotalOutstanding)
	assert.Equal(t, int64(1), summary.CustomersWithBalance)
}
