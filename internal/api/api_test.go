package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"menuvista-session/config"
	"menuvista-session/internal/db"
	"menuvista-session/internal/model"
	"menuvista-session/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordingDispatcher struct {
	mu  sync.Mutex
	ids []int64
}

func (d *recordingDispatcher) Dispatch(orderID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, orderID)
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	pool   *recordingDispatcher
}

func newTestServer(t *testing.T, push *webpush.Options) *testServer {
	name := regexp.MustCompile(`\W`).ReplaceAllString(t.Name(), "_") + "_" + uuid.NewString()[:8]
	gormDB, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	sqlDB, _ := gormDB.DB()
	t.Cleanup(func() { sqlDB.Close() })

	cfg := &config.Config{}
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.Server.CacheTTLSeconds = 60
	cfg.ApplyDefaults()

	pool := &recordingDispatcher{}
	router := NewRouter(&cfg.Server, store.NewGormStore(gormDB, time.Hour), push, pool, nil)
	return &testServer{router: router, db: gormDB, pool: pool}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) model.Envelope[T] {
	t.Helper()
	var env model.Envelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (ts *testServer) init(t *testing.T, shortCode string, token *string, device string) string {
	w := ts.do(t, http.MethodPost, "/api/menu-session/"+shortCode+"/init", model.InitRequest{SessionToken: token, DeviceID: device})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode[model.InitData](t, w)
	require.True(t, env.Success)
	return env.Data.SessionToken
}

var cart = model.PlaceOrderRequest{
	Items:    []model.OrderLineItem{{ID: 1, Name: "Kottu", Quantity: 2, Price: 900}},
	Currency: "LKR",
	Notes:    "extra spicy",
}

func TestInitSession(t *testing.T) {
	ts := newTestServer(t, nil)

	token := ts.init(t, "ABC1", nil, "dev-1")
	assert.NotEmpty(t, token)

	again := ts.init(t, "ABC1", &token, "dev-1")
	assert.Equal(t, token, again, "a valid token is kept")

	byDevice := ts.init(t, "ABC1", nil, "dev-1")
	assert.Equal(t, token, byDevice, "one session per device and menu")

	other := ts.init(t, "ABC1", nil, "dev-2")
	assert.NotEqual(t, token, other)
}

func TestInitSession_BadInput(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/menu-session/A!/init", model.InitRequest{DeviceID: "d"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, decode[any](t, w).Success)

	req := httptest.NewRequest(http.MethodPost, "/api/menu-session/ABC1/init", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionStatus_UnknownToken(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/api/menu-session/nope/status", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	env := decode[any](t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "Session not found", env.Message)
}

func TestOrderFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.init(t, "ABC1", nil, "dev-1")

	// Prime the status cache with an empty list.
	w := ts.do(t, http.MethodGet, "/api/menu-session/"+token+"/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[model.StatusData](t, w).Data.ActiveOrders)

	w = ts.do(t, http.MethodPost, "/api/menu-session/"+token+"/orders", cart)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	placed := decode[model.OrderSummary](t, w)
	require.True(t, placed.Success)
	assert.Equal(t, "ABC1-0001", placed.Data.OrderNumber)
	assert.Equal(t, model.StatusPending, placed.Data.Status)
	assert.True(t, placed.Data.IsActive)
	assert.Equal(t, 1800.0, placed.Data.Total)

	w = ts.do(t, http.MethodGet, "/api/menu-session/"+token+"/status", nil)
	status := decode[model.StatusData](t, w)
	require.Len(t, status.Data.ActiveOrders, 1, "placing an order invalidates the cached status")

	id := placed.Data.ID
	for _, st := range []model.OrderStatus{model.StatusPreparing, model.StatusReady} {
		w = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/kitchen/orders/%d/status", id), model.UpdateStatusRequest{Status: st})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	assert.Equal(t, []int64{id}, ts.pool.ids, "ready orders are dispatched for notification")

	w = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/kitchen/orders/%d/status", id), model.UpdateStatusRequest{Status: model.StatusDelivered})
	require.Equal(t, http.StatusOK, w.Code)
	delivered := decode[model.OrderSummary](t, w).Data
	assert.False(t, delivered.IsActive)
	assert.NotNil(t, delivered.PreparingAt)
	assert.NotNil(t, delivered.ReadyAt)
	assert.NotNil(t, delivered.DeliveredAt)

	w = ts.do(t, http.MethodGet, "/api/menu-session/"+token+"/status", nil)
	status = decode[model.StatusData](t, w)
	assert.Empty(t, status.Data.ActiveOrders)
	require.Len(t, status.Data.DoneOrders, 1)
	assert.Equal(t, model.StatusDelivered, status.Data.DoneOrders[0].Status)

	w = ts.do(t, http.MethodPatch, fmt.Sprintf("/api/kitchen/orders/%d/status", id), model.UpdateStatusRequest{Status: model.StatusPending})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPlaceOrder_Rejections(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.init(t, "ABC1", nil, "dev-1")

	w := ts.do(t, http.MethodPost, "/api/menu-session/"+token+"/orders", model.PlaceOrderRequest{
		Items: []model.OrderLineItem{{ID: 1, Name: "Tea", Quantity: -1, Price: 100}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	env := decode[any](t, w)
	assert.False(t, env.Success)
	assert.Equal(t, "Your cart contains an invalid item", env.Message)

	w = ts.do(t, http.MethodPost, "/api/menu-session/unknown/orders", cart)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateOrderStatus_BadInput(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPatch, "/api/kitchen/orders/abc/status", model.UpdateStatusRequest{Status: model.StatusReady})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPatch, "/api/kitchen/orders/1/status", model.UpdateStatusRequest{Status: "eaten"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPatch, "/api/kitchen/orders/42/status", model.UpdateStatusRequest{Status: model.StatusReady})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPushSubscription(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.init(t, "ABC1", nil, "dev-1")
	sub := map[string]string{"endpoint": "https://push.example/1", "p256dh": "k", "auth": "a"}

	w := ts.do(t, http.MethodPut, "/api/menu-session/"+token+"/push", sub)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = ts.do(t, http.MethodPut, "/api/menu-session/"+token+"/push", sub)
	require.Equal(t, http.StatusCreated, w.Code, "re-subscribing is an upsert")

	var count int64
	ts.db.Model(&model.PushSubscription{}).Where("session_token = ?", token).Count(&count)
	assert.Equal(t, int64(1), count)

	w = ts.do(t, http.MethodPut, "/api/menu-session/"+token+"/push", map[string]string{"endpoint": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/menu-session/"+token+"/push", map[string]string{"endpoint": "https://push.example/1"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	ts.db.Model(&model.PushSubscription{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestGetVAPIDPublicKey(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/api/vapid_public_key", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	ts = newTestServer(t, &webpush.Options{VAPIDPublicKey: "BPub"})
	w = ts.do(t, http.MethodGet, "/api/vapid_public_key", nil)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode[map[string]string](t, w)
	assert.Equal(t, "BPub", env.Data["public_key"])
}
