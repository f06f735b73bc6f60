package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logisync-backend/internal/database"
	"logisync-backend/internal/handlers"
	"logisync-backend/internal/services"
	"logisync-backend/internal/sessions"
)

const testSecret = "test-secret"

type apiFixture struct {
	t     *testing.T
	srv   *httptest.Server
	redis *miniredis.Miniredis
}

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	sessionStore, err := sessions.NewRedisStore("redis://"+mr.Addr(), 10*time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { sessionStore.Close() })

	demo, err := database.DemoData()
	require.NoError(t, err)
	store := database.NewMemoryStore()
	store.Seed(demo)

	svc := services.NewShipmentService(store, sessionStore, nil, services.Options{SampleInterval: 10 * time.Millisecond})
	router := handlers.NewRouter(handlers.RouterDeps{
		Service:   svc,
		Accounts:  store,
		JWTSecret: testSecret,
		Health: map[string]handlers.Pinger{
			"store": store,
			"redis": sessionStore,
		},
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &apiFixture{t: t, srv: srv, redis: mr}
}

func (f *apiFixture) do(method, path, token string, body interface{}) (int, envelope) {
	f.t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(f.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(f.t, err)
	if len(raw) > 0 {
		require.NoError(f.t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (f *apiFixture) login(email, password string) string {
	f.t.Helper()

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/auth/login",
		bytes.NewBufferString(`{"email":"`+email+`","password":"`+password+`"}`))
	require.NoError(f.t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(f.t, err)
	defer resp.Body.Close()
	require.Equal(f.t, http.StatusOK, resp.StatusCode)

	var out handlers.LoginResponse
	require.NoError(f.t, json.NewDecoder(resp.Body).Decode(&out))
	require.True(f.t, out.OK)
	return out.Token
}

func (f *apiFixture) createShipment(adminToken, orderID string) services.CreatedShipment {
	f.t.Helper()
	status, env := f.do(http.MethodPost, "/api/orders/"+orderID+"/shipment", adminToken,
		map[string]string{"transport_id": "trn-van-1", "origin_address": "Port Area, Manila"})
	require.Equal(f.t, http.StatusCreated, status, env.Error)

	var created services.CreatedShipment
	require.NoError(f.t, json.Unmarshal(env.Data, &created))
	return created
}

func TestLogin(t *testing.T) {
	api := newAPI(t)

	token := api.login("Driver@LogiSync.dev", "driver123")
	assert.NotEmpty(t, token)

	status, env := api.do(http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	var me map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "usr-driver-1", me["id"])
	assert.Equal(t, database.DemoOrganizationID, me["organization_id"])
	assert.NotContains(t, me, "password")

	status, _ = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "driver@logisync.dev", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ghost@logisync.dev", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAuthAndRoles(t *testing.T) {
	api := newAPI(t)
	driver := api.login("driver@logisync.dev", "driver123")
	admin := api.login("admin@logisync.dev", "admin123")

	status, _ := api.do(http.MethodGet, "/api/driver/shipments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.do(http.MethodGet, "/api/driver/shipments", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.do(http.MethodPost, "/api/orders/ord-1001/shipment", driver, map[string]string{})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = api.do(http.MethodGet, "/api/driver/shipments", admin, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestDeliveryFlow(t *testing.T) {
	api := newAPI(t)
	driver := api.login("driver@logisync.dev", "driver123")
	admin := api.login("admin@logisync.dev", "admin123")

	created := api.createShipment(admin, "ord-1001")
	require.Len(t, created.TrackingNumbers, 1)
	require.NotNil(t, created.DriverID)
	assert.Equal(t, "usr-driver-1", *created.DriverID)
	tn := created.TrackingNumbers[0]

	status, env := api.do(http.MethodGet, "/api/driver/shipments", driver, nil)
	require.Equal(t, http.StatusOK, status)
	var mine []services.DriverShipment
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, created.ShipmentID, mine[0].Shipment.ID)

	// Second shipment for the same order conflicts
	status, _ = api.do(http.MethodPost, "/api/orders/ord-1001/shipment", admin, map[string]string{"transport_id": "trn-van-1"})
	assert.Equal(t, http.StatusConflict, status)

	status, env = api.do(http.MethodPatch, "/api/driver/shipments/"+tn+"/status", driver,
		map[string]string{"status": "in_transit", "location": "EDSA"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, env.Error, "tracking")

	status, env = api.do(http.MethodPatch, "/api/driver/shipments/"+tn+"/status", driver,
		map[string]string{"status": "picked_up", "location": "Port Area, Manila"})
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = api.do(http.MethodPost, "/api/driver/tracking/start", driver,
		map[string]float64{"latitude": 14.5995, "longitude": 120.9842})
	require.Equal(t, http.StatusOK, status, env.Error)
	var started services.TrackingStarted
	require.NoError(t, json.Unmarshal(env.Data, &started))
	assert.Equal(t, []string{tn}, started.InTransit)

	status, env = api.do(http.MethodGet, "/api/track/"+tn, "", nil)
	require.Equal(t, http.StatusOK, status)
	var view services.TrackingView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "in_transit", string(view.Status))
	assert.Len(t, view.History, 3)
	require.NotNil(t, view.VehiclePlate)
	assert.Equal(t, "NAB 1234", *view.VehiclePlate)
	require.NotNil(t, view.LastLocation)

	status, env = api.do(http.MethodGet, "/api/driver/route", driver, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var plan services.RoutePlan
	require.NoError(t, json.Unmarshal(env.Data, &plan))
	require.Len(t, plan.Stops, 1)

	status, env = api.do(http.MethodPatch, "/api/driver/shipments/"+tn+"/status", driver,
		map[string]string{"status": "delivered", "notes": "Left with guard"})
	require.Equal(t, http.StatusOK, status, env.Error)
	var result services.StatusResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, "delivered", string(result.Status))
	require.NotNil(t, result.CurrentStop)
	assert.Equal(t, 1, *result.CurrentStop)

	status, env = api.do(http.MethodGet, "/api/shipments/"+created.ShipmentID, admin, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var detail services.ShipmentDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, "delivered", string(detail.Status))

	status, _ = api.do(http.MethodPost, "/api/driver/tracking/stop", driver, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = api.do(http.MethodGet, "/api/driver/tracking", driver, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAdminOverride(t *testing.T) {
	api := newAPI(t)
	admin := api.login("admin@logisync.dev", "admin123")
	created := api.createShipment(admin, "ord-1002")
	tn := created.TrackingNumbers[0]

	status, env := api.do(http.MethodPatch, "/api/manager/packages/"+tn+"/status", admin,
		map[string]string{"status": "exception"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, env.Fields, "location")

	status, env = api.do(http.MethodPatch, "/api/manager/packages/"+tn+"/status", admin,
		map[string]string{"status": "exception", "location": "Hub"})
	require.Equal(t, http.StatusOK, status, env.Error)

	status, _ = api.do(http.MethodPatch, "/api/manager/packages/"+tn+"/status", admin,
		map[string]string{"status": "in_transit", "location": "Hub"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, env = api.do(http.MethodPatch, "/api/manager/packages/"+tn+"/status", admin,
		map[string]interface{}{"status": "in_transit", "location": "Hub", "force": true})
	require.Equal(t, http.StatusOK, status, env.Error)
}

func TestValidationAndNotFound(t *testing.T) {
	api := newAPI(t)
	driver := api.login("driver@logisync.dev", "driver123")
	admin := api.login("admin@logisync.dev", "admin123")

	status, _ := api.do(http.MethodGet, "/api/track/TRK-DOESNOTEXIST", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = api.do(http.MethodPost, "/api/orders/ord-1003/shipment", admin, map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = api.do(http.MethodPost, "/api/orders/ord-9999/shipment", admin, map[string]string{})
	assert.Equal(t, http.StatusNotFound, status)

	status, env := api.do(http.MethodPatch, "/api/driver/shipments/TRK-NOPE/status", driver,
		map[string]string{"status": "teleported", "location": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, env.Fields, "status")

	status, _ = api.do(http.MethodGet, "/api/driver/route?lat=abc&lng=1", driver, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, _ = api.do(http.MethodPost, "/api/driver/location", driver,
		map[string]float64{"latitude": 0, "longitude": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestHealth(t *testing.T) {
	api := newAPI(t)

	resp, err := http.Get(api.srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	api.redis.SetError("LOADING redis is loading")

	resp, err = http.Get(api.srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
