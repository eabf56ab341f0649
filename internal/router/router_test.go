package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"culturehub-api/internal/cache"
	"culturehub-api/internal/guard"
	"culturehub-api/internal/handler"
	"culturehub-api/internal/middleware"
	"culturehub-api/internal/model"
	"culturehub-api/internal/repository"
	"culturehub-api/internal/service"
)

const adminKey = "admin-secret"

var testSites = []model.Site{
	{ID: "louvre", Name: "Louvre", Category: "museum", Location: model.Point{Lon: 2.3376, Lat: 48.8606}},
	{ID: "orsay", Name: "Musée d'Orsay", Category: "museum", Location: model.Point{Lon: 2.3266, Lat: 48.8600}},
	{ID: "comedie", Name: "Comédie-Française", Category: "theatre", Location: model.Point{Lon: 2.3362, Lat: 48.8632}},
	{ID: "unnamed", Name: "Unknown", Category: "artwork", Location: model.Point{Lon: 2.3380, Lat: 48.8610}},
	{ID: "versailles", Name: "Versailles", Category: "castle", Location: model.Point{Lon: 2.1204, Lat: 48.8049}},
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
	store   *repository.MemoryStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := repository.NewMemoryStore()
	_, err := store.Sites().UpsertMany(context.Background(), testSites)
	require.NoError(t, err)

	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })

	log := zap.NewNop()
	now := time.Now
	g := guard.New(guard.DefaultPlaceholders)

	catalog := service.NewCatalogService(store.Sites(), g, c, time.Minute, 50000, log)
	accounts := service.NewAccountService(store.Accounts(), now, log)
	sessions := service.NewSessionService(c, time.Hour, now, log)
	collector := service.NewCollectorService(store.Accounts(), store.Sites(), g, 50000, now, log)
	collection := service.NewCollectionService(store.Accounts(), catalog, now, log)
	trades := service.NewTradeService(store, time.Hour, now, log)
	reviews := service.NewReviewService(store, store.Reviews(), store.Accounts(), catalog, now, log)
	cleanup := service.NewCleanupScheduler(store.TradeCodes(), service.DefaultCleanupConfig(), now, log)

	r := New(Config{
		Handler:       handler.New("culturehub-api", "test", map[string]handler.Pinger{"store": store}),
		AuthHandler:   handler.NewAuthHandler(accounts, sessions, log),
		UserHandler:   handler.NewUserHandler(accounts, collector, collection, 1000, log),
		SiteHandler:   handler.NewSiteHandler(catalog, 1000, log),
		TradeHandler:  handler.NewTradeHandler(trades, log),
		ReviewHandler: handler.NewReviewHandler(reviews, log),
		AdminHandler: handler.NewAdminHandler(handler.AdminConfig{
			Store:     store,
			Sites:     store.Sites(),
			Purger:    cleanup,
			StoreType: "memory",
			Logger:    log,
		}),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{Sessions: sessions}),
		AdminKey:       adminKey,
		Logger:         log,
	})

	return &testAPI{t: t, handler: r, store: store}
}

func (a *testAPI) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func (a *testAPI) register(name string) (token, id string) {
	a.t.Helper()
	rec, env := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": name, "email": name + "@example.com", "password": "secret123",
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp handler.SessionResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &resp))
	return resp.Token, resp.Account.ID
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func ids(sites []model.Site) []string {
	out := make([]string, len(sites))
	for i, s := range sites {
		out[i] = s.ID
	}
	return out
}

func TestPublicRoutes(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(http.MethodGet, "/api/v1/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env := api.do(http.MethodGet, "/api/v1/sites", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, ids(decodeData[[]model.Site](t, env)), "unnamed")

	rec, env = api.do(http.MethodGet, "/api/v1/sites?category=MUSEUM&limit=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]model.Site](t, env), 1)

	rec, env = api.do(http.MethodGet, "/api/v1/sites/nearby?lat=48.8606&lon=2.3376&radius=500", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"louvre", "comedie"}, ids(decodeData[[]model.Site](t, env)))

	rec, env = api.do(http.MethodGet, "/api/v1/sites/nearby?lat=48.8606", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = api.do(http.MethodGet, "/api/v1/sites/louvre", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Louvre", decodeData[model.Site](t, env).Name)

	rec, env = api.do(http.MethodGet, "/api/v1/sites/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	rec, _ = api.do(http.MethodGet, "/api/v1/reviews/site/louvre", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	api := newTestAPI(t)

	for _, route := range [][2]string{
		{http.MethodGet, "/api/v1/users/me"},
		{http.MethodPut, "/api/v1/users/location"},
		{http.MethodPost, "/api/v1/trade-codes"},
		{http.MethodPost, "/api/v1/trades"},
		{http.MethodPost, "/api/v1/reviews"},
		{http.MethodPost, "/api/v1/auth/logout"},
	} {
		rec, env := api.do(route[0], route[1], "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route[1])
		assert.Equal(t, "UNAUTHORIZED", env.Error.Code, route[1])
	}
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)
	token, id := api.register("alice")

	rec, env := api.do(http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Equal(t, id, decodeData[model.Account](t, env).ID)

	rec, env = api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "alice2", "email": "ALICE@example.com", "password": "secret123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	rec, _ = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeData[handler.SessionResponse](t, env).Token
	assert.NotEqual(t, token, second)

	rec, _ = api.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = api.do(http.MethodGet, "/api/v1/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = api.do(http.MethodGet, "/api/v1/users/me", second, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	name := "Alice L."
	rec, env = api.do(http.MethodPut, "/api/v1/users/profile", second, map[string]*string{"name": &name})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, name, decodeData[model.Account](t, env).Name)
}

func TestRegister_Validation(t *testing.T) {
	api := newTestAPI(t)

	rec, env := api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"name": "bob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = api.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "bob", "email": "not-an-email", "password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestCollectAndCollection(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("alice")

	rec, env := api.do(http.MethodGet, "/api/v1/users/visited-sites", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "NO_LOCATION_SAVED", env.Error.Code)

	rec, env = api.do(http.MethodPut, "/api/v1/users/location", token, map[string]float64{
		"latitude": 48.8606, "longitude": 2.3376,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loc := decodeData[handler.LocationResponse](t, env)
	assert.ElementsMatch(t, []string{"louvre", "orsay", "comedie"}, ids(loc.VisitedSites))

	rec, env = api.do(http.MethodGet, "/api/v1/users/visited-sites?radius=100", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.ElementsMatch(t, []string{"louvre", "orsay", "comedie"}, ids(decodeData[[]model.Site](t, env)))

	rec, env = api.do(http.MethodGet, "/api/v1/users/visited-sites?radius=-5", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = api.do(http.MethodPut, "/api/v1/users/location", token, map[string]float64{"latitude": 91, "longitude": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, _ = api.do(http.MethodPost, "/api/v1/users/favorites", token, map[string]string{"siteId": "orsay"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = api.do(http.MethodPost, "/api/v1/users/favorites", token, map[string]string{"siteId": "orsay"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = api.do(http.MethodGet, "/api/v1/users/favorites", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"orsay"}, ids(decodeData[[]model.Site](t, env)))

	rec, _ = api.do(http.MethodDelete, "/api/v1/users/favorites/orsay", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = api.do(http.MethodDelete, "/api/v1/users/favorites/orsay", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env = api.do(http.MethodPost, "/api/v1/users/catch", token, map[string]string{"siteId": "unnamed"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INELIGIBLE_SITE", env.Error.Code)

	for i := 0; i < 2; i++ {
		rec, _ = api.do(http.MethodPost, "/api/v1/users/catch", token, map[string]string{"siteId": "louvre"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env = api.do(http.MethodGet, "/api/v1/users/inventory", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeData[[]struct {
		SiteID string      `json:"site_id"`
		Count  int         `json:"count"`
		Site   *model.Site `json:"site"`
	}](t, env)
	require.Len(t, items, 1)
	assert.Equal(t, "louvre", items[0].SiteID)
	assert.Equal(t, 2, items[0].Count)
}

func TestUpdateLocation_BadRadiusLeavesAccountUnchanged(t *testing.T) {
	api := newTestAPI(t)
	token, id := api.register("alice")

	rec, _ := api.do(http.MethodPut, "/api/v1/users/location", token, map[string]float64{
		"latitude": 48.8606, "longitude": 2.3376,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, radius := range []float64{-1, 0, 60000} {
		rec, env := api.do(http.MethodPut, "/api/v1/users/location", token, map[string]float64{
			"latitude": 40, "longitude": 3, "radius": radius,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code, "radius %v", radius)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

		account, err := api.store.Accounts().Get(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, account.Location)
		assert.Equal(t, model.Point{Lon: 2.3376, Lat: 48.8606}, *account.Location)
		assert.ElementsMatch(t, []string{"louvre", "orsay", "comedie"}, account.VisitedSites)
	}
}

func TestTradeFlow(t *testing.T) {
	api := newTestAPI(t)
	aliceToken, aliceID := api.register("alice")
	bobToken, bobID := api.register("bob")

	rec, _ := api.do(http.MethodPost, "/api/v1/users/catch", aliceToken, map[string]string{"siteId": "louvre"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := api.do(http.MethodPost, "/api/v1/trade-codes", bobToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	code := decodeData[handler.TradeCodeResponse](t, env).Code
	assert.Regexp(t, `^TRD-[0-9A-F]{32}$`, code)

	rec, env = api.do(http.MethodPost, "/api/v1/trade-codes/lookup", aliceToken, map[string]string{"code": code})
	require.Equal(t, http.StatusOK, rec.Code)
	recipient := decodeData[handler.RecipientResponse](t, env)
	assert.Equal(t, bobID, recipient.AccountID)
	assert.Equal(t, "bob", recipient.Name)

	rec, env = api.do(http.MethodPost, "/api/v1/trades", aliceToken, map[string]string{"code": code, "siteId": "orsay"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INSUFFICIENT_INVENTORY", env.Error.Code)

	rec, env = api.do(http.MethodPost, "/api/v1/trades", aliceToken, map[string]string{"code": code, "siteId": "louvre"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	transfer := decodeData[model.Transfer](t, env)
	assert.Equal(t, aliceID, transfer.FromAccountID)
	assert.Equal(t, bobID, transfer.ToAccountID)

	rec, env = api.do(http.MethodPost, "/api/v1/trades", aliceToken, map[string]string{"code": code, "siteId": "louvre"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_OR_EXPIRED_CODE", env.Error.Code)

	rec, env = api.do(http.MethodGet, "/api/v1/users/inventory", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"site_id":"louvre"`)

	rec, env = api.do(http.MethodGet, "/api/v1/users/inventory", aliceToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, string(env.Data), `"site_id":"louvre"`)

	for _, token := range []string{aliceToken, bobToken} {
		rec, env = api.do(http.MethodGet, "/api/v1/trades", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeData[[]model.Transfer](t, env), 1)
	}
}

func TestReviewFlow(t *testing.T) {
	api := newTestAPI(t)
	aliceToken, _ := api.register("alice")
	bobToken, _ := api.register("bob")

	review := map[string]interface{}{"siteId": "louvre", "rating": 5, "comment": "Mona Lisa is tiny"}

	rec, env := api.do(http.MethodPost, "/api/v1/reviews", aliceToken, review)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	rec, _ = api.do(http.MethodPut, "/api/v1/users/location", aliceToken, map[string]float64{
		"latitude": 48.8606, "longitude": 2.3376,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = api.do(http.MethodPost, "/api/v1/reviews", aliceToken, review)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeData[model.Review](t, env)

	rec, _ = api.do(http.MethodPost, "/api/v1/reviews", aliceToken, review)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = api.do(http.MethodGet, "/api/v1/reviews/site/louvre", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]model.Review](t, env), 1)

	rec, _ = api.do(http.MethodPut, "/api/v1/reviews/"+created.ID, bobToken, map[string]interface{}{"rating": 1, "comment": "meh"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env = api.do(http.MethodPut, "/api/v1/reviews/"+created.ID, aliceToken, map[string]interface{}{"rating": 6, "comment": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	rec, env = api.do(http.MethodPut, "/api/v1/reviews/"+created.ID, aliceToken, map[string]interface{}{"rating": 4, "comment": "Crowded"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decodeData[model.Review](t, env).Rating)

	rec, _ = api.do(http.MethodDelete, "/api/v1/reviews/"+created.ID, aliceToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = api.do(http.MethodDelete, "/api/v1/reviews/"+created.ID, aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t)
	api.register("alice")

	rec, _ := api.do(http.MethodGet, "/api/v1/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	req.Header.Set("X-Admin-Key", adminKey)
	w := httptest.NewRecorder()
	api.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data struct {
			StoreType string           `json:"store_type"`
			Counts    map[string]int64 `json:"counts"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "memory", body.Data.StoreType)
	assert.Equal(t, int64(len(testSites)), body.Data.Counts["sites"])
	assert.Equal(t, int64(1), body.Data.Counts["accounts"])

	require.NoError(t, api.store.TradeCodes().Create(context.Background(), &model.TradeCode{
		Code: "TRD-OLD", AccountID: "x", ExpiresAt: time.Now().Add(-time.Minute),
	}))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/trade-codes/purge", nil)
	req.Header.Set("X-Admin-Key", adminKey)
	w = httptest.NewRecorder()
	api.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"removed":1`)
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/me", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
