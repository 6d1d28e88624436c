package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealtrack/client/app"
	"mealtrack/client/catalog"
	"mealtrack/client/consumption"
	"mealtrack/client/goals"
	"mealtrack/client/pantry"
	"mealtrack/client/remote"
	"mealtrack/client/session"
	"mealtrack/client/store"
	"mealtrack/client/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func backendHandler() http.HandlerFunc {
	items := []types.Item{
		{ItemID: 1, Name: "Rice", ServingWeight: 100, Calories: 130},
		{ItemID: 2, Name: "Fried rice", IsMeal: true, ServingWeight: 210},
	}
	recipes := []types.Recipe{{Meal: 2, Ingredient: 1, Quantity: 200}}
	nextID := int64(10)

	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/token/":
			json.NewEncoder(w).Encode(map[string]string{"access": "a1", "refresh": "r1"})
		case r.URL.Path == "/api/token/verify/":
			// valid
		case r.URL.Path == "/items/":
			json.NewEncoder(w).Encode(items)
		case r.URL.Path == "/recipes/":
			json.NewEncoder(w).Encode(recipes)
		case r.URL.Path == "/actions/" && r.Method == http.MethodPost:
			var action types.Action
			json.NewDecoder(r.Body).Decode(&action)
			nextID++
			action.ActionID = nextID
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(action)
		case r.URL.Path == "/actions/":
			json.NewEncoder(w).Encode([]types.Action{})
		case r.URL.Path == "/available-ingredients/":
			json.NewEncoder(w).Encode(map[string]float64{"1": 500})
		case r.URL.Path == "/user-settings/":
			json.NewEncoder(w).Encode(types.DefaultGoal())
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *app.App) {
	t.Helper()
	server := httptest.NewServer(backendHandler())
	t.Cleanup(server.Close)

	dir := t.TempDir()
	kv, err := store.OpenKV(dir)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	cookies, err := store.OpenCookies(dir, time.Hour)
	require.NoError(t, err)

	tokens, err := store.NewTokenStore(dir, kv, cookies)
	require.NoError(t, err)

	client := remote.NewClient(server.URL)
	sess := session.NewManager(tokens, client)
	cache := catalog.NewCache(client)
	ledger := pantry.NewLedger(client, cache)
	consumptionLog := consumption.NewLog(client, cache, ledger, time.Local)
	tracker := goals.NewTracker(client)

	application := app.New(sess, cache, consumptionLog, ledger, tracker)
	return NewRouter(application, client).Setup(), application
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(payload)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	return recorder
}

func TestHealth(t *testing.T) {
	engine, _ := newTestRouter(t)
	resp := doJSON(t, engine, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestDataRoutesRequireReady(t *testing.T) {
	engine, _ := newTestRouter(t)

	for _, path := range []string{"/api/catalog/items", "/api/pantry", "/api/goals"} {
		resp := doJSON(t, engine, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.Code, path)
	}
}

func TestLoginLoadsAndUnlocksDataRoutes(t *testing.T) {
	engine, application := newTestRouter(t)

	resp := doJSON(t, engine, http.MethodPost, "/api/session/login", types.LoginRequest{Username: "alice", Password: "secret"})
	require.Equal(t, http.StatusOK, resp.Code)

	var status types.SessionStatus
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &status))
	assert.True(t, status.IsAuthenticated)
	assert.True(t, application.Ready())

	resp = doJSON(t, engine, http.MethodGet, "/api/catalog/items", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var items []types.Item
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &items))
	assert.Len(t, items, 2)
}

func login(t *testing.T, engine *gin.Engine) {
	t.Helper()
	resp := doJSON(t, engine, http.MethodPost, "/api/session/login", types.LoginRequest{Username: "alice", Password: "secret"})
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestLogout(t *testing.T) {
	engine, application := newTestRouter(t)
	login(t, engine)

	resp := doJSON(t, engine, http.MethodPost, "/api/session/logout", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, application.Ready())

	resp = doJSON(t, engine, http.MethodGet, "/api/catalog/items", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestAddLogEntryValidationMapsTo400(t *testing.T) {
	engine, _ := newTestRouter(t)
	login(t, engine)

	resp := doJSON(t, engine, http.MethodPost, "/api/log", types.AddLogEntryRequest{ItemID: 1, Quantity: -5})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(t, engine, http.MethodPost, "/api/log", types.AddLogEntryRequest{ItemID: 1, Quantity: 50.5})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestAddAndReadLogEntry(t *testing.T) {
	engine, _ := newTestRouter(t)
	login(t, engine)

	resp := doJSON(t, engine, http.MethodPost, "/api/log", types.AddLogEntryRequest{ItemID: 1, Quantity: 100})
	require.Equal(t, http.StatusCreated, resp.Code)

	today := time.Now().Format("2006-01-02")
	resp = doJSON(t, engine, http.MethodGet, "/api/log/"+today, nil)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = doJSON(t, engine, http.MethodGet, "/api/log/not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPantryInsufficiencyMapsTo400(t *testing.T) {
	engine, _ := newTestRouter(t)
	login(t, engine)

	resp := doJSON(t, engine, http.MethodPost, "/api/pantry/dispose", types.PantryAmountRequest{ItemID: 1, Quantity: 9999})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "insufficient")
}

func TestMealNutritionEndpoint(t *testing.T) {
	engine, _ := newTestRouter(t)
	login(t, engine)

	resp := doJSON(t, engine, http.MethodGet, "/api/catalog/meals/2/nutrition", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var macros types.Macros
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &macros))
	assert.InDelta(t, 260, macros.Calories, 1e-9)

	resp = doJSON(t, engine, http.MethodGet, "/api/catalog/meals/1/nutrition", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code, "plain food has no meal nutrition")
}

func TestGoalsEndpoints(t *testing.T) {
	engine, _ := newTestRouter(t)
	login(t, engine)

	resp := doJSON(t, engine, http.MethodGet, "/api/goals", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var goal types.Goal
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &goal))
	assert.Equal(t, types.DefaultGoal(), goal)

	resp = doJSON(t, engine, http.MethodPost, "/api/goals", types.Goal{GoalCalories: 0, GoalProtein: 1, GoalCarbs: 1, GoalFats: 1})
	assert.Equal(t, http.StatusBadRequest, resp.Code, fmt.Sprintf("body: %s", resp.Body.String()))
}
