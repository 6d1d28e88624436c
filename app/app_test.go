package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealtrack/client/catalog"
	"mealtrack/client/consumption"
	"mealtrack/client/goals"
	"mealtrack/client/pantry"
	"mealtrack/client/remote"
	"mealtrack/client/session"
	"mealtrack/client/store"
	"mealtrack/client/types"
)

// fullBackend serves every endpoint the initial load touches. failSettings
// scripts one of the four loads failing.
type fullBackend struct {
	failSettings bool
}

func (f *fullBackend) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/token/verify/":
			// always valid
		case "/items/":
			json.NewEncoder(w).Encode([]types.Item{{ItemID: 1, Name: "Rice", ServingWeight: 100, Calories: 130}})
		case "/recipes/":
			json.NewEncoder(w).Encode([]types.Recipe{})
		case "/actions/":
			json.NewEncoder(w).Encode([]types.Action{})
		case "/available-ingredients/":
			json.NewEncoder(w).Encode(map[string]float64{"1": 500})
		case "/user-settings/":
			if f.failSettings {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			json.NewEncoder(w).Encode(types.DefaultGoal())
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestApp(t *testing.T, backend *fullBackend, loggedIn bool) *App {
	t.Helper()
	server := httptest.NewServer(backend.handler())
	t.Cleanup(server.Close)

	dir := t.TempDir()
	kv, err := store.OpenKV(dir)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	cookies, err := store.OpenCookies(dir, time.Hour)
	require.NoError(t, err)

	tokens, err := store.NewTokenStore(dir, kv, cookies)
	require.NoError(t, err)
	if loggedIn {
		require.NoError(t, tokens.SaveTokens("access", "refresh"))
	}

	client := remote.NewClient(server.URL)
	sess := session.NewManager(tokens, client)
	cache := catalog.NewCache(client)
	ledger := pantry.NewLedger(client, cache)
	consumptionLog := consumption.NewLog(client, cache, ledger, time.UTC)
	tracker := goals.NewTracker(client)

	return New(sess, cache, consumptionLog, ledger, tracker)
}

func TestBootstrapWithoutSessionIsNotAnError(t *testing.T) {
	application := newTestApp(t, &fullBackend{}, false)

	require.NoError(t, application.Bootstrap(context.Background()))
	assert.False(t, application.Session.IsAuthenticated())
	assert.False(t, application.Ready())
}

func TestBootstrapLoadsEverything(t *testing.T) {
	application := newTestApp(t, &fullBackend{}, true)

	require.NoError(t, application.Bootstrap(context.Background()))
	assert.True(t, application.Session.IsAuthenticated())
	assert.True(t, application.Ready())

	item, ok := application.Catalog.ItemByID(1)
	require.True(t, ok)
	assert.Equal(t, "Rice", item.Name)
	assert.Equal(t, 500.0, application.Ledger.Quantity(1))
	assert.Equal(t, types.DefaultGoal(), application.Goals.Current())
}

func TestPartialLoadFailureLeavesAppNotReady(t *testing.T) {
	application := newTestApp(t, &fullBackend{failSettings: true}, true)

	err := application.Bootstrap(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial data load failed")
	assert.False(t, application.Ready(), "partial success must not read as ready")
}

func TestLogoutClearsReady(t *testing.T) {
	application := newTestApp(t, &fullBackend{}, true)
	require.NoError(t, application.Bootstrap(context.Background()))
	require.True(t, application.Ready())

	application.Logout()

	assert.False(t, application.Ready())
	assert.False(t, application.Session.IsAuthenticated())
}
