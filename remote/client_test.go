package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealtrack/client/types"
)

func TestObtainToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/token/", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "alice", body["username"])
		assert.Equal(t, "secret", body["password"])
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		json.NewEncoder(w).Encode(map[string]string{"access": "a1", "refresh": "r1"})
	}))
	defer server.Close()

	creds, err := NewClient(server.URL).ObtainToken(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "a1", creds.AccessToken)
	assert.Equal(t, "r1", creds.RefreshToken)
}

func TestVerifyToken(t *testing.T) {
	valid := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/token/verify/", r.URL.Path)
		if !valid {
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	assert.True(t, client.VerifyToken(context.Background(), "token"))

	valid = false
	assert.False(t, client.VerifyToken(context.Background(), "token"))
}

func TestRefreshAccessTokenRequiresAccessInResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"refresh": "rotated"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL).RefreshAccessToken(context.Background(), "r1")
	assert.Error(t, err)
}

func TestAuthenticatedRequestCarriesBearer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]types.Item{})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetTokenSource(func() string { return "token-123" }, nil)

	_, err := client.ListItems(context.Background())
	require.NoError(t, err)
}

func TestUnauthorizedRetriesOnceAfterRecovery(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]types.Item{{ItemID: 1, Name: "Rice"}})
	}))
	defer server.Close()

	recoveries := 0
	client := NewClient(server.URL)
	client.SetTokenSource(func() string { return "token" }, func(ctx context.Context) bool {
		recoveries++
		return true
	})

	items, err := client.ListItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 2, requests)
	assert.Equal(t, 1, recoveries)
}

func TestUnauthorizedIsTerminalWhenRecoveryFails(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetTokenSource(func() string { return "token" }, func(ctx context.Context) bool { return false })

	_, err := client.ListItems(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, requests)
}

func TestUnauthorizedRetriesAtMostOnce(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetTokenSource(func() string { return "token" }, func(ctx context.Context) bool { return true })

	_, err := client.ListItems(context.Background())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 2, requests)
}

func TestNotFoundMapsToSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).GetUserSettings(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServerErrorCarriesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).ListItems(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "boom", statusErr.Body)
}

func TestAvailableIngredientsParsesStringKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/available-ingredients/", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]float64{"1": 250, "7": 30.5})
	}))
	defer server.Close()

	available, err := NewClient(server.URL).AvailableIngredients(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{1: 250, 7: 30.5}, available)
}

func TestMealRecommendationsNoContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	meals, noneAvailable, err := NewClient(server.URL).MealRecommendations(context.Background())
	require.NoError(t, err)
	assert.True(t, noneAvailable)
	assert.Empty(t, meals)
}

func TestMealRecommendationsWithContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]types.Item{{ItemID: 5, Name: "Fried rice", IsMeal: true}})
	}))
	defer server.Close()

	meals, noneAvailable, err := NewClient(server.URL).MealRecommendations(context.Background())
	require.NoError(t, err)
	assert.False(t, noneAvailable)
	require.Len(t, meals, 1)
	assert.Equal(t, "Fried rice", meals[0].Name)
}

func TestListEatActionsFiltersByType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/actions/", r.URL.Path)
		require.Equal(t, "EAT", r.URL.Query().Get("action_type"))
		json.NewEncoder(w).Encode([]types.Action{{ActionID: 1, ActionType: types.ActionEat, Item: 2, Quantity: 100}})
	}))
	defer server.Close()

	actions, err := NewClient(server.URL).ListEatActions(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, types.ActionEat, actions[0].ActionType)
}

func TestDeleteAction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/actions/42/", r.URL.Path)
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	require.NoError(t, NewClient(server.URL).DeleteAction(context.Background(), 42))
}
