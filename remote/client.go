// Package remote implements the REST client for the nutrition backend. The
// backend owns all server-side rules (recipe aggregation, pantry depletion,
// recommendations); this client only moves data and maps failures onto the
// local error taxonomy.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"mealtrack/client/types"
)

// Client talks to the nutrition backend. TokenFunc supplies the current
// bearer token; OnAuthFailure is invoked once per request on a 401 and
// reports whether a retry is worthwhile (the session layer hangs its
// refresh logic here).
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokenFunc     func() string
	onAuthFailure func(ctx context.Context) bool
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// SetTokenSource wires the session layer in. Both funcs may be nil, in which
// case requests go out unauthenticated and 401s are terminal.
func (c *Client) SetTokenSource(tokenFunc func() string, onAuthFailure func(ctx context.Context) bool) {
	c.tokenFunc = tokenFunc
	c.onAuthFailure = onAuthFailure
}

// do performs one JSON request. Authenticated requests get the bearer header
// and a single refresh-and-retry on 401. The response body is decoded into
// out when out is non-nil and the response has content.
func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}, authenticated bool) (int, error) {
	retried := false

	for {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return 0, fmt.Errorf("error marshaling request body: %w", err)
			}
			reader = bytes.NewBuffer(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return 0, fmt.Errorf("error creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if method == http.MethodPost {
			req.Header.Set("X-Request-ID", uuid.New().String())
		}
		if authenticated && c.tokenFunc != nil {
			req.Header.Set("Authorization", "Bearer "+c.tokenFunc())
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return 0, fmt.Errorf("error making request: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && authenticated {
			resp.Body.Close()
			if retried || c.onAuthFailure == nil || !c.onAuthFailure(ctx) {
				return resp.StatusCode, ErrUnauthorized
			}
			retried = true
			continue
		}

		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return resp.StatusCode, ErrNotFound
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			respBody, _ := io.ReadAll(resp.Body)
			return resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		if out != nil && resp.StatusCode != http.StatusNoContent {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return resp.StatusCode, fmt.Errorf("error decoding response: %w", err)
			}
		}

		return resp.StatusCode, nil
	}
}

// ObtainToken exchanges username/password for an access/refresh token pair.
func (c *Client) ObtainToken(ctx context.Context, username, password string) (*types.Credentials, error) {
	var creds types.Credentials
	_, err := c.do(ctx, http.MethodPost, "/api/token/", map[string]string{
		"username": username,
		"password": password,
	}, &creds, false)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	return &creds, nil
}

// VerifyToken asks the backend whether token is valid. Any failure, network
// or status, reads as invalid.
func (c *Client) VerifyToken(ctx context.Context, token string) bool {
	_, err := c.do(ctx, http.MethodPost, "/api/token/verify/", map[string]string{"token": token}, nil, false)
	return err == nil
}

// RefreshAccessToken exchanges a refresh token for a new access token. The
// backend may rotate the refresh token; the returned credentials carry the
// new one when it does, otherwise the refresh field is empty.
func (c *Client) RefreshAccessToken(ctx context.Context, refreshToken string) (*types.Credentials, error) {
	var creds types.Credentials
	_, err := c.do(ctx, http.MethodPost, "/api/token/refresh/", map[string]string{"refresh": refreshToken}, &creds, false)
	if err != nil {
		return nil, fmt.Errorf("refresh token request failed: %w", err)
	}
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("no access token received in refresh response")
	}
	return &creds, nil
}

// Register creates a new user account.
func (c *Client) Register(ctx context.Context, email, username, password string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/register/", map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	}, nil, false)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	return nil
}

// ListItems fetches the full catalog of items.
func (c *Client) ListItems(ctx context.Context) ([]types.Item, error) {
	var items []types.Item
	if _, err := c.do(ctx, http.MethodGet, "/items/", nil, &items, true); err != nil {
		return nil, fmt.Errorf("error fetching items: %w", err)
	}
	return items, nil
}

// CreateItem creates a catalog item and returns it with its assigned ID.
func (c *Client) CreateItem(ctx context.Context, item types.Item) (*types.Item, error) {
	var created types.Item
	if _, err := c.do(ctx, http.MethodPost, "/items/", item, &created, true); err != nil {
		return nil, fmt.Errorf("error creating item: %w", err)
	}
	return &created, nil
}

// ListRecipes fetches all recipe links.
func (c *Client) ListRecipes(ctx context.Context) ([]types.Recipe, error) {
	var recipes []types.Recipe
	if _, err := c.do(ctx, http.MethodGet, "/recipes/", nil, &recipes, true); err != nil {
		return nil, fmt.Errorf("error fetching recipes: %w", err)
	}
	return recipes, nil
}

// CreateRecipe creates one meal-to-ingredient link.
func (c *Client) CreateRecipe(ctx context.Context, recipe types.Recipe) error {
	if _, err := c.do(ctx, http.MethodPost, "/recipes/", recipe, nil, true); err != nil {
		return fmt.Errorf("error creating recipe: %w", err)
	}
	return nil
}

// GetUserSettings fetches the per-user goal record. ErrNotFound means the
// user has no record yet and the caller keeps its defaults.
func (c *Client) GetUserSettings(ctx context.Context) (*types.Goal, error) {
	var goal types.Goal
	if _, err := c.do(ctx, http.MethodGet, "/user-settings/", nil, &goal, true); err != nil {
		return nil, err
	}
	return &goal, nil
}

// SaveUserSettings writes the goal record and returns the server's copy.
func (c *Client) SaveUserSettings(ctx context.Context, goal types.Goal) (*types.Goal, error) {
	var saved types.Goal
	if _, err := c.do(ctx, http.MethodPost, "/user-settings/", goal, &saved, true); err != nil {
		return nil, fmt.Errorf("error saving user settings: %w", err)
	}
	return &saved, nil
}

// ListEatActions fetches the full consumption history as flat action records.
func (c *Client) ListEatActions(ctx context.Context) ([]types.Action, error) {
	var actions []types.Action
	if _, err := c.do(ctx, http.MethodGet, "/actions/?action_type=EAT", nil, &actions, true); err != nil {
		return nil, fmt.Errorf("error fetching consumption history: %w", err)
	}
	return actions, nil
}

// CreateAction records one action and returns it with its assigned ID and
// server timestamp.
func (c *Client) CreateAction(ctx context.Context, action types.Action) (*types.Action, error) {
	var created types.Action
	if _, err := c.do(ctx, http.MethodPost, "/actions/", action, &created, true); err != nil {
		return nil, fmt.Errorf("error recording %s action: %w", action.ActionType, err)
	}
	return &created, nil
}

// DeleteAction removes a recorded action.
func (c *Client) DeleteAction(ctx context.Context, actionID int64) error {
	path := fmt.Sprintf("/actions/%d/", actionID)
	if _, err := c.do(ctx, http.MethodDelete, path, nil, nil, true); err != nil {
		return fmt.Errorf("error deleting action %d: %w", actionID, err)
	}
	return nil
}

// AvailableIngredients fetches the pantry snapshot. The backend keys the map
// with stringified item IDs.
func (c *Client) AvailableIngredients(ctx context.Context) (map[int64]float64, error) {
	var raw map[string]float64
	if _, err := c.do(ctx, http.MethodGet, "/available-ingredients/", nil, &raw, true); err != nil {
		return nil, fmt.Errorf("error fetching available ingredients: %w", err)
	}

	available := make(map[int64]float64, len(raw))
	for key, quantity := range raw {
		itemID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("error parsing ingredient id %q: %w", key, err)
		}
		available[itemID] = quantity
	}
	return available, nil
}

// MealRecommendations fetches suggested meals. A 204 means the backend has
// none to offer, which is a distinct signal, not an error.
func (c *Client) MealRecommendations(ctx context.Context) (meals []types.Item, noneAvailable bool, err error) {
	status, err := c.do(ctx, http.MethodGet, "/meal-recommendations/", nil, &meals, true)
	if err != nil {
		return nil, false, fmt.Errorf("error fetching meal recommendations: %w", err)
	}
	if status == http.StatusNoContent {
		return []types.Item{}, true, nil
	}
	return meals, false, nil
}
