package types

import "time"

// SessionStatus is the session snapshot exposed to the UI shell.
type SessionStatus struct {
	IsAuthenticated bool      `json:"is_authenticated"`
	IsLoading       bool      `json:"is_loading"`
	Username        string    `json:"username,omitempty"`
	ExpiresAt       time.Time `json:"expires_at,omitempty"`
}

// RecommendationsResponse wraps the meal recommendations with the explicit
// none-available signal for a 204 from the backend.
type RecommendationsResponse struct {
	Meals         []Item `json:"meals"`
	NoneAvailable bool   `json:"none_available"`
}
