// Package session owns the credential lifecycle: login, logout, token
// verification and refresh, and the authentication snapshot every other
// component reads.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mealtrack/client/messaging"
	"mealtrack/client/remote"
	"mealtrack/client/store"
	"mealtrack/client/types"
)

// Manager is the session store. It is the only component allowed to mutate
// token state; everything else reads a bearer snapshot through the remote
// client's token source.
type Manager struct {
	tokens *store.TokenStore
	client *remote.Client

	mutex           sync.RWMutex
	isAuthenticated bool
	isLoading       bool
}

// NewManager wires the session over the token store and the remote client,
// installing itself as the client's token source so authenticated requests
// get the refresh-then-retry-once behaviour on 401.
func NewManager(tokens *store.TokenStore, client *remote.Client) *Manager {
	m := &Manager{
		tokens: tokens,
		client: client,
	}
	client.SetTokenSource(m.currentAccessToken, m.handleAuthFailure)
	return m
}

func (m *Manager) currentAccessToken() string {
	token, err := m.tokens.AccessToken()
	if err != nil {
		log.Printf("Error loading access token: %v", err)
		return ""
	}
	return token
}

// handleAuthFailure runs once per 401. A successful refresh allows one retry;
// anything else forces a logout so the shell redirects to the login entry.
func (m *Manager) handleAuthFailure(ctx context.Context) bool {
	if m.Refresh(ctx) {
		return true
	}
	log.Printf("Token refresh after 401 failed, logging out")
	m.Logout()
	return false
}

// Init runs the startup protocol: raise the loading flag, check
// authentication, force a logout when the check fails, then clear the flag.
// Consumers must not treat the session as usable while loading.
func (m *Manager) Init(ctx context.Context) {
	m.setLoading(true)

	if m.CheckAuth(ctx) {
		m.setAuthenticated(true)
	} else {
		m.Logout()
	}

	m.setLoading(false)
}

// Login persists both tokens and marks the session authenticated. The
// credential exchange already happened at the login form; no network call is
// made here.
func (m *Manager) Login(creds types.Credentials) error {
	if err := m.tokens.SaveTokens(creds.AccessToken, creds.RefreshToken); err != nil {
		return err
	}
	m.setAuthenticated(true)
	return nil
}

// Logout clears all persisted credential state and marks the session
// unauthenticated. Idempotent.
func (m *Manager) Logout() {
	if err := m.tokens.DeleteTokens(); err != nil {
		log.Printf("Error deleting tokens on logout: %v", err)
	}
	m.setAuthenticated(false)
}

// Verify asks the backend whether token is valid. Network failures read as
// invalid; this never returns an error.
func (m *Manager) Verify(ctx context.Context, token string) bool {
	return m.client.VerifyToken(ctx, token)
}

// Refresh exchanges the stored refresh token for a new access token. With no
// stored refresh token it returns false without a network call. On any
// failure no state is mutated.
func (m *Manager) Refresh(ctx context.Context) bool {
	refreshToken, err := m.tokens.RefreshToken()
	if err != nil {
		log.Printf("Error loading refresh token: %v", err)
		return false
	}
	if refreshToken == "" {
		return false
	}

	creds, err := m.client.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		log.Printf("Error refreshing access token: %v", err)
		return false
	}

	// Keep the old refresh token unless the server rotated it.
	if creds.RefreshToken != "" {
		err = m.tokens.SaveTokens(creds.AccessToken, creds.RefreshToken)
	} else {
		err = m.tokens.SaveAccessToken(creds.AccessToken)
	}
	if err != nil {
		log.Printf("Error saving refreshed tokens: %v", err)
		return false
	}

	return true
}

// CheckAuth reports whether a usable session exists: a stored access token
// that verifies, or one that can be refreshed.
func (m *Manager) CheckAuth(ctx context.Context) bool {
	accessToken, err := m.tokens.AccessToken()
	if err != nil {
		log.Printf("Error loading access token: %v", err)
		return false
	}
	if accessToken == "" {
		return false
	}

	if m.Verify(ctx, accessToken) {
		return true
	}

	return m.Refresh(ctx)
}

// IsAuthenticated reports the current authentication state.
func (m *Manager) IsAuthenticated() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.isAuthenticated
}

// IsLoading reports whether the startup check is still running.
func (m *Manager) IsLoading() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.isLoading
}

// Snapshot returns the session state for the UI shell. Username and expiry
// are best-effort claims from the access token; validation is the server's
// job, so a token that does not parse just leaves them empty.
func (m *Manager) Snapshot() types.SessionStatus {
	m.mutex.RLock()
	status := types.SessionStatus{
		IsAuthenticated: m.isAuthenticated,
		IsLoading:       m.isLoading,
	}
	m.mutex.RUnlock()

	if token := m.currentAccessToken(); token != "" {
		status.Username, status.ExpiresAt = parseClaims(token)
	}
	return status
}

func parseClaims(token string) (username string, expiresAt time.Time) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", time.Time{}
	}

	if name, ok := claims["username"].(string); ok {
		username = name
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	return username, expiresAt
}

func (m *Manager) setAuthenticated(authenticated bool) {
	m.mutex.Lock()
	changed := m.isAuthenticated != authenticated
	m.isAuthenticated = authenticated
	m.mutex.Unlock()

	if changed {
		messaging.BroadcastMessage(messaging.SessionChanged)
	}
}

func (m *Manager) setLoading(loading bool) {
	m.mutex.Lock()
	m.isLoading = loading
	m.mutex.Unlock()
	messaging.BroadcastMessage(messaging.SessionChanged)
}
