package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVRoundTrip(t *testing.T) {
	kv, err := OpenKV(t.TempDir())
	require.NoError(t, err)
	defer kv.Close()

	value, err := kv.Get("missing")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, kv.Set("key", "value"))
	value, err = kv.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "value", value)

	require.NoError(t, kv.Set("key", "updated"))
	value, err = kv.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "updated", value)

	require.NoError(t, kv.Delete("key"))
	value, err = kv.Get("key")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestKVSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	kv, err := OpenKV(dir)
	require.NoError(t, err)
	require.NoError(t, kv.Set("key", "value"))
	require.NoError(t, kv.Close())

	reopened, err := OpenKV(dir)
	require.NoError(t, err)
	defer reopened.Close()

	value, err := reopened.Get("key")
	require.NoError(t, err)
	assert.Equal(t, "value", value)
}

func TestCookiesExpiry(t *testing.T) {
	cookies, err := OpenCookies(t.TempDir(), 10*time.Millisecond)
	require.NoError(t, err)

	require.NoError(t, cookies.Set("session", "abc"))
	assert.Equal(t, "abc", cookies.Get("session"))

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, cookies.Get("session"))
}

func TestCookiesPersistAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	cookies, err := OpenCookies(dir, time.Hour)
	require.NoError(t, err)
	require.NoError(t, cookies.Set("session", "abc"))

	reopened, err := OpenCookies(dir, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "abc", reopened.Get("session"))

	require.NoError(t, reopened.Delete("session"))
	assert.Empty(t, reopened.Get("session"))
}

func newTestTokenStore(t *testing.T) *TokenStore {
	t.Helper()
	dir := t.TempDir()

	kv, err := OpenKV(dir)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	cookies, err := OpenCookies(dir, time.Hour)
	require.NoError(t, err)

	tokens, err := NewTokenStore(dir, kv, cookies)
	require.NoError(t, err)
	return tokens
}

func TestTokenStoreRoundTrip(t *testing.T) {
	tokens := newTestTokenStore(t)

	access, err := tokens.AccessToken()
	require.NoError(t, err)
	assert.Empty(t, access)

	require.NoError(t, tokens.SaveTokens("access-token", "refresh-token"))

	access, err = tokens.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "access-token", access)

	refresh, err := tokens.RefreshToken()
	require.NoError(t, err)
	assert.Equal(t, "refresh-token", refresh)
}

func TestTokenStoreSaveAccessKeepsRefresh(t *testing.T) {
	tokens := newTestTokenStore(t)
	require.NoError(t, tokens.SaveTokens("old-access", "refresh-token"))

	require.NoError(t, tokens.SaveAccessToken("new-access"))

	access, err := tokens.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "new-access", access)

	refresh, err := tokens.RefreshToken()
	require.NoError(t, err)
	assert.Equal(t, "refresh-token", refresh)
}

func TestTokenStoreDeleteTokens(t *testing.T) {
	tokens := newTestTokenStore(t)
	require.NoError(t, tokens.SaveTokens("access-token", "refresh-token"))

	require.NoError(t, tokens.DeleteTokens())

	access, err := tokens.AccessToken()
	require.NoError(t, err)
	assert.Empty(t, access)

	refresh, err := tokens.RefreshToken()
	require.NoError(t, err)
	assert.Empty(t, refresh)
}

func TestTokenStoreEncryptsAtRest(t *testing.T) {
	tokens := newTestTokenStore(t)
	require.NoError(t, tokens.SaveTokens("access-token", "refresh-token"))

	sealed, err := tokens.kv.Get("accessToken")
	require.NoError(t, err)
	assert.NotEmpty(t, sealed)
	assert.NotEqual(t, "access-token", sealed)
	assert.NotContains(t, sealed, "access-token")
}

func TestTokenStoreKVFallbackWhenCookieExpired(t *testing.T) {
	dir := t.TempDir()

	kv, err := OpenKV(dir)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	cookies, err := OpenCookies(dir, 10*time.Millisecond)
	require.NoError(t, err)

	tokens, err := NewTokenStore(dir, kv, cookies)
	require.NoError(t, err)

	require.NoError(t, tokens.SaveTokens("access-token", "refresh-token"))
	time.Sleep(20 * time.Millisecond)

	access, err := tokens.AccessToken()
	require.NoError(t, err)
	assert.Equal(t, "access-token", access)
}
