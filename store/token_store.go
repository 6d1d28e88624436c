package store

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	accessTokenKey  = "accessToken"
	refreshTokenKey = "refreshToken"
)

// TokenStore owns credential persistence. Tokens are written to both the
// durable KV store and the short-lived cookie jar, like the web shell keeping
// localStorage and cookies in step, and are encrypted at rest with AES-GCM.
type TokenStore struct {
	encryptionKey []byte
	kv            *KV
	cookies       *Cookies
}

// NewTokenStore wires the token store over both persistence primitives,
// loading or generating the encryption key inside dataDir.
func NewTokenStore(dataDir string, kv *KV, cookies *Cookies) (*TokenStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	key, err := loadOrGenerateKey(filepath.Join(dataDir, "encryption.key"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption key: %v", err)
	}

	return &TokenStore{
		encryptionKey: key,
		kv:            kv,
		cookies:       cookies,
	}, nil
}

func loadOrGenerateKey(keyPath string) ([]byte, error) {
	key := make([]byte, 32) // AES-256

	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("failed to generate key: %v", err)
		}
		if err := os.WriteFile(keyPath, key, 0600); err != nil {
			return nil, fmt.Errorf("failed to save key: %v", err)
		}
	} else {
		var err error
		key, err = os.ReadFile(keyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read key: %v", err)
		}
	}

	return key, nil
}

// SaveTokens persists the access/refresh pair to both stores.
func (ts *TokenStore) SaveTokens(accessToken, refreshToken string) error {
	if err := ts.SaveAccessToken(accessToken); err != nil {
		return err
	}
	return ts.save(refreshTokenKey, refreshToken)
}

// SaveAccessToken persists a new access token, leaving the refresh token
// untouched. Used after a successful refresh.
func (ts *TokenStore) SaveAccessToken(accessToken string) error {
	return ts.save(accessTokenKey, accessToken)
}

func (ts *TokenStore) save(name, token string) error {
	sealed, err := ts.encrypt(token)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %v", name, err)
	}
	if err := ts.kv.Set(name, sealed); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	if err := ts.cookies.Set(name, sealed); err != nil {
		return fmt.Errorf("failed to save %s cookie: %w", name, err)
	}
	return nil
}

// AccessToken returns the stored access token, or the empty string when none
// is stored. The cookie copy wins; the KV copy is the fallback.
func (ts *TokenStore) AccessToken() (string, error) {
	return ts.load(accessTokenKey)
}

// RefreshToken returns the stored refresh token, or the empty string when
// none is stored.
func (ts *TokenStore) RefreshToken() (string, error) {
	return ts.load(refreshTokenKey)
}

func (ts *TokenStore) load(name string) (string, error) {
	sealed := ts.cookies.Get(name)
	if sealed == "" {
		var err error
		sealed, err = ts.kv.Get(name)
		if err != nil {
			return "", fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	if sealed == "" {
		return "", nil
	}

	token, err := ts.decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt %s: %v", name, err)
	}
	return token, nil
}

// DeleteTokens removes all credential state from both stores.
func (ts *TokenStore) DeleteTokens() error {
	for _, name := range []string{accessTokenKey, refreshTokenKey} {
		if err := ts.kv.Delete(name); err != nil {
			return fmt.Errorf("failed to delete %s: %w", name, err)
		}
		if err := ts.cookies.Delete(name); err != nil {
			return fmt.Errorf("failed to delete %s cookie: %w", name, err)
		}
	}
	return nil
}

func (ts *TokenStore) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(ts.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %v", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %v", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to create nonce: %v", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (ts *TokenStore) decrypt(sealed string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %v", err)
	}

	block, err := aes.NewCipher(ts.encryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %v", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %v", err)
	}

	if len(ciphertext) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertext = ciphertext[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %v", err)
	}

	return string(plaintext), nil
}
