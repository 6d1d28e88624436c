package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type cookie struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Cookies is the short-lived credential store. Entries carry an expiry and
// read as absent once expired, mirroring the cookie jar of the web shell.
type Cookies struct {
	filePath string
	ttl      time.Duration
	mutex    sync.RWMutex
	jar      map[string]cookie
	dirty    bool
}

// DefaultCookieTTL matches the seven day cookie lifetime of the web shell.
const DefaultCookieTTL = 7 * 24 * time.Hour

// OpenCookies loads the cookie jar from dataDir, starting empty when no file
// exists yet.
func OpenCookies(dataDir string, ttl time.Duration) (*Cookies, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}
	if ttl <= 0 {
		ttl = DefaultCookieTTL
	}

	c := &Cookies{
		filePath: filepath.Join(dataDir, "cookies.json"),
		ttl:      ttl,
		jar:      map[string]cookie{},
	}

	if err := c.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading cookies: %w", err)
	}

	return c, nil
}

func (c *Cookies) loadFromFile() error {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return err
	}

	jar := map[string]cookie{}
	if err := json.Unmarshal(data, &jar); err != nil {
		return fmt.Errorf("error unmarshaling cookies: %w", err)
	}

	c.jar = jar
	c.dirty = false
	return nil
}

func (c *Cookies) saveToFile() error {
	if !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(c.jar, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling cookies: %w", err)
	}

	if err := os.WriteFile(c.filePath, data, 0600); err != nil {
		return fmt.Errorf("error writing cookie file: %w", err)
	}

	c.dirty = false
	return nil
}

// Get returns the value for name, or the empty string when the cookie is
// absent or expired.
func (c *Cookies) Get(name string) string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, ok := c.jar[name]
	if !ok || time.Now().After(entry.ExpiresAt) {
		return ""
	}
	return entry.Value
}

// Set stores value under name with the jar's TTL and persists the jar.
func (c *Cookies) Set(name, value string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.jar[name] = cookie{Value: value, ExpiresAt: time.Now().Add(c.ttl)}
	c.dirty = true
	return c.saveToFile()
}

// Delete removes name from the jar and persists the change.
func (c *Cookies) Delete(name string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.jar[name]; !ok {
		return nil
	}
	delete(c.jar, name)
	c.dirty = true
	return c.saveToFile()
}
