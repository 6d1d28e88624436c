// Package app composes the client core and runs its startup protocol.
package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"mealtrack/client/catalog"
	"mealtrack/client/consumption"
	"mealtrack/client/goals"
	"mealtrack/client/pantry"
	"mealtrack/client/session"
)

// App owns the wired components and the ready flag. The UI shell must not
// treat any derived state as usable until Ready reports true.
type App struct {
	Session *session.Manager
	Catalog *catalog.Cache
	Log     *consumption.Log
	Ledger  *pantry.Ledger
	Goals   *goals.Tracker

	mutex sync.RWMutex
	ready bool
}

// New wires the app over already-constructed components.
func New(sess *session.Manager, cache *catalog.Cache, consumptionLog *consumption.Log, ledger *pantry.Ledger, tracker *goals.Tracker) *App {
	return &App{
		Session: sess,
		Catalog: cache,
		Log:     consumptionLog,
		Ledger:  ledger,
		Goals:   tracker,
	}
}

// Bootstrap runs the session startup protocol and, when a session exists,
// the initial data load. An unauthenticated start is not an error; the shell
// shows the login entry instead.
func (a *App) Bootstrap(ctx context.Context) error {
	a.Session.Init(ctx)

	if !a.Session.IsAuthenticated() {
		return nil
	}

	return a.LoadAll(ctx)
}

// LoadAll fetches catalog, consumption history, goals and the pantry
// snapshot concurrently. The combined result counts as ready only when all
// four succeed; a partial failure surfaces as one aggregate error and leaves
// the app not ready rather than half-initialized.
func (a *App) LoadAll(ctx context.Context) error {
	a.setReady(false)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return a.Catalog.Load(ctx) })
	group.Go(func() error { return a.Log.Load(ctx) })
	group.Go(func() error { return a.Ledger.Load(ctx) })
	group.Go(func() error { return a.Goals.Load(ctx) })

	if err := group.Wait(); err != nil {
		return fmt.Errorf("initial data load failed: %w", err)
	}

	a.setReady(true)
	return nil
}

// Logout clears the session and marks the loaded data stale.
func (a *App) Logout() {
	a.Session.Logout()
	a.setReady(false)
}

// Ready reports whether the initial load completed in full.
func (a *App) Ready() bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return a.ready
}

func (a *App) setReady(ready bool) {
	a.mutex.Lock()
	a.ready = ready
	a.mutex.Unlock()
}

// StartDayChangeMonitor keeps the selected date from pointing at a future
// day after a midnight rollover. Returns when ctx is done.
func (a *App) StartDayChangeMonitor(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	log.Printf("Day change monitor started")
	for {
		select {
		case <-ticker.C:
			a.Log.ClampToToday()
		case <-ctx.Done():
			return
		}
	}
}
