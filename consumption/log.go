// Package consumption keeps the full EAT history and a per-day view over it.
// Entries are appended only after the backend confirmed the action, and every
// confirmed entry is mirrored into the pantry ledger.
package consumption

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"mealtrack/client/catalog"
	"mealtrack/client/engine"
	"mealtrack/client/messaging"
	"mealtrack/client/pantry"
	"mealtrack/client/remote"
	"mealtrack/client/types"
)

// ErrInvalidQuantity rejects entries whose quantity is not a positive whole
// number of grams. Surfaced inline at the input, never sent to the backend.
var ErrInvalidQuantity = errors.New("quantity must be a positive whole number of grams")

// Log is the consumption log. Day boundaries are calendar days in the
// configured location; the default is the machine's local zone.
type Log struct {
	client   *remote.Client
	catalog  *catalog.Cache
	ledger   *pantry.Ledger
	location *time.Location

	mutex        sync.RWMutex
	allEntries   []types.Action
	selectedDate time.Time
}

// NewLog creates the log with today selected. A nil location means time.Local.
func NewLog(client *remote.Client, cache *catalog.Cache, ledger *pantry.Ledger, location *time.Location) *Log {
	if location == nil {
		location = time.Local
	}
	return &Log{
		client:       client,
		catalog:      cache,
		ledger:       ledger,
		location:     location,
		selectedDate: midnight(time.Now(), location),
	}
}

// Load fetches the full EAT history from the backend.
func (l *Log) Load(ctx context.Context) error {
	entries, err := l.client.ListEatActions(ctx)
	if err != nil {
		return err
	}

	l.mutex.Lock()
	l.allEntries = entries
	l.mutex.Unlock()
	return nil
}

// SelectedDate returns the currently selected calendar day.
func (l *Log) SelectedDate() time.Time {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.selectedDate
}

// ChangeDate shifts the selected day by offsetDays. Forward navigation is
// clamped at today; the log never shows a future day.
func (l *Log) ChangeDate(offsetDays int) time.Time {
	today := midnight(time.Now(), l.location)

	l.mutex.Lock()
	selected := l.selectedDate.AddDate(0, 0, offsetDays)
	if selected.After(today) {
		selected = today
	}
	l.selectedDate = selected
	l.mutex.Unlock()

	messaging.BroadcastMessage(messaging.ConsumedFoodUpdated)
	return selected
}

// ClampToToday pulls the selected date back when a day change left it in the
// future (midnight rollover while the app is open).
func (l *Log) ClampToToday() {
	today := midnight(time.Now(), l.location)

	l.mutex.Lock()
	changed := l.selectedDate.After(today)
	if changed {
		l.selectedDate = today
	}
	l.mutex.Unlock()

	if changed {
		messaging.BroadcastMessage(messaging.ConsumedFoodUpdated)
	}
}

// EntriesForDate returns the entries whose timestamp falls on the same
// calendar day as date, resolved against the catalog. Entries whose item is
// missing from the catalog are dropped and logged; the two fetches are
// independent and may disagree briefly.
func (l *Log) EntriesForDate(date time.Time) []types.LogEntry {
	l.mutex.RLock()
	actions := make([]types.Action, len(l.allEntries))
	copy(actions, l.allEntries)
	l.mutex.RUnlock()

	var entries []types.LogEntry
	for _, action := range actions {
		if !sameDay(action.Timestamp, date, l.location) {
			continue
		}

		item, ok := l.catalog.ItemByID(action.Item)
		if !ok {
			log.Printf("Dropping log entry %d: item %d not in catalog", action.ActionID, action.Item)
			continue
		}

		macros, err := engine.ComputeItemMacros(item, action.Quantity)
		if err != nil {
			log.Printf("Log entry %d has no macros: %v", action.ActionID, err)
		}

		entries = append(entries, types.LogEntry{
			ActionID:  action.ActionID,
			Item:      item,
			Quantity:  action.Quantity,
			Timestamp: action.Timestamp,
			Macros:    macros,
		})
	}
	return entries
}

// TotalsForDate aggregates the macro totals for one calendar day.
func (l *Log) TotalsForDate(date time.Time) types.Macros {
	l.mutex.RLock()
	var entries []engine.ConsumptionEntry
	for _, action := range l.allEntries {
		if sameDay(action.Timestamp, date, l.location) {
			entries = append(entries, engine.ConsumptionEntry{ItemID: action.Item, Quantity: action.Quantity})
		}
	}
	l.mutex.RUnlock()

	return engine.AggregateDailyTotals(entries, l.catalog)
}

// AddEntry records one eaten food. The quantity must be a positive whole
// number of grams and must be available in the pantry; violations are
// rejected locally with no network call. Only after the backend confirms the
// EAT action is the entry appended and the pantry debited.
func (l *Log) AddEntry(ctx context.Context, itemID int64, quantity float64, date time.Time) (*types.LogEntry, error) {
	if quantity <= 0 || math.Trunc(quantity) != quantity {
		return nil, ErrInvalidQuantity
	}

	item, ok := l.catalog.ItemByID(itemID)
	if !ok {
		return nil, fmt.Errorf("no item found with id %d", itemID)
	}

	if l.ledger.Quantity(itemID) < quantity {
		return nil, fmt.Errorf("%w of %s", pantry.ErrInsufficient, item.Name)
	}

	now := time.Now()
	timestamp := now
	if !date.IsZero() && !sameDay(date, now, l.location) {
		// Back-dated entry: pin it to noon of the selected day.
		y, m, d := date.In(l.location).Date()
		timestamp = time.Date(y, m, d, 12, 0, 0, 0, l.location)
	}

	created, err := l.client.CreateAction(ctx, types.Action{
		ActionType: types.ActionEat,
		Item:       itemID,
		Quantity:   quantity,
		Timestamp:  timestamp,
	})
	if err != nil {
		return nil, err
	}
	if created.Timestamp.IsZero() {
		created.Timestamp = timestamp
	}

	l.mutex.Lock()
	l.allEntries = append(l.allEntries, *created)
	l.mutex.Unlock()

	l.ledger.Debit(itemID, quantity)
	messaging.BroadcastMessage(messaging.ConsumedFoodUpdated)

	macros, err := engine.ComputeItemMacros(item, quantity)
	if err != nil {
		log.Printf("New log entry %d has no macros: %v", created.ActionID, err)
	}

	return &types.LogEntry{
		ActionID:  created.ActionID,
		Item:      item,
		Quantity:  created.Quantity,
		Timestamp: created.Timestamp,
		Macros:    macros,
	}, nil
}

// RemoveEntry deletes a recorded entry. Only after the backend confirms is
// the entry removed locally and its quantity credited back to the pantry.
func (l *Log) RemoveEntry(ctx context.Context, actionID int64) error {
	l.mutex.RLock()
	index := -1
	var entry types.Action
	for i, action := range l.allEntries {
		if action.ActionID == actionID {
			index = i
			entry = action
			break
		}
	}
	l.mutex.RUnlock()

	if index == -1 {
		return fmt.Errorf("no log entry found with id %d", actionID)
	}

	if err := l.client.DeleteAction(ctx, actionID); err != nil {
		return err
	}

	l.mutex.Lock()
	// Re-find the index: the slice may have shifted while the delete was in
	// flight.
	for i, action := range l.allEntries {
		if action.ActionID == actionID {
			l.allEntries = append(l.allEntries[:i], l.allEntries[i+1:]...)
			break
		}
	}
	l.mutex.Unlock()

	l.ledger.Credit(entry.Item, entry.Quantity)
	messaging.BroadcastMessage(messaging.ConsumedFoodUpdated)
	return nil
}

func midnight(t time.Time, location *time.Location) time.Time {
	y, m, d := t.In(location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, location)
}

func sameDay(a, b time.Time, location *time.Location) bool {
	ay, am, ad := a.In(location).Date()
	by, bm, bd := b.In(location).Date()
	return ay == by && am == bm && ad == bd
}
