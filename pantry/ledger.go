// Package pantry tracks the available quantity per ingredient. The ledger is
// the sole owner of availability counts; it mutates only after the backend
// confirmed the corresponding action.
package pantry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"mealtrack/client/catalog"
	"mealtrack/client/messaging"
	"mealtrack/client/remote"
	"mealtrack/client/types"
)

var (
	// ErrInvalidQuantity rejects non-positive quantities before any network call.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrInsufficient rejects operations that would drive a ledger entry negative.
	ErrInsufficient = errors.New("insufficient quantity")
)

// Ledger is the client-local mirror of per-ingredient available grams.
type Ledger struct {
	client  *remote.Client
	catalog *catalog.Cache

	mutex     sync.RWMutex
	available map[int64]float64
}

// NewLedger creates an empty ledger over the remote client and catalog.
func NewLedger(client *remote.Client, cache *catalog.Cache) *Ledger {
	return &Ledger{
		client:    client,
		catalog:   cache,
		available: map[int64]float64{},
	}
}

// Load replaces the ledger with the backend snapshot.
func (l *Ledger) Load(ctx context.Context) error {
	available, err := l.client.AvailableIngredients(ctx)
	if err != nil {
		return err
	}

	l.mutex.Lock()
	l.available = available
	l.mutex.Unlock()
	return nil
}

// Quantity returns the available grams for itemID, zero when absent.
func (l *Ledger) Quantity(itemID int64) float64 {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.available[itemID]
}

// Snapshot returns a copy of the full ledger.
func (l *Ledger) Snapshot() map[int64]float64 {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	snapshot := make(map[int64]float64, len(l.available))
	for itemID, quantity := range l.available {
		snapshot[itemID] = quantity
	}
	return snapshot
}

// Add records an ADD action and, after the backend confirms, increments the
// ledger entry, creating it at zero first when absent.
func (l *Ledger) Add(ctx context.Context, itemID int64, quantity float64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	item, ok := l.catalog.ItemByID(itemID)
	if !ok {
		return fmt.Errorf("no item found with id %d", itemID)
	}

	_, err := l.client.CreateAction(ctx, types.Action{
		ActionType: types.ActionAdd,
		Item:       itemID,
		Ingredient: itemID,
		Quantity:   quantity,
	})
	if err != nil {
		return fmt.Errorf("error adding %q to pantry: %w", item.Name, err)
	}

	l.Credit(itemID, quantity)
	return nil
}

// Dispose records a DISPOSE action and decrements the ledger entry. Requests
// exceeding the available amount are rejected locally, before any network
// call.
func (l *Ledger) Dispose(ctx context.Context, itemID int64, quantity float64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	item, ok := l.catalog.ItemByID(itemID)
	if !ok {
		return fmt.Errorf("no item found with id %d", itemID)
	}
	if l.Quantity(itemID) < quantity {
		return fmt.Errorf("%w of %s", ErrInsufficient, item.Name)
	}

	_, err := l.client.CreateAction(ctx, types.Action{
		ActionType: types.ActionDispose,
		Item:       itemID,
		Ingredient: itemID,
		Quantity:   quantity,
	})
	if err != nil {
		return fmt.Errorf("error disposing %q from pantry: %w", item.Name, err)
	}

	l.Debit(itemID, quantity)
	return nil
}

// CookMeal consumes the meal's ingredients per its recipe set, scaled by the
// user-adjusted quantities (falling back to the recipe quantity per
// ingredient). The whole commit is atomic from the ledger's point of view:
// every ingredient is validated before the first network call, a mid-sequence
// failure compensates the COOK actions already recorded with matching ADD
// actions, and the ledger is decremented in one batch only after full
// success.
func (l *Ledger) CookMeal(ctx context.Context, mealID int64, adjusted map[int64]float64) error {
	meal, ok := l.catalog.ItemByID(mealID)
	if !ok {
		return fmt.Errorf("no item found with id %d", mealID)
	}
	if !meal.IsMeal {
		return fmt.Errorf("item %q is not a meal", meal.Name)
	}

	recipes := l.catalog.RecipesForMeal(mealID)
	if len(recipes) == 0 {
		return fmt.Errorf("meal %q has no recipe", meal.Name)
	}

	// Resolve and validate everything up front so an insufficiency aborts
	// before anything is sent.
	quantities := make(map[int64]float64, len(recipes))
	for _, recipe := range recipes {
		ingredient, ok := l.catalog.ItemByID(recipe.Ingredient)
		if !ok {
			return fmt.Errorf("no item found with id %d", recipe.Ingredient)
		}

		quantity := recipe.Quantity
		if adjustedQuantity, ok := adjusted[recipe.Ingredient]; ok {
			quantity = adjustedQuantity
		}
		if quantity <= 0 {
			return fmt.Errorf("%w for %s", ErrInvalidQuantity, ingredient.Name)
		}
		if l.Quantity(recipe.Ingredient) < quantity {
			return fmt.Errorf("%w of %s", ErrInsufficient, ingredient.Name)
		}
		quantities[recipe.Ingredient] = quantity
	}

	commitID := uuid.New().String()
	var recorded []types.Action

	for _, recipe := range recipes {
		action, err := l.client.CreateAction(ctx, types.Action{
			ActionType: types.ActionCook,
			Item:       mealID,
			Ingredient: recipe.Ingredient,
			Quantity:   quantities[recipe.Ingredient],
		})
		if err != nil {
			log.Printf("Cook commit %s failed at ingredient %d, compensating %d recorded actions", commitID, recipe.Ingredient, len(recorded))
			l.compensate(ctx, commitID, recorded)
			return fmt.Errorf("error cooking %q: %w", meal.Name, err)
		}
		recorded = append(recorded, *action)
	}

	l.mutex.Lock()
	for ingredientID, quantity := range quantities {
		l.available[ingredientID] -= quantity
	}
	l.mutex.Unlock()

	messaging.BroadcastMessage(messaging.PantryUpdated)
	return nil
}

// compensate rolls back already-recorded COOK actions with matching ADD
// actions. Best effort: a failed compensation is logged and the backend is
// left to reconcile.
func (l *Ledger) compensate(ctx context.Context, commitID string, recorded []types.Action) {
	for _, action := range recorded {
		_, err := l.client.CreateAction(ctx, types.Action{
			ActionType: types.ActionAdd,
			Item:       action.Ingredient,
			Ingredient: action.Ingredient,
			Quantity:   action.Quantity,
		})
		if err != nil {
			log.Printf("Cook commit %s: compensation for ingredient %d (%vg) failed: %v", commitID, action.Ingredient, action.Quantity, err)
		}
	}
}

// Recommendations fetches suggested meals. A backend 204 yields the explicit
// none-available signal rather than an error.
func (l *Ledger) Recommendations(ctx context.Context) (*types.RecommendationsResponse, error) {
	meals, noneAvailable, err := l.client.MealRecommendations(ctx)
	if err != nil {
		return nil, err
	}
	return &types.RecommendationsResponse{Meals: meals, NoneAvailable: noneAvailable}, nil
}

// Credit adds confirmed grams back to an entry, creating it at zero first.
// Used after a confirmed ADD or a removed EAT entry.
func (l *Ledger) Credit(itemID int64, quantity float64) {
	l.mutex.Lock()
	l.available[itemID] += quantity
	l.mutex.Unlock()
	messaging.BroadcastMessage(messaging.PantryUpdated)
}

// Debit removes confirmed grams from an entry. Callers validate availability
// first; the ledger clamps at zero to preserve its non-negativity invariant
// against races with snapshot reloads.
func (l *Ledger) Debit(itemID int64, quantity float64) {
	l.mutex.Lock()
	l.available[itemID] -= quantity
	if l.available[itemID] < 0 {
		log.Printf("Ledger entry for item %d went negative after debit, clamping to 0", itemID)
		l.available[itemID] = 0
	}
	l.mutex.Unlock()
	messaging.BroadcastMessage(messaging.PantryUpdated)
}
