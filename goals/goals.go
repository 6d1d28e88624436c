// Package goals mirrors the per-user daily nutrient targets.
package goals

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"mealtrack/client/messaging"
	"mealtrack/client/remote"
	"mealtrack/client/types"
)

// ErrInvalidTarget rejects goal updates with non-positive targets.
var ErrInvalidTarget = errors.New("goal targets must be positive")

// Tracker holds the goal mirror. Until the backend has a settings record the
// defaults (2000 kcal / 150g protein / 250g carbs / 45g fats) apply.
type Tracker struct {
	client *remote.Client

	mutex sync.RWMutex
	goal  types.Goal
}

// NewTracker creates a tracker preloaded with the defaults.
func NewTracker(client *remote.Client) *Tracker {
	return &Tracker{
		client: client,
		goal:   types.DefaultGoal(),
	}
}

// Load fetches the user's goal record. A missing record keeps the defaults
// and is not an error.
func (t *Tracker) Load(ctx context.Context) error {
	goal, err := t.client.GetUserSettings(ctx)
	if errors.Is(err, remote.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error loading goals: %w", err)
	}

	t.mutex.Lock()
	t.goal = *goal
	t.mutex.Unlock()
	return nil
}

// Current returns the active goal.
func (t *Tracker) Current() types.Goal {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	return t.goal
}

// Update writes the goal to the backend and mirrors the server's copy. All
// targets must be positive.
func (t *Tracker) Update(ctx context.Context, goal types.Goal) (types.Goal, error) {
	for name, value := range map[string]float64{
		"calories": goal.GoalCalories,
		"protein":  goal.GoalProtein,
		"carbs":    goal.GoalCarbs,
		"fats":     goal.GoalFats,
	} {
		if value <= 0 {
			return t.Current(), fmt.Errorf("%w: %s", ErrInvalidTarget, name)
		}
	}

	saved, err := t.client.SaveUserSettings(ctx, goal)
	if err != nil {
		return t.Current(), err
	}

	t.mutex.Lock()
	t.goal = *saved
	t.mutex.Unlock()

	messaging.BroadcastMessage(messaging.GoalsUpdated)
	return *saved, nil
}
