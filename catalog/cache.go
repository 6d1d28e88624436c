// Package catalog mirrors the backend's item and recipe tables for the
// session. The cache is read-only between loads; creating a food or meal
// writes through to the backend first and only then lands in the cache.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"mealtrack/client/engine"
	"mealtrack/client/messaging"
	"mealtrack/client/remote"
	"mealtrack/client/types"
)

// Cache holds the catalog snapshot for the current session.
type Cache struct {
	client *remote.Client

	mutex   sync.RWMutex
	items   map[int64]types.Item
	recipes []types.Recipe
}

// NewCache creates an empty cache over the remote client.
func NewCache(client *remote.Client) *Cache {
	return &Cache{
		client: client,
		items:  map[int64]types.Item{},
	}
}

// Load fetches items and recipes concurrently and swaps both in under one
// lock, so readers never observe items from one fetch paired with recipes
// from another.
func (c *Cache) Load(ctx context.Context) error {
	var (
		items   []types.Item
		recipes []types.Recipe
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		items, err = c.client.ListItems(ctx)
		return err
	})
	group.Go(func() error {
		var err error
		recipes, err = c.client.ListRecipes(ctx)
		return err
	})
	if err := group.Wait(); err != nil {
		return fmt.Errorf("error loading catalog: %w", err)
	}

	byID := make(map[int64]types.Item, len(items))
	for _, item := range items {
		byID[item.ItemID] = item
	}

	c.mutex.Lock()
	c.items = byID
	c.recipes = recipes
	c.mutex.Unlock()

	return nil
}

// ItemByID looks up one item. Satisfies engine.ItemResolver.
func (c *Cache) ItemByID(itemID int64) (types.Item, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	item, ok := c.items[itemID]
	return item, ok
}

// Items returns all catalog items ordered by ID.
func (c *Cache) Items() []types.Item {
	c.mutex.RLock()
	items := make([]types.Item, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, item)
	}
	c.mutex.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })
	return items
}

// RecipesForMeal returns the recipe links composing one meal.
func (c *Cache) RecipesForMeal(mealID int64) []types.Recipe {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var links []types.Recipe
	for _, recipe := range c.recipes {
		if recipe.Meal == mealID {
			links = append(links, recipe)
		}
	}
	return links
}

// MealNutrition previews the macros of one serving of a meal from its
// recipe links.
func (c *Cache) MealNutrition(mealID int64) (types.Macros, error) {
	meal, ok := c.ItemByID(mealID)
	if !ok {
		return types.Macros{}, fmt.Errorf("no item found with id %d", mealID)
	}
	if !meal.IsMeal {
		return types.Macros{}, fmt.Errorf("item %q is not a meal", meal.Name)
	}

	return engine.ComputeMealMacros(meal, c.RecipesForMeal(mealID), c), nil
}

// CreateFood creates a plain food item and appends it to the cache.
func (c *Cache) CreateFood(ctx context.Context, req types.CreateFoodRequest) (*types.Item, error) {
	if req.ServingWeight <= 0 {
		return nil, fmt.Errorf("serving weight must be positive")
	}

	created, err := c.client.CreateItem(ctx, types.Item{
		Name:            req.Name,
		IsMeal:          false,
		ServingWeight:   req.ServingWeight,
		Calories:        req.Calories,
		Protein:         req.Protein,
		FatsSaturated:   req.FatsSaturated,
		FatsUnsaturated: req.FatsUnsaturated,
		CarbsSugar:      req.CarbsSugar,
		CarbsFiber:      req.CarbsFiber,
		CarbsStarch:     req.CarbsStarch,
	})
	if err != nil {
		return nil, err
	}

	c.mutex.Lock()
	c.items[created.ItemID] = *created
	c.mutex.Unlock()

	messaging.BroadcastMessage(messaging.CatalogUpdated)
	return created, nil
}

// CreateMeal creates a composite meal: one item whose serving weight is the
// sum of its ingredient quantities, plus one recipe link per ingredient.
// Ingredients must be existing non-meal items; nested meals are not
// supported.
func (c *Cache) CreateMeal(ctx context.Context, req types.CreateMealRequest) (*types.Item, error) {
	if len(req.Ingredients) == 0 {
		return nil, fmt.Errorf("a meal needs at least one ingredient")
	}

	var servingWeight float64
	for _, ing := range req.Ingredients {
		item, ok := c.ItemByID(ing.IngredientID)
		if !ok {
			return nil, fmt.Errorf("no item found with id %d", ing.IngredientID)
		}
		if item.IsMeal {
			return nil, fmt.Errorf("ingredient %q is a meal; nested meals are not supported", item.Name)
		}
		if ing.Quantity <= 0 {
			return nil, fmt.Errorf("quantity for ingredient %q must be positive", item.Name)
		}
		servingWeight += ing.Quantity
	}

	created, err := c.client.CreateItem(ctx, types.Item{
		Name:          req.Name,
		IsMeal:        true,
		ServingWeight: servingWeight,
	})
	if err != nil {
		return nil, err
	}

	links := make([]types.Recipe, 0, len(req.Ingredients))
	for _, ing := range req.Ingredients {
		link := types.Recipe{
			Meal:       created.ItemID,
			Ingredient: ing.IngredientID,
			Quantity:   ing.Quantity,
		}
		if err := c.client.CreateRecipe(ctx, link); err != nil {
			return nil, fmt.Errorf("meal %q created but recipe link for ingredient %d failed: %w", req.Name, ing.IngredientID, err)
		}
		links = append(links, link)
	}

	c.mutex.Lock()
	c.items[created.ItemID] = *created
	c.recipes = append(c.recipes, links...)
	c.mutex.Unlock()

	messaging.BroadcastMessage(messaging.CatalogUpdated)
	return created, nil
}
