// Package grocery merges the locally kept grocery list with the recipe groups
// synchronized to the server.
package grocery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cookify/internal/api"
	"cookify/internal/apperr"
	"cookify/internal/models"
	"cookify/internal/presenter"
	"cookify/internal/storage"
)

// Backend is the part of the API client used for the grocery list.
type Backend interface {
	GetGroceryList(ctx context.Context, token string) ([]models.GroceryGroup, error)
	AddGroceryItems(ctx context.Context, token string, req api.AddGroceryItemsRequest) error
}

// Session supplies the token and handles expired sessions.
type Session interface {
	Token(ctx context.Context) (string, error)
	HandleUnauthorized(ctx context.Context)
}

// Coordinator owns both halves of the grocery list. Local items live in the store;
// synced groups are whatever the last Refresh returned.
type Coordinator struct {
	mu     sync.Mutex
	synced []models.GroceryGroup

	backend  Backend
	session  Session
	store    *storage.Store
	notifier presenter.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(backend Backend, session Session, store *storage.Store, notifier presenter.Notifier, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		backend:  backend,
		session:  session,
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// AddToList adds a recipe's ingredients. With a recipe id and a session the batch is
// posted to the server and the synced groups are re-fetched; otherwise the items are
// appended to the local list, skipping names already present (case-insensitive).
// It reports whether the server path was taken.
func (c *Coordinator) AddToList(ctx context.Context, have, need []string, recipeName, recipeID string) (bool, error) {
	have, need = cleanNames(have), cleanNames(need)
	if len(have)+len(need) == 0 {
		return false, apperr.Validation("add to grocery list", "no items to add")
	}

	token, err := c.session.Token(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read token: %w", err)
	}

	if recipeID = strings.TrimSpace(recipeID); recipeID != "" && token != "" {
		return true, c.addSynced(ctx, token, have, need, recipeName, recipeID)
	}
	return false, c.addLocal(ctx, have, need, recipeName, recipeID)
}

func (c *Coordinator) addSynced(ctx context.Context, token string, have, need []string, recipeName, recipeID string) error {
	req := api.AddGroceryItemsRequest{RecipeID: recipeID, RecipeName: recipeName}
	for _, n := range have {
		req.Items = append(req.Items, api.GroceryItemPayload{Name: n, Status: models.StateHave})
	}
	for _, n := range need {
		req.Items = append(req.Items, api.GroceryItemPayload{Name: n, Status: models.StateNeed})
	}

	if err := c.backend.AddGroceryItems(ctx, token, req); err != nil {
		return c.fail(ctx, "add grocery items", "Could not update grocery list", err)
	}
	if _, err := c.Refresh(ctx); err != nil {
		c.logger.Warn("Grocery refresh after add failed", zap.Error(err))
	}

	c.notifier.Notify(presenter.Info("Added to grocery list", fmt.Sprintf("%d items from %s", len(req.Items), recipeName)))
	return nil
}

func (c *Coordinator) addLocal(ctx context.Context, have, need []string, recipeName, recipeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.store.GroceryList(ctx)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		seen[strings.ToLower(it.Name)] = true
	}

	added := 0
	appendAll := func(names []string, state models.GroceryState) {
		for _, n := range names {
			key := strings.ToLower(n)
			if seen[key] {
				continue
			}
			seen[key] = true
			items = append(items, c.newItem(n, state, recipeName, recipeID))
			added++
		}
	}
	appendAll(have, models.StateHave)
	appendAll(need, models.StateNeed)

	if err := c.store.SetGroceryList(ctx, items); err != nil {
		return err
	}

	if added == 0 {
		c.notifier.Notify(presenter.Info("Already on your list", "Every item is already on your grocery list."))
		return nil
	}
	c.notifier.Notify(presenter.Info("Added to grocery list", fmt.Sprintf("%d items added on this device", added)))
	return nil
}

// AddManual appends a hand-typed item to the local list. It reports false when an
// item with the same name already exists.
func (c *Coordinator) AddManual(ctx context.Context, name string) (models.GroceryItem, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.GroceryItem{}, false, apperr.Validation("add grocery item", "item name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.store.GroceryList(ctx)
	if err != nil {
		return models.GroceryItem{}, false, err
	}
	for _, it := range items {
		if strings.EqualFold(it.Name, name) {
			return it, false, nil
		}
	}

	item := c.newItem(name, models.StateManual, "", "")
	if err := c.store.SetGroceryList(ctx, append(items, item)); err != nil {
		return models.GroceryItem{}, false, err
	}
	return item, true, nil
}

// Toggle flips the checked flag of a local item.
func (c *Coordinator) Toggle(ctx context.Context, id string) (models.GroceryItem, error) {
	return c.update(ctx, "toggle grocery item", id, func(it *models.GroceryItem) error {
		it.Checked = !it.Checked
		return nil
	})
}

// SetState moves a local item between have, need and manual.
func (c *Coordinator) SetState(ctx context.Context, id string, state models.GroceryState) (models.GroceryItem, error) {
	return c.update(ctx, "set grocery state", id, func(it *models.GroceryItem) error {
		if !state.Valid() {
			return apperr.Validation("set grocery state", fmt.Sprintf("unknown state %q", state))
		}
		it.State = state
		return nil
	})
}

func (c *Coordinator) update(ctx context.Context, op, id string, fn func(*models.GroceryItem) error) (models.GroceryItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.store.GroceryList(ctx)
	if err != nil {
		return models.GroceryItem{}, err
	}
	for i := range items {
		if items[i].ID != id {
			continue
		}
		if err := fn(&items[i]); err != nil {
			return models.GroceryItem{}, err
		}
		if err := c.store.SetGroceryList(ctx, items); err != nil {
			return models.GroceryItem{}, err
		}
		return items[i], nil
	}
	return models.GroceryItem{}, apperr.Validation(op, "item not found")
}

// Remove deletes a local item and reports whether it existed.
func (c *Coordinator) Remove(ctx context.Context, id string) (bool, error) {
	removed, err := c.filter(ctx, func(it models.GroceryItem) bool { return it.ID == id })
	return removed > 0, err
}

// ClearChecked deletes every checked local item and returns how many went.
func (c *Coordinator) ClearChecked(ctx context.Context) (int, error) {
	return c.filter(ctx, func(it models.GroceryItem) bool { return it.Checked })
}

func (c *Coordinator) filter(ctx context.Context, drop func(models.GroceryItem) bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.store.GroceryList(ctx)
	if err != nil {
		return 0, err
	}
	kept := make([]models.GroceryItem, 0, len(items))
	for _, it := range items {
		if !drop(it) {
			kept = append(kept, it)
		}
	}
	removed := len(items) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, c.store.SetGroceryList(ctx, kept)
}

// Refresh re-fetches the synced groups. Signed out, there is nothing to fetch and the
// groups from an earlier session are dropped. A 401 drops them too; other failures
// keep the last groups for Synced.
func (c *Coordinator) Refresh(ctx context.Context) ([]models.GroceryGroup, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		c.setSynced(nil)
		return nil, nil
	}

	groups, err := c.backend.GetGroceryList(ctx, token)
	if err != nil {
		if apperr.IsUnauthorized(err) {
			c.setSynced(nil)
		}
		return nil, c.fail(ctx, "get grocery list", "Could not load grocery list", err)
	}

	c.setSynced(groups)
	return groups, nil
}

// Local returns the device-local items.
func (c *Coordinator) Local(ctx context.Context) ([]models.GroceryItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.GroceryList(ctx)
}

// Synced returns the groups from the last successful Refresh.
func (c *Coordinator) Synced() []models.GroceryGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.GroceryGroup(nil), c.synced...)
}

func (c *Coordinator) setSynced(groups []models.GroceryGroup) {
	c.mu.Lock()
	c.synced = groups
	c.mu.Unlock()
}

func (c *Coordinator) newItem(name string, state models.GroceryState, recipeName, recipeID string) models.GroceryItem {
	return models.GroceryItem{
		ID:         uuid.NewString(),
		Name:       name,
		State:      state,
		RecipeID:   recipeID,
		RecipeName: recipeName,
		AddedAt:    c.now().UTC(),
	}
}

func (c *Coordinator) fail(ctx context.Context, op, title string, err error) error {
	c.logger.Warn("Operation failed", zap.String("op", op), zap.Error(err))
	if apperr.IsUnauthorized(err) {
		c.session.HandleUnauthorized(ctx)
		return err
	}
	c.notifier.Notify(presenter.Failure(title, apperr.UserMessage(err)))
	return err
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
