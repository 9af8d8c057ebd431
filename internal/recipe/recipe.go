// Package recipe turns search filters into backend queries and keeps the result list
// and the saved-recipes cache.
package recipe

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"cookify/internal/apperr"
	"cookify/internal/models"
	"cookify/internal/presenter"
	"cookify/internal/storage"
)

// Backend is the part of the API client used for recipes.
type Backend interface {
	SearchRecipes(ctx context.Context, token string, query url.Values) ([]models.Recipe, error)
	GetRecipe(ctx context.Context, token, id string) (*models.Recipe, error)
	SaveRecipe(ctx context.Context, token string, r models.Recipe) error
}

// Session is what the coordinator needs to know about the signed-in user.
type Session interface {
	Token(ctx context.Context) (string, error)
	User() *models.User
	HandleUnauthorized(ctx context.Context)
}

// Coordinator owns the current result list.
type Coordinator struct {
	mu      sync.RWMutex
	recipes []models.Recipe

	backend  Backend
	session  Session
	store    *storage.Store
	notifier presenter.Notifier
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCoordinator creates a Coordinator with an empty result list.
func NewCoordinator(backend Backend, session Session, store *storage.Store, notifier presenter.Notifier, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		backend:  backend,
		session:  session,
		store:    store,
		notifier: notifier,
		validate: validator.New(),
		logger:   logger,
	}
}

// Recipes returns the current result list.
func (c *Coordinator) Recipes() []models.Recipe {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Recipe(nil), c.recipes...)
}

// Search queries the backend and replaces the result list. Overlapping searches
// are not sequenced: each successful response replaces the list when it arrives.
func (c *Coordinator) Search(ctx context.Context, f Filters) ([]models.Recipe, error) {
	f = f.clean()
	if err := c.validate.Struct(f); err != nil {
		msg := describe(err)
		c.notifier.Notify(presenter.Failure("Invalid search", msg))
		return nil, apperr.Validation("search recipes", msg)
	}
	if f.ProOnly() && c.session.User().Tier() != models.PlanPro {
		c.notifier.Notify(presenter.Failure("Pro feature", "Health, lifestyle and cuisine filters require the Pro plan."))
		return nil, apperr.Validation("search recipes", "filters require the Pro plan")
	}

	token, err := c.token(ctx, "search recipes")
	if err != nil {
		return nil, err
	}

	found, err := c.backend.SearchRecipes(ctx, token, f.Query())
	if err != nil {
		return nil, c.fail(ctx, "search recipes", "Search failed", err)
	}
	found = normalize(found)

	c.mu.Lock()
	c.recipes = found
	c.mu.Unlock()

	if err := c.store.SetLastResults(ctx, found); err != nil {
		c.logger.Warn("Failed to persist search results", zap.Error(err))
	}
	if len(found) == 0 {
		c.notifier.Notify(presenter.Info("No recipes found", "Try different ingredients or fewer filters."))
	}
	return found, nil
}

// Detail fetches one recipe with its instructions.
func (c *Coordinator) Detail(ctx context.Context, id string) (*models.Recipe, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperr.Validation("get recipe", "recipe id is required")
	}
	token, err := c.token(ctx, "get recipe")
	if err != nil {
		return nil, err
	}
	r, err := c.backend.GetRecipe(ctx, token, id)
	if err != nil {
		return nil, c.fail(ctx, "get recipe", "Could not load recipe", err)
	}
	n := normalizeOne(*r)
	return &n, nil
}

// Save adds r to the saved-recipes cache and, when signed in, to the server
// collection. A recipe already cached is neither duplicated nor re-sent.
func (c *Coordinator) Save(ctx context.Context, r models.Recipe) (bool, error) {
	r = normalizeOne(r)
	added, err := c.store.SaveRecipe(ctx, r)
	if err != nil {
		return false, fmt.Errorf("failed to cache recipe: %w", err)
	}
	if !added {
		c.notifier.Notify(presenter.Info("Already saved", r.Name+" is already in your saved recipes."))
		return false, nil
	}

	token, err := c.session.Token(ctx)
	if err != nil {
		return true, fmt.Errorf("failed to read token: %w", err)
	}
	if token != "" {
		if err := c.backend.SaveRecipe(ctx, token, r); err != nil {
			return true, c.fail(ctx, "save recipe", "Saved on this device only", err)
		}
	}

	c.notifier.Notify(presenter.Info("Recipe saved", r.Name+" was added to your saved recipes."))
	return true, nil
}

// Saved returns the saved-recipes cache.
func (c *Coordinator) Saved(ctx context.Context) ([]models.Recipe, error) {
	return c.store.SavedRecipes(ctx)
}

// Unsave removes the recipe with key from the cache.
func (c *Coordinator) Unsave(ctx context.Context, key string) (bool, error) {
	return c.store.RemoveSavedRecipe(ctx, key)
}

// LastResults returns the persisted results of the latest search, falling back
// to them when this process has not searched yet.
func (c *Coordinator) LastResults(ctx context.Context) ([]models.Recipe, error) {
	if current := c.Recipes(); len(current) > 0 {
		return current, nil
	}
	return c.store.LastResults(ctx)
}

func (c *Coordinator) token(ctx context.Context, op string) (string, error) {
	token, err := c.session.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		c.session.HandleUnauthorized(ctx)
		return "", apperr.New(apperr.CodeMissingToken, op, "Please sign in to continue.")
	}
	return token, nil
}

// fail sends 401s to the session and reports anything else as a notification.
func (c *Coordinator) fail(ctx context.Context, op, title string, err error) error {
	c.logger.Warn("Operation failed", zap.String("op", op), zap.Error(err))
	if apperr.IsUnauthorized(err) {
		c.session.HandleUnauthorized(ctx)
		return err
	}
	c.notifier.Notify(presenter.Failure(title, apperr.UserMessage(err)))
	return err
}
