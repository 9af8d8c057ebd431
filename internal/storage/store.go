// Package storage persists client state: the bearer token, saved recipes, the local
// grocery list, the feedback counter and the last search results.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"cookify/internal/models"
)

const (
	KeyToken           = "token"
	KeySavedRecipes    = "savedRecipes"
	KeyGroceryList     = "groceryList"
	KeyFeedbackCounter = "feedbackCounter"
	KeyLastResults     = "lastResults"
)

// Store exposes typed entries over a KV backend. Values are stored as plain JSON.
type Store struct {
	mu     sync.Mutex
	kv     KV
	logger *zap.Logger
}

// NewStore creates a Store on kv.
func NewStore(kv KV, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Close releases the backend when it holds a connection.
func (s *Store) Close() error {
	if c, ok := s.kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Token returns the stored bearer token. Empty, whitespace, "undefined" and "null"
// count as no token.
func (s *Store) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok, err := s.kv.Get(ctx, KeyToken)
	if err != nil || !ok {
		return "", err
	}
	return CleanToken(v), nil
}

// CleanToken trims v and maps the placeholders "undefined" and "null" to "".
func CleanToken(v string) string {
	v = strings.TrimSpace(v)
	switch v {
	case "undefined", "null":
		return ""
	}
	return v
}

// SetToken stores token. A placeholder value clears it instead.
func (s *Store) SetToken(ctx context.Context, token string) error {
	token = CleanToken(token)
	if token == "" {
		return s.ClearToken(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Set(ctx, KeyToken, token)
}

// ClearToken removes the token.
func (s *Store) ClearToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(ctx, KeyToken)
}

// SavedRecipes returns the saved-recipes cache.
func (s *Store) SavedRecipes(ctx context.Context) ([]models.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipes, err := readJSON[[]models.Recipe](ctx, s, KeySavedRecipes)
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

// SaveRecipe appends r unless a recipe with the same key is already cached.
// It reports whether r was added.
func (s *Store) SaveRecipe(ctx context.Context, r models.Recipe) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipes, err := readJSON[[]models.Recipe](ctx, s, KeySavedRecipes)
	if err != nil {
		return false, err
	}
	key := r.Key()
	for _, existing := range recipes {
		if existing.Key() == key {
			return false, nil
		}
	}
	recipes = append(recipes, r)
	return true, s.writeJSON(ctx, KeySavedRecipes, recipes)
}

// RemoveSavedRecipe drops the recipe with key and reports whether it was present.
func (s *Store) RemoveSavedRecipe(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipes, err := readJSON[[]models.Recipe](ctx, s, KeySavedRecipes)
	if err != nil {
		return false, err
	}
	kept := recipes[:0]
	for _, r := range recipes {
		if r.Key() != key {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(recipes) {
		return false, nil
	}
	return true, s.writeJSON(ctx, KeySavedRecipes, kept)
}

// GroceryList returns the locally persisted grocery items.
func (s *Store) GroceryList(ctx context.Context) ([]models.GroceryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := readJSON[[]models.GroceryItem](ctx, s, KeyGroceryList)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// SetGroceryList replaces the local grocery list.
func (s *Store) SetGroceryList(ctx context.Context, items []models.GroceryItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if items == nil {
		items = []models.GroceryItem{}
	}
	return s.writeJSON(ctx, KeyGroceryList, items)
}

// FeedbackCounter returns the number of recipe views since the feedback prompt was last shown.
func (s *Store) FeedbackCounter(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok, err := s.kv.Get(ctx, KeyFeedbackCounter)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		s.logger.Warn("Ignoring unreadable feedback counter", zap.String("value", v))
		return 0, nil
	}
	return n, nil
}

// SetFeedbackCounter stores n.
func (s *Store) SetFeedbackCounter(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Set(ctx, KeyFeedbackCounter, strconv.Itoa(n))
}

// LastResults returns the most recent search results.
func (s *Store) LastResults(ctx context.Context) ([]models.Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recipes, err := readJSON[[]models.Recipe](ctx, s, KeyLastResults)
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

// SetLastResults replaces the stored search results.
func (s *Store) SetLastResults(ctx context.Context, recipes []models.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if recipes == nil {
		recipes = []models.Recipe{}
	}
	return s.writeJSON(ctx, KeyLastResults, recipes)
}

// readJSON decodes key into a fresh T. A missing or corrupt entry yields the zero
// value, never a partially decoded one.
func readJSON[T any](ctx context.Context, s *Store, key string) (T, error) {
	var zero T
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	if !ok || strings.TrimSpace(v) == "" {
		return zero, nil
	}
	var decoded T
	if err := json.Unmarshal([]byte(v), &decoded); err != nil {
		s.logger.Warn("Ignoring unreadable stored value", zap.String("key", key), zap.Error(err))
		return zero, nil
	}
	return decoded, nil
}

func (s *Store) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.kv.Set(ctx, key, string(data))
}
