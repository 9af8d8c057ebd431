package app

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cookify/internal/api/apitest"
	"cookify/internal/config"
	"cookify/internal/models"
	"cookify/internal/recipe"
	"cookify/internal/session"
)

var soup = models.Recipe{
	ID:           "r-1",
	Name:         "Tomato Soup",
	Description:  "<p>A <b>warm</b> bowl.</p>",
	Ingredients:  models.Ingredients{Provided: []string{"tomato"}, Additional: []string{"basil"}},
	Instructions: []string{"Chop the tomatoes", "Simmer for 20 minutes"},
	CookingTime:  "30 mins",
	Difficulty:   "Easy",
}

func testConfig(t *testing.T, srv *apitest.Server) *config.Config {
	t.Helper()
	return &config.Config{
		APIURL:         srv.URL,
		RequestTimeout: 5 * time.Second,
		Store:          config.StoreConfig{Backend: config.BackendSQLite, Path: filepath.Join(t.TempDir(), "cookify.db")},
		Feedback:       config.FeedbackConfig{Threshold: 2},
		Chat:           config.ChatConfig{Fallback: config.FallbackNone},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) (*App, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	a, err := New(context.Background(), cfg, zap.NewNop(), out, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, out
}

func signIn(t *testing.T, a *App) {
	t.Helper()
	require.NoError(t, a.Login(context.Background(), session.SignInForm{Email: "ada@example.com", Password: "secret123"}))
}

func TestRecipeFlow(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("ada@example.com", "secret123", &models.UserProfile{LifestyleChoice: "Vegan", Plan: models.PlanFree})
	srv.SetRecipes([]models.Recipe{soup})

	a, out := newTestApp(t, testConfig(t, srv))
	signIn(t, a)
	assert.Contains(t, out.String(), "Signed in successfully!")

	out.Reset()
	require.NoError(t, a.Search(ctx, recipe.Filters{Ingredients: []string{"tomato"}}))
	assert.Contains(t, out.String(), "1.")
	assert.Contains(t, out.String(), "Tomato Soup")
	assert.Equal(t, "tomato", srv.LastQuery().Get("ingredients"))

	out.Reset()
	require.NoError(t, a.Show(ctx, "1"))
	assert.Contains(t, out.String(), "A warm bowl.")
	assert.Contains(t, out.String(), "2. Simmer for 20 minutes")
	assert.NotContains(t, out.String(), "Enjoying Cookify?")

	out.Reset()
	require.NoError(t, a.Show(ctx, "r-1"))
	assert.Contains(t, out.String(), "Enjoying Cookify?")

	require.NoError(t, a.Save(ctx, "1"))
	assert.Equal(t, 1, srv.Hits("/recipes/save"))

	out.Reset()
	require.NoError(t, a.Saved(ctx))
	assert.Contains(t, out.String(), "Tomato Soup")

	require.NoError(t, a.GroceryAddRecipe(ctx, "1"))
	groups := srv.GroceryGroups("ada@example.com")
	require.Len(t, groups, 1)
	assert.Equal(t, "r-1", groups[0].RecipeID)

	out.Reset()
	require.NoError(t, a.GroceryList(ctx))
	assert.Contains(t, out.String(), "Tomato Soup (synced)")

	require.NoError(t, a.Unsave(ctx, "1"))
	saved, err := a.Recipes.Saved(ctx)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestLocalGroceryList(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer()
	defer srv.Close()

	a, out := newTestApp(t, testConfig(t, srv))

	require.NoError(t, a.GroceryAdd(ctx, "Milk"))
	require.NoError(t, a.GroceryAdd(ctx, "milk"))
	assert.Contains(t, out.String(), "already on your list")
	require.NoError(t, a.GroceryAdd(ctx, "Eggs"))

	out.Reset()
	require.NoError(t, a.GroceryToggle(ctx, "1"))
	assert.Contains(t, out.String(), "[x] Milk")

	require.NoError(t, a.GrocerySetState(ctx, "2", models.StateHave))

	out.Reset()
	require.NoError(t, a.GroceryClear(ctx))
	assert.Contains(t, out.String(), "Cleared 1 checked items.")

	items, err := a.Grocery.Local(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Eggs", items[0].Name)
	assert.Equal(t, models.StateHave, items[0].State)

	assert.Error(t, a.GroceryRemove(ctx, "5"))
	require.NoError(t, a.GroceryRemove(ctx, "1"))
	assert.Zero(t, srv.TotalHits())
}

func TestChat(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("ada@example.com", "secret123", nil)
	srv.SetRecipes([]models.Recipe{soup})

	a, out := newTestApp(t, testConfig(t, srv))
	signIn(t, a)

	t.Run("Messages", func(t *testing.T) {
		out.Reset()
		require.NoError(t, a.Chat(ctx, "r-1", []string{"Can I use butter?"}, nil))
		assert.Contains(t, out.String(), "chef> Hello! I'm your AI Chef.")
		assert.Contains(t, out.String(), "chef> Use olive oil instead of butter.")
		assert.Equal(t, "Can I use butter?", srv.LastChat()["message"])
	})

	t.Run("Interactive", func(t *testing.T) {
		out.Reset()
		srv.SetChatReply("Simmer longer.")
		in := strings.NewReader("\nIs it thick enough?\n/quit\nnever sent\n")
		require.NoError(t, a.Chat(ctx, "r-1", nil, in))
		assert.Equal(t, 1, strings.Count(out.String(), "chef> Simmer longer."))
		assert.Equal(t, "Is it thick enough?", srv.LastChat()["message"])
	})
}

func TestSessionSurvivesRestart(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("ada@example.com", "secret123", &models.UserProfile{LifestyleChoice: "Keto"})
	cfg := testConfig(t, srv)

	first, _ := newTestApp(t, cfg)
	signIn(t, first)
	require.NoError(t, first.Close())

	second, out := newTestApp(t, cfg)
	assert.True(t, second.Session.IsAuthenticated())

	require.NoError(t, second.WhoAmI(context.Background()))
	assert.Contains(t, out.String(), "ada@example.com")
	assert.Contains(t, out.String(), "Lifestyle: Keto")
}

func TestReviewsAndStats(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("ada@example.com", "secret123", nil)

	a, out := newTestApp(t, testConfig(t, srv))
	signIn(t, a)

	require.Error(t, a.Review(ctx, 0, "", ""))
	require.NoError(t, a.Review(ctx, 5, "Lovely", ""))
	require.Len(t, srv.Reviews(), 1)

	out.Reset()
	require.NoError(t, a.Reviews(ctx))
	assert.Contains(t, out.String(), "★★★★★")
	assert.Contains(t, out.String(), "Lovely")

	out.Reset()
	require.NoError(t, a.Stats(7))
	assert.Contains(t, out.String(), "/users/login")
	assert.Contains(t, out.String(), "/reviews")
	assert.Contains(t, out.String(), "Local data:")

	out.Reset()
	require.NoError(t, a.MetricsCleanup(30))
	assert.Contains(t, out.String(), "removed 0 old metric records")
}
