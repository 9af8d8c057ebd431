package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cookify/internal/apperr"
	"cookify/internal/models"
	"cookify/internal/recipe"
	"cookify/internal/session"
)

// Register creates an account.
func (a *App) Register(ctx context.Context, form session.RegisterForm) error {
	return a.Session.Register(ctx, form)
}

// Login signs in with email and password.
func (a *App) Login(ctx context.Context, form session.SignInForm) error {
	return a.Session.SignIn(ctx, form)
}

// Logout signs out. The local grocery list stays.
func (a *App) Logout(ctx context.Context) error {
	if err := a.Session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

// WhoAmI prints the signed-in user's profile.
func (a *App) WhoAmI(ctx context.Context) error {
	if !a.Session.IsAuthenticated() {
		fmt.Fprintln(a.out, "Not signed in.")
		return nil
	}
	if err := a.Session.RefreshProfile(ctx); err != nil && !apperr.IsUnauthorized(err) {
		a.logger.Debug("Using cached profile")
	}
	user := a.Session.User()
	if user == nil {
		if !a.Session.IsAuthenticated() {
			fmt.Fprintln(a.out, "Session expired. Sign in again.")
			return nil
		}
		fmt.Fprintln(a.out, "Signed in, profile unavailable.")
		return nil
	}
	writeUser(a.out, user)
	return nil
}

// CompleteProfile submits onboarding answers.
func (a *App) CompleteProfile(ctx context.Context, form session.ProfileForm) error {
	return a.Session.CompleteProfile(ctx, form)
}

// Upgrade applies a plan choice.
func (a *App) Upgrade(ctx context.Context, tier models.PlanTier) error {
	return a.Session.UpgradePlan(ctx, tier)
}

// VerifyPayment checks a payment reference.
func (a *App) VerifyPayment(ctx context.Context, reference string) error {
	outcome, err := a.Session.VerifyPayment(ctx, reference)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Payment %s.\n", outcome)
	return nil
}

// Search runs a recipe search and prints the numbered results.
func (a *App) Search(ctx context.Context, f recipe.Filters) error {
	found, err := a.Recipes.Search(ctx, f)
	if err != nil {
		return err
	}
	writeRecipeList(a.out, found)
	return nil
}

// Show prints one recipe. ref is a result number or a recipe id. Every view counts
// toward the feedback prompt.
func (a *App) Show(ctx context.Context, ref string) error {
	r, err := a.FindRecipe(ctx, ref)
	if err != nil {
		return err
	}
	if len(r.Instructions) == 0 && r.ID != "" {
		if detailed, err := a.Recipes.Detail(ctx, r.ID); err == nil {
			r = *detailed
		}
	}
	writeRecipe(a.out, r)

	prompt, err := a.Feedback.RecordView(ctx)
	if err != nil {
		a.logger.Warn("Failed to count recipe view")
		return nil
	}
	if prompt {
		fmt.Fprintln(a.out, "\nEnjoying Cookify? Rate your experience with: cookify review -rating 1-5")
	}
	return nil
}

// Save adds a recipe to the saved list.
func (a *App) Save(ctx context.Context, ref string) error {
	r, err := a.FindRecipe(ctx, ref)
	if err != nil {
		return err
	}
	_, err = a.Recipes.Save(ctx, r)
	return err
}

// Saved prints the saved recipes.
func (a *App) Saved(ctx context.Context) error {
	saved, err := a.Recipes.Saved(ctx)
	if err != nil {
		return err
	}
	if len(saved) == 0 {
		fmt.Fprintln(a.out, "No saved recipes yet.")
		return nil
	}
	writeRecipeList(a.out, saved)
	return nil
}

// Unsave removes a saved recipe by number or id.
func (a *App) Unsave(ctx context.Context, ref string) error {
	saved, err := a.Recipes.Saved(ctx)
	if err != nil {
		return err
	}
	key := ref
	if r, ok := pick(saved, ref); ok {
		key = r.Key()
	}
	removed, err := a.Recipes.Unsave(ctx, key)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.Validation("unsave", fmt.Sprintf("no saved recipe %q", ref))
	}
	fmt.Fprintln(a.out, "Removed from saved recipes.")
	return nil
}

// GroceryList prints the synced groups and the local items. When the refresh fails
// for a reason other than a 401, the groups from the last refresh are shown.
func (a *App) GroceryList(ctx context.Context) error {
	if _, err := a.Grocery.Refresh(ctx); err != nil && apperr.IsUnauthorized(err) {
		return err
	}
	local, err := a.Grocery.Local(ctx)
	if err != nil {
		return err
	}
	writeGrocery(a.out, a.Grocery.Synced(), local)
	return nil
}

// GrocerySync re-fetches the server-side list.
func (a *App) GrocerySync(ctx context.Context) error {
	groups, err := a.Grocery.Refresh(ctx)
	if err != nil {
		return err
	}
	if !a.Session.IsAuthenticated() {
		fmt.Fprintln(a.out, "Sign in to sync your grocery list.")
		return nil
	}
	fmt.Fprintf(a.out, "Synced %d recipe lists.\n", len(groups))
	return nil
}

// GroceryAdd adds a hand-typed item.
func (a *App) GroceryAdd(ctx context.Context, name string) error {
	item, added, err := a.Grocery.AddManual(ctx, name)
	if err != nil {
		return err
	}
	if !added {
		fmt.Fprintf(a.out, "%s is already on your list.\n", item.Name)
		return nil
	}
	fmt.Fprintf(a.out, "Added %s.\n", item.Name)
	return nil
}

// GroceryAddRecipe adds a recipe's ingredients: provided ones as have, additional as need.
func (a *App) GroceryAddRecipe(ctx context.Context, ref string) error {
	r, err := a.FindRecipe(ctx, ref)
	if err != nil {
		return err
	}
	_, err = a.Grocery.AddToList(ctx, r.Ingredients.Provided, r.Ingredients.Additional, r.Name, r.ID)
	return err
}

// GroceryToggle checks or unchecks a local item.
func (a *App) GroceryToggle(ctx context.Context, ref string) error {
	id, err := a.groceryID(ctx, ref)
	if err != nil {
		return err
	}
	item, err := a.Grocery.Toggle(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s %s\n", checkbox(item.Checked), item.Name)
	return nil
}

// GrocerySetState moves a local item to have, need or manual.
func (a *App) GrocerySetState(ctx context.Context, ref string, state models.GroceryState) error {
	id, err := a.groceryID(ctx, ref)
	if err != nil {
		return err
	}
	item, err := a.Grocery.SetState(ctx, id, state)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is now %s.\n", item.Name, item.State)
	return nil
}

// GroceryRemove deletes a local item.
func (a *App) GroceryRemove(ctx context.Context, ref string) error {
	id, err := a.groceryID(ctx, ref)
	if err != nil {
		return err
	}
	if _, err := a.Grocery.Remove(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Removed.")
	return nil
}

// GroceryClear deletes checked local items.
func (a *App) GroceryClear(ctx context.Context) error {
	n, err := a.Grocery.ClearChecked(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Cleared %d checked items.\n", n)
	return nil
}

// Chat talks to the AI chef about a recipe. Given messages are sent in order;
// with none, lines are read from in until EOF or "/quit".
func (a *App) Chat(ctx context.Context, ref string, messages []string, in io.Reader) error {
	r, err := a.FindRecipe(ctx, ref)
	if err != nil {
		return err
	}
	conv := a.Chef.Start(r)
	fmt.Fprintf(a.out, "chef> %s\n", conv.Messages()[0].Content)

	send := func(text string) error {
		reply, err := conv.Send(ctx, text)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "chef> %s\n", reply.Content)
		return nil
	}

	if len(messages) > 0 {
		for _, m := range messages {
			if err := send(m); err != nil {
				return err
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(a.out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(a.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" || line == "/exit" {
			return nil
		}
		if line == "" {
			continue
		}
		if err := send(line); err != nil {
			return err
		}
	}
}

// Review submits feedback, optionally about a recipe.
func (a *App) Review(ctx context.Context, rating int, comment, recipeRef string) error {
	recipeID := ""
	if recipeRef != "" {
		r, err := a.FindRecipe(ctx, recipeRef)
		if err != nil {
			return err
		}
		recipeID = r.ID
	}
	return a.Feedback.Submit(ctx, rating, comment, recipeID)
}

// Reviews prints public testimonials.
func (a *App) Reviews(ctx context.Context) error {
	reviews, err := a.Feedback.Reviews(ctx)
	if err != nil {
		return err
	}
	writeReviews(a.out, reviews)
	return nil
}

// Stats prints backend call usage and process health.
func (a *App) Stats(days int) error {
	daily, err := a.metricsStore.GetDailyUsage(days)
	if err != nil {
		return err
	}
	endpoints, err := a.metricsStore.GetEndpointUsage(days)
	if err != nil {
		return err
	}
	writeStats(a.out, days, daily, endpoints)
	writeHealth(a.out, a.DataPath())
	return nil
}

// MetricsCleanup removes call records older than days.
func (a *App) MetricsCleanup(days int) error {
	affected, err := a.metricsStore.Cleanup(days)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	fmt.Fprintf(a.out, "Successfully removed %d old metric records.\n", affected)
	return nil
}

// FindRecipe resolves ref as a result number, then as an id or key among the last
// results and saved recipes, then asks the backend.
func (a *App) FindRecipe(ctx context.Context, ref string) (models.Recipe, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Recipe{}, apperr.Validation("find recipe", "recipe number or id is required")
	}

	results, err := a.Recipes.LastResults(ctx)
	if err != nil {
		return models.Recipe{}, err
	}
	if r, ok := pick(results, ref); ok {
		return r, nil
	}
	saved, err := a.Recipes.Saved(ctx)
	if err != nil {
		return models.Recipe{}, err
	}
	if r, ok := find(saved, ref); ok {
		return r, nil
	}

	r, err := a.Recipes.Detail(ctx, ref)
	if err != nil {
		return models.Recipe{}, err
	}
	return *r, nil
}

// pick accepts a 1-based position or an id/key.
func pick(list []models.Recipe, ref string) (models.Recipe, bool) {
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(list) {
			return list[n-1], true
		}
		return models.Recipe{}, false
	}
	return find(list, ref)
}

func find(list []models.Recipe, ref string) (models.Recipe, bool) {
	for _, r := range list {
		if r.ID == ref || r.Key() == ref {
			return r, true
		}
	}
	return models.Recipe{}, false
}

// groceryID maps a 1-based position in the local list to an item id.
func (a *App) groceryID(ctx context.Context, ref string) (string, error) {
	items, err := a.Grocery.Local(ctx)
	if err != nil {
		return "", err
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(items) {
			return "", apperr.Validation("grocery", fmt.Sprintf("no item number %d", n))
		}
		return items[n-1].ID, nil
	}
	return ref, nil
}
