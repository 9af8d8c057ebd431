// Package models holds the types exchanged with the backend and kept in client storage.
package models

import (
	"strings"
	"time"
)

// PlanTier is the subscription level reported in the profile's "plan" field.
type PlanTier int

const (
	PlanFree PlanTier = 1
	PlanPro  PlanTier = 2
)

func (p PlanTier) String() string {
	switch p {
	case PlanPro:
		return "Pro"
	default:
		return "Free"
	}
}

// ParsePlanTier accepts "free", "pro", "1" or "2".
func ParsePlanTier(s string) (PlanTier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free", "1":
		return PlanFree, true
	case "pro", "2":
		return PlanPro, true
	}
	return 0, false
}

// Tag is a named health goal or allergy.
type Tag struct {
	Name string `json:"name"`
}

// Tags converts plain names into tags.
func Tags(names []string) []Tag {
	tags := make([]Tag, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			tags = append(tags, Tag{Name: n})
		}
	}
	return tags
}

// TagNames is the inverse of Tags.
func TagNames(tags []Tag) []string {
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}
	return names
}

// UserProfile is the preference and plan part of a user. The backend spells the
// plan name field "suscriptionPlan".
type UserProfile struct {
	SubscriptionPlan string   `json:"suscriptionPlan"`
	Plan             PlanTier `json:"plan"`
	Nationality      string   `json:"nationality,omitempty"`
	Ethnicity        string   `json:"ethnicity,omitempty"`
	LifestyleChoice  string   `json:"lifeStyleChoice,omitempty"`
	Image            string   `json:"image,omitempty"`
	HealthGoals      []Tag    `json:"healthGoals"`
	Allergies        []Tag    `json:"allergies"`
}

// User is the authenticated account returned by GET /users.
type User struct {
	ID        string       `json:"id"`
	Email     string       `json:"email"`
	FirstName string       `json:"firstName"`
	LastName  string       `json:"lastName"`
	Profile   *UserProfile `json:"userProfile"`
}

// Tier returns the user's plan, Free when no profile is attached.
func (u *User) Tier() PlanTier {
	if u == nil || u.Profile == nil || u.Profile.Plan == 0 {
		return PlanFree
	}
	return u.Profile.Plan
}

// HasProfile reports whether onboarding has been completed.
func (u *User) HasProfile() bool {
	return u != nil && u.Profile != nil && u.Profile.LifestyleChoice != ""
}

// Ingredients partitions a recipe's ingredients into what the user already has
// and what must be bought.
type Ingredients struct {
	Provided   []string `json:"providedIngredient"`
	Additional []string `json:"additionalIngredient"`
}

// All returns provided followed by additional ingredients.
func (i Ingredients) All() []string {
	all := make([]string, 0, len(i.Provided)+len(i.Additional))
	all = append(all, i.Provided...)
	return append(all, i.Additional...)
}

// Recipe is an AI-generated suggestion.
type Recipe struct {
	ID           string      `json:"id"`
	Name         string      `json:"recipeName"`
	Description  string      `json:"description"`
	Ingredients  Ingredients `json:"ingredients"`
	Instructions []string    `json:"instructions"`
	CookingTime  string      `json:"cookingTime"`
	Difficulty   string      `json:"difficulty"`
	HealthTip    string      `json:"healthTip,omitempty"`
	Image        string      `json:"image,omitempty"`
}

// Key identifies a recipe in the saved cache: its id, or its lowercased name when
// the backend did not assign one.
func (r Recipe) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return "name:" + strings.ToLower(strings.TrimSpace(r.Name))
}

// GroceryState tells whether an item is already at home, still to buy, or typed in by hand.
type GroceryState string

const (
	StateHave   GroceryState = "have"
	StateNeed   GroceryState = "need"
	StateManual GroceryState = "manual"
)

// Valid reports whether s is a known state.
func (s GroceryState) Valid() bool {
	switch s {
	case StateHave, StateNeed, StateManual:
		return true
	}
	return false
}

// GroceryItem is one grocery list entry. Local items carry a client-side ID.
type GroceryItem struct {
	ID         string       `json:"id,omitempty"`
	Name       string       `json:"name"`
	State      GroceryState `json:"status"`
	Checked    bool         `json:"checked"`
	RecipeID   string       `json:"recipeId,omitempty"`
	RecipeName string       `json:"recipeName,omitempty"`
	AddedAt    time.Time    `json:"addedAt"`
}

// GroceryGroup is a server-persisted set of items tied to one recipe.
type GroceryGroup struct {
	RecipeID   string        `json:"recipeId"`
	RecipeName string        `json:"recipeName"`
	Items      []GroceryItem `json:"items"`
}

// Review is a public testimonial.
type Review struct {
	ID        string    `json:"id"`
	UserName  string    `json:"userName"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// ChatRole is the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one line of an AI chef conversation. Fallback marks replies
// produced locally because the backend could not answer.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Fallback  bool      `json:"fallback,omitempty"`
}

// PaymentOutcome groups the payment provider's statuses.
type PaymentOutcome string

const (
	PaymentSucceeded PaymentOutcome = "success"
	PaymentFailed    PaymentOutcome = "failed"
	PaymentPending   PaymentOutcome = "pending"
)

// PaymentVerification is the data of GET /subscriptions/verify-payment.
type PaymentVerification struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Outcome classifies Status: "success" succeeded; abandoned, failed and reversed
// failed; anything else (pending, processing, queued, ongoing) is still pending.
func (p PaymentVerification) Outcome() PaymentOutcome {
	switch strings.ToLower(p.Status) {
	case "success":
		return PaymentSucceeded
	case "abandoned", "failed", "reversed":
		return PaymentFailed
	default:
		return PaymentPending
	}
}
