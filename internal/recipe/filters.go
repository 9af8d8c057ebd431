package recipe

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Filters is everything the search form collects.
type Filters struct {
	Ingredients   []string `validate:"required,min=1,max=20,dive,required,max=64"`
	Dietary       string   `validate:"max=64"`
	Health        string   `validate:"max=64"`
	Lifestyle     string   `validate:"max=64"`
	Cuisine       string   `validate:"max=64"`
	IncludeExtras bool
}

// ProOnly reports whether f uses a filter reserved for the Pro plan.
func (f Filters) ProOnly() bool {
	return f.Health != "" || f.Lifestyle != "" || f.Cuisine != ""
}

// clean trims every field and de-duplicates ingredients case-insensitively,
// keeping the first spelling.
func (f Filters) clean() Filters {
	seen := make(map[string]bool, len(f.Ingredients))
	ingredients := make([]string, 0, len(f.Ingredients))
	for _, ing := range f.Ingredients {
		ing = strings.TrimSpace(ing)
		key := strings.ToLower(ing)
		if ing == "" || seen[key] {
			continue
		}
		seen[key] = true
		ingredients = append(ingredients, ing)
	}
	f.Ingredients = ingredients
	f.Dietary = strings.TrimSpace(f.Dietary)
	f.Health = strings.TrimSpace(f.Health)
	f.Lifestyle = strings.TrimSpace(f.Lifestyle)
	f.Cuisine = strings.TrimSpace(f.Cuisine)
	return f
}

// Query encodes f for GET /recipes/search. Empty filters are left out.
func (f Filters) Query() url.Values {
	q := url.Values{}
	q.Set("ingredients", strings.Join(f.Ingredients, ","))
	for key, v := range map[string]string{
		"dietary":   f.Dietary,
		"health":    f.Health,
		"lifestyle": f.Lifestyle,
		"cuisine":   f.Cuisine,
	} {
		if v != "" {
			q.Set(key, v)
		}
	}
	q.Set("includeExtras", strconv.FormatBool(f.IncludeExtras))
	return q
}

// SplitIngredients parses a comma separated list as typed by the user.
func SplitIngredients(s string) []string {
	return strings.Split(s, ",")
}

// describe turns validator output on Filters into one readable sentence.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch {
		case fe.Field() == "Ingredients" && (fe.Tag() == "required" || fe.Tag() == "min"):
			msgs = append(msgs, "Add at least one ingredient to search.")
		case fe.Field() == "Ingredients" && fe.Tag() == "max":
			msgs = append(msgs, fmt.Sprintf("Use at most %s ingredients.", fe.Param()))
		case fe.Tag() == "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters.", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid.", fe.Field()))
		}
	}
	return strings.Join(msgs, " ")
}
