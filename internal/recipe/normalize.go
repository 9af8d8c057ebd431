package recipe

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cookify/internal/models"
)

// plainText strips markup the model sometimes leaves in generated text.
func plainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style, iframe").Each(func(_ int, sel *goquery.Selection) {
		sel.Remove()
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func plainList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = plainText(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// normalize cleans server results: text fields lose markup, nameless recipes are
// dropped and list fields are never nil.
func normalize(in []models.Recipe) []models.Recipe {
	out := make([]models.Recipe, 0, len(in))
	for _, r := range in {
		r = normalizeOne(r)
		if r.Name == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

func normalizeOne(r models.Recipe) models.Recipe {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = plainText(r.Name)
	r.Description = plainText(r.Description)
	r.HealthTip = plainText(r.HealthTip)
	r.CookingTime = strings.TrimSpace(r.CookingTime)
	r.Difficulty = strings.TrimSpace(r.Difficulty)
	r.Image = strings.TrimSpace(r.Image)
	r.Ingredients.Provided = plainList(r.Ingredients.Provided)
	r.Ingredients.Additional = plainList(r.Ingredients.Additional)
	r.Instructions = plainList(r.Instructions)
	return r
}
