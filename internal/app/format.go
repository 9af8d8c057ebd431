package app

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"cookify/internal/metrics"
	"cookify/internal/models"
)

func writeUser(w io.Writer, u *models.User) {
	fmt.Fprintf(w, "%s %s <%s>\n", u.FirstName, u.LastName, u.Email)
	fmt.Fprintf(w, "Plan: %s\n", u.Tier())
	if !u.HasProfile() {
		fmt.Fprintln(w, "Profile incomplete. Run: cookify complete-profile")
		return
	}
	p := u.Profile
	fmt.Fprintf(w, "Lifestyle: %s\n", p.LifestyleChoice)
	if p.Nationality != "" {
		fmt.Fprintf(w, "Nationality: %s\n", p.Nationality)
	}
	if p.Ethnicity != "" {
		fmt.Fprintf(w, "Ethnicity: %s\n", p.Ethnicity)
	}
	if len(p.HealthGoals) > 0 {
		fmt.Fprintf(w, "Health goals: %s\n", strings.Join(models.TagNames(p.HealthGoals), ", "))
	}
	if len(p.Allergies) > 0 {
		fmt.Fprintf(w, "Allergies: %s\n", strings.Join(models.TagNames(p.Allergies), ", "))
	}
}

func writeRecipeList(w io.Writer, recipes []models.Recipe) {
	if len(recipes) == 0 {
		fmt.Fprintln(w, "No recipes.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, r := range recipes {
		fmt.Fprintf(tw, "%d.\t%s\t%s\t%s\n", i+1, r.Name, r.CookingTime, r.Difficulty)
	}
	tw.Flush()
}

func writeRecipe(w io.Writer, r models.Recipe) {
	fmt.Fprintf(w, "%s\n%s\n", r.Name, strings.Repeat("=", len(r.Name)))
	if r.Description != "" {
		fmt.Fprintf(w, "%s\n", r.Description)
	}
	var meta []string
	if r.CookingTime != "" {
		meta = append(meta, "Time: "+r.CookingTime)
	}
	if r.Difficulty != "" {
		meta = append(meta, "Difficulty: "+r.Difficulty)
	}
	if len(meta) > 0 {
		fmt.Fprintln(w, strings.Join(meta, " | "))
	}

	if len(r.Ingredients.Provided) > 0 {
		fmt.Fprintln(w, "\nYou have:")
		for _, ing := range r.Ingredients.Provided {
			fmt.Fprintf(w, "  • %s\n", ing)
		}
	}
	if len(r.Ingredients.Additional) > 0 {
		fmt.Fprintln(w, "\nYou need:")
		for _, ing := range r.Ingredients.Additional {
			fmt.Fprintf(w, "  • %s\n", ing)
		}
	}
	if len(r.Instructions) > 0 {
		fmt.Fprintln(w, "\nSteps:")
		for i, step := range r.Instructions {
			fmt.Fprintf(w, "  %d. %s\n", i+1, step)
		}
	}
	if r.HealthTip != "" {
		fmt.Fprintf(w, "\nHealth tip: %s\n", r.HealthTip)
	}
}

func checkbox(checked bool) string {
	if checked {
		return "[x]"
	}
	return "[ ]"
}

func writeGrocery(w io.Writer, groups []models.GroceryGroup, local []models.GroceryItem) {
	for _, g := range groups {
		fmt.Fprintf(w, "%s (synced)\n", g.RecipeName)
		for _, it := range g.Items {
			fmt.Fprintf(w, "  %s %s (%s)\n", checkbox(it.Checked), it.Name, it.State)
		}
	}
	if len(local) == 0 {
		if len(groups) == 0 {
			fmt.Fprintln(w, "Your grocery list is empty.")
		}
		return
	}
	fmt.Fprintln(w, "On this device")
	for i, it := range local {
		line := fmt.Sprintf("  %d. %s %s (%s)", i+1, checkbox(it.Checked), it.Name, it.State)
		if it.RecipeName != "" {
			line += " for " + it.RecipeName
		}
		fmt.Fprintln(w, line)
	}
}

func writeReviews(w io.Writer, reviews []models.Review) {
	if len(reviews) == 0 {
		fmt.Fprintln(w, "No reviews yet.")
		return
	}
	for _, r := range reviews {
		stars := strings.Repeat("★", r.Rating) + strings.Repeat("☆", 5-r.Rating)
		fmt.Fprintf(w, "%s %s", stars, r.UserName)
		if !r.CreatedAt.IsZero() {
			fmt.Fprintf(w, ", %s", humanize.Time(r.CreatedAt))
		}
		fmt.Fprintln(w)
		if r.Comment != "" {
			fmt.Fprintf(w, "  %q\n", r.Comment)
		}
	}
}

func writeStats(w io.Writer, days int, daily []metrics.DailyUsage, endpoints []metrics.EndpointUsage) {
	fmt.Fprintf(w, "Backend calls, last %d days\n", days)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tCALLS\tFAILED\tAVG MS")
	for _, d := range daily {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", d.Date, humanize.Comma(int64(d.Calls)), d.Failures, d.AvgLatencyMS)
	}
	tw.Flush()

	if len(endpoints) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENDPOINT\tCALLS\tFAILED\tAVG MS")
	for _, e := range endpoints {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", e.Endpoint, humanize.Comma(int64(e.Calls)), e.Failures, e.AvgLatencyMS)
	}
	tw.Flush()
}

func writeHealth(w io.Writer, dataPath string) {
	h := metrics.GetSysHealth(dataPath)
	fmt.Fprintf(w, "\nMemory: %s in use, %s from OS, %d GCs, %d goroutines\n", h.Alloc, h.Sys, h.NumGC, h.Goroutines)
	fmt.Fprintf(w, "Local data: %s\n", h.DataDiskSize)
}
