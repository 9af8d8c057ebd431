package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"cookify/internal/app"
	"cookify/internal/apperr"
	"cookify/internal/config"
	"cookify/internal/logger"
	"cookify/internal/models"
	"cookify/internal/recipe"
	"cookify/internal/session"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	if os.Args[1] == "help" || os.Args[1] == "-h" || os.Args[1] == "--help" {
		printUsage()
		return
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, zapLogger, os.Stdout, app.Options{})
	if err != nil {
		zapLogger.Fatal("Failed to initialize application", zap.Error(err))
	}

	err = run(ctx, application, os.Args[1], os.Args[2:])
	if cerr := application.Close(); cerr != nil {
		zapLogger.Warn("Failed to close application", zap.Error(cerr))
	}
	if err != nil {
		zapLogger.Debug("Command failed", zap.String("command", os.Args[1]), zap.Error(err))
		msg := apperr.UserMessage(err)
		if apperr.CodeOf(err) == "" {
			msg = err.Error()
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, command string, args []string) error {
	switch command {
	case "register":
		fs := flag.NewFlagSet("register", flag.ExitOnError)
		first := fs.String("first", "", "First name")
		last := fs.String("last", "", "Last name")
		email := fs.String("email", "", "Email address")
		password := fs.String("password", "", "Password (at least 6 characters)")
		fs.Parse(args)
		return a.Register(ctx, session.RegisterForm{FirstName: *first, LastName: *last, Email: *email, Password: *password})

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "Email address")
		password := fs.String("password", "", "Password")
		fs.Parse(args)
		return a.Login(ctx, session.SignInForm{Email: *email, Password: *password})

	case "logout":
		return a.Logout(ctx)

	case "whoami":
		return a.WhoAmI(ctx)

	case "complete-profile":
		fs := flag.NewFlagSet("complete-profile", flag.ExitOnError)
		lifestyle := fs.String("lifestyle", "", "Lifestyle choice, e.g. Vegan (required)")
		nationality := fs.String("nationality", "", "Nationality")
		ethnicity := fs.String("ethnicity", "", "Ethnicity")
		goals := fs.String("goals", "", "Comma-separated health goals")
		allergies := fs.String("allergies", "", "Comma-separated allergies")
		fs.Parse(args)
		return a.CompleteProfile(ctx, session.ProfileForm{
			Nationality: *nationality,
			Ethnicity:   *ethnicity,
			Lifestyle:   *lifestyle,
			HealthGoals: splitList(*goals),
			Allergies:   splitList(*allergies),
		})

	case "upgrade":
		fs := flag.NewFlagSet("upgrade", flag.ExitOnError)
		plan := fs.String("plan", "pro", "Plan to switch to: free or pro")
		fs.Parse(args)
		tier, ok := models.ParsePlanTier(*plan)
		if !ok {
			return apperr.Validation("upgrade", fmt.Sprintf("unknown plan %q", *plan))
		}
		return a.Upgrade(ctx, tier)

	case "verify-payment":
		fs := flag.NewFlagSet("verify-payment", flag.ExitOnError)
		reference := fs.String("reference", "", "Payment reference from the checkout redirect")
		fs.Parse(args)
		return a.VerifyPayment(ctx, *reference)

	case "search":
		fs := flag.NewFlagSet("search", flag.ExitOnError)
		ingredients := fs.String("ingredients", "", "Comma-separated ingredients you have")
		dietary := fs.String("dietary", "", "Dietary preference")
		health := fs.String("health", "", "Health goal (Pro)")
		lifestyle := fs.String("lifestyle", "", "Lifestyle (Pro)")
		cuisine := fs.String("cuisine", "", "Cuisine (Pro)")
		extras := fs.Bool("extras", false, "Allow ingredients you do not have")
		fs.Parse(args)
		return a.Search(ctx, recipe.Filters{
			Ingredients:   recipe.SplitIngredients(*ingredients),
			Dietary:       *dietary,
			Health:        *health,
			Lifestyle:     *lifestyle,
			Cuisine:       *cuisine,
			IncludeExtras: *extras,
		})

	case "show":
		return a.Show(ctx, firstArg(args))

	case "save":
		return a.Save(ctx, firstArg(args))

	case "saved":
		return a.Saved(ctx)

	case "unsave":
		return a.Unsave(ctx, firstArg(args))

	case "grocery":
		return runGrocery(ctx, a, args)

	case "chat":
		if len(args) == 0 {
			return apperr.Validation("chat", "usage: cookify chat <recipe> [message...]")
		}
		return a.Chat(ctx, args[0], args[1:], os.Stdin)

	case "review":
		fs := flag.NewFlagSet("review", flag.ExitOnError)
		rating := fs.Int("rating", 0, "Stars, 1 to 5")
		comment := fs.String("comment", "", "Optional comment")
		recipeRef := fs.String("recipe", "", "Recipe number or id the review is about")
		fs.Parse(args)
		return a.Review(ctx, *rating, *comment, *recipeRef)

	case "reviews":
		return a.Reviews(ctx)

	case "stats":
		fs := flag.NewFlagSet("stats", flag.ExitOnError)
		days := fs.Int("days", 7, "Report the last N days")
		fs.Parse(args)
		return a.Stats(*days)

	case "metrics-cleanup":
		fs := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := fs.Int("days", 30, "Keep records for the last N days")
		fs.Parse(args)
		return a.MetricsCleanup(*days)

	default:
		printUsage()
		return apperr.Validation("cookify", fmt.Sprintf("Unknown command: %s", command))
	}
}

func runGrocery(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		return a.GroceryList(ctx)
	}
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		return a.GroceryList(ctx)
	case "add":
		return a.GroceryAdd(ctx, strings.Join(rest, " "))
	case "add-recipe":
		return a.GroceryAddRecipe(ctx, firstArg(rest))
	case "toggle":
		return a.GroceryToggle(ctx, firstArg(rest))
	case "state":
		if len(rest) < 2 {
			return apperr.Validation("grocery", "usage: cookify grocery state <item> <have|need|manual>")
		}
		state := models.GroceryState(strings.ToLower(rest[1]))
		if !state.Valid() {
			return apperr.Validation("grocery", fmt.Sprintf("unknown state %q", rest[1]))
		}
		return a.GrocerySetState(ctx, rest[0], state)
	case "remove":
		return a.GroceryRemove(ctx, firstArg(rest))
	case "clear":
		return a.GroceryClear(ctx)
	case "sync":
		return a.GrocerySync(ctx)
	default:
		return apperr.Validation("grocery", fmt.Sprintf("unknown grocery command %q", sub))
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func printUsage() {
	fmt.Println("Usage: cookify <command> [arguments]")
	fmt.Println("\nAccount:")
	fmt.Println("  register           Create an account (-first -last -email -password)")
	fmt.Println("  login              Sign in (-email -password)")
	fmt.Println("  logout             Sign out, keeping the local grocery list")
	fmt.Println("  whoami             Show your profile and plan")
	fmt.Println("  complete-profile   Answer onboarding questions (-lifestyle ...)")
	fmt.Println("  upgrade            Choose a plan (-plan free|pro)")
	fmt.Println("  verify-payment     Check a payment (-reference)")
	fmt.Println("\nRecipes:")
	fmt.Println("  search             Find recipes (-ingredients a,b -dietary ...)")
	fmt.Println("  show <n|id>        Show a recipe")
	fmt.Println("  save <n|id>        Save a recipe")
	fmt.Println("  saved              List saved recipes")
	fmt.Println("  unsave <n|id>      Remove a saved recipe")
	fmt.Println("  chat <n|id> [msg]  Ask the AI chef about a recipe")
	fmt.Println("\nGrocery list:")
	fmt.Println("  grocery [list]                 Show the list")
	fmt.Println("  grocery add <name>             Add an item")
	fmt.Println("  grocery add-recipe <n|id>      Add a recipe's ingredients")
	fmt.Println("  grocery toggle <n>             Check or uncheck an item")
	fmt.Println("  grocery state <n> <state>      Mark an item have, need or manual")
	fmt.Println("  grocery remove <n>             Remove an item")
	fmt.Println("  grocery clear                  Remove checked items")
	fmt.Println("  grocery sync                   Fetch the list saved on your account")
	fmt.Println("\nFeedback:")
	fmt.Println("  review             Rate Cookify (-rating 1-5 -comment -recipe)")
	fmt.Println("  reviews            Show testimonials")
	fmt.Println("\nMaintenance:")
	fmt.Println("  stats              Backend usage and health (-days)")
	fmt.Println("  metrics-cleanup    Remove old metric records (-days)")
}
