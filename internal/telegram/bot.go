// Package telegram exposes the Cookify commands to a single Telegram user through a webhook.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"cookify/internal/app"
	"cookify/internal/apperr"
	"cookify/internal/chat"
	"cookify/internal/config"
	"cookify/internal/models"
	"cookify/internal/presenter"
	"cookify/internal/recipe"
	"cookify/internal/session"
)

// maxMessageLen stays under Telegram's 4096 character limit.
const maxMessageLen = 4000

// sender is the part of tgbotapi.BotAPI the bot uses.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot runs Cookify commands received over the webhook and replies in the chat.
// Commands run one at a time; the reply collects command output, notifications and
// navigation hints.
type Bot struct {
	api    sender
	app    *app.App
	cfg    *config.Config
	logger *zap.Logger

	mu       sync.Mutex
	out      bytes.Buffer
	notified bool
	conv     *chat.Conversation

	wg sync.WaitGroup
}

// NewBot authorizes with Telegram, registers the webhook and builds the application
// with the bot as its notifier and navigator.
func NewBot(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	logger.Info("Authorized on account", zap.String("username", api.Self.UserName))

	wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.Telegram.WebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.Telegram.WebhookURL, err)
	}
	logger.Info("Webhook set", zap.String("response", resp.Description))

	b := newBot(api, cfg, logger)
	if err := b.attach(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func newBot(api sender, cfg *config.Config, logger *zap.Logger) *Bot {
	return &Bot{api: api, cfg: cfg, logger: logger}
}

// attach builds the application writing into the reply buffer.
func (b *Bot) attach(ctx context.Context) error {
	application, err := app.New(ctx, b.cfg, b.logger, &b.out, app.Options{Notifier: b, Navigator: b})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	b.app = application
	return nil
}

// Handler returns the webhook and health routes.
func (b *Bot) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/webhook", b.handleWebhook)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return r
}

// Close waits for in-flight messages and closes the application.
func (b *Bot) Close() error {
	b.wg.Wait()
	return b.app.Close()
}

// Notify implements presenter.Notifier.
func (b *Bot) Notify(n presenter.Notification) {
	marker := "✅"
	if n.Variant == presenter.VariantDestructive {
		marker = "❌"
	}
	if n.Description == "" {
		fmt.Fprintf(&b.out, "%s %s\n", marker, n.Title)
	} else {
		fmt.Fprintf(&b.out, "%s %s: %s\n", marker, n.Title, n.Description)
	}
	b.notified = true
}

// Navigate implements presenter.Navigator.
func (b *Bot) Navigate(v presenter.View) {
	if hint, ok := nextSteps[v]; ok {
		fmt.Fprintf(&b.out, "👉 %s\n", hint)
	}
}

var nextSteps = map[presenter.View]string{
	presenter.ViewAuth:            "Sign in with /login <email> <password>",
	presenter.ViewCompleteProfile: "Tell me about your diet with /profile <lifestyle>",
	presenter.ViewPricing:         "Go Pro with /upgrade pro",
	presenter.ViewDashboard:       "Send me the ingredients you have, e.g. tomato, rice",
	presenter.ViewProfile:         "See your account with /whoami",
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		b.logger.Warn("Error parsing update", zap.Error(err))
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	if msg.From.ID != b.cfg.Telegram.AllowUserID {
		b.logger.Warn("Unauthorized access attempt",
			zap.Int64("user_id", msg.From.ID),
			zap.String("username", msg.From.UserName))
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.processMessage(context.Background(), msg.Chat.ID, msg.Text)
	}()
}

func (b *Bot) processMessage(ctx context.Context, chatID int64, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.out.Reset()
	b.notified = false

	if err := b.dispatch(ctx, text); err != nil {
		b.logger.Debug("Command failed", zap.String("text", text), zap.Error(err))
		if !b.notified {
			fmt.Fprintf(&b.out, "❌ %s\n", errorText(err))
		}
	}

	reply := strings.TrimSpace(b.out.String())
	if reply == "" {
		reply = "👍"
	}
	for _, part := range chunks(reply, maxMessageLen) {
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			b.logger.Error("Failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
			return
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, text string) error {
	command, args := parseCommand(text)
	a := b.app

	if command == "" {
		if b.conv != nil {
			return b.ask(ctx, text)
		}
		return a.Search(ctx, recipe.Filters{Ingredients: recipe.SplitIngredients(text)})
	}

	switch command {
	case "start", "help":
		b.out.WriteString(helpText)
		return nil
	case "register":
		if len(args) < 4 {
			return apperr.Validation("register", "usage: /register <first> <last> <email> <password>")
		}
		return a.Register(ctx, session.RegisterForm{FirstName: args[0], LastName: args[1], Email: args[2], Password: args[3]})
	case "login":
		if len(args) < 2 {
			return apperr.Validation("login", "usage: /login <email> <password>")
		}
		return a.Login(ctx, session.SignInForm{Email: args[0], Password: args[1]})
	case "logout":
		b.conv = nil
		return a.Logout(ctx)
	case "whoami":
		return a.WhoAmI(ctx)
	case "profile":
		if len(args) == 0 {
			return apperr.Validation("complete profile", "usage: /profile <lifestyle> [allergy, ...]")
		}
		return a.CompleteProfile(ctx, session.ProfileForm{
			Lifestyle: args[0],
			Allergies: recipe.SplitIngredients(strings.Join(args[1:], " ")),
		})
	case "upgrade":
		tier, ok := models.ParsePlanTier(first(args))
		if !ok {
			return apperr.Validation("upgrade", "usage: /upgrade free|pro")
		}
		return a.Upgrade(ctx, tier)
	case "verify":
		return a.VerifyPayment(ctx, first(args))
	case "search":
		return a.Search(ctx, recipe.Filters{Ingredients: recipe.SplitIngredients(strings.Join(args, " "))})
	case "show":
		return a.Show(ctx, first(args))
	case "save":
		return a.Save(ctx, first(args))
	case "saved":
		return a.Saved(ctx)
	case "unsave":
		return a.Unsave(ctx, first(args))
	case "grocery":
		return b.grocery(ctx, args)
	case "chat":
		return b.startChat(ctx, first(args))
	case "done":
		b.conv = nil
		b.out.WriteString("Chat closed.\n")
		return nil
	case "review":
		rating, err := strconv.Atoi(first(args))
		if err != nil {
			return apperr.Validation("review", "usage: /review <1-5> [comment]")
		}
		return a.Review(ctx, rating, strings.Join(args[1:], " "), "")
	case "reviews":
		return a.Reviews(ctx)
	case "metrics":
		return a.Stats(7)
	default:
		return apperr.Validation("telegram", fmt.Sprintf("Unknown command /%s. Send /help for the list.", command))
	}
}

func (b *Bot) grocery(ctx context.Context, args []string) error {
	a := b.app
	sub := first(args)
	rest := []string{}
	if len(args) > 1 {
		rest = args[1:]
	}
	switch sub {
	case "", "list":
		return a.GroceryList(ctx)
	case "add":
		return a.GroceryAdd(ctx, strings.Join(rest, " "))
	case "recipe":
		return a.GroceryAddRecipe(ctx, first(rest))
	case "toggle":
		return a.GroceryToggle(ctx, first(rest))
	case "have", "need":
		return a.GrocerySetState(ctx, first(rest), models.GroceryState(sub))
	case "remove":
		return a.GroceryRemove(ctx, first(rest))
	case "clear":
		return a.GroceryClear(ctx)
	case "sync":
		return a.GrocerySync(ctx)
	default:
		return apperr.Validation("grocery", "usage: /grocery [list|add|recipe|toggle|have|need|remove|clear|sync]")
	}
}

func (b *Bot) startChat(ctx context.Context, ref string) error {
	r, err := b.app.FindRecipe(ctx, ref)
	if err != nil {
		return err
	}
	b.conv = b.app.Chef.Start(r)
	fmt.Fprintf(&b.out, "🧑‍🍳 %s\n\nSend /done to finish.\n", chat.Greeting(r))
	return nil
}

func (b *Bot) ask(ctx context.Context, text string) error {
	reply, err := b.conv.Send(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(&b.out, "🧑‍🍳 %s\n", reply.Content)
	return nil
}

// parseCommand splits "/cmd@bot a b" into "cmd" and its arguments. Plain text has
// no command.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil
	}
	command := strings.TrimPrefix(fields[0], "/")
	if i := strings.Index(command, "@"); i >= 0 {
		command = command[:i]
	}
	return strings.ToLower(command), fields[1:]
}

func first(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func errorText(err error) string {
	if apperr.CodeOf(err) == "" {
		return "Something went wrong. Please try again."
	}
	return apperr.UserMessage(err)
}

// chunks splits s into pieces of at most n bytes, preferring line breaks.
func chunks(s string, n int) []string {
	var parts []string
	for len(s) > n {
		cut := strings.LastIndex(s[:n], "\n")
		if cut <= 0 {
			cut = n
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
		}
		parts = append(parts, s[:cut])
		s = strings.TrimLeft(s[cut:], "\n")
	}
	return append(parts, s)
}

const helpText = `🍳 Cookify

Send the ingredients you have (e.g. "tomato, rice") to get recipes.

/login <email> <password>
/register <first> <last> <email> <password>
/logout, /whoami
/profile <lifestyle> [allergies]
/upgrade free|pro, /verify <reference>
/show <n>, /save <n>, /saved, /unsave <n>
/chat <n> to ask the AI chef, /done to stop
/grocery [list|add|recipe|toggle|have|need|remove|clear|sync]
/review <1-5> [comment], /reviews
/metrics
`
