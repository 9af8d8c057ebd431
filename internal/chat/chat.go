// Package chat runs AI chef conversations about a single recipe.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cookify/internal/api"
	"cookify/internal/apperr"
	"cookify/internal/llm"
	"cookify/internal/models"
)

// CannedReply is shown when neither the backend nor a fallback model can answer.
const CannedReply = "I'm having trouble connecting to the server seamlessly right now. However, for this recipe, verify you have all ingredients prepped!"

// historyTurns bounds how much of the conversation goes into a fallback prompt.
const historyTurns = 6

// Backend is the chat endpoint of the API client.
type Backend interface {
	Chat(ctx context.Context, token string, req api.ChatRequest) (string, error)
}

// Session supplies the token and handles expired sessions.
type Session interface {
	Token(ctx context.Context) (string, error)
	HandleUnauthorized(ctx context.Context)
}

// Service starts conversations.
type Service struct {
	backend   Backend
	session   Session
	generator llm.TextGenerator
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a Service. generator may be nil, in which case failures are
// answered with CannedReply.
func NewService(backend Backend, session Session, generator llm.TextGenerator, logger *zap.Logger) *Service {
	return &Service{
		backend:   backend,
		session:   session,
		generator: generator,
		logger:    logger,
		now:       time.Now,
	}
}

// Conversation is the message history for one recipe. Only one message can be in
// flight at a time.
type Conversation struct {
	svc     *Service
	recipe  models.Recipe
	sending sync.Mutex

	mu       sync.Mutex
	messages []models.ChatMessage
}

// Start opens a conversation about r with the assistant's greeting.
func (s *Service) Start(r models.Recipe) *Conversation {
	return &Conversation{
		svc:    s,
		recipe: r,
		messages: []models.ChatMessage{{
			ID:        uuid.NewString(),
			Role:      models.RoleAssistant,
			Content:   Greeting(r),
			Timestamp: s.now(),
		}},
	}
}

// Greeting is the first assistant message of every conversation.
func Greeting(r models.Recipe) string {
	return fmt.Sprintf("Hello! I'm your AI Chef. I can help you with the **%s** recipe. Ask me about substitutions, steps, or tips!", r.Name)
}

// Recipe returns the recipe being discussed.
func (c *Conversation) Recipe() models.Recipe {
	return c.recipe
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ChatMessage(nil), c.messages...)
}

// Send posts text and appends both the user message and the reply. A backend
// failure still produces an assistant reply, flagged as a fallback, and a nil error.
func (c *Conversation) Send(ctx context.Context, text string) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, apperr.Validation("chat", "message is empty")
	}
	if !c.sending.TryLock() {
		return models.ChatMessage{}, apperr.Validation("chat", "still waiting for the previous reply")
	}
	defer c.sending.Unlock()

	history := c.Messages()
	c.append(models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: c.svc.now(),
	})

	reply := models.ChatMessage{ID: uuid.NewString(), Role: models.RoleAssistant}
	content, err := c.ask(ctx, text)
	if err != nil {
		c.svc.logger.Warn("Chat request failed, using fallback", zap.Error(err))
		if apperr.IsUnauthorized(err) {
			c.svc.session.HandleUnauthorized(ctx)
		}
		content = c.fallback(ctx, history, text)
		reply.Fallback = true
	}

	reply.Content = content
	reply.Timestamp = c.svc.now()
	c.append(reply)
	return reply, nil
}

func (c *Conversation) ask(ctx context.Context, text string) (string, error) {
	token, err := c.svc.session.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return c.svc.backend.Chat(ctx, token, api.ChatRequest{
		Message:  text,
		RecipeID: c.recipe.ID,
		RecipeContext: api.RecipeContext{
			Name:         c.recipe.Name,
			Ingredients:  c.recipe.Ingredients.All(),
			Instructions: c.recipe.Instructions,
		},
	})
}

func (c *Conversation) fallback(ctx context.Context, history []models.ChatMessage, text string) string {
	if c.svc.generator == nil {
		return CannedReply
	}
	resp, err := c.svc.generator.GenerateContent(ctx, buildPrompt(c.recipe, history, text))
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		c.svc.logger.Warn("Fallback model failed", zap.Error(err))
		return CannedReply
	}
	c.svc.logger.Debug("Fallback model answered",
		zap.String("model", resp.Usage.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return strings.TrimSpace(resp.Content)
}

func (c *Conversation) append(m models.ChatMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

func buildPrompt(r models.Recipe, history []models.ChatMessage, question string) string {
	var sb strings.Builder
	sb.WriteString("You are a friendly professional chef helping a home cook with one recipe. ")
	sb.WriteString("Answer in a few sentences. Suggest substitutions when asked.\n\n")
	fmt.Fprintf(&sb, "Recipe: %s\n", r.Name)
	if ings := r.Ingredients.All(); len(ings) > 0 {
		fmt.Fprintf(&sb, "Ingredients: %s\n", strings.Join(ings, ", "))
	}
	for i, step := range r.Instructions {
		fmt.Fprintf(&sb, "Step %d: %s\n", i+1, step)
	}

	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	if len(history) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, m := range history {
			fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
		}
	}
	fmt.Fprintf(&sb, "\nuser: %s\nassistant:", question)
	return sb.String()
}
