package chat

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cookify/internal/api"
	"cookify/internal/api/apitest"
	"cookify/internal/apperr"
	"cookify/internal/config"
	"cookify/internal/llm"
	"cookify/internal/models"
)

type fakeSession struct {
	mu           sync.Mutex
	token        string
	unauthorized int
}

func (f *fakeSession) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, nil
}

func (f *fakeSession) HandleUnauthorized(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.unauthorized++
}

type fakeGenerator struct {
	prompt string
	reply  string
	err    error
}

func (f *fakeGenerator) GenerateContent(_ context.Context, prompt string) (llm.ContentResponse, error) {
	f.prompt = prompt
	if f.err != nil {
		return llm.ContentResponse{}, f.err
	}
	return llm.ContentResponse{Content: f.reply, Usage: llm.TokenUsage{Model: "fake"}}, nil
}

var omelette = models.Recipe{
	ID:           "r1",
	Name:         "Herb Omelette",
	Ingredients:  models.Ingredients{Provided: []string{"eggs"}, Additional: []string{"chives"}},
	Instructions: []string{"Whisk eggs.", "Cook gently."},
}

func newService(t *testing.T, gen llm.TextGenerator) (*Service, *apitest.Server, *fakeSession) {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	sess := &fakeSession{token: srv.AddUser("ada@example.com", "secret123", nil)}
	cfg := &config.Config{APIURL: srv.URL, RequestTimeout: 5 * time.Second}
	return NewService(api.NewClient(cfg, zap.NewNop()), sess, gen, zap.NewNop()), srv, sess
}

func TestStartGreets(t *testing.T) {
	svc, _, _ := newService(t, nil)
	conv := svc.Start(omelette)

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "Hello! I'm your AI Chef. I can help you with the **Herb Omelette** recipe. Ask me about substitutions, steps, or tips!", msgs[0].Content)
}

func TestSend(t *testing.T) {
	svc, srv, _ := newService(t, nil)
	srv.SetChatReply("Try parsley instead of chives.")
	conv := svc.Start(omelette)

	reply, err := conv.Send(context.Background(), "  no chives?  ")
	require.NoError(t, err)
	assert.Equal(t, "Try parsley instead of chives.", reply.Content)
	assert.False(t, reply.Fallback)

	msgs := conv.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "no chives?", msgs[1].Content)

	payload := srv.LastChat()
	assert.Equal(t, "r1", payload["recipeId"])
	rc := payload["recipeContext"].(map[string]any)
	assert.Equal(t, "Herb Omelette", rc["name"])
	assert.Equal(t, []any{"eggs", "chives"}, rc["ingredients"])
}

func TestSendEmpty(t *testing.T) {
	svc, srv, _ := newService(t, nil)
	_, err := svc.Start(omelette).Send(context.Background(), "   ")
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.Zero(t, srv.Hits("/chat"))
}

func TestSendFallsBackToCannedReply(t *testing.T) {
	svc, srv, sess := newService(t, nil)
	srv.Force("/chat", http.StatusInternalServerError)
	conv := svc.Start(omelette)

	reply, err := conv.Send(context.Background(), "how long?")
	require.NoError(t, err)
	assert.True(t, reply.Fallback)
	assert.Equal(t, CannedReply, reply.Content)
	assert.Len(t, conv.Messages(), 3)
	assert.Zero(t, sess.unauthorized)
}

func TestSendFallsBackToGenerator(t *testing.T) {
	gen := &fakeGenerator{reply: "About five minutes."}
	svc, srv, _ := newService(t, gen)
	srv.Force("/chat", http.StatusBadGateway)

	reply, err := svc.Start(omelette).Send(context.Background(), "how long?")
	require.NoError(t, err)
	assert.True(t, reply.Fallback)
	assert.Equal(t, "About five minutes.", reply.Content)
	assert.Contains(t, gen.prompt, "Recipe: Herb Omelette")
	assert.Contains(t, gen.prompt, "Step 2: Cook gently.")
	assert.Contains(t, gen.prompt, "user: how long?")
}

func TestSendGeneratorFailureUsesCannedReply(t *testing.T) {
	svc, srv, _ := newService(t, &fakeGenerator{err: errors.New("quota exceeded")})
	srv.Force("/chat", http.StatusBadGateway)

	reply, err := svc.Start(omelette).Send(context.Background(), "how long?")
	require.NoError(t, err)
	assert.Equal(t, CannedReply, reply.Content)
}

func TestSendUnauthorized(t *testing.T) {
	svc, srv, sess := newService(t, nil)
	srv.RevokeAll()

	reply, err := svc.Start(omelette).Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.True(t, reply.Fallback)
	assert.Equal(t, 1, sess.unauthorized)
}

func TestBuildPromptTrimsHistory(t *testing.T) {
	var history []models.ChatMessage
	for i := 0; i < 10; i++ {
		history = append(history, models.ChatMessage{Role: models.RoleUser, Content: string(rune('a' + i))})
	}
	prompt := buildPrompt(omelette, history, "q")
	assert.NotContains(t, prompt, "user: a\n")
	assert.Contains(t, prompt, "user: j\n")
}
