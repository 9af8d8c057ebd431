// Package api is the HTTP client for the recipe backend.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"cookify/internal/apperr"
	"cookify/internal/config"
	"cookify/internal/models"
)

// Recorder receives one entry per backend call.
type Recorder interface {
	RecordCall(endpoint, method string, status int, latency time.Duration) error
}

// Client handles communication with the backend API. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	recorder   Recorder
	logger     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRecorder records every call, typically into the metrics store.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// NewClient creates a new API client instance.
func NewClient(cfg *config.Config, logger *zap.Logger, opts ...Option) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		// The development backend serves a self-signed certificate on localhost:5001.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the wrapper around most JSON responses.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (e envelope) text() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// Authentication

// RegisterRequest is the sign-up payload.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

// LoginRequest is the sign-in payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and returns its bearer token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	return c.postForToken(ctx, "register", "/users/register", req)
}

// Login authenticates and returns a bearer token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, error) {
	return c.postForToken(ctx, "login", "/users/login", req)
}

// postForToken handles the two endpoints that answer with a bare token string.
func (c *Client) postForToken(ctx context.Context, op, path string, payload any) (string, error) {
	status, body, err := c.send(ctx, op, http.MethodPost, path, "", payload)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", apperr.FromStatus(op, status, errorText(body))
	}

	token := strings.TrimSpace(strings.Trim(strings.TrimSpace(string(body)), `"'`))
	switch token {
	case "", "undefined", "null":
		return "", apperr.New(apperr.CodeMissingToken, op, "No token received from server")
	}
	return token, nil
}

// Profile

// UpdateProfileRequest is the PUT /upate-profile payload.
type UpdateProfileRequest struct {
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Profile   ProfilePayload `json:"profile"`
}

// ProfilePayload is the preference part of UpdateProfileRequest.
type ProfilePayload struct {
	Nationality     string       `json:"nationality"`
	Ethnicity       string       `json:"ethnicity"`
	LifestyleChoice string       `json:"lifeStyleChoice"`
	HealthGoals     []models.Tag `json:"healthGoals"`
	Allergies       []models.Tag `json:"allergies"`
}

// GetProfile returns the signed-in user.
func (c *Client) GetProfile(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := c.call(ctx, "get profile", http.MethodGet, "/users", token, true, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile saves onboarding answers. The path spelling is the backend's.
func (c *Client) UpdateProfile(ctx context.Context, token string, req UpdateProfileRequest) error {
	return c.call(ctx, "update profile", http.MethodPut, "/upate-profile", token, true, req, nil)
}

// UpgradePlan switches the subscription tier.
func (c *Client) UpgradePlan(ctx context.Context, token string, tier models.PlanTier) error {
	payload := struct {
		Plan models.PlanTier `json:"plan"`
	}{Plan: tier}
	return c.call(ctx, "upgrade plan", http.MethodPost, "/upgrade-user-plan", token, true, payload, nil)
}

// VerifyPayment checks the payment identified by reference.
func (c *Client) VerifyPayment(ctx context.Context, token, reference string) (*models.PaymentVerification, error) {
	path := "/subscriptions/verify-payment?" + url.Values{"reference": {reference}}.Encode()
	var v models.PaymentVerification
	if err := c.call(ctx, "verify payment", http.MethodGet, path, token, true, nil, &v); err != nil {
		return nil, err
	}
	if v.Reference == "" {
		v.Reference = reference
	}
	return &v, nil
}

// Recipes

// SearchRecipes asks the backend for suggestions matching query.
func (c *Client) SearchRecipes(ctx context.Context, token string, query url.Values) ([]models.Recipe, error) {
	var recipes []models.Recipe
	path := "/recipes/search?" + query.Encode()
	if err := c.call(ctx, "search recipes", http.MethodGet, path, token, true, nil, &recipes); err != nil {
		return nil, err
	}
	return recipes, nil
}

// GetRecipe fetches a single recipe with its instructions.
func (c *Client) GetRecipe(ctx context.Context, token, id string) (*models.Recipe, error) {
	var r models.Recipe
	if err := c.call(ctx, "get recipe", http.MethodGet, "/recipes/"+url.PathEscape(id), token, true, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SaveRecipe stores r in the user's server-side collection.
func (c *Client) SaveRecipe(ctx context.Context, token string, r models.Recipe) error {
	return c.call(ctx, "save recipe", http.MethodPost, "/recipes/save", token, true, r, nil)
}

// Grocery list

// GetGroceryList returns the server-synchronized grocery groups.
func (c *Client) GetGroceryList(ctx context.Context, token string) ([]models.GroceryGroup, error) {
	var groups []models.GroceryGroup
	if err := c.call(ctx, "get grocery list", http.MethodGet, "/grocery-list", token, true, nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// GroceryItemPayload is one entry of AddGroceryItemsRequest.
type GroceryItemPayload struct {
	Name   string              `json:"name"`
	Status models.GroceryState `json:"status"`
}

// AddGroceryItemsRequest is a batch of items tied to one recipe.
type AddGroceryItemsRequest struct {
	RecipeID   string               `json:"recipeId"`
	RecipeName string               `json:"recipeName"`
	Items      []GroceryItemPayload `json:"items"`
}

// AddGroceryItems posts a batch to the server grocery list.
func (c *Client) AddGroceryItems(ctx context.Context, token string, req AddGroceryItemsRequest) error {
	return c.call(ctx, "add grocery items", http.MethodPost, "/grocery-list", token, true, req, nil)
}

// Reviews

// ReviewRequest is the POST /reviews payload.
type ReviewRequest struct {
	Rating   int    `json:"rating"`
	Comment  string `json:"comment"`
	RecipeID string `json:"recipeId,omitempty"`
}

// ListReviews returns public testimonials. No token is required.
func (c *Client) ListReviews(ctx context.Context) ([]models.Review, error) {
	var reviews []models.Review
	if err := c.call(ctx, "list reviews", http.MethodGet, "/reviews", "", false, nil, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// SubmitReview posts a review.
func (c *Client) SubmitReview(ctx context.Context, token string, req ReviewRequest) error {
	return c.call(ctx, "submit review", http.MethodPost, "/reviews", token, true, req, nil)
}

// Chat

// RecipeContext tells the chat endpoint which recipe the conversation is about.
type RecipeContext struct {
	Name         string   `json:"name"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
}

// ChatRequest is the POST /chat payload.
type ChatRequest struct {
	Message       string        `json:"message"`
	RecipeID      string        `json:"recipeId"`
	RecipeContext RecipeContext `json:"recipeContext"`
}

// Chat sends a message to the AI chef and returns its reply. The reply is either
// data.response or data itself as a string.
func (c *Client) Chat(ctx context.Context, token string, req ChatRequest) (string, error) {
	var raw json.RawMessage
	if err := c.call(ctx, "chat", http.MethodPost, "/chat", token, true, req, &raw); err != nil {
		return "", err
	}

	var obj struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Response != "" {
		return obj.Response, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s, nil
	}
	return "", apperr.New(apperr.CodeDecode, "chat", "empty reply")
}

// call performs an enveloped JSON request and decodes data into out when out is non-nil.
func (c *Client) call(ctx context.Context, op, method, path, token string, auth bool, payload, out any) error {
	if auth && token == "" {
		return apperr.New(apperr.CodeMissingToken, op, "Please sign in to continue.")
	}

	status, body, err := c.send(ctx, op, method, path, token, payload)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return apperr.FromStatus(op, status, errorText(body))
	}

	if len(bytes.TrimSpace(body)) == 0 {
		if out != nil {
			return apperr.New(apperr.CodeDecode, op, "empty response body")
		}
		return nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if out != nil {
			return apperr.Wrap(apperr.CodeDecode, op, err)
		}
		// Some mutations answer with plain text.
		return nil
	}
	if env.Success != nil && !*env.Success {
		msg := env.text()
		if msg == "" {
			msg = "request failed"
		}
		return &apperr.Error{Code: apperr.CodeApplication, Op: op, Status: status, Message: msg}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return apperr.New(apperr.CodeDecode, op, "response has no data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return apperr.Wrap(apperr.CodeDecode, op, err)
	}
	return nil
}

// send issues the request and returns the status and full body.
func (c *Client) send(ctx context.Context, op, method, path, token string, payload any) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	endpoint := strings.SplitN(path, "?", 2)[0]
	if err != nil {
		c.record(endpoint, method, 0, latency)
		c.logger.Warn("Backend request failed", zap.String("op", op), zap.String("endpoint", endpoint), zap.Error(err))
		return 0, nil, apperr.Wrap(apperr.CodeTransport, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.record(endpoint, method, resp.StatusCode, latency)
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.CodeTransport, op, err)
	}

	c.logger.Debug("Backend request",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", latency))
	return resp.StatusCode, body, nil
}

func (c *Client) record(endpoint, method string, status int, latency time.Duration) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordCall(endpoint, method, status, latency); err != nil {
		c.logger.Warn("Failed to record backend call", zap.String("endpoint", endpoint), zap.Error(err))
	}
}

// errorText extracts a readable message from an error body, JSON or plain text.
func errorText(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		return env.text()
	}
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
