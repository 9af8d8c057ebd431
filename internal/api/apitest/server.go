// Package apitest provides an in-memory recipe backend for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"cookify/internal/models"
)

type account struct {
	password string
	user     models.User
}

// Server is a fake backend speaking the same contract as the real one.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	accounts  map[string]*account // by email
	tokens    map[string]string   // token -> email
	recipes   []models.Recipe
	saved     map[string][]models.Recipe
	groceries map[string][]models.GroceryGroup
	reviews   []models.Review
	payments  map[string]string
	chatReply string
	forced    map[string]int
	hits      map[string]int
	lastQuery url.Values
	lastChat  map[string]any
	nextID    int
}

// NewServer starts a fake backend. Close it with Server.Close.
func NewServer() *Server {
	s := &Server{
		accounts:  make(map[string]*account),
		tokens:    make(map[string]string),
		saved:     make(map[string][]models.Recipe),
		groceries: make(map[string][]models.GroceryGroup),
		payments:  make(map[string]string),
		forced:    make(map[string]int),
		hits:      make(map[string]int),
		chatReply: "Use olive oil instead of butter.",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/register", s.handleRegister)
	mux.HandleFunc("POST /users/login", s.handleLogin)
	mux.HandleFunc("GET /users", s.authed(s.handleProfile))
	mux.HandleFunc("PUT /upate-profile", s.authed(s.handleUpdateProfile))
	mux.HandleFunc("POST /upgrade-user-plan", s.authed(s.handleUpgrade))
	mux.HandleFunc("GET /recipes/search", s.authed(s.handleSearch))
	mux.HandleFunc("POST /recipes/save", s.authed(s.handleSave))
	mux.HandleFunc("GET /recipes/{id}", s.authed(s.handleRecipe))
	mux.HandleFunc("GET /grocery-list", s.authed(s.handleGroceryList))
	mux.HandleFunc("POST /grocery-list", s.authed(s.handleAddGrocery))
	mux.HandleFunc("GET /reviews", s.handleReviews)
	mux.HandleFunc("POST /reviews", s.authed(s.handleAddReview))
	mux.HandleFunc("POST /chat", s.authed(s.handleChat))
	mux.HandleFunc("GET /subscriptions/verify-payment", s.authed(s.handleVerifyPayment))

	s.Server = httptest.NewServer(s.intercept(mux))
	return s
}

// AddUser registers an account directly and returns its token.
func (s *Server) AddUser(email, password string, profile *models.UserProfile) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.accounts[email] = &account{
		password: password,
		user: models.User{
			ID:        fmt.Sprintf("user-%d", s.nextID),
			Email:     email,
			FirstName: "Test",
			LastName:  "User",
			Profile:   profile,
		},
	}
	return s.issueToken(email)
}

// SetRecipes sets what every search returns.
func (s *Server) SetRecipes(recipes []models.Recipe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recipes = recipes
}

// SetPayment sets the provider status for a payment reference.
func (s *Server) SetPayment(reference, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[reference] = status
}

// SetChatReply sets the assistant's answer.
func (s *Server) SetChatReply(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatReply = reply
}

// Force makes every request to path answer with status until cleared with 0.
func (s *Server) Force(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.forced, path)
		return
	}
	s.forced[path] = status
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// TotalHits returns the number of requests received.
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.hits {
		n += h
	}
	return n
}

// LastQuery returns the query string of the latest search.
func (s *Server) LastQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQuery
}

// LastChat returns the latest decoded chat payload.
func (s *Server) LastChat() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastChat
}

// User returns the stored account for email.
func (s *Server) User(email string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[email]
	if !ok {
		return models.User{}, false
	}
	return a.user, true
}

// GroceryGroups returns the server grocery list of email.
func (s *Server) GroceryGroups(email string) []models.GroceryGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.GroceryGroup(nil), s.groceries[email]...)
}

// Reviews returns every stored review.
func (s *Server) Reviews() []models.Review {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Review(nil), s.reviews...)
}

// RevokeAll invalidates every issued token.
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

func (s *Server) issueToken(email string) string {
	s.nextID++
	token := fmt.Sprintf("token-%d", s.nextID)
	s.tokens[token] = email
	return token
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		status, forced := s.forced[r.URL.Path]
		s.mu.Unlock()
		if forced {
			writeJSON(w, status, map[string]any{"success": false, "error": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, email string)

func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		email, ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Unauthorized"})
			return
		}
		h(w, r, email)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"firstname"`
		LastName  string `json:"lastname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[req.Email]; exists {
		http.Error(w, "User already exists", http.StatusConflict)
		return
	}
	s.nextID++
	s.accounts[req.Email] = &account{
		password: req.Password,
		user: models.User{
			ID:        fmt.Sprintf("user-%d", s.nextID),
			Email:     req.Email,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		},
	}
	token := s.issueToken(req.Email)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%q\n", token)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	a, exists := s.accounts[req.Email]
	if !exists || a.password != req.Password {
		http.Error(w, "Invalid credentials", http.StatusBadRequest)
		return
	}
	fmt.Fprint(w, s.issueToken(req.Email))
}

func (s *Server) handleProfile(w http.ResponseWriter, _ *http.Request, email string) {
	s.mu.Lock()
	user := s.accounts[email].user
	s.mu.Unlock()
	ok(w, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, email string) {
	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Profile   struct {
			Nationality     string       `json:"nationality"`
			Ethnicity       string       `json:"ethnicity"`
			LifestyleChoice string       `json:"lifeStyleChoice"`
			HealthGoals     []models.Tag `json:"healthGoals"`
			Allergies       []models.Tag `json:"allergies"`
		} `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid profile"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := &s.accounts[email].user
	u.FirstName, u.LastName = req.FirstName, req.LastName
	plan := models.PlanFree
	if u.Profile != nil && u.Profile.Plan != 0 {
		plan = u.Profile.Plan
	}
	u.Profile = &models.UserProfile{
		SubscriptionPlan: plan.String() + " Plan",
		Plan:             plan,
		Nationality:      req.Profile.Nationality,
		Ethnicity:        req.Profile.Ethnicity,
		LifestyleChoice:  req.Profile.LifestyleChoice,
		HealthGoals:      req.Profile.HealthGoals,
		Allergies:        req.Profile.Allergies,
	}
	ok(w, u)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request, email string) {
	var req struct {
		Plan models.PlanTier `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || (req.Plan != models.PlanFree && req.Plan != models.PlanPro) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid plan"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := &s.accounts[email].user
	if u.Profile == nil {
		u.Profile = &models.UserProfile{}
	}
	u.Profile.Plan = req.Plan
	u.Profile.SubscriptionPlan = req.Plan.String() + " Plan"
	ok(w, "Plan updated")
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, _ string) {
	s.mu.Lock()
	s.lastQuery = r.URL.Query()
	recipes := append([]models.Recipe{}, s.recipes...)
	s.mu.Unlock()
	ok(w, recipes)
}

func (s *Server) handleRecipe(w http.ResponseWriter, r *http.Request, _ string) {
	id := r.PathValue("id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recipes {
		if rec.ID == id {
			ok(w, rec)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Recipe not found"})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, email string) {
	var rec models.Recipe
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid recipe"})
		return
	}
	s.mu.Lock()
	s.saved[email] = append(s.saved[email], rec)
	s.mu.Unlock()
	ok(w, "Recipe saved")
}

func (s *Server) handleGroceryList(w http.ResponseWriter, _ *http.Request, email string) {
	s.mu.Lock()
	groups := append([]models.GroceryGroup{}, s.groceries[email]...)
	s.mu.Unlock()
	ok(w, groups)
}

func (s *Server) handleAddGrocery(w http.ResponseWriter, r *http.Request, email string) {
	var group models.GroceryGroup
	if err := json.NewDecoder(r.Body).Decode(&group); err != nil || group.RecipeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "recipeId is required"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	groups := s.groceries[email]
	for i := range groups {
		if groups[i].RecipeID == group.RecipeID {
			groups[i].Items = append(groups[i].Items, group.Items...)
			ok(w, groups[i])
			return
		}
	}
	s.groceries[email] = append(groups, group)
	ok(w, group)
}

func (s *Server) handleReviews(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	reviews := append([]models.Review{}, s.reviews...)
	s.mu.Unlock()
	ok(w, reviews)
}

func (s *Server) handleAddReview(w http.ResponseWriter, r *http.Request, email string) {
	var req struct {
		Rating   int    `json:"rating"`
		Comment  string `json:"comment"`
		RecipeID string `json:"recipeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Rating < 1 || req.Rating > 5 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "rating must be between 1 and 5"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.accounts[email].user
	s.nextID++
	review := models.Review{
		ID:        fmt.Sprintf("review-%d", s.nextID),
		UserName:  strings.TrimSpace(u.FirstName + " " + u.LastName),
		Rating:    req.Rating,
		Comment:   req.Comment,
		CreatedAt: time.Now().UTC(),
	}
	s.reviews = append(s.reviews, review)
	ok(w, review)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, _ string) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid message"})
		return
	}
	s.mu.Lock()
	s.lastChat = req
	reply := s.chatReply
	s.mu.Unlock()
	ok(w, map[string]string{"response": reply})
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request, email string) {
	ref := r.URL.Query().Get("reference")
	s.mu.Lock()
	defer s.mu.Unlock()
	status, known := s.payments[ref]
	if !known {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Transaction reference not found"})
		return
	}
	if status == "success" {
		u := &s.accounts[email].user
		if u.Profile == nil {
			u.Profile = &models.UserProfile{}
		}
		u.Profile.Plan = models.PlanPro
		u.Profile.SubscriptionPlan = "Pro Plan"
	}
	ok(w, models.PaymentVerification{Reference: ref, Status: status})
}
