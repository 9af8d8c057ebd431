// Package session owns authentication state and the user profile.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"cookify/internal/api"
	"cookify/internal/apperr"
	"cookify/internal/models"
	"cookify/internal/presenter"
	"cookify/internal/storage"
)

// Backend is the part of the API client the coordinator needs.
type Backend interface {
	Register(ctx context.Context, req api.RegisterRequest) (string, error)
	Login(ctx context.Context, req api.LoginRequest) (string, error)
	GetProfile(ctx context.Context, token string) (*models.User, error)
	UpdateProfile(ctx context.Context, token string, req api.UpdateProfileRequest) error
	UpgradePlan(ctx context.Context, token string, tier models.PlanTier) error
	VerifyPayment(ctx context.Context, token, reference string) (*models.PaymentVerification, error)
}

// Coordinator holds whether the user is signed in and who they are.
type Coordinator struct {
	mu            sync.RWMutex
	authenticated bool
	user          *models.User

	store     *storage.Store
	backend   Backend
	notifier  presenter.Notifier
	navigator presenter.Navigator
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewCoordinator creates a signed-out coordinator. Call Restore to pick up a stored token.
func NewCoordinator(store *storage.Store, backend Backend, notifier presenter.Notifier, navigator presenter.Navigator, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:     store,
		backend:   backend,
		notifier:  notifier,
		navigator: navigator,
		validate:  validator.New(),
		logger:    logger,
		now:       time.Now,
	}
}

// IsAuthenticated reports whether a token is held.
func (c *Coordinator) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}

// User returns the last fetched profile, or nil.
func (c *Coordinator) User() *models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Token returns the stored bearer token, "" when signed out.
func (c *Coordinator) Token(ctx context.Context) (string, error) {
	return c.store.Token(ctx)
}

// Restore resumes a stored session. An expired JWT is discarded.
func (c *Coordinator) Restore(ctx context.Context) error {
	token, err := c.store.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		c.setState(false, nil)
		return nil
	}
	if tokenExpired(token, c.now()) {
		c.logger.Info("Discarding expired session token")
		return c.Logout(ctx)
	}

	c.setState(true, nil)
	if err := c.fetchProfile(ctx, token); err != nil && !apperr.IsUnauthorized(err) {
		c.logger.Warn("Profile fetch on restore failed", zap.Error(err))
	}
	return nil
}

// Login stores token and fetches the profile. A failed profile fetch is logged and
// leaves the session authenticated unless the backend answered 401. A blank or
// placeholder token is rejected without touching the session.
func (c *Coordinator) Login(ctx context.Context, token string) error {
	token = storage.CleanToken(token)
	if token == "" {
		return apperr.New(apperr.CodeMissingToken, "login", "No token received from server")
	}
	if err := c.store.SetToken(ctx, token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	c.setState(true, nil)
	if err := c.fetchProfile(ctx, token); err != nil {
		c.logger.Warn("Profile fetch after login failed", zap.Error(err))
	}
	return nil
}

// Logout clears the token and profile. The local grocery list is kept.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.setState(false, nil)
	if err := c.store.ClearToken(ctx); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// RefreshProfile re-fetches the profile. A 401 signs the user out; other failures
// leave state unchanged.
func (c *Coordinator) RefreshProfile(ctx context.Context) error {
	token, err := c.store.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		return nil
	}
	return c.fetchProfile(ctx, token)
}

func (c *Coordinator) fetchProfile(ctx context.Context, token string) error {
	user, err := c.backend.GetProfile(ctx, token)
	if err != nil {
		if apperr.IsUnauthorized(err) {
			c.logger.Info("Profile fetch unauthorized, signing out")
			c.HandleUnauthorized(ctx)
		}
		return err
	}
	c.setState(true, user)
	return nil
}

// SignIn validates the form, exchanges credentials for a token and opens the dashboard.
func (c *Coordinator) SignIn(ctx context.Context, form SignInForm) error {
	form.Email = strings.TrimSpace(form.Email)
	if err := c.validate.Struct(form); err != nil {
		return c.fail("sign in", "Error", apperr.Validation("sign in", describe(err)))
	}

	token, err := c.backend.Login(ctx, api.LoginRequest{Email: form.Email, Password: form.Password})
	if err != nil {
		return c.fail("sign in", "Error", err)
	}
	if err := c.Login(ctx, token); err != nil {
		return c.fail("sign in", "Error", err)
	}

	c.notifier.Notify(presenter.Info("Success", "Signed in successfully!"))
	c.navigator.Navigate(presenter.ViewDashboard)
	return nil
}

// Register creates the account, stores its token and returns to the sign-in view.
func (c *Coordinator) Register(ctx context.Context, form RegisterForm) error {
	form.Email = strings.TrimSpace(form.Email)
	form.FirstName = strings.TrimSpace(form.FirstName)
	form.LastName = strings.TrimSpace(form.LastName)
	if err := c.validate.Struct(form); err != nil {
		return c.fail("register", "Error", apperr.Validation("register", describe(err)))
	}

	token, err := c.backend.Register(ctx, api.RegisterRequest{
		Email:     form.Email,
		Password:  form.Password,
		FirstName: form.FirstName,
		LastName:  form.LastName,
	})
	if err != nil {
		return c.fail("register", "Error", err)
	}
	if err := c.Login(ctx, token); err != nil {
		return c.fail("register", "Error", err)
	}

	c.notifier.Notify(presenter.Info("Success", "Account created successfully!"))
	c.navigator.Navigate(presenter.ViewAuth)
	return nil
}

// HandleUnauthorized ends the session after any 401 and sends the user to sign in.
func (c *Coordinator) HandleUnauthorized(ctx context.Context) {
	if err := c.Logout(ctx); err != nil {
		c.logger.Error("Failed to clear session", zap.Error(err))
	}
	c.notifier.Notify(presenter.Failure("Session expired", "Please sign in again."))
	c.navigator.Navigate(presenter.ViewAuth)
}

// CompleteProfile submits the onboarding answers and moves on to plan selection.
func (c *Coordinator) CompleteProfile(ctx context.Context, form ProfileForm) error {
	if strings.TrimSpace(form.Lifestyle) == "" {
		c.notifier.Notify(presenter.Failure("Missing Information", "Please select a lifestyle choice."))
		return apperr.Validation("complete profile", "Please select a lifestyle choice.")
	}

	token, err := c.requireToken(ctx, "complete profile")
	if err != nil {
		return err
	}

	user := c.User()
	if user == nil {
		if err := c.fetchProfile(ctx, token); err != nil {
			if apperr.IsUnauthorized(err) {
				return err
			}
			return c.failAuthAware(ctx, "complete profile", "Error", "Could not update profile. Please try again.", err)
		}
		user = c.User()
	}

	req := api.UpdateProfileRequest{
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Profile: api.ProfilePayload{
			Nationality:     strings.TrimSpace(form.Nationality),
			Ethnicity:       strings.TrimSpace(form.Ethnicity),
			LifestyleChoice: strings.TrimSpace(form.Lifestyle),
			HealthGoals:     models.Tags(form.HealthGoals),
			Allergies:       models.Tags(form.Allergies),
		},
	}
	if err := c.backend.UpdateProfile(ctx, token, req); err != nil {
		return c.failAuthAware(ctx, "complete profile", "Error", "Could not update profile. Please try again.", err)
	}

	if err := c.RefreshProfile(ctx); err != nil {
		c.logger.Warn("Profile refresh after update failed", zap.Error(err))
	}
	c.notifier.Notify(presenter.Info("Profile Completed!", "Your kitchen is ready."))
	c.navigator.Navigate(presenter.ViewPricing)
	return nil
}

// UpgradePlan applies a plan choice. Free needs no call; Pro is posted to the backend.
func (c *Coordinator) UpgradePlan(ctx context.Context, tier models.PlanTier) error {
	if tier != models.PlanPro {
		c.navigator.Navigate(presenter.ViewDashboard)
		return nil
	}

	token, err := c.requireToken(ctx, "upgrade plan")
	if err != nil {
		return err
	}
	if err := c.backend.UpgradePlan(ctx, token, tier); err != nil {
		return c.failAuthAware(ctx, "upgrade plan", "Upgrade Failed", "Could not process upgrade. Please try again.", err)
	}

	if err := c.RefreshProfile(ctx); err != nil {
		c.logger.Warn("Profile refresh after upgrade failed", zap.Error(err))
	}
	c.notifier.Notify(presenter.Info("Welcome to Pro!", "Your account has been upgraded."))
	c.navigator.Navigate(presenter.ViewDashboard)
	return nil
}

// VerifyPayment checks a payment reference and refreshes the profile when it succeeded.
func (c *Coordinator) VerifyPayment(ctx context.Context, reference string) (models.PaymentOutcome, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		c.notifier.Notify(presenter.Failure("Invalid Request", "No payment reference found."))
		c.navigator.Navigate(presenter.ViewDashboard)
		return "", apperr.Validation("verify payment", "No payment reference found.")
	}

	token, err := c.requireToken(ctx, "verify payment")
	if err != nil {
		return "", err
	}
	v, err := c.backend.VerifyPayment(ctx, token, reference)
	if err != nil {
		msg := apperr.UserMessage(err)
		return "", c.failAuthAware(ctx, "verify payment", "Verification Error", msg, err)
	}

	outcome := v.Outcome()
	switch outcome {
	case models.PaymentSucceeded:
		if err := c.RefreshProfile(ctx); err != nil {
			c.logger.Warn("Profile refresh after payment failed", zap.Error(err))
		}
		c.notifier.Notify(presenter.Info("Payment Successful", "Your subscription has been upgraded."))
	case models.PaymentFailed:
		c.notifier.Notify(presenter.Failure("Payment Failed", "Payment status: "+v.Status))
	default:
		c.notifier.Notify(presenter.Info("Payment Processing", fmt.Sprintf("Current status: %s. Please check back later.", v.Status)))
	}
	c.navigator.Navigate(presenter.ViewProfile)
	return outcome, nil
}

func (c *Coordinator) requireToken(ctx context.Context, op string) (string, error) {
	token, err := c.store.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		err := apperr.New(apperr.CodeMissingToken, op, "Please sign in to continue.")
		c.HandleUnauthorized(ctx)
		return "", err
	}
	return token, nil
}

// fail logs err and shows it as a destructive notification.
func (c *Coordinator) fail(op, title string, err error) error {
	c.logger.Warn("Operation failed", zap.String("op", op), zap.Error(err))
	c.notifier.Notify(presenter.Failure(title, apperr.UserMessage(err)))
	return err
}

// failAuthAware routes 401s to HandleUnauthorized and reports everything else with message.
func (c *Coordinator) failAuthAware(ctx context.Context, op, title, message string, err error) error {
	c.logger.Warn("Operation failed", zap.String("op", op), zap.Error(err))
	if apperr.IsUnauthorized(err) {
		c.HandleUnauthorized(ctx)
		return err
	}
	c.notifier.Notify(presenter.Failure(title, message))
	return err
}

func (c *Coordinator) setState(authenticated bool, user *models.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = authenticated
	c.user = user
}
