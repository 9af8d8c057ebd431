package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cookify/internal/api"
	"cookify/internal/api/apitest"
	"cookify/internal/apperr"
	"cookify/internal/config"
	"cookify/internal/models"
	"cookify/internal/presenter"
	"cookify/internal/storage"
)

type fixture struct {
	srv   *apitest.Server
	store *storage.Store
	ui    *presenter.Recorder
	c     *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)

	cfg := &config.Config{APIURL: srv.URL, RequestTimeout: 5 * time.Second}
	client := api.NewClient(cfg, zap.NewNop())
	store := storage.NewStore(storage.NewMemoryKV(), zap.NewNop())
	ui := &presenter.Recorder{}

	return &fixture{
		srv:   srv,
		store: store,
		ui:    ui,
		c:     NewCoordinator(store, client, ui, ui, zap.NewNop()),
	}
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("ValidCredentials", func(t *testing.T) {
		f := newFixture(t)
		f.srv.AddUser("ada@example.com", "secret123", &models.UserProfile{LifestyleChoice: "Vegan"})

		err := f.c.SignIn(ctx, SignInForm{Email: " ada@example.com ", Password: "secret123"})
		require.NoError(t, err)

		token, _ := f.store.Token(ctx)
		assert.NotEmpty(t, token)
		assert.True(t, f.c.IsAuthenticated())
		require.NotNil(t, f.c.User())
		assert.Equal(t, "ada@example.com", f.c.User().Email)
		assert.Equal(t, presenter.ViewDashboard, f.ui.LastView())

		n, _ := f.ui.Last()
		assert.Equal(t, "Signed in successfully!", n.Description)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		f := newFixture(t)
		f.srv.AddUser("ada@example.com", "secret123", nil)

		err := f.c.SignIn(ctx, SignInForm{Email: "ada@example.com", Password: "nope"})
		require.Error(t, err)
		assert.False(t, f.c.IsAuthenticated())

		n, _ := f.ui.Last()
		assert.Equal(t, presenter.VariantDestructive, n.Variant)
		assert.Equal(t, "Invalid credentials", n.Description)
		assert.Empty(t, f.ui.Views())
	})

	t.Run("InvalidForm", func(t *testing.T) {
		f := newFixture(t)

		err := f.c.SignIn(ctx, SignInForm{Email: "not-an-email"})
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
		assert.Zero(t, f.srv.TotalHits())

		n, _ := f.ui.Last()
		assert.Contains(t, n.Description, "Email must be a valid email address")
		assert.Contains(t, n.Description, "Password is required")
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.c.Register(ctx, RegisterForm{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", Password: "cobol1959"})
	require.NoError(t, err)

	token, _ := f.store.Token(ctx)
	assert.NotEmpty(t, token)
	assert.Equal(t, presenter.ViewAuth, f.ui.LastView())
	n, _ := f.ui.Last()
	assert.Equal(t, "Account created successfully!", n.Description)

	err = f.c.Register(ctx, RegisterForm{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", Password: "short"})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestUnauthorizedProfileLogsOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	token := f.srv.AddUser("ada@example.com", "secret123", nil)
	require.NoError(t, f.c.Login(ctx, token))
	require.True(t, f.c.IsAuthenticated())

	f.srv.RevokeAll()
	err := f.c.RefreshProfile(ctx)
	assert.True(t, apperr.IsUnauthorized(err))
	assert.False(t, f.c.IsAuthenticated())
	assert.Nil(t, f.c.User())

	stored, _ := f.store.Token(ctx)
	assert.Empty(t, stored)

	assert.Equal(t, presenter.ViewAuth, f.ui.LastView())
	n, _ := f.ui.Last()
	assert.Equal(t, "Session expired", n.Title)
	assert.Equal(t, presenter.VariantDestructive, n.Variant)
}

func TestLoginRejectsPlaceholderToken(t *testing.T) {
	ctx := context.Background()

	for _, token := range []string{"", "  ", "null", "undefined"} {
		f := newFixture(t)
		err := f.c.Login(ctx, token)
		assert.Equal(t, apperr.CodeMissingToken, apperr.CodeOf(err), "token %q", token)
		assert.False(t, f.c.IsAuthenticated())
		assert.Zero(t, f.srv.TotalHits())
		stored, _ := f.store.Token(ctx)
		assert.Empty(t, stored)
	}
}

func TestSignInWithoutTokenInResponse(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("null"))
	}))
	defer srv.Close()

	cfg := &config.Config{APIURL: srv.URL, RequestTimeout: 5 * time.Second}
	store := storage.NewStore(storage.NewMemoryKV(), zap.NewNop())
	ui := &presenter.Recorder{}
	c := NewCoordinator(store, api.NewClient(cfg, zap.NewNop()), ui, ui, zap.NewNop())

	err := c.SignIn(ctx, SignInForm{Email: "ada@example.com", Password: "secret123"})
	assert.Equal(t, apperr.CodeMissingToken, apperr.CodeOf(err))
	assert.False(t, c.IsAuthenticated())
	assert.Empty(t, ui.Views())

	n, _ := ui.Last()
	assert.Equal(t, "No token received from server", n.Description)
}

func TestRefreshProfileKeepsStateOnServerError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	token := f.srv.AddUser("ada@example.com", "secret123", nil)
	require.NoError(t, f.c.Login(ctx, token))

	f.srv.Force("/users", http.StatusInternalServerError)
	err := f.c.RefreshProfile(ctx)
	require.Error(t, err)
	assert.True(t, f.c.IsAuthenticated())
	assert.NotNil(t, f.c.User())
}

func TestLogoutKeepsGroceryList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	token := f.srv.AddUser("ada@example.com", "secret123", nil)
	require.NoError(t, f.c.Login(ctx, token))
	require.NoError(t, f.store.SetGroceryList(ctx, []models.GroceryItem{{Name: "Milk", State: models.StateManual}}))

	require.NoError(t, f.c.Logout(ctx))

	assert.False(t, f.c.IsAuthenticated())
	assert.Nil(t, f.c.User())
	stored, _ := f.store.Token(ctx)
	assert.Empty(t, stored)
	items, _ := f.store.GroceryList(ctx)
	assert.Len(t, items, 1)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("NoToken", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.c.Restore(ctx))
		assert.False(t, f.c.IsAuthenticated())
		assert.Zero(t, f.srv.TotalHits())
	})

	t.Run("StoredToken", func(t *testing.T) {
		f := newFixture(t)
		token := f.srv.AddUser("ada@example.com", "secret123", nil)
		require.NoError(t, f.store.SetToken(ctx, token))

		require.NoError(t, f.c.Restore(ctx))
		assert.True(t, f.c.IsAuthenticated())
		assert.Equal(t, "ada@example.com", f.c.User().Email)
	})

	t.Run("ExpiredJWT", func(t *testing.T) {
		f := newFixture(t)
		expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-1",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}).SignedString([]byte("test-key"))
		require.NoError(t, err)
		require.NoError(t, f.store.SetToken(ctx, expired))

		require.NoError(t, f.c.Restore(ctx))
		assert.False(t, f.c.IsAuthenticated())
		stored, _ := f.store.Token(ctx)
		assert.Empty(t, stored)
		assert.Zero(t, f.srv.TotalHits())
	})
}

func TestCompleteProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingLifestyle", func(t *testing.T) {
		f := newFixture(t)
		err := f.c.CompleteProfile(ctx, ProfileForm{Nationality: "Nigerian"})
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
		n, _ := f.ui.Last()
		assert.Equal(t, "Missing Information", n.Title)
		assert.Zero(t, f.srv.TotalHits())
	})

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)
		token := f.srv.AddUser("ada@example.com", "secret123", nil)
		require.NoError(t, f.c.Login(ctx, token))

		err := f.c.CompleteProfile(ctx, ProfileForm{
			Nationality: "British",
			Lifestyle:   "Vegetarian",
			HealthGoals: []string{"Heart Health"},
			Allergies:   []string{"Peanuts", " "},
		})
		require.NoError(t, err)

		assert.True(t, f.c.User().HasProfile())
		assert.Equal(t, []string{"Peanuts"}, models.TagNames(f.c.User().Profile.Allergies))
		assert.Equal(t, presenter.ViewPricing, f.ui.LastView())
		n, _ := f.ui.Last()
		assert.Equal(t, "Profile Completed!", n.Title)
	})

	t.Run("SignedOut", func(t *testing.T) {
		f := newFixture(t)
		err := f.c.CompleteProfile(ctx, ProfileForm{Lifestyle: "Vegan"})
		assert.Equal(t, apperr.CodeMissingToken, apperr.CodeOf(err))
		assert.Equal(t, presenter.ViewAuth, f.ui.LastView())
		assert.Zero(t, f.srv.TotalHits())
	})
}

func TestUpgradePlan(t *testing.T) {
	ctx := context.Background()

	t.Run("Free", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.c.UpgradePlan(ctx, models.PlanFree))
		assert.Equal(t, presenter.ViewDashboard, f.ui.LastView())
		assert.Zero(t, f.srv.TotalHits())
	})

	t.Run("Pro", func(t *testing.T) {
		f := newFixture(t)
		token := f.srv.AddUser("ada@example.com", "secret123", &models.UserProfile{Plan: models.PlanFree})
		require.NoError(t, f.c.Login(ctx, token))

		require.NoError(t, f.c.UpgradePlan(ctx, models.PlanPro))
		assert.Equal(t, models.PlanPro, f.c.User().Tier())
		n, _ := f.ui.Last()
		assert.Equal(t, "Welcome to Pro!", n.Title)
	})

	t.Run("ServerError", func(t *testing.T) {
		f := newFixture(t)
		token := f.srv.AddUser("ada@example.com", "secret123", nil)
		require.NoError(t, f.c.Login(ctx, token))
		f.srv.Force("/upgrade-user-plan", http.StatusInternalServerError)

		require.Error(t, f.c.UpgradePlan(ctx, models.PlanPro))
		n, _ := f.ui.Last()
		assert.Equal(t, "Upgrade Failed", n.Title)
		assert.True(t, f.c.IsAuthenticated())
	})
}

func TestVerifyPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("MissingReference", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.c.VerifyPayment(ctx, "  ")
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
		n, _ := f.ui.Last()
		assert.Equal(t, "Invalid Request", n.Title)
		assert.Equal(t, presenter.ViewDashboard, f.ui.LastView())
	})

	cases := []struct {
		status  string
		outcome models.PaymentOutcome
		title   string
	}{
		{"success", models.PaymentSucceeded, "Payment Successful"},
		{"abandoned", models.PaymentFailed, "Payment Failed"},
		{"ongoing", models.PaymentPending, "Payment Processing"},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			f := newFixture(t)
			token := f.srv.AddUser("ada@example.com", "secret123", nil)
			require.NoError(t, f.c.Login(ctx, token))
			f.srv.SetPayment("ref-1", tc.status)

			outcome, err := f.c.VerifyPayment(ctx, "ref-1")
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, outcome)
			n, _ := f.ui.Last()
			assert.Equal(t, tc.title, n.Title)
			assert.Equal(t, presenter.ViewProfile, f.ui.LastView())
		})
	}

	t.Run("SuccessRefreshesPlan", func(t *testing.T) {
		f := newFixture(t)
		token := f.srv.AddUser("ada@example.com", "secret123", nil)
		require.NoError(t, f.c.Login(ctx, token))
		f.srv.SetPayment("ref-2", "success")

		_, err := f.c.VerifyPayment(ctx, "ref-2")
		require.NoError(t, err)
		assert.Equal(t, models.PlanPro, f.c.User().Tier())
	})

	t.Run("UnknownReference", func(t *testing.T) {
		f := newFixture(t)
		token := f.srv.AddUser("ada@example.com", "secret123", nil)
		require.NoError(t, f.c.Login(ctx, token))

		_, err := f.c.VerifyPayment(ctx, "nope")
		require.Error(t, err)
		n, _ := f.ui.Last()
		assert.Equal(t, "Verification Error", n.Title)
		assert.Equal(t, "Transaction reference not found", n.Description)
	})
}

func TestTokenExpired(t *testing.T) {
	now := time.Now()
	sign := func(claims jwt.MapClaims) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
		require.NoError(t, err)
		return s
	}

	assert.False(t, tokenExpired("opaque-token", now))
	assert.False(t, tokenExpired(sign(jwt.MapClaims{"sub": "1"}), now))
	assert.False(t, tokenExpired(sign(jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}), now))
	assert.True(t, tokenExpired(sign(jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()}), now))
}
