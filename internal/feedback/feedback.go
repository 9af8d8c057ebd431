// Package feedback decides when to ask for a review and submits it.
package feedback

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"cookify/internal/api"
	"cookify/internal/apperr"
	"cookify/internal/models"
	"cookify/internal/presenter"
	"cookify/internal/storage"
)

const maxCommentLength = 1000

// Backend is the reviews part of the API client.
type Backend interface {
	ListReviews(ctx context.Context) ([]models.Review, error)
	SubmitReview(ctx context.Context, token string, req api.ReviewRequest) error
}

// Session supplies the token and handles expired sessions.
type Session interface {
	Token(ctx context.Context) (string, error)
	HandleUnauthorized(ctx context.Context)
}

// Service counts recipe views and posts reviews.
type Service struct {
	backend   Backend
	session   Session
	store     *storage.Store
	notifier  presenter.Notifier
	threshold int
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewService creates a Service that prompts for feedback every threshold views.
func NewService(backend Backend, session Session, store *storage.Store, notifier presenter.Notifier, threshold int, logger *zap.Logger) *Service {
	if threshold < 1 {
		threshold = 1
	}
	return &Service{
		backend:   backend,
		session:   session,
		store:     store,
		notifier:  notifier,
		threshold: threshold,
		validate:  validator.New(),
		logger:    logger,
	}
}

// RecordView counts a recipe view. It returns true when the counter reaches the
// threshold, resetting it, so the prompt shows once per threshold views.
func (s *Service) RecordView(ctx context.Context) (bool, error) {
	n, err := s.store.FeedbackCounter(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read feedback counter: %w", err)
	}
	n++
	if n >= s.threshold {
		if err := s.store.SetFeedbackCounter(ctx, 0); err != nil {
			return false, fmt.Errorf("failed to reset feedback counter: %w", err)
		}
		return true, nil
	}
	if err := s.store.SetFeedbackCounter(ctx, n); err != nil {
		return false, fmt.Errorf("failed to store feedback counter: %w", err)
	}
	return false, nil
}

// Submit posts a review. A rating of 0 means no star was picked.
func (s *Service) Submit(ctx context.Context, rating int, comment, recipeID string) error {
	if rating == 0 {
		s.notifier.Notify(presenter.Failure("Error", "Please select a rating star"))
		return apperr.Validation("submit review", "Please select a rating star")
	}
	if err := s.validate.Var(rating, "min=1,max=5"); err != nil {
		s.notifier.Notify(presenter.Failure("Error", "Rating must be between 1 and 5"))
		return apperr.Validation("submit review", "Rating must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if r := []rune(comment); len(r) > maxCommentLength {
		comment = string(r[:maxCommentLength])
	}

	token, err := s.session.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	err = s.backend.SubmitReview(ctx, token, api.ReviewRequest{Rating: rating, Comment: comment, RecipeID: recipeID})
	if err != nil {
		s.logger.Warn("Review submission failed", zap.Error(err))
		if apperr.IsUnauthorized(err) {
			s.session.HandleUnauthorized(ctx)
			return err
		}
		s.notifier.Notify(presenter.Failure("Error", "Could not submit feedback. Please try again."))
		return err
	}

	s.notifier.Notify(presenter.Info("Thank you!", "Your feedback helps us improve Cookify."))
	return nil
}

// Reviews lists public testimonials.
func (s *Service) Reviews(ctx context.Context) ([]models.Review, error) {
	reviews, err := s.backend.ListReviews(ctx)
	if err != nil {
		s.logger.Warn("Failed to load reviews", zap.Error(err))
		return nil, err
	}
	return reviews, nil
}
