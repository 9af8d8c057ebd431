package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	err := FromStatus("get profile", http.StatusUnauthorized, "")
	assert.Equal(t, CodeUnauthorized, err.Code)
	assert.Equal(t, "Unauthorized", err.Message)

	err = FromStatus("search recipes", http.StatusBadGateway, "upstream down")
	assert.Equal(t, CodeStatus, err.Code)
	assert.Equal(t, "search recipes: STATUS (status 502): upstream down", err.Error())
}

func TestIsUnauthorized(t *testing.T) {
	wrapped := fmt.Errorf("refresh: %w", FromStatus("get profile", http.StatusUnauthorized, ""))
	assert.True(t, IsUnauthorized(wrapped))
	assert.True(t, IsUnauthorized(New(CodeMissingToken, "chat", "no token")))
	assert.False(t, IsUnauthorized(FromStatus("chat", http.StatusInternalServerError, "")))
	assert.False(t, IsUnauthorized(errors.New("plain")))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "An unexpected error occurred", UserMessage(errors.New("boom")))
	assert.Equal(t, "Could not reach the server. Check your connection and try again.",
		UserMessage(Wrap(CodeTransport, "login", errors.New("dial tcp"))))
	assert.Equal(t, "Invalid credentials", UserMessage(FromStatus("login", http.StatusBadRequest, "Invalid credentials")))
	assert.Equal(t, "Please select a rating star", UserMessage(Validation("review", "Please select a rating star")))
	assert.Equal(t, "No token received from server", UserMessage(New(CodeMissingToken, "login", "No token received from server")))
	assert.Equal(t, "Your session has expired. Please sign in again.", UserMessage(&Error{Code: CodeMissingToken, Op: "chat"}))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeTransport, "login", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeTransport, CodeOf(fmt.Errorf("outer: %w", err)))
}
