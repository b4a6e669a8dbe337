package controllers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/launchfox/launchfox/app/models"
)

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", firstNonEmpty("a", "b"))
	assert.Equal(t, "b", firstNonEmpty("", "b"))
	assert.Equal(t, "c", firstNonEmpty("", "", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

func TestUserResponse(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	user := &models.User{
		ID:        7,
		Name:      "Test",
		Email:     "test@example.com",
		Plan:      "pro",
		CreatedAt: created,
	}

	resp := userResponse(user)
	assert.Equal(t, uint(7), resp["id"])
	assert.Equal(t, "pro", resp["plan"])
	assert.Equal(t, created.Format(time.RFC3339), resp["created_at"])

	// Empty plan column falls back to free.
	user.Plan = ""
	assert.Equal(t, "free", userResponse(user)["plan"])
}
