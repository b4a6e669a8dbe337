package controllers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/launchfox/launchfox/app/models"
	"github.com/launchfox/launchfox/app/repository"
	"github.com/launchfox/launchfox/internal/pkg/billing"
	"github.com/launchfox/launchfox/internal/pkg/database"
	"github.com/launchfox/launchfox/internal/pkg/usercontext"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleAuthRegister creates a local account and logs it in. Every new user
// starts on an explicit free subscription row.
func HandleAuthRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Request body could not be parsed")
	}

	user, err := models.CreateUser(req.Name, strings.ToLower(strings.TrimSpace(req.Email)), req.Password)
	if err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, "validation_failed", err.Error())
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	if _, err := repo.GetByEmail(user.Email); err == nil {
		return jsonError(c, fiber.StatusConflict, "email_taken", "An account with this email already exists")
	}

	if err := repo.Create(user); err != nil {
		log.Printf("[Auth] user create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Registration failed")
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	if _, err := svc.EnsureFreeFallback(c.Context(), user.ID); err != nil {
		log.Printf("[Auth] free subscription setup failed for user %d: %v", user.ID, err)
	}

	if err := createUserSession(c, user); err != nil {
		log.Printf("[Auth] session create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Session could not be established")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": userResponse(user)})
}

// HandleAuthLogin authenticates with email and password. Failures share one
// generic message so the endpoint does not leak which part was wrong.
func HandleAuthLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_request", "Request body could not be parsed")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Auth] login lookup failed: %v", err)
		}
		return jsonError(c, fiber.StatusUnauthorized, "invalid_credentials", "Email or password is incorrect")
	}

	if !user.IsActive() || !models.CheckPasswordHash(req.Password, user.Password) {
		return jsonError(c, fiber.StatusUnauthorized, "invalid_credentials", "Email or password is incorrect")
	}

	if err := createUserSession(c, user); err != nil {
		log.Printf("[Auth] session create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Session could not be established")
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := repo.Update(user); err != nil {
		log.Printf("[Auth] last login update failed for user %d: %v", user.ID, err)
	}

	return c.JSON(fiber.Map{"user": userResponse(user)})
}

// HandleAuthLogout tears down the session.
func HandleAuthLogout(c *fiber.Ctx) error {
	if err := destroyUserSession(c); err != nil {
		log.Printf("[Auth] logout failed: %v", err)
	}
	return c.JSON(fiber.Map{"status": "logged_out"})
}

// HandleAuthMe returns the authenticated user's profile.
func HandleAuthMe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Login required")
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "User not found")
		}
		log.Printf("[Auth] user lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load user")
	}

	return c.JSON(fiber.Map{"user": userResponse(user)})
}
