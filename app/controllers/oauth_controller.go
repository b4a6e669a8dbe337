package controllers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/markbates/goth"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/launchfox/launchfox/app/models"
	"github.com/launchfox/launchfox/app/repository"
	"github.com/launchfox/launchfox/internal/pkg/billing"
	"github.com/launchfox/launchfox/internal/pkg/database"
)

// HandleOAuthBegin redirects to the provider's consent screen. The state
// token round-trip is handled by the goth session store.
func HandleOAuthBegin(c *fiber.Ctx) error {
	return gothfiber.BeginAuthHandler(c)
}

// HandleOAuthCallback completes the provider flow and logs the user in
func HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		log.Printf("[OAuth] callback rejected: %v", err)
		return jsonError(c, fiber.StatusUnauthorized, "oauth_failed", "Sign-in could not be completed")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()

	var appUser *models.User
	account, err := repo.GetProviderAccount(u.Provider, u.UserID)
	switch {
	case err == nil:
		appUser, err = repo.GetByID(account.UserID)
		if err != nil {
			log.Printf("[OAuth] linked user %d missing: %v", account.UserID, err)
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Sign-in could not be completed")
		}

	case errors.Is(err, gorm.ErrRecordNotFound):
		// First login through this provider: match by email or create a
		// fresh account with an unusable placeholder password.
		if u.Email != "" {
			if existing, lookupErr := repo.GetByEmail(u.Email); lookupErr == nil {
				appUser = existing
			}
		}
		if appUser == nil {
			placeholder := fmt.Sprintf("oauth_%d", time.Now().UnixNano())
			hash, _ := models.HashPassword(placeholder)
			email := u.Email
			if email == "" {
				email = fmt.Sprintf("%s_%s@%s.oauth.local", u.Provider, u.UserID, u.Provider)
			}
			appUser = &models.User{
				Name:      firstNonEmpty(u.Name, u.NickName, u.Email, "User"),
				Email:     email,
				Password:  hash,
				AvatarURL: u.AvatarURL,
				Status:    models.STATUS_ACTIVE,
			}
			if err := repo.Create(appUser); err != nil {
				log.Printf("[OAuth] user create failed: %v", err)
				return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Sign-in could not be completed")
			}
			svc := billing.NewServiceFromDB(database.GetDB())
			if _, err := svc.EnsureFreeFallback(c.Context(), appUser.ID); err != nil {
				log.Printf("[OAuth] free subscription setup failed for user %d: %v", appUser.ID, err)
			}
		}

	default:
		log.Printf("[OAuth] provider account lookup failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Sign-in could not be completed")
	}

	var exp *time.Time
	if !u.ExpiresAt.IsZero() {
		t := u.ExpiresAt
		exp = &t
	}
	if err := repo.SaveProviderAccount(&models.ProviderAccount{
		UserID:         appUser.ID,
		Provider:       u.Provider,
		ProviderUserID: u.UserID,
		AccessToken:    u.AccessToken,
		RefreshToken:   u.RefreshToken,
		ExpiresAt:      exp,
	}); err != nil {
		log.Printf("[OAuth] provider link save failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Sign-in could not be completed")
	}

	if err := createUserSession(c, appUser); err != nil {
		log.Printf("[OAuth] session create failed: %v", err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Session could not be established")
	}

	now := time.Now()
	appUser.LastLoginAt = &now
	applyProviderProfile(appUser, u)
	if err := repo.Update(appUser); err != nil {
		log.Printf("[OAuth] login update failed for user %d: %v", appUser.ID, err)
	}

	return c.Redirect("/", fiber.StatusSeeOther)
}

// applyProviderProfile copies the provider's current profile onto the local
// account, so an avatar changed at the provider shows up on the next login.
func applyProviderProfile(user *models.User, u goth.User) {
	if u.AvatarURL != "" {
		user.AvatarURL = u.AvatarURL
	}
	if user.Name == "" {
		user.Name = firstNonEmpty(u.Name, u.NickName, "User")
	}
}

// HandleOAuthLogout clears the goth session alongside the app session.
func HandleOAuthLogout(c *fiber.Ctx) error {
	if err := gothfiber.Logout(c); err != nil {
		log.Printf("[OAuth] goth logout failed: %v", err)
	}
	if err := destroyUserSession(c); err != nil {
		log.Printf("[OAuth] session destroy failed: %v", err)
	}
	return c.Redirect("/", fiber.StatusSeeOther)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
