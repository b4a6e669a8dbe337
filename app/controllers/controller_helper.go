package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/launchfox/launchfox/app/models"
	"github.com/launchfox/launchfox/internal/pkg/session"
	"github.com/launchfox/launchfox/internal/pkg/usercontext"
)

const (
	AUTH_KEY       string = usercontext.AuthKey
	USER_ID        string = usercontext.KeyUserID
	USER_NAME      string = usercontext.KeyUsername
	USER_IS_ADMIN  string = usercontext.KeyIsAdmin
	USER_PLAN      string = "user_plan"
	FROM_PROTECTED string = usercontext.KeyFromProtected
)

// jsonError writes the uniform API error shape.
func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}

// createUserSession establishes the logged-in web session for the user.
func createUserSession(c *fiber.Ctx, user *models.User) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}
	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, user.ID)
	sess.Set(USER_NAME, user.Name)
	sess.Set(USER_IS_ADMIN, user.Role == models.ROLE_ADMIN)
	plan := user.Plan
	if plan == "" {
		plan = models.PlanFree
	}
	sess.Set(USER_PLAN, plan)
	return sess.Save()
}

// destroyUserSession logs the user out.
func destroyUserSession(c *fiber.Ctx) error {
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return err
	}
	return sess.Destroy()
}

func userResponse(user *models.User) fiber.Map {
	plan := user.Plan
	if plan == "" {
		plan = models.PlanFree
	}
	return fiber.Map{
		"id":         user.ID,
		"name":       user.Name,
		"email":      user.Email,
		"avatar_url": user.AvatarURL,
		"plan":       plan,
		"created_at": user.CreatedAt.Format(time.RFC3339),
	}
}
