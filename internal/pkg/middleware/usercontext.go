package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/launchfox/launchfox/app/controllers"
	"github.com/launchfox/launchfox/app/models"
	"github.com/launchfox/launchfox/internal/pkg/billing"
	"github.com/launchfox/launchfox/internal/pkg/cache"
	"github.com/launchfox/launchfox/internal/pkg/database"
	"github.com/launchfox/launchfox/internal/pkg/session"
	"github.com/launchfox/launchfox/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the complete user context for every request
// This centralizes user session handling and eliminates code duplication
func UserContextMiddleware(c *fiber.Ctx) error {
	if skipUserContext(c.Path()) {
		return c.Next()
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return setAnonymousContext(c)
	}

	userID := sess.Get(controllers.USER_ID)
	if userID == nil {
		return setAnonymousContext(c)
	}
	uid, ok := userID.(uint)
	if !ok {
		return setAnonymousContext(c)
	}

	username := session.GetSessionValue(c, controllers.USER_NAME)
	isAdmin := sess.Get(controllers.USER_IS_ADMIN)

	// Plan resolution: Redis first (webhooks publish plan changes there so a
	// live session picks up an upgrade), then the session, then the user row.
	plan, err := cache.Get(billing.UserPlanCacheKey(uid))
	if err != nil || plan == "" {
		plan = session.GetSessionValue(c, controllers.USER_PLAN)
	}
	if plan == "" {
		plan = models.PlanFree
		if db := database.GetDB(); db != nil {
			var user models.User
			if err := db.Select("plan").First(&user, uid).Error; err == nil && user.Plan != "" {
				plan = user.Plan
			}
		}
	}
	_ = session.SetSessionValue(c, controllers.USER_PLAN, plan)

	userCtx := usercontext.UserContext{
		UserID:     uid,
		Username:   username,
		IsLoggedIn: true,
		IsAdmin:    isAdmin != nil && isAdmin.(bool),
		Plan:       plan,
	}
	c.Locals(usercontext.LocalsKey, userCtx)

	// Legacy compatibility locals used by handlers and middlewares
	c.Locals(controllers.FROM_PROTECTED, true)
	c.Locals(controllers.USER_NAME, username)
	c.Locals(controllers.USER_ID, uid)
	c.Locals(controllers.USER_IS_ADMIN, userCtx.IsAdmin)

	return c.Next()
}

// skipUserContext avoids interfering with Goth/Fiber session handling on the
// OAuth begin/callback routes. Goth uses its own fiber session store and
// relies on per-request locals, so touching our app session there causes
// cross-store collisions. Logout stays inside the app session so the auth
// guard can see the session it is about to destroy.
func skipUserContext(path string) bool {
	if !strings.HasPrefix(path, "/auth/") {
		return false
	}
	return path != "/auth/logout"
}

func setAnonymousContext(c *fiber.Ctx) error {
	c.Locals(usercontext.LocalsKey, usercontext.UserContext{})
	c.Locals(controllers.FROM_PROTECTED, false)
	c.Locals(controllers.USER_IS_ADMIN, false)
	return c.Next()
}
