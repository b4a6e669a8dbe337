// Package usercontext carries the authenticated requester through a request.
// The user context middleware resolves it once from the session; handlers
// read the resolved value instead of touching the session store again.
package usercontext

import "github.com/gofiber/fiber/v2"

// LocalsKey is where the middleware stores the resolved context on fiber.Ctx.
const LocalsKey = "USER_CONTEXT"

// UserContext is the per-request view of the signed-in user. Plan is the
// entitlement tier quota checks and billing handlers key off.
type UserContext struct {
	UserID     uint   `json:"user_id"`
	Username   string `json:"username"`
	IsLoggedIn bool   `json:"is_logged_in"`
	IsAdmin    bool   `json:"is_admin"`
	Plan       string `json:"plan"`
}

// GetUserContext returns the request's user context, or an anonymous one when
// the middleware did not run or found no session.
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx := c.Locals(LocalsKey); ctx != nil {
		if uc, ok := ctx.(UserContext); ok {
			return uc
		}
	}
	return UserContext{}
}
