package usercontext

// Session and Locals keys shared between the auth controllers and the
// middlewares that read what they store.
const (
	AuthKey          = "authenticated"
	KeyUserID        = "user_id"
	KeyUsername      = "username"
	KeyIsAdmin       = "isAdmin"
	KeyFromProtected = "from_protected"
)
