package usercontext

import "github.com/gofiber/fiber/v2"

// UserContext represents the authenticated seller for a request.
type UserContext struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Plan       string `json:"plan"`
	IsLoggedIn bool   `json:"is_logged_in"`
}

// GetUserContext retrieves the user context from fiber context
// Returns a default anonymous context if none is set
func GetUserContext(c *fiber.Ctx) UserContext {
	if ctx := c.Locals(KeyUserContext); ctx != nil {
		return ctx.(UserContext)
	}
	return UserContext{IsLoggedIn: false}
}

// SetUserContext stores the user context on the request.
func SetUserContext(c *fiber.Ctx, userCtx UserContext) {
	c.Locals(KeyUserContext, userCtx)
	c.Locals(KeyUserID, userCtx.UserID)
	c.Locals(KeyUsername, userCtx.Username)
}

// IsLoggedIn checks if the current user is logged in
func IsLoggedIn(c *fiber.Ctx) bool {
	return GetUserContext(c).IsLoggedIn
}

// GetUserID returns the current user's ID, or empty string if not logged in
func GetUserID(c *fiber.Ctx) string {
	return GetUserContext(c).UserID
}

// GetUsername returns the current user's username, or empty string if not claimed
func GetUsername(c *fiber.Ctx) string {
	return GetUserContext(c).Username
}
