package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/vitrine-app/vitrine/app/repository"
	"github.com/vitrine-app/vitrine/internal/pkg/identity"
	"github.com/vitrine-app/vitrine/internal/pkg/usercontext"
)

// UserContextMiddleware resolves the bearer token into a user context for
// every request. Requests without a token continue as anonymous; route-level
// guards decide whether that is acceptable.
func UserContextMiddleware(verifier identity.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			usercontext.SetUserContext(c, usercontext.UserContext{IsLoggedIn: false})
			return c.Next()
		}

		ident, err := verifier.Verify(token)
		if err != nil {
			// Invalid token is worse than no token: reject instead of
			// silently downgrading to anonymous.
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   "invalid_credential",
				"message": "invalid or expired token",
			})
		}

		// First request of a new identity provisions the local profile.
		user, err := repository.GetGlobalRepositories().User.SyncOnLogin(ident.UserID, ident.Email)
		if err != nil {
			log.Errorf("auth: failed to sync profile for %s: %v", ident.UserID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal",
				"message": "could not load profile",
			})
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     user.ID,
			Email:      user.Email,
			Username:   user.UsernameValue(),
			Plan:       user.Plan,
			IsLoggedIn: true,
		})
		return c.Next()
	}
}

// RequireAuth guards authenticated API routes, returning JSON 401 when the
// request carries no valid identity.
func RequireAuth(c *fiber.Ctx) error {
	if !usercontext.IsLoggedIn(c) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "invalid_credential",
			"message": "login required",
		})
	}
	return c.Next()
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
