package accounts

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const sessionLocalsKey = "accounts:session"

// RequireAuth guards a route behind a bearer access token. On success the
// decoded Session is stored in the request locals and context.
func RequireAuth(auther Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return unauthorizedDetail(c, "Authentication credentials were not provided.")
		}

		session, err := auther.SessionFromToken(token)
		if err != nil {
			if IsTokenExpiredError(err) {
				return unauthorizedDetail(c, "Token is expired")
			}
			return tokenNotValid(c)
		}

		c.Locals(sessionLocalsKey, session)
		c.SetUserContext(WithSessionContext(c.UserContext(), session))

		return c.Next()
	}
}

// SessionFromFiber retrieves the session stored by RequireAuth.
func SessionFromFiber(c *fiber.Ctx) (Session, bool) {
	session, ok := c.Locals(sessionLocalsKey).(Session)
	return session, ok
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}
