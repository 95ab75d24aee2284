package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/linkdeck/linkdeck/internal/auth"
)

// EditorTokenCookie is the cookie carrying the editor token.
const EditorTokenCookie = "editor_token"

// EditorGate creates a middleware that protects a profile's editor routes.
// Access requires an editor token scoped to the :username route parameter;
// a token issued for one profile never opens another.
func EditorGate(tokens *auth.TokenStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			username := c.Param("username")

			cookie, err := c.Cookie(EditorTokenCookie)
			if err != nil || cookie.Value == "" {
				return c.Redirect(http.StatusSeeOther, "/"+username+"/admin")
			}

			if !tokens.Validate(cookie.Value, username) {
				// Clear the stale cookie so the browser stops presenting it.
				c.SetCookie(&http.Cookie{
					Name:   EditorTokenCookie,
					Value:  "",
					Path:   "/",
					MaxAge: -1,
				})
				return c.Redirect(http.StatusSeeOther, "/"+username+"/admin")
			}

			return next(c)
		}
	}
}
