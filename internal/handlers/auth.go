package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/linkdeck/linkdeck/internal/auth"
	"github.com/linkdeck/linkdeck/internal/domain"
	"github.com/linkdeck/linkdeck/internal/middleware"
)

// AuthHandler handles editor login and logout for a profile.
type AuthHandler struct {
	store    domain.ProfileStore
	verifier auth.CredentialVerifier
	tokens   *auth.TokenStore
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store domain.ProfileStore, verifier auth.CredentialVerifier, tokens *auth.TokenStore) *AuthHandler {
	return &AuthHandler{
		store:    store,
		verifier: verifier,
		tokens:   tokens,
	}
}

// Login handles POST /:username/login. On a correct password it issues an
// editor token scoped to that profile and sets it as an HTTP-only cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	username := c.Param("username")

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format.")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	profile, err := h.store.FetchProfile(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Same response as a wrong password so usernames cannot be probed
			// through the login endpoint.
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Code: "invalid_credentials", Message: "Incorrect password."})
		}
		slog.Error("Failed to fetch profile for login", "username", username, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not process login."})
	}

	if err := h.verifier.Verify(profile.PasswordHash, req.Password); err != nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Code: "invalid_credentials", Message: "Incorrect password."})
	}

	token, err := h.tokens.Issue(username)
	if err != nil {
		slog.Error("Failed to issue editor token", "username", username, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Code: "internal", Message: "Could not process login."})
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.EditorTokenCookie,
		Value:    token.Value,
		Path:     "/",
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	SetFlashSuccess(c, "Signed in.")
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Logout handles POST /:username/logout. It revokes the editor token and
// clears the cookie.
func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(middleware.EditorTokenCookie); err == nil {
		h.tokens.Revoke(cookie.Value)
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.EditorTokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	})

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
