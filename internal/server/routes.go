package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/linkdeck/linkdeck/internal/middleware"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	rateLimiter := middleware.RateLimiter()
	editorGate := middleware.EditorGate(s.tokens)

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	// Uploaded images are served straight from the blob directory.
	s.E.Static("/uploads", s.Cfg.StorageDir)

	// Public read side.
	s.E.GET("/:username", s.publicHandler.GetProfile)
	s.E.GET("/:username/ws", s.publicHandler.ServeWS)

	// Editor login. The rate limiter slows down password guessing.
	s.E.POST("/:username/login", s.authHandler.Login, rateLimiter)
	s.E.POST("/:username/logout", s.authHandler.Logout)

	// Everything below requires an editor token scoped to :username.
	admin := s.E.Group("/:username/admin", editorGate)
	admin.GET("/dashboard", s.adminHandler.GetDashboard)
	admin.PATCH("/profile", s.adminHandler.UpdateProfile)
	admin.POST("/password", s.adminHandler.ChangePassword)

	admin.POST("/sections", s.adminHandler.CreateSection)
	admin.POST("/sections/reorder", s.adminHandler.ReorderSections)
	admin.PATCH("/sections/:id", s.adminHandler.UpdateSection)
	admin.DELETE("/sections/:id", s.adminHandler.DeleteSection)

	admin.POST("/sections/:id/links", s.adminHandler.CreateLink)
	admin.POST("/links/reorder", s.adminHandler.ReorderLinks)
	admin.PATCH("/links/:id", s.adminHandler.UpdateLink)
	admin.DELETE("/links/:id", s.adminHandler.DeleteLink)

	admin.POST("/images", s.adminHandler.UploadImage)
	admin.DELETE("/images", s.adminHandler.RemoveImage)
}
