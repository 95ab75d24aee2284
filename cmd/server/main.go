package main

import (
	"github.com/linkdeck/linkdeck/internal/server"
)

func main() {
	// Create a new server instance.
	s := server.New()

	// Register all application routes.
	s.RegisterRoutes()

	// Start the server.
	s.Start(s.Cfg.HTTPAddr)
}
