package cmd

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/linkdeck/linkdeck/internal/config"
	"github.com/linkdeck/linkdeck/internal/database"
	"github.com/linkdeck/linkdeck/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "linkdeck-cli",
	Short: "Linkdeck admin tool",
	Long: `Linkdeck CLI manages profiles out of band.

Profiles are never created through the web server; use this tool to
provision one and to reset a password that was lost.

Use "linkdeck-cli [command] --help" for more information about a specific command.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connectStore loads configuration and opens the profile store. Commands that
// touch the database call this in their Run functions.
func connectStore(ctx context.Context) *database.SurrealProfileStore {
	logging.New()
	cfg := config.New()

	db, err := database.NewDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return database.NewSurrealProfileStore(db)
}
