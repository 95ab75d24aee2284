package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/linkdeck/linkdeck/internal/auth"
	"github.com/linkdeck/linkdeck/internal/domain"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage profiles",
}

var profileCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create a new profile",
	Long:  "Creates a profile with the given username. The admin password is prompted for and stored as a bcrypt hash.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		username := args[0]

		password, err := promptPassword()
		if err != nil {
			log.Fatalf("Failed to read password: %v", err)
		}
		if len(password) < 6 {
			log.Fatal("Password must be at least 6 characters long")
		}

		hash, err := auth.NewBcryptVerifier().Hash(password)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		store := connectStore(ctx)
		err = store.CreateProfile(ctx, &domain.Profile{
			Username:     username,
			PasswordHash: hash,
		})
		if err != nil {
			if errors.Is(err, domain.ErrProfileExists) {
				log.Fatalf("Profile %q already exists", username)
			}
			log.Fatalf("Failed to create profile: %v", err)
		}

		fmt.Printf("Profile %q created\n", username)
	},
}

var profileSetPasswordCmd = &cobra.Command{
	Use:   "set-password <username>",
	Short: "Reset a profile's admin password",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		username := args[0]

		password, err := promptPassword()
		if err != nil {
			log.Fatalf("Failed to read password: %v", err)
		}
		if len(password) < 6 {
			log.Fatal("Password must be at least 6 characters long")
		}

		hash, err := auth.NewBcryptVerifier().Hash(password)
		if err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		store := connectStore(ctx)
		if _, err := store.FetchProfile(ctx, username); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				log.Fatalf("Profile %q does not exist", username)
			}
			log.Fatalf("Failed to look up profile: %v", err)
		}
		if err := store.UpdateProfile(ctx, username, map[string]any{"password_hash": hash}); err != nil {
			log.Fatalf("Failed to update password: %v", err)
		}

		fmt.Printf("Password for %q updated\n", username)
	},
}

// promptPassword reads the password twice from the terminal without echo.
func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}

func init() {
	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileSetPasswordCmd)
	rootCmd.AddCommand(profileCmd)
}
