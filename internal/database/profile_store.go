package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linkdeck/linkdeck/internal/domain"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// SurrealProfileStore encapsulates database operations for profiles, sections
// and links using SurrealDB. It implements domain.ProfileStore. The connection
// is already scoped to a namespace and database by NewDB.
type SurrealProfileStore struct {
	db *surrealdb.DB
}

var _ domain.ProfileStore = (*SurrealProfileStore)(nil)

// NewSurrealProfileStore creates a new SurrealProfileStore.
func NewSurrealProfileStore(db *surrealdb.DB) *SurrealProfileStore {
	return &SurrealProfileStore{db: db}
}

// FetchProfile queries for a single profile by its username.
func (s *SurrealProfileStore) FetchProfile(ctx context.Context, username string) (*domain.Profile, error) {
	query := "SELECT * FROM profiles WHERE username = $username"
	params := map[string]any{"username": username}

	profile, err := QueryOne[domain.Profile](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	if profile == nil {
		return nil, domain.ErrNotFound
	}
	return profile, nil
}

// FetchSections returns the sections of a profile ordered by ascending position.
func (s *SurrealProfileStore) FetchSections(ctx context.Context, profileID *surrealmodels.RecordID) ([]domain.Section, error) {
	query := "SELECT * FROM sections WHERE profile_id = $profile ORDER BY position ASC"
	params := map[string]any{"profile": profileID}

	sections, err := Query[domain.Section](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return sections, nil
}

// FetchLinks returns the links of the given sections ordered by ascending position.
func (s *SurrealProfileStore) FetchLinks(ctx context.Context, sectionIDs []*surrealmodels.RecordID) ([]domain.Link, error) {
	if len(sectionIDs) == 0 {
		return nil, nil
	}

	query := "SELECT * FROM links WHERE section_id IN $sections ORDER BY position ASC"
	params := map[string]any{"sections": sectionIDs}

	links, err := Query[domain.Link](ctx, s.db, query, params)
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	return links, nil
}

// UpdateProfile merges the given fields into the profile row keyed by username.
func (s *SurrealProfileStore) UpdateProfile(ctx context.Context, username string, fields map[string]any) error {
	query := "UPDATE profiles MERGE $data WHERE username = $username"
	params := map[string]any{"username": username, "data": fields}
	return Execute(ctx, s.db, query, params)
}

// InsertSection creates a section for a profile at the given position.
func (s *SurrealProfileStore) InsertSection(ctx context.Context, profileID *surrealmodels.RecordID, title string, position int) error {
	query := `
		CREATE sections CONTENT {
			profile_id: $profile,
			title: $title,
			position: $position,
			created_at: time::now()
		}
	`
	params := map[string]any{
		"profile":  profileID,
		"title":    title,
		"position": position,
	}
	return Execute(ctx, s.db, query, params)
}

// UpdateSection merges fields into a section by its record ID.
func (s *SurrealProfileStore) UpdateSection(ctx context.Context, id *surrealmodels.RecordID, fields map[string]any) error {
	query := "UPDATE $id MERGE $data"
	params := map[string]any{"id": id, "data": fields}
	return Execute(ctx, s.db, query, params)
}

// DeleteSection removes a section together with all of its links. Both deletes
// run in one transaction so a link never outlives its section on our side.
func (s *SurrealProfileStore) DeleteSection(ctx context.Context, id *surrealmodels.RecordID) error {
	query := `
		BEGIN TRANSACTION;
		DELETE links WHERE section_id = $id;
		DELETE $id;
		COMMIT TRANSACTION;
	`
	params := map[string]any{"id": id}
	return Execute(ctx, s.db, query, params)
}

// InsertLink creates a link inside a section at the given position.
func (s *SurrealProfileStore) InsertLink(ctx context.Context, sectionID *surrealmodels.RecordID, title, url string, position int) error {
	query := `
		CREATE links CONTENT {
			section_id: $section,
			title: $title,
			url: $url,
			position: $position,
			created_at: time::now()
		}
	`
	params := map[string]any{
		"section":  sectionID,
		"title":    title,
		"url":      url,
		"position": position,
	}
	return Execute(ctx, s.db, query, params)
}

// UpdateLink merges fields into a link by its record ID.
func (s *SurrealProfileStore) UpdateLink(ctx context.Context, id *surrealmodels.RecordID, fields map[string]any) error {
	query := "UPDATE $id MERGE $data"
	params := map[string]any{"id": id, "data": fields}
	return Execute(ctx, s.db, query, params)
}

// DeleteLink removes a link by its record ID.
func (s *SurrealProfileStore) DeleteLink(ctx context.Context, id *surrealmodels.RecordID) error {
	query := "DELETE $id"
	params := map[string]any{"id": id}
	return Execute(ctx, s.db, query, params)
}

// Subscribe opens a live change feed for a table.
func (s *SurrealProfileStore) Subscribe(ctx context.Context, table string, filter *domain.ChangeFilter) (domain.Feed, error) {
	return openFeed(ctx, s.db, table, filter)
}

// CreateProfile inserts a brand new profile row. Profiles are created
// out-of-band through the CLI, never through the web surface.
func (s *SurrealProfileStore) CreateProfile(ctx context.Context, profile *domain.Profile) error {
	query := `
		CREATE profiles CONTENT {
			username: $username,
			password_hash: $password_hash,
			bio: $bio,
			background_color: $background_color,
			text_color: $text_color,
			button_color: $button_color,
			button_text_color: $button_text_color,
			created_at: time::now()
		}
	`
	params := map[string]any{
		"username":          profile.Username,
		"password_hash":     profile.PasswordHash,
		"bio":               profile.Bio,
		"background_color":  profile.BackgroundColor,
		"text_color":        profile.TextColor,
		"button_color":      profile.ButtonColor,
		"button_text_color": profile.ButtonTextColor,
	}

	if err := Execute(ctx, s.db, query, params); err != nil {
		// Surface a duplicate username as a domain error the caller can check.
		if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "unique") {
			return domain.ErrProfileExists
		}
		return err
	}

	slog.Info("Created profile", "username", profile.Username)
	return nil
}
