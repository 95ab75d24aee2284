package domain

import (
	"context"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Table names used by the store and its change feeds.
const (
	TableProfiles = "profiles"
	TableSections = "sections"
	TableLinks    = "links"
)

// Profile represents a public link-sharing page and its owner's settings.
// The admin password is stored only as a bcrypt hash, never in plaintext.
type Profile struct {
	ID              *surrealmodels.RecordID `json:"id,omitempty"`
	Username        string                  `json:"username"`
	PasswordHash    string                  `json:"password_hash,omitempty"`
	Bio             string                  `json:"bio,omitempty"`
	BackgroundColor string                  `json:"background_color,omitempty"`
	TextColor       string                  `json:"text_color,omitempty"`
	ButtonColor     string                  `json:"button_color,omitempty"`
	ButtonTextColor string                  `json:"button_text_color,omitempty"`
	ProfileImage    string                  `json:"profile_image,omitempty"`
	CreatedAt       string                  `json:"created_at,omitempty"`
}

// Section groups links on a profile page. Position orders it among the
// sibling sections of the same profile, zero-based with no gaps.
type Section struct {
	ID        *surrealmodels.RecordID `json:"id,omitempty"`
	ProfileID *surrealmodels.RecordID `json:"profile_id"`
	Title     string                  `json:"title"`
	Position  int                     `json:"position"`
	CreatedAt string                  `json:"created_at,omitempty"`
}

// Link is a single entry within a section. Position orders it among the
// sibling links of the same section.
type Link struct {
	ID        *surrealmodels.RecordID `json:"id,omitempty"`
	SectionID *surrealmodels.RecordID `json:"section_id"`
	Title     string                  `json:"title"`
	URL       string                  `json:"url"`
	IconURL   string                  `json:"icon_url,omitempty"`
	Position  int                     `json:"position"`
	CreatedAt string                  `json:"created_at,omitempty"`
}

// ChangeAction is the kind of mutation reported by a change feed.
type ChangeAction string

const (
	ActionCreate ChangeAction = "CREATE"
	ActionUpdate ChangeAction = "UPDATE"
	ActionDelete ChangeAction = "DELETE"
)

// ChangeEvent is a single notification from a table's change feed.
// Record carries the driver's raw payload for the affected row; consumers
// that need typed data re-fetch the table rather than decoding it.
type ChangeEvent struct {
	Action ChangeAction
	Record any
}

// ChangeFilter optionally narrows a subscription to rows matching a WHERE
// clause with bound parameters.
type ChangeFilter struct {
	Where  string
	Params map[string]any
}

// Feed is a cancellable live stream of change events for one table.
type Feed interface {
	// Events returns the channel notifications arrive on. The channel is
	// closed when the feed is closed or the connection drops.
	Events() <-chan ChangeEvent
	// Close cancels the subscription. It is safe to call more than once.
	Close() error
}

// ProfileStore is the contract over the remote row store. All operations are
// network calls and may fail with a transport or constraint error; nothing
// here retries automatically.
type ProfileStore interface {
	// FetchProfile looks a profile up by its unique username.
	// Returns ErrNotFound if no such profile exists.
	FetchProfile(ctx context.Context, username string) (*Profile, error)

	// FetchSections returns the sections of a profile ordered by ascending
	// position.
	FetchSections(ctx context.Context, profileID *surrealmodels.RecordID) ([]Section, error)

	// FetchLinks returns the links belonging to any of the given sections,
	// ordered by ascending position.
	FetchLinks(ctx context.Context, sectionIDs []*surrealmodels.RecordID) ([]Link, error)

	// UpdateProfile merges the given fields into the profile row keyed by
	// username.
	UpdateProfile(ctx context.Context, username string, fields map[string]any) error

	InsertSection(ctx context.Context, profileID *surrealmodels.RecordID, title string, position int) error
	UpdateSection(ctx context.Context, id *surrealmodels.RecordID, fields map[string]any) error
	// DeleteSection removes a section and, through the store's cascade, all
	// of its links.
	DeleteSection(ctx context.Context, id *surrealmodels.RecordID) error

	InsertLink(ctx context.Context, sectionID *surrealmodels.RecordID, title, url string, position int) error
	UpdateLink(ctx context.Context, id *surrealmodels.RecordID, fields map[string]any) error
	DeleteLink(ctx context.Context, id *surrealmodels.RecordID) error

	// Subscribe opens a live change feed for a table. The feed stays open
	// until Close is called or ctx is cancelled.
	Subscribe(ctx context.Context, table string, filter *ChangeFilter) (Feed, error)
}

// SameRecord reports whether two record IDs refer to the same row.
// Nil IDs never match anything.
func SameRecord(a, b *surrealmodels.RecordID) bool {
	if a == nil || b == nil {
		return false
	}
	return a.String() == b.String()
}
