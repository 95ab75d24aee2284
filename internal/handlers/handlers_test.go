package handlers_test

import (
	"context"
	"fmt"
	"sync"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/linkdeck/linkdeck/internal/domain"
)

// memStore is an in-memory ProfileStore used to exercise handlers without a
// database. Change feeds stay silent unless a test fires one explicitly.
type memStore struct {
	mu       sync.Mutex
	profiles map[string]*domain.Profile
	sections []domain.Section
	links    []domain.Link

	// updates records every position or field write as "table:id" plus the
	// payload, in call order.
	updates []string
	inserts []string

	feeds map[string]*testFeed
}

func newMemStore() *memStore {
	return &memStore{
		profiles: make(map[string]*domain.Profile),
		feeds:    make(map[string]*testFeed),
	}
}

func (s *memStore) FetchProfile(ctx context.Context, username string) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[username]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *profile
	return &copied, nil
}

func (s *memStore) FetchSections(ctx context.Context, profileID *surrealmodels.RecordID) ([]domain.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Section, len(s.sections))
	copy(out, s.sections)
	return out, nil
}

func (s *memStore) FetchLinks(ctx context.Context, sectionIDs []*surrealmodels.RecordID) ([]domain.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Link, len(s.links))
	copy(out, s.links)
	return out, nil
}

func (s *memStore) UpdateProfile(ctx context.Context, username string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[username]
	if !ok {
		return domain.ErrNotFound
	}
	if bio, ok := fields["bio"].(string); ok {
		profile.Bio = bio
	}
	if hash, ok := fields["password_hash"].(string); ok {
		profile.PasswordHash = hash
	}
	if image, ok := fields["profile_image"].(string); ok {
		profile.ProfileImage = image
	}
	s.updates = append(s.updates, fmt.Sprintf("profiles:%s=%v", username, fields))
	return nil
}

func (s *memStore) InsertSection(ctx context.Context, profileID *surrealmodels.RecordID, title string, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts = append(s.inserts, fmt.Sprintf("sections:%s@%d", title, position))
	return nil
}

func (s *memStore) UpdateSection(ctx context.Context, id *surrealmodels.RecordID, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, fmt.Sprintf("%s=%v", id.String(), fields))
	return nil
}

func (s *memStore) DeleteSection(ctx context.Context, id *surrealmodels.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, "delete "+id.String())
	return nil
}

func (s *memStore) InsertLink(ctx context.Context, sectionID *surrealmodels.RecordID, title, url string, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts = append(s.inserts, fmt.Sprintf("links:%s@%d", title, position))
	return nil
}

func (s *memStore) UpdateLink(ctx context.Context, id *surrealmodels.RecordID, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, fmt.Sprintf("%s=%v", id.String(), fields))
	return nil
}

func (s *memStore) DeleteLink(ctx context.Context, id *surrealmodels.RecordID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, "delete "+id.String())
	return nil
}

func (s *memStore) Subscribe(ctx context.Context, table string, filter *domain.ChangeFilter) (domain.Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	feed := newTestFeed()
	s.feeds[table] = feed
	return feed, nil
}

// fireChange pushes an event into a table's feed, as the database would after
// a write.
func (s *memStore) fireChange(table string, ev domain.ChangeEvent) {
	s.mu.Lock()
	feed := s.feeds[table]
	s.mu.Unlock()
	if feed != nil {
		feed.emit(ev)
	}
}

func (s *memStore) recordedUpdates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.updates))
	copy(out, s.updates)
	return out
}

// testFeed is a hand-fed change feed.
type testFeed struct {
	events chan domain.ChangeEvent
	once   sync.Once
}

func newTestFeed() *testFeed {
	return &testFeed{events: make(chan domain.ChangeEvent, 16)}
}

func (f *testFeed) Events() <-chan domain.ChangeEvent { return f.events }

func (f *testFeed) emit(ev domain.ChangeEvent) { f.events <- ev }

func (f *testFeed) Close() error {
	f.once.Do(func() { close(f.events) })
	return nil
}

func recordID(table, id string) *surrealmodels.RecordID {
	rid := surrealmodels.NewRecordID(table, id)
	return &rid
}
