package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/linkdeck/linkdeck/internal/domain"
	"github.com/linkdeck/linkdeck/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// setupProfileStoreTest connects to the test database and returns a fully
// initialized store along with a cleanup function.
func setupProfileStoreTest(t *testing.T) (*SurrealProfileStore, func()) {
	cfg := testutils.ConfigForTests(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := NewDB(ctx, cfg)
	require.NoError(t, err, "Failed to connect to test database")

	store := NewSurrealProfileStore(db)
	cleanup := func() {
		db.Close(context.Background())
	}
	return store, cleanup
}

// createTestProfile inserts a profile with a unique username and returns it
// with its server-assigned ID populated.
func createTestProfile(t *testing.T, ctx context.Context, store *SurrealProfileStore) *domain.Profile {
	t.Helper()

	username := fmt.Sprintf("store-test-%d", time.Now().UnixNano())
	err := store.CreateProfile(ctx, &domain.Profile{
		Username:        username,
		PasswordHash:    "$2a$10$not.a.real.hash.but.shaped.like.one",
		Bio:             "integration test profile",
		BackgroundColor: "#0f0f23",
	})
	require.NoError(t, err)

	profile, err := store.FetchProfile(ctx, username)
	require.NoError(t, err)
	require.NotNil(t, profile.ID, "created profile should have an ID")

	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = Execute(cleanupCtx, store.db, "DELETE $id", map[string]any{"id": profile.ID})
	})
	return profile
}

func sectionIDs(sections []domain.Section) []*surrealmodels.RecordID {
	ids := make([]*surrealmodels.RecordID, 0, len(sections))
	for i := range sections {
		ids = append(ids, sections[i].ID)
	}
	return ids
}

func TestProfileStore_FetchProfile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store, cleanup := setupProfileStoreTest(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	profile := createTestProfile(t, ctx, store)

	fetched, err := store.FetchProfile(ctx, profile.Username)
	require.NoError(t, err)
	assert.Equal(t, profile.Username, fetched.Username)
	assert.Equal(t, "integration test profile", fetched.Bio)

	_, err = store.FetchProfile(ctx, "no-such-user-ever")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProfileStore_SectionsAndLinksOrdering(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store, cleanup := setupProfileStoreTest(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	profile := createTestProfile(t, ctx, store)

	// Insert out of order on purpose; fetch must come back position-sorted.
	require.NoError(t, store.InsertSection(ctx, profile.ID, "Second", 1))
	require.NoError(t, store.InsertSection(ctx, profile.ID, "First", 0))

	sections, err := store.FetchSections(ctx, profile.ID)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "First", sections[0].Title)
	assert.Equal(t, "Second", sections[1].Title)
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for i := range sections {
			_ = store.DeleteSection(cleanupCtx, sections[i].ID)
		}
	})

	require.NoError(t, store.InsertLink(ctx, sections[0].ID, "Blog", "https://example.com/blog", 1))
	require.NoError(t, store.InsertLink(ctx, sections[0].ID, "Home", "https://example.com", 0))

	links, err := store.FetchLinks(ctx, sectionIDs(sections))
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "Home", links[0].Title)
	assert.Equal(t, "Blog", links[1].Title)

	// Swap positions and verify the new order is what comes back.
	require.NoError(t, store.UpdateLink(ctx, links[0].ID, map[string]any{"position": 1}))
	require.NoError(t, store.UpdateLink(ctx, links[1].ID, map[string]any{"position": 0}))

	links, err = store.FetchLinks(ctx, sectionIDs(sections))
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "Blog", links[0].Title)
	assert.Equal(t, "Home", links[1].Title)
}

func TestProfileStore_DeleteSectionCascades(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store, cleanup := setupProfileStoreTest(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	profile := createTestProfile(t, ctx, store)

	require.NoError(t, store.InsertSection(ctx, profile.ID, "Doomed", 0))
	sections, err := store.FetchSections(ctx, profile.ID)
	require.NoError(t, err)
	require.Len(t, sections, 1)

	require.NoError(t, store.InsertLink(ctx, sections[0].ID, "Orphan-to-be", "https://example.com", 0))

	require.NoError(t, store.DeleteSection(ctx, sections[0].ID))

	sections, err = store.FetchSections(ctx, profile.ID)
	require.NoError(t, err)
	assert.Empty(t, sections)

	links, err := store.FetchLinks(ctx, []*surrealmodels.RecordID{testutils.NewSectionID()})
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestProfileStore_SubscribeReceivesChanges(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	store, cleanup := setupProfileStoreTest(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	profile := createTestProfile(t, ctx, store)

	feed, err := store.Subscribe(ctx, domain.TableSections, nil)
	require.NoError(t, err)
	defer feed.Close()

	require.NoError(t, store.InsertSection(ctx, profile.ID, "Watched", 0))

	select {
	case event, ok := <-feed.Events():
		require.True(t, ok, "feed closed before delivering an event")
		assert.Equal(t, domain.ActionCreate, event.Action)
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for change event")
	}

	sections, err := store.FetchSections(ctx, profile.ID)
	require.NoError(t, err)
	for i := range sections {
		_ = store.DeleteSection(ctx, sections[i].ID)
	}
}
