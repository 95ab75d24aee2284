package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/linkdeck/linkdeck/internal/domain"
	"github.com/linkdeck/linkdeck/internal/pubsub"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Aggregate maintains an in-memory view of one profile together with its
// sections and links, kept current through the store's change feeds.
//
// The refresh strategy is deliberately coarse: a change notification for the
// sections or links table triggers a full re-fetch of that table, while a
// profile notification merges the event payload in place. Datasets are small
// and correctness beats efficiency here.
type Aggregate struct {
	store    domain.ProfileStore
	bus      pubsub.Publisher
	username string

	mu       sync.Mutex
	profile  *domain.Profile
	sections []domain.Section
	links    []domain.Link
	closed   bool

	// Per-table reorder latch. While a reconciliation is writing positions
	// for a table, change-triggered refreshes of that table are dropped;
	// EndReorder runs a single refresh that picks up everything at once.
	// This keeps the reconciler's sequential writes derived from an order
	// the user actually saw instead of racing a mid-flight re-fetch.
	suppressed map[string]bool

	feeds  []domain.Feed
	cancel context.CancelFunc
}

// SectionView is a section with its links attached, both position-sorted.
type SectionView struct {
	domain.Section
	Links []domain.Link
}

// Snapshot is a consistent copy of the aggregate state handed to consumers.
type Snapshot struct {
	Profile  domain.Profile
	Sections []SectionView
}

// NewAggregate creates an aggregate for one username. The bus may be nil when
// no one needs update notifications (e.g. in tests).
func NewAggregate(store domain.ProfileStore, bus pubsub.Publisher, username string) *Aggregate {
	return &Aggregate{
		store:      store,
		bus:        bus,
		username:   username,
		suppressed: make(map[string]bool),
	}
}

// Username returns the profile this aggregate tracks.
func (a *Aggregate) Username() string {
	return a.username
}

// Activate performs the initial load and opens the three change feeds.
//
// A profile fetch failure is terminal and surfaces as domain.ErrNotFound.
// Sections and links fetch failures degrade to empty lists; the page renders
// with whatever loaded.
func (a *Aggregate) Activate(ctx context.Context) error {
	profile, err := a.store.FetchProfile(ctx, a.username)
	if err != nil {
		return fmt.Errorf("profile %q: %w", a.username, err)
	}

	sections, err := a.store.FetchSections(ctx, profile.ID)
	if err != nil {
		slog.Error("Initial sections fetch failed, degrading to empty list", "username", a.username, "error", err)
		sections = nil
	}

	links, err := a.store.FetchLinks(ctx, sectionIDsOf(sections))
	if err != nil {
		slog.Error("Initial links fetch failed, degrading to empty list", "username", a.username, "error", err)
		links = nil
	}

	a.mu.Lock()
	a.profile = profile
	a.sections = sortSections(sections)
	a.links = sortLinks(links)
	a.mu.Unlock()

	feedCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	profileFeed, err := a.store.Subscribe(feedCtx, domain.TableProfiles, &domain.ChangeFilter{
		Where:  "username = $username",
		Params: map[string]any{"username": a.username},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe profiles: %w", err)
	}
	sectionsFeed, err := a.store.Subscribe(feedCtx, domain.TableSections, nil)
	if err != nil {
		profileFeed.Close()
		cancel()
		return fmt.Errorf("subscribe sections: %w", err)
	}
	linksFeed, err := a.store.Subscribe(feedCtx, domain.TableLinks, nil)
	if err != nil {
		profileFeed.Close()
		sectionsFeed.Close()
		cancel()
		return fmt.Errorf("subscribe links: %w", err)
	}
	a.feeds = []domain.Feed{profileFeed, sectionsFeed, linksFeed}

	go a.consume(feedCtx, profileFeed, a.onProfileEvent)
	go a.consume(feedCtx, sectionsFeed, func(ctx context.Context, ev domain.ChangeEvent) {
		a.refreshTable(ctx, domain.TableSections)
	})
	go a.consume(feedCtx, linksFeed, func(ctx context.Context, ev domain.ChangeEvent) {
		a.refreshTable(ctx, domain.TableLinks)
	})

	slog.Info("Live aggregate activated", "username", a.username)
	return nil
}

// Deactivate closes all change feeds and freezes the aggregate. No event that
// arrives afterwards may mutate the snapshot.
func (a *Aggregate) Deactivate() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	feeds := a.feeds
	a.feeds = nil
	a.mu.Unlock()

	for _, feed := range feeds {
		feed.Close()
	}
	if a.cancel != nil {
		a.cancel()
	}
	slog.Info("Live aggregate deactivated", "username", a.username)
}

// Snapshot returns a copy of the current state with links grouped under their
// sections. Links whose section is gone (a cascade still propagating through
// the feeds) are dropped from the view rather than shown orphaned.
func (a *Aggregate) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{}
	if a.profile != nil {
		snap.Profile = *a.profile
	}
	snap.Sections = make([]SectionView, 0, len(a.sections))
	for i := range a.sections {
		view := SectionView{Section: a.sections[i]}
		for j := range a.links {
			if domain.SameRecord(a.links[j].SectionID, a.sections[i].ID) {
				view.Links = append(view.Links, a.links[j])
			}
		}
		snap.Sections = append(snap.Sections, view)
	}
	return snap
}

// SectionOrder returns the current position-sorted section list.
func (a *Aggregate) SectionOrder() []domain.Section {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.Section, len(a.sections))
	copy(out, a.sections)
	return out
}

// LinkOrder returns the current position-sorted links of one section.
func (a *Aggregate) LinkOrder(sectionID *surrealmodels.RecordID) []domain.Link {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.Link
	for i := range a.links {
		if domain.SameRecord(a.links[i].SectionID, sectionID) {
			out = append(out, a.links[i])
		}
	}
	return out
}

// BeginReorder takes the reorder latch for a table. Change-triggered
// refreshes of that table are held off until EndReorder.
func (a *Aggregate) BeginReorder(table string) {
	a.mu.Lock()
	a.suppressed[table] = true
	a.mu.Unlock()
}

// EndReorder releases the latch and runs a single refresh so the aggregate
// picks up the positions the reconciliation just wrote (and anything else
// that arrived while the latch was held).
func (a *Aggregate) EndReorder(ctx context.Context, table string) {
	a.mu.Lock()
	delete(a.suppressed, table)
	closed := a.closed
	a.mu.Unlock()

	if !closed {
		a.refreshTable(ctx, table)
	}
}

// consume drains one feed, dispatching each event to fn. It exits when the
// feed's channel closes.
func (a *Aggregate) consume(ctx context.Context, feed domain.Feed, fn func(context.Context, domain.ChangeEvent)) {
	for event := range feed.Events() {
		fn(ctx, event)
	}
	slog.Debug("Aggregate feed drained", "username", a.username)
}

// onProfileEvent merges an update payload into the profile in place, without
// a round trip. A payload that cannot be decoded falls back to a one-shot
// re-fetch of the profile row so the update is not lost. Deletes of the
// profile row are ignored; the page keeps its last known state until the
// view goes away.
func (a *Aggregate) onProfileEvent(ctx context.Context, event domain.ChangeEvent) {
	if event.Action != domain.ActionUpdate {
		return
	}

	a.mu.Lock()
	if a.closed || a.profile == nil {
		a.mu.Unlock()
		return
	}

	merged := *a.profile
	raw, merr := json.Marshal(event.Record)
	if merr == nil {
		merr = json.Unmarshal(raw, &merged)
	}
	if merr == nil {
		// Username is immutable; never let a payload rewrite it.
		merged.Username = a.profile.Username
		a.profile = &merged
		a.notifyLocked()
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	slog.Error("Undecodable profile change payload, re-fetching", "username", a.username, "error", merr)
	fresh, err := a.store.FetchProfile(ctx, a.username)
	if err != nil {
		slog.Error("Profile re-fetch failed, keeping previous snapshot", "username", a.username, "error", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	fresh.Username = a.username
	a.profile = fresh
	a.notifyLocked()
}

// refreshTable re-fetches one table and replaces the corresponding list.
// A fetch error keeps the previous state: stale-but-present over broken.
func (a *Aggregate) refreshTable(ctx context.Context, table string) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if a.suppressed[table] {
		a.mu.Unlock()
		return
	}
	profile := a.profile
	sections := a.sections
	a.mu.Unlock()

	if profile == nil {
		return
	}

	switch table {
	case domain.TableSections:
		fresh, err := a.store.FetchSections(ctx, profile.ID)
		if err != nil {
			slog.Error("Sections refresh failed, keeping previous snapshot", "username", a.username, "error", err)
			return
		}
		a.replaceSections(fresh)

	case domain.TableLinks:
		fresh, err := a.store.FetchLinks(ctx, sectionIDsOf(sections))
		if err != nil {
			slog.Error("Links refresh failed, keeping previous snapshot", "username", a.username, "error", err)
			return
		}
		a.replaceLinks(fresh)
	}
}

func (a *Aggregate) replaceSections(sections []domain.Section) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.sections = sortSections(sections)
	a.notifyLocked()
}

func (a *Aggregate) replaceLinks(links []domain.Link) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.links = sortLinks(links)
	a.notifyLocked()
}

// notifyLocked publishes an update notice on the bus. Callers hold a.mu.
func (a *Aggregate) notifyLocked() {
	if a.bus == nil {
		return
	}
	msg := pubsub.Message{
		Topic:    pubsub.TopicProfileUpdated,
		Username: a.username,
		Payload:  []byte(a.username),
	}
	if err := a.bus.Publish(context.Background(), msg); err != nil {
		slog.Error("Failed to publish aggregate update", "username", a.username, "error", err)
	}
}

func sectionIDsOf(sections []domain.Section) []*surrealmodels.RecordID {
	ids := make([]*surrealmodels.RecordID, 0, len(sections))
	for i := range sections {
		ids = append(ids, sections[i].ID)
	}
	return ids
}

func sortSections(sections []domain.Section) []domain.Section {
	sorted := make([]domain.Section, len(sections))
	copy(sorted, sections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})
	return sorted
}

func sortLinks(links []domain.Link) []domain.Link {
	sorted := make([]domain.Link, len(links))
	copy(sorted, links)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Position < sorted[j].Position
	})
	return sorted
}
