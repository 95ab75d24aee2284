package reorder

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/linkdeck/linkdeck/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

func recordID(table, key string) *surrealmodels.RecordID {
	id := surrealmodels.NewRecordID(table, key)
	return &id
}

func section(key string, position int) domain.Section {
	return domain.Section{
		ID:       recordID("sections", key),
		Title:    key,
		Position: position,
	}
}

func link(key, sectionKey string, position int) domain.Link {
	return domain.Link{
		ID:        recordID("links", key),
		SectionID: recordID("sections", sectionKey),
		Title:     key,
		Position:  position,
	}
}

// fakeAggregate serves a fixed local order and records latch usage.
type fakeAggregate struct {
	sections []domain.Section
	links    []domain.Link

	trace []string
}

func (f *fakeAggregate) SectionOrder() []domain.Section {
	f.trace = append(f.trace, "read")
	out := make([]domain.Section, len(f.sections))
	copy(out, f.sections)
	return out
}

func (f *fakeAggregate) LinkOrder(sectionID *surrealmodels.RecordID) []domain.Link {
	f.trace = append(f.trace, "read")
	var out []domain.Link
	for i := range f.links {
		if domain.SameRecord(f.links[i].SectionID, sectionID) {
			out = append(out, f.links[i])
		}
	}
	return out
}

func (f *fakeAggregate) BeginReorder(table string) {
	f.trace = append(f.trace, "begin:"+table)
}

func (f *fakeAggregate) EndReorder(ctx context.Context, table string) {
	f.trace = append(f.trace, "end:"+table)
}

type positionWrite struct {
	ID       string
	Position int
}

// spyStore records every position write and can fail on the nth write.
type spyStore struct {
	writes  []positionWrite
	failOn  int // 1-based index of the write that should fail; 0 = never
	failErr error
}

func (s *spyStore) record(id *surrealmodels.RecordID, fields map[string]any) error {
	if s.failOn > 0 && len(s.writes)+1 == s.failOn {
		return s.failErr
	}
	s.writes = append(s.writes, positionWrite{ID: id.String(), Position: fields["position"].(int)})
	return nil
}

func (s *spyStore) UpdateSection(ctx context.Context, id *surrealmodels.RecordID, fields map[string]any) error {
	return s.record(id, fields)
}

func (s *spyStore) UpdateLink(ctx context.Context, id *surrealmodels.RecordID, fields map[string]any) error {
	return s.record(id, fields)
}

func writtenOrder(writes []positionWrite) []string {
	out := make([]string, len(writes))
	for i, w := range writes {
		out[i] = fmt.Sprintf("%s=%d", w.ID, w.Position)
	}
	return out
}

func TestReorderSections_SpliceCorrectness(t *testing.T) {
	a := section("A", 0)
	b := section("B", 1)
	c := section("C", 2)
	d := section("D", 3)

	t.Run("move D onto B yields A,D,B,C", func(t *testing.T) {
		agg := &fakeAggregate{sections: []domain.Section{a, b, c, d}}
		store := &spyStore{}
		r := NewReconciler(store)

		require.NoError(t, r.ReorderSections(context.Background(), agg, &d, &b))
		assert.Equal(t, []string{
			"sections:A=0",
			"sections:D=1",
			"sections:B=2",
			"sections:C=3",
		}, writtenOrder(store.writes))
	})

	t.Run("move A onto D yields B,C,D,A", func(t *testing.T) {
		agg := &fakeAggregate{sections: []domain.Section{a, b, c, d}}
		store := &spyStore{}
		r := NewReconciler(store)

		require.NoError(t, r.ReorderSections(context.Background(), agg, &a, &d))
		assert.Equal(t, []string{
			"sections:B=0",
			"sections:C=1",
			"sections:D=2",
			"sections:A=3",
		}, writtenOrder(store.writes))
	})
}

func TestReorderSections_PermutationInvariant(t *testing.T) {
	// A chain of successful reorders must always write positions that form a
	// dense zero-based permutation of the list.
	sections := []domain.Section{section("A", 0), section("B", 1), section("C", 2), section("D", 3), section("E", 4)}
	moves := [][2]int{{4, 0}, {1, 3}, {0, 4}, {2, 2}}

	for _, move := range moves {
		agg := &fakeAggregate{sections: sections}
		store := &spyStore{}
		r := NewReconciler(store)

		moved := sections[move[0]]
		target := sections[move[1]]
		require.NoError(t, r.ReorderSections(context.Background(), agg, &moved, &target))

		if move[0] == move[1] {
			assert.Empty(t, store.writes, "self-move must not write")
			continue
		}

		require.Len(t, store.writes, len(sections))
		seenPositions := map[int]bool{}
		seenIDs := map[string]bool{}
		for _, w := range store.writes {
			assert.False(t, seenPositions[w.Position], "duplicate position %d", w.Position)
			assert.False(t, seenIDs[w.ID], "duplicate write for %s", w.ID)
			assert.GreaterOrEqual(t, w.Position, 0)
			assert.Less(t, w.Position, len(sections))
			seenPositions[w.Position] = true
			seenIDs[w.ID] = true
		}
	}
}

func TestReorderLinks_SelfMoveIsNoOp(t *testing.T) {
	l1 := link("L1", "S1", 0)
	agg := &fakeAggregate{links: []domain.Link{l1}}
	store := &spyStore{}
	r := NewReconciler(store)

	require.NoError(t, r.ReorderLinks(context.Background(), agg, &l1, &l1))
	assert.Empty(t, store.writes)
	assert.Empty(t, agg.trace, "a self-move must not even take the latch")
}

func TestReorderLinks_CrossSectionIsRejected(t *testing.T) {
	l1 := link("L1", "S1", 0)
	l2 := link("L2", "S2", 0)
	agg := &fakeAggregate{links: []domain.Link{l1, l2}}
	store := &spyStore{}
	r := NewReconciler(store)

	err := r.ReorderLinks(context.Background(), agg, &l1, &l2)
	assert.ErrorIs(t, err, domain.ErrScopeMismatch)
	assert.Empty(t, store.writes, "cross-scope drag must produce zero writes")
	assert.Empty(t, agg.trace, "cross-scope drag must not take the latch")
}

func TestReorderLinks_DragSecondOntoFirst(t *testing.T) {
	// Profile alice, section S1 with L1(pos 0) and L2(pos 1): dragging L2
	// onto L1 must write L2=0 then L1=1, in that order, nothing else.
	l1 := link("L1", "S1", 0)
	l2 := link("L2", "S1", 1)
	agg := &fakeAggregate{links: []domain.Link{l1, l2}}
	store := &spyStore{}
	r := NewReconciler(store)

	require.NoError(t, r.ReorderLinks(context.Background(), agg, &l2, &l1))
	assert.Equal(t, []string{"links:L2=0", "links:L1=1"}, writtenOrder(store.writes))
}

func TestReorderLinks_TakesLatchAroundReadAndWrites(t *testing.T) {
	l1 := link("L1", "S1", 0)
	l2 := link("L2", "S1", 1)
	agg := &fakeAggregate{links: []domain.Link{l1, l2}}
	store := &spyStore{}
	r := NewReconciler(store)

	require.NoError(t, r.ReorderLinks(context.Background(), agg, &l2, &l1))
	assert.Equal(t, []string{"begin:links", "read", "end:links"}, agg.trace)
}

func TestReorderLinks_PartialFailure(t *testing.T) {
	l1 := link("L1", "S1", 0)
	l2 := link("L2", "S1", 1)
	l3 := link("L3", "S1", 2)
	l4 := link("L4", "S1", 3)
	agg := &fakeAggregate{links: []domain.Link{l1, l2, l3, l4}}

	boom := errors.New("connection reset")
	store := &spyStore{failOn: 3, failErr: boom}
	r := NewReconciler(store)

	err := r.ReorderLinks(context.Background(), agg, &l4, &l2)

	var partial *PartialReorderError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, domain.TableLinks, partial.Table)
	assert.Equal(t, 2, partial.Applied)
	assert.Equal(t, 4, partial.Total)
	assert.ErrorIs(t, err, boom)

	// The two committed writes still hold distinct valid positions.
	assert.Equal(t, []string{"links:L1=0", "links:L4=1"}, writtenOrder(store.writes))

	// The latch is released even on failure.
	assert.Equal(t, "end:links", agg.trace[len(agg.trace)-1])
}

func TestReorderSections_MissingItemSkips(t *testing.T) {
	a := section("A", 0)
	b := section("B", 1)
	ghost := section("GONE", 5)
	agg := &fakeAggregate{sections: []domain.Section{a, b}}
	store := &spyStore{}
	r := NewReconciler(store)

	require.NoError(t, r.ReorderSections(context.Background(), agg, &ghost, &a))
	assert.Empty(t, store.writes)
}
