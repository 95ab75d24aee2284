package reorder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linkdeck/linkdeck/internal/domain"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Aggregate is the slice of the live aggregate the reconciler needs: the
// locally known order for a scope, and the latch that defers change-feed
// refreshes while position writes are in flight.
type Aggregate interface {
	SectionOrder() []domain.Section
	LinkOrder(sectionID *surrealmodels.RecordID) []domain.Link
	BeginReorder(table string)
	EndReorder(ctx context.Context, table string)
}

// PositionWriter is the store surface the reconciler writes through.
type PositionWriter interface {
	UpdateSection(ctx context.Context, id *surrealmodels.RecordID, fields map[string]any) error
	UpdateLink(ctx context.Context, id *surrealmodels.RecordID, fields map[string]any) error
}

// PartialReorderError reports a reconciliation that failed after some position
// writes already committed. The persisted positions remain a valid permutation
// (each write only changed one row's value) but no longer match the intended
// final order. Nothing is rolled back or retried; the caller decides whether
// to re-derive and try again.
type PartialReorderError struct {
	Table   string
	Applied int
	Total   int
	Err     error
}

func (e *PartialReorderError) Error() string {
	return fmt.Sprintf("reorder of %s partially applied (%d of %d writes): %v", e.Table, e.Applied, e.Total, e.Err)
}

func (e *PartialReorderError) Unwrap() error {
	return e.Err
}

// Reconciler turns a single-item drag gesture into a persisted total order.
type Reconciler struct {
	store PositionWriter
}

// NewReconciler creates a reconciler writing through the given store.
func NewReconciler(store PositionWriter) *Reconciler {
	return &Reconciler{store: store}
}

// ReorderSections moves one section onto the slot of another and persists the
// resulting order. Moving a section onto itself is a no-op.
func (r *Reconciler) ReorderSections(ctx context.Context, agg Aggregate, moved, target *domain.Section) error {
	if moved == nil || target == nil || domain.SameRecord(moved.ID, target.ID) {
		return nil
	}

	agg.BeginReorder(domain.TableSections)
	defer agg.EndReorder(ctx, domain.TableSections)

	list := agg.SectionOrder()
	movedIdx := sectionIndex(list, moved.ID)
	targetIdx := sectionIndex(list, target.ID)
	if movedIdx < 0 || targetIdx < 0 {
		// One of the items vanished under us (a concurrent delete landed
		// before the latch). Nothing sensible to persist.
		slog.Warn("Reorder skipped, item no longer in local order", "table", domain.TableSections)
		return nil
	}

	list = splice(list, movedIdx, targetIdx)

	// Every item gets its index written, sequentially and in list order, so
	// the committed states stay monotonic and never hold a duplicate position.
	for i := range list {
		if err := r.store.UpdateSection(ctx, list[i].ID, map[string]any{"position": i}); err != nil {
			return &PartialReorderError{Table: domain.TableSections, Applied: i, Total: len(list), Err: err}
		}
	}
	return nil
}

// ReorderLinks moves one link onto the slot of another within the same
// section. Cross-section drags return domain.ErrScopeMismatch with zero
// writes; the HTTP layer treats that as a quiet no-op. Moving a link across
// sections is unsupported.
func (r *Reconciler) ReorderLinks(ctx context.Context, agg Aggregate, moved, target *domain.Link) error {
	if moved == nil || target == nil || domain.SameRecord(moved.ID, target.ID) {
		return nil
	}
	if !domain.SameRecord(moved.SectionID, target.SectionID) {
		slog.Debug("Cross-section link drag rejected", "moved", moved.ID, "target", target.ID)
		return domain.ErrScopeMismatch
	}

	agg.BeginReorder(domain.TableLinks)
	defer agg.EndReorder(ctx, domain.TableLinks)

	list := agg.LinkOrder(moved.SectionID)
	movedIdx := linkIndex(list, moved.ID)
	targetIdx := linkIndex(list, target.ID)
	if movedIdx < 0 || targetIdx < 0 {
		slog.Warn("Reorder skipped, item no longer in local order", "table", domain.TableLinks)
		return nil
	}

	list = splice(list, movedIdx, targetIdx)

	for i := range list {
		if err := r.store.UpdateLink(ctx, list[i].ID, map[string]any{"position": i}); err != nil {
			return &PartialReorderError{Table: domain.TableLinks, Applied: i, Total: len(list), Err: err}
		}
	}
	return nil
}

// splice removes the element at from and re-inserts it at to, so the moved
// element takes the target's former slot and everything between shifts by one.
func splice[T any](list []T, from, to int) []T {
	out := make([]T, 0, len(list))
	out = append(out, list...)
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]T{moved}, out[to:]...)...)
	return out
}

func sectionIndex(list []domain.Section, id *surrealmodels.RecordID) int {
	for i := range list {
		if domain.SameRecord(list[i].ID, id) {
			return i
		}
	}
	return -1
}

func linkIndex(list []domain.Link, id *surrealmodels.RecordID) int {
	for i := range list {
		if domain.SameRecord(list[i].ID, id) {
			return i
		}
	}
	return -1
}
