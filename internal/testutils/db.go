package testutils

import (
	"github.com/google/uuid"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/linkdeck/linkdeck/internal/domain"
)

// NewTestRecordID creates a random RecordID in the given table. Useful for
// pointing at rows that are guaranteed not to exist.
func NewTestRecordID(table string) *surrealmodels.RecordID {
	id := surrealmodels.NewRecordID(table, uuid.NewString())
	return &id
}

// NewSectionID creates a random sections RecordID.
func NewSectionID() *surrealmodels.RecordID {
	return NewTestRecordID(domain.TableSections)
}

// NewLinkID creates a random links RecordID.
func NewLinkID() *surrealmodels.RecordID {
	return NewTestRecordID(domain.TableLinks)
}
