package audit

import (
	"context"

	"github.com/google/uuid"
)

// EntryRepository is deliberately append-only: it exposes no update or
// delete operations, so the trail cannot be rewritten through this core.
type EntryRepository interface {
	// Insert appends one entry.
	Insert(ctx context.Context, entry *Entry) error

	// ListRecent returns the newest entries for an organization.
	ListRecent(ctx context.Context, orgID uuid.UUID, limit int) ([]*Entry, error)

	// ListByEntity returns the change history of one entity, newest first.
	ListByEntity(ctx context.Context, orgID uuid.UUID, entityType string, entityID uuid.UUID) ([]*Entry, error)
}
