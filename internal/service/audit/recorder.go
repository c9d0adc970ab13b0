package audit

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/audit"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/auth"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
)

// Recorder appends audit entries after mutations. Writes are
// best-effort: a failed audit write is logged and swallowed, never
// rolling back the mutation it documents.
type Recorder struct {
	logger  *zap.Logger
	entries audit.EntryRepository
}

func NewRecorder(logger *zap.Logger, entries audit.EntryRepository) *Recorder {
	return &Recorder{
		logger:  logger,
		entries: entries,
	}
}

// RecordCreate appends an entry documenting a creation.
func (r *Recorder) RecordCreate(ctx context.Context, orgID *uuid.UUID, entityType string, entityID uuid.UUID, after map[string]any, actorID uuid.UUID, ipAddress string) {
	entry := audit.NewEntry(orgID, entityType, entityID, audit.ActionCreate, actorID)
	entry.AfterSnapshot = after
	entry.IPAddress = ipAddress
	r.append(ctx, entry)
}

// RecordUpdate appends an entry with the field-level diff between the two
// snapshots. Unchanged fields are excluded.
func (r *Recorder) RecordUpdate(ctx context.Context, orgID *uuid.UUID, entityType string, entityID uuid.UUID, before, after map[string]any, actorID uuid.UUID, ipAddress string) {
	entry := audit.NewEntry(orgID, entityType, entityID, audit.ActionUpdate, actorID)
	entry.ChangedFields = audit.ComputeDiff(before, after)
	entry.BeforeSnapshot = before
	entry.AfterSnapshot = after
	entry.IPAddress = ipAddress
	r.append(ctx, entry)
}

// RecordDelete appends an entry preserving the final snapshot.
func (r *Recorder) RecordDelete(ctx context.Context, orgID *uuid.UUID, entityType string, entityID uuid.UUID, before map[string]any, actorID uuid.UUID, ipAddress string) {
	entry := audit.NewEntry(orgID, entityType, entityID, audit.ActionDelete, actorID)
	entry.BeforeSnapshot = before
	entry.IPAddress = ipAddress
	r.append(ctx, entry)
}

func (r *Recorder) append(ctx context.Context, entry *audit.Entry) {
	if err := r.entries.Insert(ctx, entry); err != nil {
		r.logger.Error("audit write failed",
			zap.String("entity_type", entry.EntityType),
			zap.String("entity_id", entry.EntityID.String()),
			zap.String("action", entry.Action.String()),
			zap.Error(err))
	}
}

// RecentActivity returns the newest audit entries for the caller's
// organization. Unlike the record methods this is a read path, so it is
// permission-gated and returns errors normally.
func (r *Recorder) RecentActivity(ctx context.Context, limit int) ([]*audit.Entry, error) {
	principal, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := auth.RequirePermission(principal.Role, auth.PermAuditRead); err != nil {
		return nil, err
	}
	if principal.OrganizationID == nil {
		return nil, errors.NewMissingTenantError()
	}
	if limit <= 0 {
		limit = 10
	}
	return r.entries.ListRecent(ctx, *principal.OrganizationID, limit)
}

// EntityHistory returns the change trail of one entity within the
// caller's organization.
func (r *Recorder) EntityHistory(ctx context.Context, entityType string, entityID uuid.UUID) ([]*audit.Entry, error) {
	principal, err := auth.RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if err := auth.RequirePermission(principal.Role, auth.PermAuditRead); err != nil {
		return nil, err
	}
	if principal.OrganizationID == nil {
		return nil, errors.NewMissingTenantError()
	}
	return r.entries.ListByEntity(ctx, *principal.OrganizationID, entityType, entityID)
}
