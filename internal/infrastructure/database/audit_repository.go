package database

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/audit"
	"github.com/fleetworks/fleet-operations-backend/internal/domain/errors"
)

// AuditEntryRepository is the Postgres implementation of
// audit.EntryRepository. The interface is append-only and so is the
// table: no update or delete statement exists against it.
type AuditEntryRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewAuditEntryRepository(pool *pgxpool.Pool, logger *zap.Logger) *AuditEntryRepository {
	return &AuditEntryRepository{pool: pool, logger: logger}
}

func (r *AuditEntryRepository) Insert(ctx context.Context, entry *audit.Entry) error {
	changedFields, err := json.Marshal(entry.ChangedFields)
	if err != nil {
		return errors.NewInternalError("encoding changed fields").WithCause(err)
	}
	before, err := json.Marshal(entry.BeforeSnapshot)
	if err != nil {
		return errors.NewInternalError("encoding before snapshot").WithCause(err)
	}
	after, err := json.Marshal(entry.AfterSnapshot)
	if err != nil {
		return errors.NewInternalError("encoding after snapshot").WithCause(err)
	}

	query := `
		INSERT INTO audit_log (
			id, organization_id, entity_type, entity_id, action,
			changed_fields, before_snapshot, after_snapshot,
			actor_user_id, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.pool.Exec(ctx, query,
		entry.ID, entry.OrganizationID, entry.EntityType, entry.EntityID,
		entry.Action, changedFields, before, after, entry.ActorUserID,
		entry.IPAddress, entry.CreatedAt,
	)
	if err != nil {
		return errors.NewStorageError("inserting audit entry").WithCause(err)
	}
	return nil
}

const auditColumns = `
	id, organization_id, entity_type, entity_id, action, changed_fields,
	before_snapshot, after_snapshot, actor_user_id, ip_address, created_at`

func (r *AuditEntryRepository) ListRecent(ctx context.Context, orgID uuid.UUID, limit int) ([]*audit.Entry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_log
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return r.query(ctx, query, orgID, limit)
}

func (r *AuditEntryRepository) ListByEntity(ctx context.Context, orgID uuid.UUID, entityType string, entityID uuid.UUID) ([]*audit.Entry, error) {
	query := `
		SELECT ` + auditColumns + `
		FROM audit_log
		WHERE organization_id = $1 AND entity_type = $2 AND entity_id = $3
		ORDER BY created_at DESC`

	return r.query(ctx, query, orgID, entityType, entityID)
}

func (r *AuditEntryRepository) query(ctx context.Context, query string, args ...any) ([]*audit.Entry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStorageError("querying audit entries").WithCause(err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var e audit.Entry
		var changedFields, before, after []byte
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.EntityType, &e.EntityID,
			&e.Action, &changedFields, &before, &after, &e.ActorUserID,
			&e.IPAddress, &e.CreatedAt); err != nil {
			return nil, errors.NewStorageError("scanning audit row").WithCause(err)
		}
		if len(changedFields) > 0 {
			if err := json.Unmarshal(changedFields, &e.ChangedFields); err != nil {
				return nil, errors.NewInternalError("decoding changed fields").WithCause(err)
			}
		}
		if len(before) > 0 {
			if err := json.Unmarshal(before, &e.BeforeSnapshot); err != nil {
				return nil, errors.NewInternalError("decoding before snapshot").WithCause(err)
			}
		}
		if len(after) > 0 {
			if err := json.Unmarshal(after, &e.AfterSnapshot); err != nil {
				return nil, errors.NewInternalError("decoding after snapshot").WithCause(err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("iterating audit rows").WithCause(err)
	}
	return entries, nil
}
