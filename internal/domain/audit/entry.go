package audit

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Action identifies the mutation an entry documents.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FieldChange records one field's before and after values.
type FieldChange struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Entry is an immutable record of one create, update, or delete. Entries
// are append-only: nothing in this package or its repositories can mutate
// or remove one once written.
type Entry struct {
	ID             uuid.UUID              `json:"id"`
	OrganizationID *uuid.UUID             `json:"organization_id,omitempty"`
	EntityType     string                 `json:"entity_type"`
	EntityID       uuid.UUID              `json:"entity_id"`
	Action         Action                 `json:"action"`
	ChangedFields  map[string]FieldChange `json:"changed_fields,omitempty"`
	BeforeSnapshot map[string]any         `json:"before_snapshot,omitempty"`
	AfterSnapshot  map[string]any         `json:"after_snapshot,omitempty"`
	ActorUserID    uuid.UUID              `json:"actor_user_id"`
	IPAddress      string                 `json:"ip_address,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// NewEntry stamps a fresh entry for the given mutation.
func NewEntry(orgID *uuid.UUID, entityType string, entityID uuid.UUID, action Action, actorID uuid.UUID) *Entry {
	return &Entry{
		ID:             uuid.New(),
		OrganizationID: orgID,
		EntityType:     entityType,
		EntityID:       entityID,
		Action:         action,
		ActorUserID:    actorID,
		CreatedAt:      time.Now().UTC(),
	}
}

// ComputeDiff compares every key present in after against before and
// returns the fields whose values differ. Comparison is by value equality;
// unchanged fields are excluded. Keys present only in before are treated
// as removed and reported with a nil To.
func ComputeDiff(before, after map[string]any) map[string]FieldChange {
	changed := make(map[string]FieldChange)
	for key, afterValue := range after {
		beforeValue, existed := before[key]
		if existed && reflect.DeepEqual(beforeValue, afterValue) {
			continue
		}
		changed[key] = FieldChange{From: beforeValue, To: afterValue}
	}
	for key, beforeValue := range before {
		if _, present := after[key]; !present {
			changed[key] = FieldChange{From: beforeValue, To: nil}
		}
	}
	return changed
}
