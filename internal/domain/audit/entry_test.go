package audit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetworks/fleet-operations-backend/internal/domain/audit"
)

func TestComputeDiff(t *testing.T) {
	tests := []struct {
		name   string
		before map[string]any
		after  map[string]any
		want   map[string]audit.FieldChange
	}{
		{
			name:   "only changed fields are included",
			before: map[string]any{"status": "Active", "phone": "555-1"},
			after:  map[string]any{"status": "Suspended", "phone": "555-1"},
			want: map[string]audit.FieldChange{
				"status": {From: "Active", To: "Suspended"},
			},
		},
		{
			name:   "identical snapshots produce an empty diff",
			before: map[string]any{"status": "Active", "odometer": int64(1000)},
			after:  map[string]any{"status": "Active", "odometer": int64(1000)},
			want:   map[string]audit.FieldChange{},
		},
		{
			name:   "new field appears with nil from",
			before: map[string]any{"status": "Active"},
			after:  map[string]any{"status": "Active", "department": "PARKS_REC"},
			want: map[string]audit.FieldChange{
				"department": {From: nil, To: "PARKS_REC"},
			},
		},
		{
			name:   "removed field appears with nil to",
			before: map[string]any{"status": "Active", "phone": "555-1"},
			after:  map[string]any{"status": "Active"},
			want: map[string]audit.FieldChange{
				"phone": {From: "555-1", To: nil},
			},
		},
		{
			name:   "value equality not identity for nested values",
			before: map[string]any{"tags": []string{"a", "b"}},
			after:  map[string]any{"tags": []string{"a", "b"}},
			want:   map[string]audit.FieldChange{},
		},
		{
			name:   "numeric change is captured with both values",
			before: map[string]any{"odometer": int64(1000)},
			after:  map[string]any{"odometer": int64(1500)},
			want: map[string]audit.FieldChange{
				"odometer": {From: int64(1000), To: int64(1500)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audit.ComputeDiff(tt.before, tt.after)
			require.Len(t, got, len(tt.want))
			assert.Equal(t, tt.want, got)
		})
	}
}
