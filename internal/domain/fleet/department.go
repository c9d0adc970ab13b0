package fleet

import (
	"time"

	"github.com/google/uuid"
)

// Department is an organizational unit. Code is the canonical value stored
// denormalized on vehicles and drivers, and is what department-limited
// scope filters match against.
type Department struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Code           string    `json:"code"`
	CreatedAt      time.Time `json:"created_at"`
}
