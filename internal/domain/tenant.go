package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is an isolated customer whose data and mappings never mix with another's.
type Tenant struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewTenant creates a new tenant with immutable pattern
func NewTenant(name string, active bool) Tenant {
	now := time.Now().UTC()
	return Tenant{
		ID:        uuid.New(),
		Name:      name,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithActive returns a new tenant with the active flag changed
func (t Tenant) WithActive(active bool) Tenant {
	return Tenant{
		ID:        t.ID,
		Name:      t.Name,
		Active:    active,
		CreatedAt: t.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}
}
