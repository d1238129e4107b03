package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity holds the identity and timestamps shared by every persisted
// accounting document
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity creates a new base entity with generated ID
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch records a modification
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}
