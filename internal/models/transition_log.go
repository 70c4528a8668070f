package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProcessAllocation is the process type of allocation status transitions.
const ProcessAllocation = "allocation"

// TransitionLogEntry records one state transition of an entity.
//
// Entries are append-only. The only column written after creation is the
// reversal back-reference, which is set once when a revert consumes the entry.
type TransitionLogEntry struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey" example:"0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0"`
	ProcessType  string     `json:"processType" gorm:"not null;index:idx_transition_lookup,priority:1" example:"allocation"`
	EntityID     uuid.UUID  `json:"entityId" gorm:"type:uuid;not null;index:idx_transition_lookup,priority:2" example:"65392deb-5e92-4268-b114-297faad6cdce"`
	EntityNumber string     `json:"entityNumber" example:"GATX 204512"`
	FromState    string     `json:"fromState" example:"planned"`
	ToState      string     `json:"toState" example:"confirmed"`
	IsReversible bool       `json:"isReversible" example:"true"`
	ActorID      string     `json:"actorId" example:"planner-17"`
	Notes        string     `json:"notes" example:"Moved up after customer request"`
	CreatedAt    time.Time  `json:"createdAt" gorm:"index:idx_transition_lookup,priority:3" example:"2026-02-17T20:14:01.048145Z"`
	ReversedByID *uuid.UUID `json:"reversedById" gorm:"type:uuid" example:"e1d2c3b4-a596-8778-6945-3a2b1c0d9e8f"` // Entry that reverted this transition
	ReversedAt   *time.Time `json:"reversedAt" example:"2026-02-18T08:00:00Z"`
	ReversalOfID *uuid.UUID `json:"reversalOfId" gorm:"type:uuid" example:"0f1e2d3c-4b5a-6978-8796-a5b4c3d2e1f0"` // Set on entries written by a revert
}

// TableName overrides the pluralized default.
func (TransitionLogEntry) TableName() string {
	return "transition_log"
}

func (e *TransitionLogEntry) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Reverted reports if a revert already consumed the entry.
func (e TransitionLogEntry) Reverted() bool {
	return e.ReversedByID != nil
}

// IsReversal reports if the entry was written by a revert.
func (e TransitionLogEntry) IsReversal() bool {
	return e.ReversalOfID != nil
}
