package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AssetEventType classifies asset history events.
type AssetEventType string

const (
	AssetEventAllocationCreated       AssetEventType = "allocation_created"
	AssetEventAllocationStatusChanged AssetEventType = "allocation_status_changed"
	AssetEventAllocationReverted      AssetEventType = "allocation_reverted"
	AssetEventAllocationReplanned     AssetEventType = "allocation_replanned"
	AssetEventAllocationDeleted       AssetEventType = "allocation_deleted"
)

// AssetEvent is an append-only entry in the history of an asset.
type AssetEvent struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	AssetID     string         `json:"assetId" gorm:"not null;index"`
	AssetNumber string         `json:"assetNumber"`
	EventType   AssetEventType `json:"eventType" gorm:"not null"`
	Payload     datatypes.JSON `json:"payload"`
	ActorID     string         `json:"actorId"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func (e *AssetEvent) BeforeCreate(_ *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// AssetAssignment is the current facility assignment of an asset as seen
// by systems outside the allocation engine. At most one exists per asset.
type AssetAssignment struct {
	DefaultModel
	AssetID      string    `json:"assetId" gorm:"not null;uniqueIndex"`
	AllocationID uuid.UUID `json:"allocationId" gorm:"type:uuid;not null"`
	FacilityCode string    `json:"facilityCode"`
	TargetMonth  string    `json:"targetMonth"`
	Source       string    `json:"source"`
}
