// Package history appends events to the history of assets.
package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/railfleet/capacity-engine/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event is an asset history event before it is persisted.
type Event struct {
	AssetID     string
	AssetNumber string
	Type        models.AssetEventType
	Payload     any
	ActorID     string
}

type Recorder struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record appends the event. The payload is stored as JSON.
func (r *Recorder) Record(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshalling asset event payload: %w", err)
	}

	return r.db.WithContext(ctx).Create(&models.AssetEvent{
		AssetID:     e.AssetID,
		AssetNumber: e.AssetNumber,
		EventType:   e.Type,
		Payload:     datatypes.JSON(payload),
		ActorID:     e.ActorID,
	}).Error
}

// List returns the history of an asset, oldest first.
func (r *Recorder) List(ctx context.Context, assetID string) ([]models.AssetEvent, error) {
	events := make([]models.AssetEvent, 0)
	err := r.db.WithContext(ctx).
		Where(&models.AssetEvent{AssetID: assetID}).
		Order("created_at ASC").
		Find(&events).Error

	return events, err
}
