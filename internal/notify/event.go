// Package notify delivers allocation and capacity change events to observers.
//
// Events are published strictly after the transaction that produced them
// committed. Delivery is best-effort: consumers treat events as hints and
// reconcile by reading the current state.
package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/types"
	"github.com/shopspring/decimal"
)

// EventType classifies change events.
type EventType string

const (
	EventAllocationCreated EventType = "allocation.created"
	EventAllocationUpdated EventType = "allocation.updated"
	EventAllocationDeleted EventType = "allocation.deleted"
	EventCapacityChanged   EventType = "capacity.changed"
)

// Topic prefixes. Full topics are <prefix>.<FACILITY>.<YYYY-MM>.
const (
	TopicAllocations = "allocations"
	TopicCapacity    = "capacity"
)

// AllocationPayload is the allocation state carried by allocation events.
type AllocationPayload struct {
	ID             uuid.UUID               `json:"id"`
	AssetNumber    string                  `json:"assetNumber"`
	Status         models.AllocationStatus `json:"status"`
	PreviousStatus models.AllocationStatus `json:"previousStatus,omitempty"`
	Version        int                     `json:"version"`
}

// PayloadOf builds the payload for an allocation.
func PayloadOf(a models.Allocation) AllocationPayload {
	return AllocationPayload{
		ID:          a.ID,
		AssetNumber: a.AssetNumber,
		Status:      a.Status,
		Version:     a.Version,
	}
}

// CapacitySnapshot is the ledger state carried by capacity events.
type CapacitySnapshot struct {
	FacilityCode      string          `json:"facilityCode"`
	Month             types.Month     `json:"month"`
	TotalCapacity     int             `json:"totalCapacity"`
	ConfirmedCount    int             `json:"confirmedCount"`
	PlannedCount      int             `json:"plannedCount"`
	RemainingCapacity int             `json:"remainingCapacity"`
	UtilizationPct    decimal.Decimal `json:"utilizationPct"`
	AtRisk            bool            `json:"atRisk"`
	Version           int             `json:"version"`
}

// SnapshotOf builds the snapshot of a ledger row.
func SnapshotOf(row models.ShopMonthlyCapacity) CapacitySnapshot {
	return CapacitySnapshot{
		FacilityCode:      row.FacilityCode,
		Month:             row.Month,
		TotalCapacity:     row.TotalCapacity,
		ConfirmedCount:    row.ConfirmedCount,
		PlannedCount:      row.PlannedCount,
		RemainingCapacity: row.RemainingCapacity,
		UtilizationPct:    row.UtilizationPct,
		AtRisk:            row.AtRisk,
		Version:           row.Version,
	}
}

// Event is a change event.
type Event struct {
	Type       EventType          `json:"type"`
	Facility   string             `json:"facility"`
	Month      types.Month        `json:"month"`
	Allocation *AllocationPayload `json:"allocation,omitempty"`
	Capacity   *CapacitySnapshot  `json:"capacity,omitempty"`
	ActorID    string             `json:"actorId,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// Topic returns the topic the event is published on.
func (e Event) Topic() string {
	prefix := TopicAllocations
	if e.Type == EventCapacityChanged {
		prefix = TopicCapacity
	}

	return Topic(prefix, e.Facility, e.Month)
}

// Topic builds a topic name.
func Topic(prefix, facility string, month types.Month) string {
	return fmt.Sprintf("%s.%s.%s", prefix, facility, month)
}
