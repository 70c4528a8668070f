package allocations

import (
	"context"

	"github.com/google/uuid"
	"github.com/railfleet/capacity-engine/internal/history"
	"github.com/railfleet/capacity-engine/internal/metrics"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/notify"
	"github.com/railfleet/capacity-engine/internal/types"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm/clause"
)

// unassigned is the facility of change events for allocations without a facility.
const unassigned = "unassigned"

// Side effect kinds, used as metric labels.
const (
	effectAssignment = "assignment"
	effectHistory    = "history"
	effectLog        = "transition_log"
)

// historyPayload is the payload of asset history events.
type historyPayload struct {
	AllocationID uuid.UUID               `json:"allocationId"`
	FacilityCode string                  `json:"facilityCode,omitempty"`
	TargetMonth  types.Month             `json:"targetMonth"`
	FromStatus   models.AllocationStatus `json:"fromStatus,omitempty"`
	ToStatus     models.AllocationStatus `json:"toStatus"`
	FromFacility string                  `json:"fromFacility,omitempty"`
	FromMonth    *types.Month            `json:"fromMonth,omitempty"`
	Version      int                     `json:"version"`
	Notes        string                  `json:"notes,omitempty"`
}

func payloadOf(a models.Allocation) historyPayload {
	return historyPayload{
		AllocationID: a.ID,
		FacilityCode: a.Facility(),
		TargetMonth:  a.TargetMonth,
		ToStatus:     a.Status,
		Version:      a.Version,
	}
}

func topicFacility(a models.Allocation) string {
	if a.FacilityCode == nil {
		return unassigned
	}
	return *a.FacilityCode
}

// failed records a failed side effect. The operation that caused it already committed.
func failed(kind string, a models.Allocation, err error) {
	if err == nil {
		return
	}

	metrics.SideEffectFailures.WithLabelValues(kind).Inc()
	log.Error().Err(err).Str("kind", kind).Str("allocation", a.ID.String()).Str("asset", a.AssetID).Msg("after-commit side effect failed")
}

// detached returns a context for side effects that must not be canceled
// together with the request that triggered them.
func detached(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (m *Manager) record(ctx context.Context, a models.Allocation, eventType models.AssetEventType, payload historyPayload, actorID string) {
	failed(effectHistory, a, m.history.Record(ctx, history.Event{
		AssetID:     a.AssetID,
		AssetNumber: a.AssetNumber,
		Type:        eventType,
		Payload:     payload,
		ActorID:     actorID,
	}))
}

func (m *Manager) capacityChanged(row *models.ShopMonthlyCapacity, actorID string) {
	if row != nil {
		m.notifier.CapacityChanged(notify.SnapshotOf(*row), actorID)
	}
}

func (m *Manager) afterCreate(ctx context.Context, a models.Allocation, row *models.ShopMonthlyCapacity) {
	ctx = detached(ctx)

	assignment := models.AssetAssignment{
		AssetID:      a.AssetID,
		AllocationID: a.ID,
		FacilityCode: a.Facility(),
		TargetMonth:  a.TargetMonth.String(),
		Source:       "allocation",
	}
	err := m.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "asset_id"}}, DoNothing: true}).
		Create(&assignment).Error
	failed(effectAssignment, a, err)

	m.notifier.AllocationCreated(topicFacility(a), a.TargetMonth, notify.PayloadOf(a), a.CreatedBy)
	m.capacityChanged(row, a.CreatedBy)
	m.record(ctx, a, models.AssetEventAllocationCreated, payloadOf(a), a.CreatedBy)
}

func (m *Manager) afterStatusChange(ctx context.Context, before, a models.Allocation, actorID, notes string, row *models.ShopMonthlyCapacity) {
	ctx = detached(ctx)
	metrics.Transitions.WithLabelValues(string(before.Status), string(a.Status)).Inc()

	payload := notify.PayloadOf(a)
	payload.PreviousStatus = before.Status
	m.notifier.AllocationUpdated(topicFacility(a), a.TargetMonth, payload, actorID)
	m.capacityChanged(row, actorID)

	h := payloadOf(a)
	h.FromStatus = before.Status
	h.Notes = notes
	m.record(ctx, a, models.AssetEventAllocationStatusChanged, h, actorID)

	failed(effectLog, a, m.log.LogTransition(ctx, &models.TransitionLogEntry{
		ProcessType:  models.ProcessAllocation,
		EntityID:     a.ID,
		EntityNumber: a.AssetNumber,
		FromState:    string(before.Status),
		ToState:      string(a.Status),
		IsReversible: Reversible(before.Status, a.Status),
		ActorID:      actorID,
		Notes:        notes,
	}))
}

func (m *Manager) afterRevert(ctx context.Context, before, a models.Allocation, actorID string, row *models.ShopMonthlyCapacity) {
	ctx = detached(ctx)
	metrics.Transitions.WithLabelValues(string(before.Status), string(a.Status)).Inc()

	payload := notify.PayloadOf(a)
	payload.PreviousStatus = before.Status
	m.notifier.AllocationUpdated(topicFacility(a), a.TargetMonth, payload, actorID)
	m.capacityChanged(row, actorID)

	h := payloadOf(a)
	h.FromStatus = before.Status
	m.record(ctx, a, models.AssetEventAllocationReverted, h, actorID)
}

func (m *Manager) afterReplan(ctx context.Context, before, a models.Allocation, actorID, notes string, rows []models.ShopMonthlyCapacity) {
	ctx = detached(ctx)

	payload := notify.PayloadOf(a)
	m.notifier.AllocationUpdated(topicFacility(a), a.TargetMonth, payload, actorID)

	moved := topicFacility(before) != topicFacility(a) || !before.TargetMonth.Equal(a.TargetMonth)
	if moved {
		m.notifier.AllocationUpdated(topicFacility(before), before.TargetMonth, payload, actorID)
	}

	for i := range rows {
		m.capacityChanged(&rows[i], actorID)
	}

	h := payloadOf(a)
	h.FromFacility = before.Facility()
	h.FromMonth = &before.TargetMonth
	h.Notes = notes
	m.record(ctx, a, models.AssetEventAllocationReplanned, h, actorID)

	if moved {
		err := m.db.WithContext(ctx).
			Model(&models.AssetAssignment{}).
			Where("allocation_id = ?", a.ID).
			Updates(map[string]any{"facility_code": a.Facility(), "target_month": a.TargetMonth.String()}).Error
		failed(effectAssignment, a, err)
	}
}

func (m *Manager) afterDelete(ctx context.Context, a models.Allocation, actorID string, row *models.ShopMonthlyCapacity) {
	ctx = detached(ctx)

	err := m.db.WithContext(ctx).Where("allocation_id = ?", a.ID).Delete(&models.AssetAssignment{}).Error
	failed(effectAssignment, a, err)

	m.notifier.AllocationDeleted(topicFacility(a), a.TargetMonth, notify.PayloadOf(a), actorID)
	m.capacityChanged(row, actorID)
	m.record(ctx, a, models.AssetEventAllocationDeleted, payloadOf(a), actorID)
}
