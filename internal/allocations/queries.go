package allocations

import (
	"context"

	"github.com/google/uuid"
	"github.com/railfleet/capacity-engine/internal/models"
)

// GetByID returns the allocation with the id.
func (m *Manager) GetByID(ctx context.Context, id uuid.UUID) (models.Allocation, error) {
	var a models.Allocation
	err := m.db.WithContext(ctx).First(&a, "id = ?", id).Error
	return a, err
}

// List returns the allocations matching the filter ordered by target month
// and creation time, and the number of matching allocations before pagination.
func (m *Manager) List(ctx context.Context, f Filter) ([]models.Allocation, int64, error) {
	q := m.db.WithContext(ctx).Model(&models.Allocation{})

	if f.FacilityCode != "" {
		q = q.Where("facility_code = ?", models.NormalizeFacilityCode(f.FacilityCode))
	}

	if !f.Month.IsZero() {
		q = q.Where("target_month = ?", f.Month)
	}

	if !f.From.IsZero() {
		q = q.Where("target_month >= ?", f.From)
	}

	if !f.Until.IsZero() {
		q = q.Where("target_month <= ?", f.Until)
	}

	if len(f.Status) > 0 {
		statuses := make([]string, 0, len(f.Status))
		for _, s := range f.Status {
			statuses = append(statuses, string(s))
		}
		q = q.Where("status IN ?", statuses)
	}

	if f.AssetID != "" {
		q = q.Where("asset_id = ?", f.AssetID)
	}

	if f.AssetNumber != "" {
		q = q.Where("asset_number = ?", f.AssetNumber)
	}

	if f.PlanID != nil {
		q = q.Where("plan_id = ?", *f.PlanID)
	}

	q = q.Order("target_month ASC, created_at ASC").Offset(f.Offset)

	limit := -1
	if f.Limit > 0 {
		limit = f.Limit
	}
	q = q.Limit(limit)

	allocations := make([]models.Allocation, 0)
	if err := q.Find(&allocations).Error; err != nil {
		return nil, 0, err
	}

	var total int64
	if err := q.Limit(-1).Offset(-1).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	return allocations, total, nil
}

// Transitions returns the transition log of the allocation, oldest first.
func (m *Manager) Transitions(ctx context.Context, id uuid.UUID) ([]models.TransitionLogEntry, error) {
	if _, err := m.GetByID(ctx, id); err != nil {
		return nil, err
	}

	return m.log.List(ctx, models.ProcessAllocation, id)
}
