package allocations

import (
	"context"

	"github.com/railfleet/capacity-engine/internal/models"
	"gorm.io/gorm"
)

// AssignmentGuard refuses to revert transitions of allocations whose asset
// is assigned to a different allocation. The asset assignment is read by
// systems outside the engine, so the allocation must not move back to a
// state they never saw.
type AssignmentGuard struct{}

func (AssignmentGuard) DependsOn(ctx context.Context, db *gorm.DB, entry models.TransitionLogEntry) (bool, error) {
	if entry.ProcessType != models.ProcessAllocation {
		return false, nil
	}

	asset := db.Model(&models.Allocation{}).Select("asset_id").Where("id = ?", entry.EntityID)

	var count int64
	err := db.WithContext(ctx).
		Model(&models.AssetAssignment{}).
		Where("asset_id = (?)", asset).
		Where("allocation_id <> ?", entry.EntityID).
		Count(&count).Error

	return count > 0, err
}
