// Package transitions keeps the append-only transition log of engine
// entities and decides whether their last transition can be reverted.
//
// Reverts are single-step. A revert appends a reversal entry and marks the
// entry it consumed. Entries are never deleted.
package transitions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// DownstreamGuard reports if a record depends on the state the entry moved
// the entity to. Such transitions are not reverted.
//
// db is the handle of the log, the transaction of the revert in progress
// when there is one. Guards must read through it and never through another
// connection to the same database.
type DownstreamGuard interface {
	DependsOn(ctx context.Context, db *gorm.DB, entry models.TransitionLogEntry) (bool, error)
}

// GuardFunc adapts a function to a DownstreamGuard.
type GuardFunc func(ctx context.Context, db *gorm.DB, entry models.TransitionLogEntry) (bool, error)

func (f GuardFunc) DependsOn(ctx context.Context, db *gorm.DB, entry models.TransitionLogEntry) (bool, error) {
	return f(ctx, db, entry)
}

// Eligibility is the result of CanRevert.
type Eligibility struct {
	Revertible bool                       `json:"revertible" example:"false"`
	Entry      *models.TransitionLogEntry `json:"entry"`                                            // The last transition, if any
	Reasons    []string                   `json:"reasons" example:"no reversible transition found"` // Why the transition cannot be reverted
}

// Err returns a *NotRevertibleError for ineligible results and nil otherwise.
func (e Eligibility) Err() error {
	if e.Revertible {
		return nil
	}
	return &NotRevertibleError{Reasons: e.Reasons}
}

type Log struct {
	db     *gorm.DB
	guards []DownstreamGuard
}

// New creates a transition log on db.
func New(db *gorm.DB, guards ...DownstreamGuard) *Log {
	return &Log{
		db:     db,
		guards: guards,
	}
}

// WithTx returns a copy of the log that works inside tx.
func (l *Log) WithTx(tx *gorm.DB) *Log {
	return &Log{
		db:     tx,
		guards: l.guards,
	}
}

// LogTransition appends an entry.
func (l *Log) LogTransition(ctx context.Context, entry *models.TransitionLogEntry) error {
	return l.db.WithContext(ctx).Create(entry).Error
}

// latest returns the most recent entry of the entity.
func (l *Log) latest(ctx context.Context, processType string, entityID uuid.UUID) (models.TransitionLogEntry, bool, error) {
	var entry models.TransitionLogEntry
	err := l.db.WithContext(ctx).
		Where(&models.TransitionLogEntry{ProcessType: processType, EntityID: entityID}).
		Order("created_at DESC").
		First(&entry).Error

	if errors.Is(err, models.ErrResourceNotFound) {
		return entry, false, nil
	}

	return entry, err == nil, err
}

// CanRevert decides if the last transition of the entity can be reverted.
//
// Only the most recent entry is considered. Once it was reverted, or when it
// is a reversal itself, the entity has nothing left to revert.
func (l *Log) CanRevert(ctx context.Context, processType string, entityID uuid.UUID) (Eligibility, error) {
	entry, found, err := l.latest(ctx, processType, entityID)
	if err != nil {
		return Eligibility{}, err
	}

	if !found {
		return Eligibility{Reasons: []string{ReasonNoTransition}}, nil
	}

	result := Eligibility{Entry: &entry, Reasons: []string{}}
	switch {
	case entry.IsReversal() || entry.Reverted():
		result.Reasons = append(result.Reasons, ReasonAlreadyReverted)
	case !entry.IsReversible:
		result.Reasons = append(result.Reasons, ReasonNoReversible)
	}

	for _, guard := range l.guards {
		depends, err := guard.DependsOn(ctx, l.db, entry)
		if err != nil {
			return Eligibility{}, err
		}

		if depends {
			result.Reasons = append(result.Reasons, ReasonDownstreamDependency)
			break
		}
	}

	result.Revertible = len(result.Reasons) == 0
	return result, nil
}

// GetLastTransition returns the most recent reversible entry of the entity
// that was not reverted yet.
func (l *Log) GetLastTransition(ctx context.Context, processType string, entityID uuid.UUID) (models.TransitionLogEntry, bool, error) {
	var entry models.TransitionLogEntry
	err := l.db.WithContext(ctx).
		Where(&models.TransitionLogEntry{ProcessType: processType, EntityID: entityID, IsReversible: true}).
		Where("reversed_by_id IS NULL").
		Order("created_at DESC").
		First(&entry).Error

	if errors.Is(err, models.ErrResourceNotFound) {
		return entry, false, nil
	}

	return entry, err == nil, err
}

// MarkReverted records that the reversal entry consumed the entry.
// An entry can only be consumed once.
func (l *Log) MarkReverted(ctx context.Context, entryID uuid.UUID, actorID string, reversalEntryID uuid.UUID) error {
	res := l.db.WithContext(ctx).
		Model(&models.TransitionLogEntry{}).
		Where("id = ? AND reversed_by_id IS NULL", entryID).
		Updates(map[string]any{
			"reversed_by_id": reversalEntryID,
			"reversed_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 1 {
		log.Debug().Str("entry", entryID.String()).Str("reversal", reversalEntryID.String()).Str("actor", actorID).Msg("transition reverted")
		return nil
	}

	var entry models.TransitionLogEntry
	if err := l.db.WithContext(ctx).First(&entry, "id = ?", entryID).Error; err != nil {
		return err
	}

	return ErrAlreadyReverted
}

// List returns all entries of the entity, oldest first.
func (l *Log) List(ctx context.Context, processType string, entityID uuid.UUID) ([]models.TransitionLogEntry, error) {
	entries := make([]models.TransitionLogEntry, 0)
	err := l.db.WithContext(ctx).
		Where(&models.TransitionLogEntry{ProcessType: processType, EntityID: entityID}).
		Order("created_at ASC").
		Find(&entries).Error

	return entries, err
}
