package allocations_test

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/railfleet/capacity-engine/internal/allocations"
	"github.com/railfleet/capacity-engine/internal/ledger"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/notify"
	"github.com/railfleet/capacity-engine/internal/transitions"
	"gorm.io/gorm"
)

func (suite *TestSuiteStandard) TestRevertConfirmation() {
	suite.setCapacity("F1", march, 10)
	a := suite.create("F1", march, models.StatusPlanned)
	confirmed := suite.transition(a, models.StatusConfirmed)
	suite.Require().Equal(1, suite.capacity("F1", march).ConfirmedCount)

	eligibility, err := suite.manager.CanRevert(context.Background(), a.ID)
	suite.Require().Nil(err)
	suite.Assert().True(eligibility.Revertible)

	reverted, err := suite.manager.RevertLastTransition(context.Background(), a.ID, "lead", "Customer withdrew")
	suite.Require().Nil(err)
	suite.Assert().Equal(models.StatusPlanned, reverted.Status)
	suite.Assert().Equal(confirmed.Version+1, reverted.Version)

	row := suite.capacity("F1", march)
	suite.Assert().Equal(0, row.ConfirmedCount)
	suite.Assert().Equal(1, row.PlannedCount)

	entries, err := suite.manager.Transitions(context.Background(), a.ID)
	suite.Require().Nil(err)
	suite.Require().Len(entries, 2)

	original, reversal := entries[0], entries[1]
	suite.Assert().True(original.Reverted())
	suite.Assert().Equal(reversal.ID, *original.ReversedByID)
	suite.Assert().True(reversal.IsReversal())
	suite.Assert().Equal(original.ID, *reversal.ReversalOfID)
	suite.Assert().False(reversal.IsReversible)
	suite.Assert().Equal(string(models.StatusConfirmed), reversal.FromState)
	suite.Assert().Equal(string(models.StatusPlanned), reversal.ToState)
	suite.Assert().Equal("lead", reversal.ActorID)
	suite.Assert().Equal("Customer withdrew", reversal.Notes)

	updated := suite.notifier.ofType(notify.EventAllocationUpdated)
	suite.Assert().Equal(models.StatusPlanned, updated[len(updated)-1].Allocation.Status)

	_, err = suite.manager.RevertLastTransition(context.Background(), a.ID, "lead", "")
	suite.Require().ErrorIs(err, transitions.ErrNotRevertible)

	var notRevertible *transitions.NotRevertibleError
	suite.Require().True(errors.As(err, &notRevertible))
	suite.Assert().Equal([]string{transitions.ReasonAlreadyReverted}, notRevertible.Reasons)

	stored, err := suite.manager.GetByID(context.Background(), a.ID)
	suite.Require().Nil(err)
	suite.Assert().Equal(reverted.Version, stored.Version, "A refused revert must not change the allocation")
}

func (suite *TestSuiteStandard) TestRevertCancellationRefused() {
	for _, status := range []models.AllocationStatus{models.StatusProposed, models.StatusPlanned} {
		suite.Run(string(status), func() {
			a := suite.create("F1", march, status)
			cancelled := suite.transition(a, models.StatusCancelled)

			eligibility, err := suite.manager.CanRevert(context.Background(), a.ID)
			suite.Require().Nil(err)
			suite.Assert().False(eligibility.Revertible)
			suite.Assert().Equal([]string{transitions.ReasonNoReversible}, eligibility.Reasons)

			_, err = suite.manager.RevertLastTransition(context.Background(), a.ID, "", "")
			suite.Assert().ErrorIs(err, transitions.ErrNotRevertible)

			stored, err := suite.manager.GetByID(context.Background(), a.ID)
			suite.Require().Nil(err)
			suite.Assert().Equal(models.StatusCancelled, stored.Status, "Cancelled is terminal")
			suite.Assert().Equal(cancelled.Version, stored.Version)
		})
	}

	suite.Assert().Equal(0, suite.capacity("F1", march).PlannedCount)
}

func (suite *TestSuiteStandard) TestRevertRefused() {
	suite.setCapacity("F1", march, 10)

	fresh := suite.create("F1", march, models.StatusConfirmed)
	enroute := suite.transition(suite.create("F1", march, models.StatusConfirmed), models.StatusEnroute)

	tests := []struct {
		name   string
		id     uuid.UUID
		reason string
	}{
		{"Without transitions", fresh.ID, transitions.ReasonNoTransition},
		{"Committed work", enroute.ID, transitions.ReasonNoReversible},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			eligibility, err := suite.manager.CanRevert(context.Background(), tt.id)
			suite.Require().Nil(err)
			suite.Assert().False(eligibility.Revertible)
			suite.Assert().Equal([]string{tt.reason}, eligibility.Reasons)

			_, err = suite.manager.RevertLastTransition(context.Background(), tt.id, "", "")
			suite.Assert().ErrorIs(err, transitions.ErrNotRevertible)
			suite.Assert().ErrorContains(err, tt.reason)
		})
	}

	_, err := suite.manager.RevertLastTransition(context.Background(), uuid.New(), "", "")
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)

	_, err = suite.manager.CanRevert(context.Background(), uuid.New())
	suite.Assert().ErrorIs(err, models.ErrResourceNotFound)
}

func (suite *TestSuiteStandard) TestRevertStateChanged() {
	suite.setCapacity("F1", march, 10)
	a := suite.create("F1", march, models.StatusPlanned)
	suite.transition(a, models.StatusConfirmed)

	// Simulates a status change whose log entry was lost
	suite.Require().Nil(models.DB.Model(&models.Allocation{}).Where("id = ?", a.ID).Update("status", models.StatusProposed).Error)

	eligibility, err := suite.manager.CanRevert(context.Background(), a.ID)
	suite.Require().Nil(err)
	suite.Assert().False(eligibility.Revertible)
	suite.Assert().Equal([]string{allocations.ReasonStateChanged}, eligibility.Reasons)

	_, err = suite.manager.RevertLastTransition(context.Background(), a.ID, "", "")
	suite.Assert().ErrorIs(err, transitions.ErrNotRevertible)
}

func (suite *TestSuiteStandard) TestRevertDownstreamDependency() {
	billed := transitions.GuardFunc(func(_ context.Context, _ *gorm.DB, entry models.TransitionLogEntry) (bool, error) {
		return entry.ToState == string(models.StatusConfirmed), nil
	})
	suite.setup(ledger.DefaultOvercommitFraction, billed)
	suite.setCapacity("F1", march, 10)

	a := suite.transition(suite.create("F1", march, models.StatusPlanned), models.StatusConfirmed)

	_, err := suite.manager.RevertLastTransition(context.Background(), a.ID, "", "")
	suite.Require().ErrorIs(err, transitions.ErrNotRevertible)
	suite.Assert().ErrorContains(err, transitions.ReasonDownstreamDependency)

	stored, err := suite.manager.GetByID(context.Background(), a.ID)
	suite.Require().Nil(err)
	suite.Assert().Equal(models.StatusConfirmed, stored.Status)
}

func (suite *TestSuiteStandard) TestRevertAssetAssignedElsewhere() {
	suite.setup(ledger.DefaultOvercommitFraction, allocations.AssignmentGuard{})
	suite.setCapacity("F1", march, 10)

	create := func() models.Allocation {
		a, err := suite.manager.Create(context.Background(), allocations.CreateInput{
			AssetID:      "car-8812",
			AssetNumber:  "GATX 204512",
			FacilityCode: "F1",
			TargetMonth:  march,
			Status:       models.StatusPlanned,
		})
		suite.Require().Nil(err)
		return a
	}

	// The asset stays assigned to the first allocation
	first := suite.transition(create(), models.StatusConfirmed)
	second := suite.transition(create(), models.StatusConfirmed)

	eligibility, err := suite.manager.CanRevert(context.Background(), second.ID)
	suite.Require().Nil(err)
	suite.Assert().False(eligibility.Revertible)
	suite.Assert().Equal([]string{transitions.ReasonDownstreamDependency}, eligibility.Reasons)

	_, err = suite.manager.RevertLastTransition(context.Background(), second.ID, "", "")
	suite.Assert().ErrorIs(err, transitions.ErrNotRevertible)
	suite.Assert().ErrorContains(err, transitions.ReasonDownstreamDependency)

	reverted, err := suite.manager.RevertLastTransition(context.Background(), first.ID, "", "")
	suite.Require().Nil(err, "The allocation holding the assignment can be reverted")
	suite.Assert().Equal(models.StatusPlanned, reverted.Status)

	suite.Require().Nil(suite.manager.Delete(context.Background(), first.ID, "admin"))

	eligibility, err = suite.manager.CanRevert(context.Background(), second.ID)
	suite.Require().Nil(err)
	suite.Assert().True(eligibility.Revertible, "Deleting the first allocation releases the assignment")
}
