package v1_test

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/railfleet/capacity-engine/internal/allocations"
	v1 "github.com/railfleet/capacity-engine/internal/controllers/v1"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/transitions"
	"github.com/railfleet/capacity-engine/internal/types"
	"github.com/railfleet/capacity-engine/test"
)

var actor = map[string]string{"X-Actor-ID": "planner-17"}

func (suite *TestSuiteStandard) createTestAllocation(in allocations.CreateInput, expectedStatus ...int) v1.AllocationResponse {
	if in.AssetID == "" {
		in.AssetID = uuid.NewString()
	}

	if in.AssetNumber == "" {
		in.AssetNumber = "GATX " + in.AssetID[:6]
	}

	if in.FacilityCode == "" && in.Status != models.StatusProposed {
		in.FacilityCode = "F1"
	}

	if in.TargetMonth.IsZero() {
		in.TargetMonth = march
	}

	if in.Status == "" {
		in.Status = models.StatusPlanned
	}

	// Default to 201 Created as expected status
	if len(expectedStatus) == 0 {
		expectedStatus = append(expectedStatus, http.StatusCreated)
	}

	r := test.Request(suite.co, suite.T(), http.MethodPost, "http://example.com/v1/allocations", []allocations.CreateInput{in}, actor)
	test.AssertHTTPStatus(suite.T(), &r, expectedStatus...)

	var response v1.AllocationCreateResponse
	test.DecodeResponse(suite.T(), &r, &response)

	if r.Code == http.StatusCreated {
		return response.Data[0]
	}

	return v1.AllocationResponse{}
}

func (suite *TestSuiteStandard) changeTestStatus(id uuid.UUID, change allocations.StatusChange, expectedStatus ...int) v1.AllocationResponse {
	if len(expectedStatus) == 0 {
		expectedStatus = append(expectedStatus, http.StatusOK)
	}

	r := test.Request(suite.co, suite.T(), http.MethodPost, fmt.Sprintf("http://example.com/v1/allocations/%s/status", id), change, actor)
	test.AssertHTTPStatus(suite.T(), &r, expectedStatus...)

	var response v1.AllocationResponse
	test.DecodeResponse(suite.T(), &r, &response)
	return response
}

func (suite *TestSuiteStandard) TestAllocationsCreate() {
	a := suite.createTestAllocation(allocations.CreateInput{AssetID: "car-8812", AssetNumber: "GATX 204512"})

	suite.Require().NotNil(a.Data)
	suite.Assert().Equal("car-8812", a.Data.AssetID)
	suite.Assert().Equal(models.StatusPlanned, a.Data.Status)
	suite.Assert().Equal(1, a.Data.Version)
	suite.Assert().Equal("planner-17", a.Data.CreatedBy)

	self := fmt.Sprintf("http://example.com/v1/allocations/%s", a.Data.ID)
	suite.Assert().Equal(self, a.Data.Links.Self)
	suite.Assert().Equal(self+"/revert", a.Data.Links.Revert)
	suite.Assert().Equal("http://example.com/v1/capacity/F1/2026-03", a.Data.Links.Capacity)

	capacity, found, err := suite.co.Capacity.Read(suite.T().Context(), "F1", march)
	suite.Require().Nil(err)
	suite.Require().True(found, "Creating a planned allocation creates the ledger row")
	suite.Assert().Equal(1, capacity.PlannedCount)
}

func (suite *TestSuiteStandard) TestAllocationsCreateProposedWithoutFacility() {
	a := suite.createTestAllocation(allocations.CreateInput{Status: models.StatusProposed})

	suite.Require().NotNil(a.Data)
	suite.Assert().Nil(a.Data.FacilityCode)
	suite.Assert().Empty(a.Data.Links.Capacity)
}

func (suite *TestSuiteStandard) TestAllocationsCreatePartialFailure() {
	body := []allocations.CreateInput{
		{AssetID: "car-1", AssetNumber: "GATX 1", FacilityCode: "F1", TargetMonth: march, Status: models.StatusPlanned},
		{AssetNumber: "GATX 2", FacilityCode: "F1", TargetMonth: march, Status: models.StatusPlanned},
		{AssetID: "car-3", AssetNumber: "GATX 3", FacilityCode: "F1", TargetMonth: march, Status: models.StatusConfirmed},
	}

	r := test.Request(suite.co, suite.T(), http.MethodPost, "http://example.com/v1/allocations", body)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusConflict)

	var response v1.AllocationCreateResponse
	test.DecodeResponse(suite.T(), &r, &response)

	suite.Require().Len(response.Data, 3)
	suite.Assert().NotNil(response.Data[0].Data)
	suite.Assert().Contains(*response.Data[1].Error, allocations.ErrAssetIDMissing.Error())
	suite.Assert().Contains(*response.Data[2].Error, "no capacity left")
}

func (suite *TestSuiteStandard) TestAllocationsCreateInvalidBody() {
	tests := []struct {
		name string
		body string
		err  string
	}{
		{"Empty body", "", "the request body must not be empty"},
		{"Broken JSON", `[{"assetId": "car-1"`, "invalid or un-parseable data"},
		{"Wrong type", `[{"assetId": 5}]`, "cannot unmarshal"},
		{"Malformed month", `[{"assetId": "car-1", "targetMonth": "March"}]`, ""},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			r := test.Request(suite.co, suite.T(), http.MethodPost, "http://example.com/v1/allocations", tt.body)
			test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)

			var response v1.AllocationCreateResponse
			test.DecodeResponse(suite.T(), &r, &response)
			suite.Require().NotNil(response.Error)
			suite.Assert().Contains(*response.Error, tt.err)
		})
	}
}

func (suite *TestSuiteStandard) TestAllocationsList() {
	april := march.AddDate(0, 1)
	plan := uuid.New()

	suite.createTestAllocation(allocations.CreateInput{FacilityCode: "F1"})
	suite.createTestAllocation(allocations.CreateInput{FacilityCode: "F1", TargetMonth: april, Status: models.StatusProposed})
	suite.createTestAllocation(allocations.CreateInput{FacilityCode: "F2", PlanID: &plan, AssetID: "car-8812"})

	tests := []struct {
		query string
		len   int
		total int64
	}{
		{"", 3, 3},
		{"facility=F1", 2, 2},
		{"facility=f2", 1, 1},
		{"month=2026-03", 2, 2},
		{"from=2026-04", 1, 1},
		{"until=2026-03", 2, 2},
		{"status=planned", 2, 2},
		{"status=planned&status=proposed", 3, 3},
		{"asset=car-8812", 1, 1},
		{fmt.Sprintf("plan=%s", plan), 1, 1},
		{"limit=1", 1, 3},
		{"offset=2", 1, 3},
		{"facility=F7", 0, 0},
	}

	for _, tt := range tests {
		suite.Run(tt.query, func() {
			r := test.Request(suite.co, suite.T(), http.MethodGet, "http://example.com/v1/allocations?"+tt.query, "")
			test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

			var response v1.AllocationListResponse
			test.DecodeResponse(suite.T(), &r, &response)

			suite.Assert().Len(response.Data, tt.len)
			suite.Require().NotNil(response.Pagination)
			suite.Assert().Equal(tt.total, response.Pagination.Total)
			suite.Assert().Equal(tt.len, response.Pagination.Count)
		})
	}
}

func (suite *TestSuiteStandard) TestAllocationsListDefaultLimit() {
	r := test.Request(suite.co, suite.T(), http.MethodGet, "http://example.com/v1/allocations", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.AllocationListResponse
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().Equal(50, response.Pagination.Limit)
	suite.Assert().NotNil(response.Data, "An empty list is returned as an empty array")
}

func (suite *TestSuiteStandard) TestAllocationsListInvalidQuery() {
	tests := []string{
		"month=2026-13",
		"from=yesterday",
		"status=scrapped",
		"plan=not-a-uuid",
		"limit=many",
		"offset=-1",
	}

	for _, query := range tests {
		suite.Run(query, func() {
			r := test.Request(suite.co, suite.T(), http.MethodGet, "http://example.com/v1/allocations?"+query, "")
			test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)

			var response v1.AllocationListResponse
			test.DecodeResponse(suite.T(), &r, &response)
			suite.Assert().NotNil(response.Error)
		})
	}
}

func (suite *TestSuiteStandard) TestAllocationGet() {
	a := suite.createTestAllocation(allocations.CreateInput{})

	tests := []struct {
		name   string
		id     string
		status int
	}{
		{"Existing", a.Data.ID.String(), http.StatusOK},
		{"Unknown", uuid.NewString(), http.StatusNotFound},
		{"Not a UUID", "car-8812", http.StatusBadRequest},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			r := test.Request(suite.co, suite.T(), http.MethodGet, "http://example.com/v1/allocations/"+tt.id, "")
			test.AssertHTTPStatus(suite.T(), &r, tt.status)

			var response v1.AllocationResponse
			test.DecodeResponse(suite.T(), &r, &response)

			if tt.status == http.StatusOK {
				suite.Assert().Equal(a.Data.ID, response.Data.ID)
				return
			}
			suite.Assert().NotNil(response.Error)
		})
	}
}

func (suite *TestSuiteStandard) TestAllocationDelete() {
	a := suite.createTestAllocation(allocations.CreateInput{})

	r := test.Request(suite.co, suite.T(), http.MethodDelete, a.Data.Links.Self, "", actor)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNoContent)

	r = test.Request(suite.co, suite.T(), http.MethodGet, a.Data.Links.Self, "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNotFound)

	capacity, _, err := suite.co.Capacity.Read(suite.T().Context(), "F1", march)
	suite.Require().Nil(err)
	suite.Assert().Equal(0, capacity.PlannedCount, "Deleting releases the capacity")

	r = test.Request(suite.co, suite.T(), http.MethodDelete, a.Data.Links.Self, "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNotFound)
}

func (suite *TestSuiteStandard) TestAllocationStatusChange() {
	suite.setTestCapacity("F1", march, 10, 0)
	a := suite.createTestAllocation(allocations.CreateInput{})

	confirmed := suite.changeTestStatus(a.Data.ID, allocations.StatusChange{Status: models.StatusConfirmed, ExpectedVersion: 1, Notes: "Slot confirmed"})
	suite.Require().NotNil(confirmed.Data)
	suite.Assert().Equal(models.StatusConfirmed, confirmed.Data.Status)
	suite.Assert().Equal(2, confirmed.Data.Version)

	stale := suite.changeTestStatus(a.Data.ID, allocations.StatusChange{Status: models.StatusEnroute, ExpectedVersion: 1}, http.StatusConflict)
	suite.Assert().Contains(*stale.Error, models.ErrVersionConflict.Error())

	invalid := suite.changeTestStatus(a.Data.ID, allocations.StatusChange{Status: models.StatusComplete, ExpectedVersion: 2}, http.StatusBadRequest)
	suite.Assert().Contains(*invalid.Error, allocations.ErrInvalidTransition.Error())

	missing := suite.changeTestStatus(a.Data.ID, allocations.StatusChange{Status: models.StatusEnroute}, http.StatusBadRequest)
	suite.Assert().Contains(*missing.Error, allocations.ErrVersionMissing.Error())

	suite.changeTestStatus(uuid.New(), allocations.StatusChange{Status: models.StatusEnroute, ExpectedVersion: 2}, http.StatusNotFound)

	r := test.Request(suite.co, suite.T(), http.MethodPost, a.Data.Links.Status, "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)

	r = test.Request(suite.co, suite.T(), http.MethodGet, a.Data.Links.Transitions, "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var entries v1.TransitionListResponse
	test.DecodeResponse(suite.T(), &r, &entries)
	suite.Require().Len(entries.Data, 1)
	suite.Assert().Equal(string(models.StatusPlanned), entries.Data[0].FromState)
	suite.Assert().Equal(string(models.StatusConfirmed), entries.Data[0].ToState)
	suite.Assert().Equal("planner-17", entries.Data[0].ActorID)
	suite.Assert().Equal("Slot confirmed", entries.Data[0].Notes)
}

func (suite *TestSuiteStandard) TestAllocationStatusChangeCapacityExceeded() {
	suite.setTestCapacity("F1", march, 1, 0)

	// A total of 1 tolerates one overbooked slot
	for range 2 {
		a := suite.createTestAllocation(allocations.CreateInput{})
		suite.changeTestStatus(a.Data.ID, allocations.StatusChange{Status: models.StatusConfirmed, ExpectedVersion: 1})
	}

	a := suite.createTestAllocation(allocations.CreateInput{})
	r := suite.changeTestStatus(a.Data.ID, allocations.StatusChange{Status: models.StatusConfirmed, ExpectedVersion: 1}, http.StatusConflict)
	suite.Assert().True(strings.HasPrefix(*r.Error, "the facility has no capacity left"), *r.Error)

	stored := test.Request(suite.co, suite.T(), http.MethodGet, a.Data.Links.Self, "")
	var response v1.AllocationResponse
	test.DecodeResponse(suite.T(), &stored, &response)
	suite.Assert().Equal(models.StatusPlanned, response.Data.Status)
	suite.Assert().Equal(1, response.Data.Version, "A refused change does not bump the version")
}

func (suite *TestSuiteStandard) TestAllocationReplan() {
	april := march.AddDate(0, 1)
	a := suite.createTestAllocation(allocations.CreateInput{})

	tests := []struct {
		name   string
		in     allocations.ReplanInput
		status int
	}{
		{"Stale version", allocations.ReplanInput{FacilityCode: "F2", TargetMonth: april, ExpectedVersion: 3}, http.StatusConflict},
		{"Month missing", allocations.ReplanInput{FacilityCode: "F2", ExpectedVersion: 1}, http.StatusBadRequest},
		{"Moved", allocations.ReplanInput{FacilityCode: "F2", TargetMonth: april, ExpectedVersion: 1, Notes: "F1 is full"}, http.StatusOK},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			r := test.Request(suite.co, suite.T(), http.MethodPost, a.Data.Links.Replan, tt.in, actor)
			test.AssertHTTPStatus(suite.T(), &r, tt.status)
		})
	}

	r := test.Request(suite.co, suite.T(), http.MethodGet, a.Data.Links.Self, "")
	var response v1.AllocationResponse
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().Equal("F2", response.Data.Allocation.Facility())
	suite.Assert().True(april.Equal(response.Data.TargetMonth))
	suite.Assert().Equal(2, response.Data.Version)
	suite.Assert().Equal("http://example.com/v1/capacity/F2/2026-04", response.Data.Links.Capacity)

	r = test.Request(suite.co, suite.T(), http.MethodPost, fmt.Sprintf("http://example.com/v1/allocations/%s/replan", uuid.New()), allocations.ReplanInput{FacilityCode: "F2", TargetMonth: april, ExpectedVersion: 1})
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNotFound)
}

func (suite *TestSuiteStandard) TestAllocationRevert() {
	suite.setTestCapacity("F1", march, 10, 0)
	a := suite.createTestAllocation(allocations.CreateInput{})

	// Nothing to revert yet
	r := test.Request(suite.co, suite.T(), http.MethodGet, a.Data.Links.Revert, "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var eligibility v1.RevertEligibilityResponse
	test.DecodeResponse(suite.T(), &r, &eligibility)
	suite.Assert().False(eligibility.Data.Revertible)
	suite.Assert().Equal([]string{transitions.ReasonNoTransition}, eligibility.Data.Reasons)

	r = test.Request(suite.co, suite.T(), http.MethodPost, a.Data.Links.Revert, "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusConflict)

	suite.changeTestStatus(a.Data.ID, allocations.StatusChange{Status: models.StatusConfirmed, ExpectedVersion: 1})

	r = test.Request(suite.co, suite.T(), http.MethodGet, a.Data.Links.Revert, "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)
	test.DecodeResponse(suite.T(), &r, &eligibility)
	suite.Assert().True(eligibility.Data.Revertible)
	suite.Assert().Empty(eligibility.Data.Reasons)
	suite.Require().NotNil(eligibility.Data.Entry)
	suite.Assert().Equal(string(models.StatusConfirmed), eligibility.Data.Entry.ToState)

	r = test.Request(suite.co, suite.T(), http.MethodPost, a.Data.Links.Revert, v1.RevertEditable{Notes: "Customer withdrew"}, actor)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var reverted v1.AllocationResponse
	test.DecodeResponse(suite.T(), &r, &reverted)
	suite.Assert().Equal(models.StatusPlanned, reverted.Data.Status)
	suite.Assert().Equal(3, reverted.Data.Version)

	r = test.Request(suite.co, suite.T(), http.MethodGet, a.Data.Links.Transitions, "")
	var entries v1.TransitionListResponse
	test.DecodeResponse(suite.T(), &r, &entries)
	suite.Require().Len(entries.Data, 2)
	suite.Assert().True(entries.Data[0].Reverted())
	suite.Assert().True(entries.Data[1].IsReversal())
	suite.Assert().Equal("Customer withdrew", entries.Data[1].Notes)

	// A reversal cannot be reverted
	r = test.Request(suite.co, suite.T(), http.MethodPost, a.Data.Links.Revert, "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusConflict)

	r = test.Request(suite.co, suite.T(), http.MethodPost, a.Data.Links.Revert, `{"notes": 5}`)
	test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)

	r = test.Request(suite.co, suite.T(), http.MethodGet, fmt.Sprintf("http://example.com/v1/allocations/%s/revert", uuid.New()), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNotFound)
}

func (suite *TestSuiteStandard) TestAllocationTransitionsUnknown() {
	r := test.Request(suite.co, suite.T(), http.MethodGet, fmt.Sprintf("http://example.com/v1/allocations/%s/transitions", uuid.New()), "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNotFound)

	r = test.Request(suite.co, suite.T(), http.MethodGet, "http://example.com/v1/allocations/car-8812/transitions", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)
}

// TestAllocationsDBClosed verifies that errors are processed correctly when
// the database is closed.
func (suite *TestSuiteStandard) TestAllocationsDBClosed() {
	a := suite.createTestAllocation(allocations.CreateInput{})

	tests := []struct {
		name   string
		method string
		url    string
		body   any
	}{
		{"List", http.MethodGet, "http://example.com/v1/allocations", ""},
		{"Create", http.MethodPost, "http://example.com/v1/allocations", []allocations.CreateInput{{AssetID: "car-1", AssetNumber: "GATX 1", TargetMonth: types.NewMonth(2026, 5)}}},
		{"Get", http.MethodGet, a.Data.Links.Self, ""},
		{"Status", http.MethodPost, a.Data.Links.Status, allocations.StatusChange{Status: models.StatusConfirmed, ExpectedVersion: 1}},
		{"Transitions", http.MethodGet, a.Data.Links.Transitions, ""},
	}

	suite.CloseDB()

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			r := test.Request(suite.co, suite.T(), tt.method, tt.url, tt.body)
			test.AssertHTTPStatus(suite.T(), &r, http.StatusInternalServerError)
			suite.Assert().Contains(r.Body.String(), models.ErrGeneral.Error())
		})
	}
}
