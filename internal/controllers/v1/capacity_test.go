package v1_test

import (
	"fmt"
	"net/http"

	"github.com/railfleet/capacity-engine/internal/allocations"
	v1 "github.com/railfleet/capacity-engine/internal/controllers/v1"
	"github.com/railfleet/capacity-engine/internal/models"
	"github.com/railfleet/capacity-engine/internal/types"
	"github.com/railfleet/capacity-engine/test"
	"github.com/shopspring/decimal"
)

func (suite *TestSuiteStandard) setTestCapacity(facility string, month types.Month, total, version int, expectedStatus ...int) v1.CapacityResponse {
	if len(expectedStatus) == 0 {
		expectedStatus = append(expectedStatus, http.StatusOK)
	}

	url := fmt.Sprintf("http://example.com/v1/capacity/%s/%s", facility, month)
	r := test.Request(suite.co, suite.T(), http.MethodPut, url, v1.CapacityEditable{TotalCapacity: total, Version: version}, actor)
	test.AssertHTTPStatus(suite.T(), &r, expectedStatus...)

	var response v1.CapacityResponse
	test.DecodeResponse(suite.T(), &r, &response)
	return response
}

func (suite *TestSuiteStandard) TestCapacitySet() {
	created := suite.setTestCapacity("f1", march, 10, 0)
	suite.Require().NotNil(created.Data)
	suite.Assert().Equal("F1", created.Data.FacilityCode)
	suite.Assert().Equal(10, created.Data.TotalCapacity)
	suite.Assert().Equal(1, created.Data.Version)
	suite.Assert().Equal(1, created.Data.Tolerance)
	suite.Assert().Equal("http://example.com/v1/capacity/F1/2026-03", created.Data.Links.Self)
	suite.Assert().Equal("http://example.com/v1/allocations?facility=F1&month=2026-03", created.Data.Links.Allocations)

	updated := suite.setTestCapacity("F1", march, 25, 1)
	suite.Assert().Equal(25, updated.Data.TotalCapacity)
	suite.Assert().Equal(2, updated.Data.Version)
	suite.Assert().Equal(3, updated.Data.Tolerance)

	stale := suite.setTestCapacity("F1", march, 5, 1, http.StatusConflict)
	suite.Assert().Contains(*stale.Error, models.ErrVersionConflict.Error())

	unchecked := suite.setTestCapacity("F1", march, 5, 0)
	suite.Assert().Equal(3, unchecked.Data.Version, "Version 0 skips the check")
}

func (suite *TestSuiteStandard) TestCapacitySetInvalid() {
	tests := []struct {
		name  string
		url   string
		body  any
		error string
	}{
		{"Negative total", "http://example.com/v1/capacity/F1/2026-03", v1.CapacityEditable{TotalCapacity: -1}, models.ErrCapacityNegative.Error()},
		{"Malformed facility", "http://example.com/v1/capacity/F%201/2026-03", v1.CapacityEditable{TotalCapacity: 1}, models.ErrFacilityCodeMalformed.Error()},
		{"Malformed month", "http://example.com/v1/capacity/F1/March", v1.CapacityEditable{TotalCapacity: 1}, ""},
		{"Empty body", "http://example.com/v1/capacity/F1/2026-03", "", "the request body must not be empty"},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			r := test.Request(suite.co, suite.T(), http.MethodPut, tt.url, tt.body)
			test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)

			var response v1.CapacityResponse
			test.DecodeResponse(suite.T(), &r, &response)
			suite.Require().NotNil(response.Error)
			suite.Assert().Contains(*response.Error, tt.error)
		})
	}
}

func (suite *TestSuiteStandard) TestCapacityGet() {
	suite.setTestCapacity("F1", march, 4, 0)
	suite.createTestAllocation(allocations.CreateInput{})
	suite.createTestAllocation(allocations.CreateInput{Status: models.StatusConfirmed, EstimatedCost: decimal.NewFromInt(900)})

	r := test.Request(suite.co, suite.T(), http.MethodGet, "http://example.com/v1/capacity/F1/2026-03", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

	var response v1.CapacityResponse
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().Equal(1, response.Data.PlannedCount)
	suite.Assert().Equal(1, response.Data.ConfirmedCount)
	suite.Assert().Equal(2, response.Data.RemainingCapacity)
	suite.Assert().True(decimal.NewFromInt(50).Equal(response.Data.UtilizationPct))
	suite.Assert().False(response.Data.AtRisk)

	r = test.Request(suite.co, suite.T(), http.MethodGet, "http://example.com/v1/capacity/F9/2026-03", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusNotFound)
	test.DecodeResponse(suite.T(), &r, &response)
	suite.Assert().Equal("there is no capacity row for this facility month", *response.Error)

	r = test.Request(suite.co, suite.T(), http.MethodGet, "http://example.com/v1/capacity/F1/2026-3x", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)
}

func (suite *TestSuiteStandard) TestCapacityRange() {
	for i, total := range []int{3, 0, 8} {
		suite.setTestCapacity("F1", march.AddDate(0, i), total, 0)
	}
	suite.setTestCapacity("F2", march, 1, 0)

	tests := []struct {
		query  string
		months []string
	}{
		{"facility=F1&from=2026-03", []string{"2026-03"}},
		{"facility=F1&from=2026-03&until=2026-05", []string{"2026-03", "2026-04", "2026-05"}},
		{"facility=f1&from=2026-04&until=2026-12", []string{"2026-04", "2026-05"}},
		{"facility=F1&from=2026-05&until=2026-03", []string{}},
		{"facility=F3&from=2026-01&until=2026-12", []string{}},
	}

	for _, tt := range tests {
		suite.Run(tt.query, func() {
			r := test.Request(suite.co, suite.T(), http.MethodGet, "http://example.com/v1/capacity?"+tt.query, "")
			test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)

			var response v1.CapacityListResponse
			test.DecodeResponse(suite.T(), &r, &response)

			months := make([]string, 0, len(response.Data))
			for _, row := range response.Data {
				months = append(months, row.Month.String())
			}
			suite.Assert().Equal(tt.months, months)
		})
	}
}

func (suite *TestSuiteStandard) TestCapacityRangeInvalid() {
	tests := []struct {
		query string
		error string
	}{
		{"from=2026-03", "the facility query parameter must be set"},
		{"facility=F1", "the from query parameter must be set"},
		{"facility=F1&from=March", ""},
		{"facility=F1&from=2026-03&until=soon", ""},
		{"facility=F1&from=2026-01&until=2031-02", "must not be longer than 60 months"},
	}

	for _, tt := range tests {
		suite.Run(tt.query, func() {
			r := test.Request(suite.co, suite.T(), http.MethodGet, "http://example.com/v1/capacity?"+tt.query, "")
			test.AssertHTTPStatus(suite.T(), &r, http.StatusBadRequest)

			var response v1.CapacityListResponse
			test.DecodeResponse(suite.T(), &r, &response)
			suite.Require().NotNil(response.Error)
			suite.Assert().Contains(*response.Error, tt.error)
		})
	}

	// Exactly 60 months after the first one is accepted
	r := test.Request(suite.co, suite.T(), http.MethodGet, "http://example.com/v1/capacity?facility=F1&from=2026-01&until=2031-01", "")
	test.AssertHTTPStatus(suite.T(), &r, http.StatusOK)
}

func (suite *TestSuiteStandard) TestCapacityDBClosed() {
	suite.setTestCapacity("F1", march, 4, 0)
	suite.CloseDB()

	tests := []struct {
		name   string
		method string
		url    string
		body   any
	}{
		{"Range", http.MethodGet, "http://example.com/v1/capacity?facility=F1&from=2026-03", ""},
		{"Get", http.MethodGet, "http://example.com/v1/capacity/F1/2026-03", ""},
		{"Set", http.MethodPut, "http://example.com/v1/capacity/F1/2026-03", v1.CapacityEditable{TotalCapacity: 6}},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			r := test.Request(suite.co, suite.T(), tt.method, tt.url, tt.body)
			test.AssertHTTPStatus(suite.T(), &r, http.StatusInternalServerError)
		})
	}
}
