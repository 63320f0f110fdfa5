package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cloudratio/advisor-report-backend/internal/aggregate"
	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

func CollectionResponse(collection []interface{}, req *http.Request, count, limit, offset int) *Collection {
	var first, previous, next, last string
	q := req.URL.Query()

	// set the "first" link with same limit+offset (what they requested)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	params, _ := url.PathUnescape(q.Encode())
	first = fmt.Sprintf("%v?%v", req.URL.Path, params)

	// set the "last" link with limit+offset set for the next page
	q.Set("offset", strconv.Itoa(offset+limit))
	params, _ = url.PathUnescape(q.Encode())
	last = fmt.Sprintf("%v?%v", req.URL.Path, params)

	// set the "previous" link with limit-offset set for the previous page
	if offset > limit {
		q.Set("offset", strconv.Itoa(offset-limit))
		params, _ = url.PathUnescape(q.Encode())
		previous = fmt.Sprintf("%v?%v", req.URL.Path, params)
	}

	// set the "next" link with limit+offset set for the next page
	if offset+limit < count {
		q.Set("offset", strconv.Itoa(offset+limit))
		params, _ = url.PathUnescape(q.Encode())
		next = fmt.Sprintf("%v?%v", req.URL.Path, params)
	}

	// set offset based on limit size aka page size
	links := Links{
		First:    first,
		Previous: previous,
		Next:     next,
		Last:     last,
	}

	return &Collection{
		Data: collection,
		Meta: Metadata{
			Count:  count,
			Limit:  limit,
			Offset: offset,
		},
		Links: links,
	}
}

// MapQueryParameters turns the recommendation list filters into column
// equality conditions. Filter values go through the domain parsers, so an
// unknown category or impact label fails here instead of matching nothing.
func MapQueryParameters(c echo.Context) (map[string]interface{}, error) {
	queryParams := make(map[string]interface{})

	if recordSetID := c.QueryParam("record_set_id"); recordSetID != "" {
		if _, err := uuid.Parse(recordSetID); err != nil {
			return nil, &types.ValidationError{Field: "record_set_id", Reason: "not a UUID"}
		}
		queryParams["record_set_id"] = recordSetID
	}

	if categoryStr := c.QueryParam("category"); categoryStr != "" {
		category, err := types.ParseCategory(categoryStr)
		if err != nil {
			return nil, err
		}
		queryParams["category"] = category
	}

	if impactStr := c.QueryParam("impact"); impactStr != "" {
		impact, err := types.ParseImpact(impactStr)
		if err != nil {
			return nil, err
		}
		queryParams["impact"] = impact
	}

	if sourceStr := c.QueryParam("source"); sourceStr != "" {
		source, err := types.ParseSource(sourceStr)
		if err != nil {
			return nil, err
		}
		queryParams["source"] = source
	}

	if resourceGroup := c.QueryParam("resource_group"); resourceGroup != "" {
		queryParams["resource_group"] = resourceGroup
	}

	return queryParams, nil
}

// windowFromParams reads the optional start_date/end_date pair. The end date
// is inclusive, so it extends the half-open window by one day. Absent
// parameters fall back to the configured reporting window.
func windowFromParams(c echo.Context) (aggregate.Window, error) {
	window := aggregate.DefaultWindow(cfg.ReportWindowDays)

	startDateStr := c.QueryParam("start_date")
	if startDateStr != "" {
		startDate, err := time.Parse(timeLayout, startDateStr)
		if err != nil {
			return window, &types.ValidationError{Field: "start_date", Reason: "expected YYYY-MM-DD"}
		}
		window.Start = startDate
	}

	endDateStr := c.QueryParam("end_date")
	if endDateStr != "" {
		endDate, err := time.Parse(timeLayout, endDateStr)
		if err != nil {
			return window, &types.ValidationError{Field: "end_date", Reason: "expected YYYY-MM-DD"}
		}
		window.End = endDate.AddDate(0, 0, 1)
	}

	if !window.End.After(window.Start) {
		return window, &types.ValidationError{Field: "end_date", Reason: "window is empty"}
	}
	return window, nil
}

func recommendationRow(recommendation model.Recommendation) map[string]interface{} {
	row := make(map[string]interface{})
	row["id"] = recommendation.ID
	row["record_set_id"] = recommendation.RecordSetID
	row["source"] = recommendation.Source
	row["vendor_id"] = recommendation.VendorID
	row["category"] = recommendation.Category
	row["impact"] = recommendation.Impact
	row["recommendation"] = recommendation.Recommendation
	row["subscription_id"] = recommendation.SubscriptionID
	row["subscription_name"] = recommendation.SubscriptionName
	row["resource_group"] = recommendation.ResourceGroup
	row["resource_name"] = recommendation.ResourceName
	row["resource_type"] = recommendation.ResourceType
	row["annual_savings"] = recommendation.AnnualSavings
	row["monthly_savings"] = aggregate.MonthlyFromAnnual(recommendation.AnnualSavings)
	row["savings_currency"] = recommendation.SavingsCurrency
	row["commitment_term"] = recommendation.CommitmentTerm
	row["reservation_kind"] = recommendation.ReservationKind
	row["updated_date"] = recommendation.UpdatedDate

	if multiYear, known := recommendation.MultiYearSavings(); known {
		row["multi_year_savings"] = multiYear
	}
	return row
}

func recommendationDetail(recommendation model.Recommendation) map[string]interface{} {
	row := recommendationRow(recommendation)
	row["description"] = recommendation.Description
	row["benefits"] = recommendation.Benefits
	row["carbon_reduction"] = recommendation.CarbonReduction
	row["cost_implication"] = recommendation.CostImplication
	if recommendation.RetirementDate != nil {
		row["retirement_date"] = recommendation.RetirementDate
		row["retiring_feature"] = recommendation.RetiringFeature
	}
	return row
}
