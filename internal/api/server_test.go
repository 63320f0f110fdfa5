package api_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cloudratio/advisor-report-backend/internal/api"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

/*
===============================================================================
API SERVER BUSINESS LOGIC TEST SUITE
===============================================================================

This BDD test suite verifies the BUSINESS LOGIC of the advisor API server.
Tests focus on business rules, data transformation, and application outcomes
rather than framework or library behavior.

BUSINESS RULES TESTED:

1. Recommendation Filter Construction
   - Filter values go through the domain label parsers
   - Legacy vendor labels normalize to current vocabulary
   - Unknown labels are rejected before any query runs

2. Pagination Logic
   - Link generation for API navigation
   - Boundary conditions for first/last pages
   - Filter parameters carried across page links

===============================================================================
*/

var _ = Describe("API Server Business Logic", func() {

	// =============================================================================
	// RECOMMENDATION FILTER CONSTRUCTION
	// Tests how list filters become column conditions
	// =============================================================================

	Describe("Recommendation filter construction", func() {
		var (
			e   *echo.Echo
			rec *httptest.ResponseRecorder
		)

		BeforeEach(func() {
			e = echo.New()
			rec = httptest.NewRecorder()
		})

		newContext := func(query url.Values) echo.Context {
			target := "/"
			if len(query) > 0 {
				target = "/?" + query.Encode()
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			return e.NewContext(req, rec)
		}

		Context("When no filters are provided", func() {
			It("should build an unconstrained query", func() {
				// Given: a request without filter parameters
				c := newContext(nil)

				// When: mapping query parameters
				result, err := api.MapQueryParameters(c)

				// Then: no column conditions are produced
				Expect(err).ToNot(HaveOccurred())
				Expect(result).To(BeEmpty())
			})
		})

		Context("When filters use vendor spellings", func() {
			DescribeTable("should normalize labels to the domain vocabulary",
				func(param, value, column string, expected interface{}) {
					query := url.Values{}
					query.Set(param, value)
					c := newContext(query)

					result, err := api.MapQueryParameters(c)

					Expect(err).ToNot(HaveOccurred())
					Expect(result).To(HaveKeyWithValue(column, expected))
				},
				Entry("canonical category", "category", "Cost", "category", types.CategoryCost),
				Entry("legacy reliability label", "category", "High Availability", "category", types.CategoryReliability),
				Entry("spaced category label", "category", "Operational Excellence", "category", types.CategoryOperationalExcellence),
				Entry("canonical impact", "impact", "High", "impact", types.ImpactHigh),
				Entry("legacy moderate impact", "impact", "Moderate", "impact", types.ImpactMedium),
				Entry("source label", "source", "Vendor API", "source", types.SourceVendorAPI),
			)
		})

		Context("When filter labels are unknown", func() {
			DescribeTable("should reject the request before any query runs",
				func(param, value string) {
					query := url.Values{}
					query.Set(param, value)
					c := newContext(query)

					_, err := api.MapQueryParameters(c)

					Expect(err).To(HaveOccurred())
				},
				Entry("unknown category", "category", "Velocity"),
				Entry("unknown impact", "impact", "Catastrophic"),
				Entry("unknown source", "source", "carrier-pigeon"),
				Entry("malformed record set id", "record_set_id", "not-a-uuid"),
			)
		})
	})

	// =============================================================================
	// PAGINATION LOGIC
	// Tests link generation for collection navigation
	// =============================================================================

	Describe("Pagination link generation", func() {
		request := func(target string) *http.Request {
			return httptest.NewRequest(http.MethodGet, target, nil)
		}

		items := func(n int) []interface{} {
			collection := make([]interface{}, n)
			for i := range collection {
				collection[i] = map[string]interface{}{"id": fmt.Sprintf("row-%d", i)}
			}
			return collection
		}

		Context("When the first page is requested", func() {
			It("should omit the previous link and point next at the second page", func() {
				// Given: 25 records paged by 10, at offset 0
				req := request("/api/advisor/v1/recommendations")

				// When: building the collection response
				result := api.CollectionResponse(items(10), req, 25, 10, 0)

				// Then: there is no previous page to navigate to
				Expect(result.Links.Previous).To(BeEmpty())

				// And: the next link moves one page forward
				Expect(result.Links.Next).To(ContainSubstring("offset=10"))
				Expect(result.Links.First).To(ContainSubstring("offset=0"))

				// And: the metadata reflects the request
				Expect(result.Meta.Count).To(Equal(25))
				Expect(result.Meta.Limit).To(Equal(10))
				Expect(result.Meta.Offset).To(Equal(0))
			})
		})

		Context("When a middle page is requested", func() {
			It("should link both directions", func() {
				// Given: 25 records paged by 10, at offset 20
				req := request("/api/advisor/v1/recommendations")

				// When: building the collection response
				result := api.CollectionResponse(items(5), req, 25, 10, 20)

				// Then: both neighbors are reachable
				Expect(result.Links.Previous).To(ContainSubstring("offset=10"))
				Expect(result.Links.First).To(ContainSubstring("offset=0"))
			})
		})

		Context("When the last page is requested", func() {
			It("should omit the next link", func() {
				// Given: 25 records paged by 10, at the final offset
				req := request("/api/advisor/v1/recommendations")

				// When: building the collection response
				result := api.CollectionResponse(items(5), req, 25, 10, 20)

				// Then: there is nothing past the end to point at
				Expect(result.Links.Next).To(BeEmpty())
			})
		})

		Context("When filters are active", func() {
			It("should carry them into every link", func() {
				// Given: a filtered listing
				req := request("/api/advisor/v1/recommendations?category=cost&impact=high")

				// When: building the collection response
				result := api.CollectionResponse(items(10), req, 30, 10, 10)

				// Then: page links keep the filters so navigation stays scoped
				for _, link := range []string{result.Links.First, result.Links.Previous, result.Links.Next, result.Links.Last} {
					Expect(link).To(ContainSubstring("category=cost"))
					Expect(link).To(ContainSubstring("impact=high"))
				}
			})

			It("should preserve the request path", func() {
				req := request("/api/advisor/v1/recommendations?category=cost")

				result := api.CollectionResponse(items(1), req, 1, 10, 0)

				Expect(strings.HasPrefix(result.Links.First, "/api/advisor/v1/recommendations?")).To(BeTrue())
			})
		})
	})
})
