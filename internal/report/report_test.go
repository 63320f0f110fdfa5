package report

import (
	"strings"
	"testing"
	"time"

	"github.com/cloudratio/advisor-report-backend/internal/aggregate"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

func testSnapshot() *aggregate.Snapshot {
	return &aggregate.Snapshot{
		RecordSetID:   "6a1f8c3e-0000-4000-8000-000000000001",
		RecordSetName: "prod-subscription",
		Version:       3,
		Window: aggregate.Window{
			Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		GeneratedAt:     time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC),
		TotalRecords:    4,
		EligibleRecords: 3,
		ExcludedRecords: 1,
		Totals: aggregate.SavingsTotals{
			AnnualTotal:    1800,
			MonthlyTotal:   150,
			MultiYearTotal: 4200,
			MultiYearKnown: true,
			Currency:       "USD",
		},
		Categories: []aggregate.CategoryRollup{
			{Category: types.CategoryCost, Count: 2, AnnualSavings: 1800},
			{Category: types.CategorySecurity, Count: 1},
			{Category: types.CategoryReliability, Count: 1},
			{Category: types.CategoryOperationalExcellence},
			{Category: types.CategoryPerformance},
		},
		Impacts: []aggregate.ImpactRollup{
			{Impact: types.ImpactHigh, Count: 2},
			{Impact: types.ImpactMedium, Count: 1},
			{Impact: types.ImpactLow, Count: 1},
		},
	}
}

func testTrend() *aggregate.TrendSeries {
	return &aggregate.TrendSeries{
		RecordSetID: "6a1f8c3e-0000-4000-8000-000000000001",
		Granularity: types.GranularityWeek,
		Buckets: []aggregate.TrendBucket{
			{Start: time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC), Count: 1, AnnualSavings: 1200},
			{Start: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), Count: 1, AnnualSavings: 600},
			{Start: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		},
	}
}

func TestRender(t *testing.T) {
	html, err := Render(Data{Snapshot: testSnapshot(), Trend: testTrend()})
	if err != nil {
		t.Fatal(err)
	}
	page := string(html)

	for _, fragment := range []string{
		"Advisory report - prod-subscription",
		`class="summary-card"`,
		"1,800.00",
		"150.00",
		"4,200.00",
		"Operational excellence",
		`id="trend-chart"`,
		`"label":"Feb 26"`,
		"revision 3",
	} {
		if !strings.Contains(page, fragment) {
			t.Errorf("rendered report missing %q", fragment)
		}
	}

	// The document must stay self-contained for hermetic rendering.
	for _, banned := range []string{"http://", "https://", "src=\"//"} {
		if strings.Contains(strings.ReplaceAll(page, "http://www.w3.org/2000/svg", ""), banned) {
			t.Errorf("rendered report references external resource via %q", banned)
		}
	}
}

func TestRenderUnknownMultiYear(t *testing.T) {
	snapshot := testSnapshot()
	snapshot.Totals.MultiYearKnown = false
	snapshot.Totals.MultiYearTotal = 0

	html, err := Render(Data{Snapshot: snapshot})
	if err != nil {
		t.Fatal(err)
	}
	page := string(html)
	if !strings.Contains(page, "one or more terms unknown") {
		t.Error("unknown multi-year total must be labelled, not shown as zero")
	}
	if strings.Contains(page, `id="trend-chart"`) {
		t.Error("report without trend data should not include the chart")
	}
}

func TestRenderWithoutSnapshot(t *testing.T) {
	if _, err := Render(Data{}); err == nil {
		t.Error("expected error when snapshot is missing")
	}
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{0, "0.00"},
		{150, "150.00"},
		{1234.56, "1,234.56"},
		{1800, "1,800.00"},
		{999.999, "1,000.00"},
		{1234567.89, "1,234,567.89"},
		{-42.5, "-42.50"},
	}
	for _, test := range tests {
		if result := formatMoney(test.input); result != test.expected {
			t.Errorf("formatMoney(%v) = %q, expected %q", test.input, result, test.expected)
		}
	}
}
