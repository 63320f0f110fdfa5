package aggregate

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cloudratio/advisor-report-backend/internal/cache"
	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

type stubSource struct {
	set         model.RecordSet
	records     []model.Recommendation
	recordCalls int
}

func (s *stubSource) RecordSet(id string) (model.RecordSet, error) {
	return s.set, nil
}

func (s *stubSource) Records(id string, window Window) ([]model.Recommendation, error) {
	s.recordCalls++
	return s.records, nil
}

var testWindow = Window{
	Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
}

func testRecords() []model.Recommendation {
	march := func(day int) time.Time {
		return time.Date(2024, 3, day, 10, 0, 0, 0, time.UTC)
	}
	return []model.Recommendation{
		{
			Category:        types.CategoryCost,
			Impact:          types.ImpactHigh,
			AnnualSavings:   1200,
			SavingsCurrency: "USD",
			CommitmentTerm:  types.TermOfYears(3),
			ReservationKind: types.ReservedInstance,
			UpdatedDate:     march(2),
		},
		{
			Category:        types.CategoryCost,
			Impact:          types.ImpactMedium,
			AnnualSavings:   600,
			SavingsCurrency: "USD",
			CommitmentTerm:  types.TermOfYears(1),
			ReservationKind: types.SavingsPlan,
			UpdatedDate:     march(10),
		},
		{
			// Capacity reservations never count towards savings.
			Category:        types.CategoryReliability,
			Impact:          types.ImpactLow,
			AnnualSavings:   999,
			SavingsCurrency: "USD",
			ReservationKind: types.CapacityReservation,
			UpdatedDate:     march(20),
		},
		{
			Category:    types.CategorySecurity,
			Impact:      types.ImpactHigh,
			UpdatedDate: march(25),
		},
	}
}

func newTestEngine(source RecordSource) *Engine {
	return NewEngine(source, cache.New(time.Minute))
}

func TestSummaryTotalsAndExclusion(t *testing.T) {
	source := &stubSource{
		set:     model.RecordSet{ID: "set-1", Name: "prod", Version: 1},
		records: testRecords(),
	}
	engine := newTestEngine(source)

	snapshot, err := engine.Summary("set-1", testWindow)
	if err != nil {
		t.Fatal(err)
	}

	if snapshot.TotalRecords != 4 {
		t.Errorf("total records = %d, expected 4", snapshot.TotalRecords)
	}
	if snapshot.EligibleRecords != 3 || snapshot.ExcludedRecords != 1 {
		t.Errorf("eligible/excluded = %d/%d, expected 3/1", snapshot.EligibleRecords, snapshot.ExcludedRecords)
	}
	if snapshot.Totals.AnnualTotal != 1800 {
		t.Errorf("annual total = %v, expected 1800 (capacity reservation excluded)", snapshot.Totals.AnnualTotal)
	}
	if snapshot.Totals.MonthlyTotal != 150 {
		t.Errorf("monthly total = %v, expected 150", snapshot.Totals.MonthlyTotal)
	}
	if !snapshot.Totals.MultiYearKnown {
		t.Fatal("all contributing terms are known, multi-year should be published")
	}
	// 1200*3 + 600*1
	if snapshot.Totals.MultiYearTotal != 4200 {
		t.Errorf("multi-year total = %v, expected 4200", snapshot.Totals.MultiYearTotal)
	}
	if snapshot.Totals.Currency != "USD" {
		t.Errorf("currency = %q, expected USD", snapshot.Totals.Currency)
	}

	expected_categories := []CategoryRollup{
		{Category: types.CategoryCost, Count: 2, AnnualSavings: 1800},
		{Category: types.CategorySecurity, Count: 1},
		{Category: types.CategoryReliability, Count: 1},
		{Category: types.CategoryOperationalExcellence},
		{Category: types.CategoryPerformance},
	}
	if diff := cmp.Diff(snapshot.Categories, expected_categories); diff != "" {
		t.Error(diff)
	}

	expected_impacts := []ImpactRollup{
		{Impact: types.ImpactHigh, Count: 2},
		{Impact: types.ImpactMedium, Count: 1},
		{Impact: types.ImpactLow, Count: 1},
	}
	if diff := cmp.Diff(snapshot.Impacts, expected_impacts); diff != "" {
		t.Error(diff)
	}
}

func TestSummaryUnknownTermBlocksMultiYear(t *testing.T) {
	records := testRecords()
	// Second record loses its term: the projection must become unknown, not
	// silently smaller.
	records[1].CommitmentTerm = types.TermUnknown
	source := &stubSource{
		set:     model.RecordSet{ID: "set-1", Name: "prod", Version: 1},
		records: records,
	}
	engine := newTestEngine(source)

	snapshot, err := engine.Summary("set-1", testWindow)
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.Totals.MultiYearKnown {
		t.Error("multi-year must be unknown when any contributing term is unknown")
	}
	if snapshot.Totals.MultiYearTotal != 0 {
		t.Errorf("unknown multi-year total must be zero, got %v", snapshot.Totals.MultiYearTotal)
	}
	// Annual and monthly are unaffected by the missing term.
	if snapshot.Totals.AnnualTotal != 1800 {
		t.Errorf("annual total = %v, expected 1800", snapshot.Totals.AnnualTotal)
	}
}

func TestSummaryEmptyWindow(t *testing.T) {
	source := &stubSource{set: model.RecordSet{ID: "set-1", Name: "prod", Version: 1}}
	engine := newTestEngine(source)

	snapshot, err := engine.Summary("set-1", testWindow)
	if err != nil {
		t.Fatal(err)
	}
	if snapshot.TotalRecords != 0 || snapshot.Totals.AnnualTotal != 0 {
		t.Errorf("empty window should produce zero totals, got %+v", snapshot.Totals)
	}
	if len(snapshot.Categories) != len(types.Categories) {
		t.Errorf("categories must be zero-filled, got %d", len(snapshot.Categories))
	}
	if len(snapshot.Impacts) != len(types.Impacts) {
		t.Errorf("impacts must be zero-filled, got %d", len(snapshot.Impacts))
	}
}

func TestSummaryCachedUntilVersionBump(t *testing.T) {
	source := &stubSource{
		set:     model.RecordSet{ID: "set-1", Name: "prod", Version: 1},
		records: testRecords(),
	}
	engine := newTestEngine(source)

	if _, err := engine.Summary("set-1", testWindow); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Summary("set-1", testWindow); err != nil {
		t.Fatal(err)
	}
	if source.recordCalls != 1 {
		t.Errorf("record fetches = %d, expected 1 (second call served from cache)", source.recordCalls)
	}

	// A version bump changes the cache key, so the next call recomputes.
	source.set.Version = 2
	if _, err := engine.Summary("set-1", testWindow); err != nil {
		t.Fatal(err)
	}
	if source.recordCalls != 2 {
		t.Errorf("record fetches = %d, expected 2 after version bump", source.recordCalls)
	}
}

func TestTrendZeroFillsGaps(t *testing.T) {
	source := &stubSource{
		set:     model.RecordSet{ID: "set-1", Name: "prod", Version: 1},
		records: testRecords(),
	}
	engine := newTestEngine(source)

	window := Window{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC),
	}
	trend, err := engine.Trend("set-1", window, types.GranularityWeek)
	if err != nil {
		t.Fatal(err)
	}

	// 2024-03-01 is a Friday; the first bucket floors back to Monday Feb 26.
	if len(trend.Buckets) != 5 {
		t.Fatalf("got %d buckets, expected 5", len(trend.Buckets))
	}
	expected_starts := []time.Time{
		time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC),
	}
	for i, bucket := range trend.Buckets {
		if !bucket.Start.Equal(expected_starts[i]) {
			t.Errorf("bucket %d start = %s, expected %s", i, bucket.Start, expected_starts[i])
		}
	}

	expected_counts := []int{1, 1, 0, 1, 1}
	for i, bucket := range trend.Buckets {
		if bucket.Count != expected_counts[i] {
			t.Errorf("bucket %d count = %d, expected %d", i, bucket.Count, expected_counts[i])
		}
	}
	// The capacity reservation in week four counts but adds no savings.
	if trend.Buckets[3].AnnualSavings != 0 {
		t.Errorf("bucket 3 savings = %v, expected 0", trend.Buckets[3].AnnualSavings)
	}
	if trend.Buckets[0].AnnualSavings != 1200 {
		t.Errorf("bucket 0 savings = %v, expected 1200", trend.Buckets[0].AnnualSavings)
	}
}

func TestComparison(t *testing.T) {
	source := &stubSource{
		set:     model.RecordSet{ID: "set-1", Name: "prod", Version: 1},
		records: testRecords(),
	}
	engine := newTestEngine(source)

	comparison, err := engine.Comparison("set-1", testWindow)
	if err != nil {
		t.Fatal(err)
	}
	if comparison.Current == nil || comparison.Previous == nil {
		t.Fatal("both snapshots must be present")
	}
	expected_previous := Window{
		Start: time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC),
		End:   testWindow.Start,
	}
	if !comparison.Previous.Window.Start.Equal(expected_previous.Start) || !comparison.Previous.Window.End.Equal(expected_previous.End) {
		t.Errorf("previous window = %+v, expected %+v", comparison.Previous.Window, expected_previous)
	}
	// The stub returns the same records for both windows, so the delta is
	// flat and the percent is defined.
	if comparison.Delta.Records != 0 || comparison.Delta.AnnualSavings != 0 {
		t.Errorf("delta = %+v, expected zero deltas", comparison.Delta)
	}
	if comparison.Delta.AnnualPercent == nil || *comparison.Delta.AnnualPercent != 0 {
		t.Error("percent should be defined and zero")
	}
}

func TestComparisonPercentUndefinedOnZeroBase(t *testing.T) {
	previous := buildSnapshot(model.RecordSet{ID: "set-1"}, testWindow.Previous(), nil)
	current := buildSnapshot(model.RecordSet{ID: "set-1"}, testWindow, testRecords())
	comparison := compare(current, previous)
	if comparison.Delta.AnnualPercent != nil {
		t.Error("percent must be omitted when the previous total is zero")
	}
	if comparison.Delta.AnnualSavings != 1800 {
		t.Errorf("delta savings = %v, expected 1800", comparison.Delta.AnnualSavings)
	}
}

func TestBucketStart(t *testing.T) {
	input := time.Date(2024, 3, 15, 17, 45, 12, 0, time.UTC)
	tests := []struct {
		granularity types.Granularity
		expected    time.Time
	}{
		{types.GranularityDay, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{types.GranularityWeek, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{types.GranularityMonth, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, test := range tests {
		result := BucketStart(input, test.granularity)
		if !result.Equal(test.expected) {
			t.Errorf("BucketStart(%s) = %s, expected %s", test.granularity, result, test.expected)
		}
	}

	// A Sunday floors back six days to the previous Monday.
	sunday := time.Date(2024, 3, 17, 8, 0, 0, 0, time.UTC)
	if result := BucketStart(sunday, types.GranularityWeek); !result.Equal(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week start for Sunday = %s", result)
	}
}

func TestInvalidate(t *testing.T) {
	store := cache.New(time.Minute)
	source := &stubSource{
		set:     model.RecordSet{ID: "set-1", Name: "prod", Version: 1},
		records: testRecords(),
	}
	engine := NewEngine(source, store)

	if _, err := engine.Summary("set-1", testWindow); err != nil {
		t.Fatal(err)
	}
	if store.Len() != 1 {
		t.Fatalf("cache len = %d, expected 1", store.Len())
	}
	engine.Invalidate("set-1")
	if store.Len() != 0 {
		t.Errorf("cache len after invalidate = %d, expected 0", store.Len())
	}
}
