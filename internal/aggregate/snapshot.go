package aggregate

import (
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

type SavingsTotals struct {
	AnnualTotal    float64 `json:"annual_total"`
	MonthlyTotal   float64 `json:"monthly_total"`
	MultiYearTotal float64 `json:"multi_year_total"`
	MultiYearKnown bool    `json:"multi_year_known"`
	Currency       string  `json:"currency,omitempty"`
}

type CategoryRollup struct {
	Category      types.Category `json:"category"`
	Count         int            `json:"count"`
	AnnualSavings float64        `json:"annual_savings"`
}

type ImpactRollup struct {
	Impact types.Impact `json:"impact"`
	Count  int          `json:"count"`
}

// Snapshot is one computed aggregation over a record set and window. An
// empty window still yields a well-formed snapshot with zero totals and
// zero-filled rollups.
type Snapshot struct {
	RecordSetID     string           `json:"record_set_id"`
	RecordSetName   string           `json:"record_set_name"`
	Version         uint             `json:"version"`
	Window          Window           `json:"window"`
	GeneratedAt     time.Time        `json:"generated_at"`
	TotalRecords    int              `json:"total_records"`
	EligibleRecords int              `json:"savings_eligible_records"`
	ExcludedRecords int              `json:"excluded_records"`
	Totals          SavingsTotals    `json:"totals"`
	Categories      []CategoryRollup `json:"categories"`
	Impacts         []ImpactRollup   `json:"impacts"`
}

type TrendBucket struct {
	Start         time.Time `json:"start"`
	Count         int       `json:"count"`
	AnnualSavings float64   `json:"annual_savings"`
}

type TrendSeries struct {
	RecordSetID string            `json:"record_set_id"`
	Granularity types.Granularity `json:"granularity"`
	Window      Window            `json:"window"`
	Buckets     []TrendBucket     `json:"buckets"`
}

type ComparisonDelta struct {
	Records       int      `json:"records"`
	AnnualSavings float64  `json:"annual_savings"`
	AnnualPercent *float64 `json:"annual_percent,omitempty"`
}

type Comparison struct {
	Current  *Snapshot       `json:"current"`
	Previous *Snapshot       `json:"previous"`
	Delta    ComparisonDelta `json:"delta"`
}

// MonthlyFromAnnual is the one place a monthly figure is derived from an
// annual one. Monthly numbers are never stored or computed anywhere else.
func MonthlyFromAnnual(annual float64) float64 {
	return annual / 12
}

func recordsFrame(records []model.Recommendation) dataframe.DataFrame {
	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, []string{"category", "impact", "eligible", "annual_savings"})
	for _, rec := range records {
		rows = append(rows, []string{
			string(rec.Category),
			string(rec.Impact),
			strconv.FormatBool(rec.ReservationKind.SavingsEligible()),
			strconv.FormatFloat(rec.AnnualSavings, 'f', -1, 64),
		})
	}
	return dataframe.LoadRecords(rows, dataframe.WithTypes(map[string]series.Type{
		"annual_savings": series.Float,
	}))
}

func buildSnapshot(set model.RecordSet, window Window, records []model.Recommendation) *Snapshot {
	snapshot := &Snapshot{
		RecordSetID:   set.ID,
		RecordSetName: set.Name,
		Version:       set.Version,
		Window:        window,
		GeneratedAt:   time.Now().UTC(),
		TotalRecords:  len(records),
		Categories:    zeroCategoryRollups(),
		Impacts:       zeroImpactRollups(),
	}
	if len(records) == 0 {
		snapshot.Totals.MultiYearKnown = true
		return snapshot
	}

	df := recordsFrame(records)

	counts := df.GroupBy("category").Aggregation(
		[]dataframe.AggregationType{dataframe.Aggregation_COUNT},
		[]string{"annual_savings"},
	)
	for _, row := range counts.Maps() {
		if rollup := categoryRollup(snapshot.Categories, types.Category(row["category"].(string))); rollup != nil {
			rollup.Count = int(row["annual_savings_COUNT"].(float64))
		}
	}

	impacts := df.GroupBy("impact").Aggregation(
		[]dataframe.AggregationType{dataframe.Aggregation_COUNT},
		[]string{"annual_savings"},
	)
	for _, row := range impacts.Maps() {
		if rollup := impactRollup(snapshot.Impacts, types.Impact(row["impact"].(string))); rollup != nil {
			rollup.Count = int(row["annual_savings_COUNT"].(float64))
		}
	}

	// Savings sums only ever run over eligible records, so capacity
	// reservations can never leak into a total.
	eligible := df.FilterAggregation(
		dataframe.And,
		dataframe.F{Colname: "eligible", Comparator: series.Eq, Comparando: "true"},
	)
	snapshot.EligibleRecords = eligible.Nrow()
	snapshot.ExcludedRecords = snapshot.TotalRecords - snapshot.EligibleRecords

	if eligible.Nrow() > 0 {
		sums := eligible.GroupBy("category").Aggregation(
			[]dataframe.AggregationType{dataframe.Aggregation_SUM},
			[]string{"annual_savings"},
		)
		for _, row := range sums.Maps() {
			amount := row["annual_savings_SUM"].(float64)
			if rollup := categoryRollup(snapshot.Categories, types.Category(row["category"].(string))); rollup != nil {
				rollup.AnnualSavings = amount
			}
			snapshot.Totals.AnnualTotal += amount
		}
	}
	snapshot.Totals.MonthlyTotal = MonthlyFromAnnual(snapshot.Totals.AnnualTotal)
	snapshot.Totals.MultiYearTotal, snapshot.Totals.MultiYearKnown, snapshot.Totals.Currency = multiYearTotal(records)

	return snapshot
}

// multiYearTotal projects savings over commitment terms. The projection is
// only published when every contributing record has a known term; one
// unknown term makes the whole figure unknown rather than understated.
func multiYearTotal(records []model.Recommendation) (float64, bool, string) {
	total := 0.0
	known := true
	currency := ""
	for _, rec := range records {
		if !rec.ReservationKind.SavingsEligible() || rec.AnnualSavings == 0 {
			continue
		}
		if currency == "" {
			currency = rec.SavingsCurrency
		}
		projected, ok := rec.MultiYearSavings()
		if !ok {
			known = false
			continue
		}
		total += projected
	}
	if !known {
		return 0, false, currency
	}
	return total, true, currency
}

func zeroCategoryRollups() []CategoryRollup {
	rollups := make([]CategoryRollup, 0, len(types.Categories))
	for _, category := range types.Categories {
		rollups = append(rollups, CategoryRollup{Category: category})
	}
	return rollups
}

func zeroImpactRollups() []ImpactRollup {
	rollups := make([]ImpactRollup, 0, len(types.Impacts))
	for _, impact := range types.Impacts {
		rollups = append(rollups, ImpactRollup{Impact: impact})
	}
	return rollups
}

func categoryRollup(rollups []CategoryRollup, category types.Category) *CategoryRollup {
	for i := range rollups {
		if rollups[i].Category == category {
			return &rollups[i]
		}
	}
	return nil
}

func impactRollup(rollups []ImpactRollup, impact types.Impact) *ImpactRollup {
	for i := range rollups {
		if rollups[i].Impact == impact {
			return &rollups[i]
		}
	}
	return nil
}

// BucketStart floors a time to its bucket boundary in UTC. Weeks start on
// Monday.
func BucketStart(t time.Time, granularity types.Granularity) time.Time {
	t = t.UTC()
	switch granularity {
	case types.GranularityWeek:
		back := (int(t.Weekday()) + 6) % 7
		t = t.AddDate(0, 0, -back)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case types.GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func NextBucket(t time.Time, granularity types.Granularity) time.Time {
	switch granularity {
	case types.GranularityWeek:
		return t.AddDate(0, 0, 7)
	case types.GranularityMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// buildTrend zero-fills every bucket the window covers, so gaps in the data
// show up as explicit zeros instead of missing points.
func buildTrend(set model.RecordSet, window Window, granularity types.Granularity, records []model.Recommendation) *TrendSeries {
	trend := &TrendSeries{
		RecordSetID: set.ID,
		Granularity: granularity,
		Window:      window,
	}

	index := map[int64]int{}
	for t := BucketStart(window.Start, granularity); t.Before(window.End); t = NextBucket(t, granularity) {
		index[t.Unix()] = len(trend.Buckets)
		trend.Buckets = append(trend.Buckets, TrendBucket{Start: t})
	}

	for _, rec := range records {
		i, ok := index[BucketStart(rec.UpdatedDate, granularity).Unix()]
		if !ok {
			continue
		}
		trend.Buckets[i].Count++
		if rec.ReservationKind.SavingsEligible() {
			trend.Buckets[i].AnnualSavings += rec.AnnualSavings
		}
	}
	return trend
}

func compare(current *Snapshot, previous *Snapshot) *Comparison {
	delta := ComparisonDelta{
		Records:       current.TotalRecords - previous.TotalRecords,
		AnnualSavings: current.Totals.AnnualTotal - previous.Totals.AnnualTotal,
	}
	if previous.Totals.AnnualTotal != 0 {
		percent := delta.AnnualSavings / previous.Totals.AnnualTotal * 100
		delta.AnnualPercent = &percent
	}
	return &Comparison{Current: current, Previous: previous, Delta: delta}
}
