package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cloudratio/advisor-report-backend/internal/classify"
	"github.com/cloudratio/advisor-report-backend/internal/logging"
	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/types"
	"github.com/cloudratio/advisor-report-backend/internal/utils"
)

var log *logrus.Logger = logging.GetLogger()

// Column headers as they appear in the vendor CSV export. Matching is
// case-insensitive and ignores surrounding whitespace, so cosmetic drift in
// the export does not break ingestion.
const (
	colCategory         = "category"
	colImpact           = "business impact"
	colRecommendation   = "recommendation"
	colSubscriptionID   = "subscription id"
	colSubscriptionName = "subscription name"
	colResourceGroup    = "resource group"
	colResourceName     = "resource name"
	colType             = "type"
	colUpdatedDate      = "updated date"
	colBenefits         = "potential benefits"
	colAnnualSavings    = "potential annual cost savings"
	colCurrency         = "potential cost savings currency"
	colCarbon           = "potential carbon reductions"
	colCostImplication  = "cost implications"
	colDescription      = "description of changes"
	colRetirementDate   = "retirement date"
	colRetiringFeature  = "retiring feature"
)

// Resource name and type are the only columns an export may omit entirely.
var requiredColumns = []string{
	colCategory, colRecommendation, colSubscriptionID, colUpdatedDate,
}

// Report summarizes one ingestion pass. Rejected rows never abort the pass;
// they are counted and sampled here so the caller can persist the outcome.
type Report struct {
	RowsTotal        int              `json:"rows_total"`
	RowsPersisted    int              `json:"rows_persisted"`
	RowsRejected     int              `json:"rows_rejected"`
	RowsDeduplicated int              `json:"rows_deduplicated,omitempty"`
	Errors           []types.RowError `json:"errors,omitempty"`
}

const errorSampleLimit = 50

func (r *Report) reject(rowErr *types.RowError) {
	r.RowsRejected++
	if len(r.Errors) < errorSampleLimit {
		r.Errors = append(r.Errors, *rowErr)
	}
	invalidRows.Inc()
	log.Errorf("skipping row: %v", rowErr)
}

// NormalizeCSV turns a raw CSV export into recommendation records for the
// given record set. The header row drives column lookup by name, so column
// order in the export does not matter. A malformed header fails the whole
// pass; a malformed row only skips that row.
func NormalizeCSV(recordSet model.RecordSet, data [][]string) ([]model.Recommendation, *Report, error) {
	if len(data) == 0 {
		return nil, nil, &types.ValidationError{Field: "csv", Reason: "empty input"}
	}

	columns, err := mapHeader(data[0])
	if err != nil {
		invalidCSV.Inc()
		return nil, nil, err
	}

	report := &Report{RowsTotal: len(data) - 1}
	recommendations := make([]model.Recommendation, 0, len(data)-1)
	// Duplicate vendor ids within one pass would make the upsert update the
	// same row twice in a single statement, which Postgres rejects. The later
	// occurrence wins, matching re-ingestion semantics.
	seen := map[string]int{}
	for i, row := range data[1:] {
		rec, rowErr := normalizeRow(recordSet, columns, row, i+1)
		if rowErr != nil {
			report.reject(rowErr)
			continue
		}
		if prev, ok := seen[rec.VendorID]; ok {
			recommendations[prev] = *rec
			report.RowsDeduplicated++
			continue
		}
		seen[rec.VendorID] = len(recommendations)
		recommendations = append(recommendations, *rec)
		report.RowsPersisted++
	}
	ingestedRows.Add(float64(report.RowsPersisted))
	return recommendations, report, nil
}

// mapHeader resolves header names to column positions. The first cell may
// carry a UTF-8 byte order mark, which Excel likes to prepend.
func mapHeader(header []string) (map[string]int, error) {
	columns := map[string]int{}
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, &types.ValidationError{Field: required, Reason: "required column missing from header"}
		}
	}
	return columns, nil
}

func normalizeRow(recordSet model.RecordSet, columns map[string]int, row []string, rowNum int) (*model.Recommendation, *types.RowError) {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	recommendation := cell(colRecommendation)
	if recommendation == "" {
		return nil, &types.RowError{Row: rowNum, Column: colRecommendation, Reason: "empty"}
	}

	updatedDate, err := utils.ParseFlexibleTime(cell(colUpdatedDate))
	if err != nil {
		return nil, &types.RowError{Row: rowNum, Column: colUpdatedDate, Reason: err.Error()}
	}

	savings, err := parseMoney(cell(colAnnualSavings))
	if err != nil {
		return nil, &types.RowError{Row: rowNum, Column: colAnnualSavings, Reason: err.Error()}
	}

	description := cell(colDescription)
	benefits := cell(colBenefits)
	classified := classify.Classify(recommendation+" "+description, benefits)

	// A capacity reservation guarantees availability at full price; a savings
	// figure on one is vendor noise and must not reach the totals.
	if !classified.ReservationKind.SavingsEligible() {
		savings = 0
	}

	// The export's own category and impact win when present and readable;
	// the classifier fills the gaps.
	category := classified.Category
	if raw := cell(colCategory); raw != "" {
		parsed, err := types.ParseCategory(raw)
		if err != nil {
			return nil, &types.RowError{Row: rowNum, Column: colCategory, Reason: err.Error()}
		}
		category = parsed
	}
	impact := classified.Impact
	if raw := cell(colImpact); raw != "" {
		if parsed, err := types.ParseImpact(raw); err == nil {
			impact = parsed
		}
	}

	var retirement *time.Time
	if raw := cell(colRetirementDate); raw != "" {
		if t, err := utils.ParseFlexibleTime(raw); err == nil {
			retirement = &t
		}
	}

	// Renderers print these two fields directly, so absent resource data
	// becomes an explicit sentinel instead of an empty cell.
	resourceName := cell(colResourceName)
	if resourceName == "" {
		resourceName = "unknown"
	}
	resourceType := cell(colType)
	if resourceType == "" {
		resourceType = "unknown"
	}

	rec := &model.Recommendation{
		RecordSetID:      recordSet.ID,
		Source:           recordSet.Source,
		VendorID:         deriveVendorID(recommendation, cell(colSubscriptionID), cell(colResourceGroup), resourceName),
		Category:         category,
		Impact:           impact,
		Recommendation:   recommendation,
		Description:      description,
		Benefits:         benefits,
		SubscriptionID:   cell(colSubscriptionID),
		SubscriptionName: cell(colSubscriptionName),
		ResourceGroup:    cell(colResourceGroup),
		ResourceName:     resourceName,
		ResourceType:     resourceType,
		AnnualSavings:    savings,
		SavingsCurrency:  cell(colCurrency),
		CarbonReduction:  cell(colCarbon),
		CostImplication:  cell(colCostImplication),
		RetirementDate:   retirement,
		RetiringFeature:  cell(colRetiringFeature),
		CommitmentTerm:   classified.CommitmentTerm,
		ReservationKind:  classified.ReservationKind,
		UpdatedDate:      updatedDate,
	}
	return rec, nil
}

// deriveVendorID builds a stable identity for exports that carry no vendor
// recommendation id. The same row content always hashes to the same id, so
// re-ingesting an export updates rows instead of duplicating them.
func deriveVendorID(recommendation, subscriptionID, resourceGroup, resourceName string) string {
	h := sha256.New()
	for _, part := range []string{recommendation, subscriptionID, resourceGroup, resourceName} {
		h.Write([]byte(strings.ToLower(strings.TrimSpace(part))))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// parseMoney reads the savings column, tolerating currency symbols and
// thousands separators. An empty cell means no savings claim and parses to
// zero.
func parseMoney(value string) (float64, error) {
	if value == "" || strings.EqualFold(value, "n/a") {
		return 0, nil
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-':
			return r
		default:
			return -1
		}
	}, strings.ReplaceAll(value, ",", ""))
	if cleaned == "" {
		return 0, fmt.Errorf("unreadable amount %q", value)
	}
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unreadable amount %q", value)
	}
	if amount < 0 {
		return 0, fmt.Errorf("negative amount %q", value)
	}
	return amount, nil
}
