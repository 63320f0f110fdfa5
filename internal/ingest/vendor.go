package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudratio/advisor-report-backend/internal/classify"
	"github.com/cloudratio/advisor-report-backend/internal/config"
	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/types"
	"github.com/cloudratio/advisor-report-backend/internal/utils"
)

// VendorClient pulls recommendations from the vendor advisory API page by
// page. It is the second ingestion source next to CSV exports and feeds the
// same normalizer rules.
type VendorClient struct {
	baseURL  string
	token    string
	pageSize int
	client   *http.Client
}

func NewVendorClient() *VendorClient {
	cfg := config.GetConfig()
	return &VendorClient{
		baseURL:  cfg.VendorAPIUrl,
		token:    cfg.VendorAPIToken,
		pageSize: cfg.VendorAPIPageSize,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type vendorRecord struct {
	ID               string      `json:"id"`
	Category         string      `json:"category"`
	Impact           string      `json:"impact"`
	Recommendation   string      `json:"recommendation"`
	Description      string      `json:"description"`
	Benefits         string      `json:"potential_benefits"`
	SubscriptionID   string      `json:"subscription_id"`
	SubscriptionName string      `json:"subscription_name"`
	ResourceGroup    string      `json:"resource_group"`
	ResourceName     string      `json:"resource_name"`
	ResourceType     string      `json:"resource_type"`
	AnnualSavings    json.Number `json:"potential_annual_cost_savings"`
	SavingsCurrency  string      `json:"savings_currency"`
	TermMonths       *int        `json:"term_months"`
	UpdatedDate      string      `json:"updated_date"`
	RetirementDate   string      `json:"retirement_date"`
	RetiringFeature  string      `json:"retiring_feature"`
}

type vendorPage struct {
	Items    []vendorRecord `json:"items"`
	NextPage *int           `json:"next_page"`
}

// FetchAll walks every page of the vendor API and normalizes the records for
// the given record set. Network failures and 5xx responses are transient;
// auth and request errors are not worth retrying.
func (c *VendorClient) FetchAll(ctx context.Context, recordSet model.RecordSet) ([]model.Recommendation, *Report, error) {
	if c.baseURL == "" {
		return nil, nil, types.Fatal("vendor fetch", fmt.Errorf("vendor API URL is not configured"))
	}

	report := &Report{}
	var recommendations []model.Recommendation
	seen := map[string]int{}
	page := 1
	for {
		pageData, err := c.fetchPage(ctx, page)
		if err != nil {
			vendorAPIError.Inc()
			return nil, nil, err
		}
		for i, item := range pageData.Items {
			report.RowsTotal++
			rec, rowErr := mapVendorRecord(recordSet, item, (page-1)*c.pageSize+i+1)
			if rowErr != nil {
				report.reject(rowErr)
				continue
			}
			// The API can repeat a record across page boundaries; the later
			// occurrence wins so one upsert batch never touches a row twice.
			if prev, ok := seen[rec.VendorID]; ok {
				recommendations[prev] = *rec
				report.RowsDeduplicated++
				continue
			}
			seen[rec.VendorID] = len(recommendations)
			recommendations = append(recommendations, *rec)
			report.RowsPersisted++
		}
		if pageData.NextPage == nil {
			break
		}
		page = *pageData.NextPage
	}
	ingestedRows.Add(float64(report.RowsPersisted))
	return recommendations, report, nil
}

func (c *VendorClient) fetchPage(ctx context.Context, page int) (*vendorPage, error) {
	url := fmt.Sprintf("%s/recommendations?page=%d&page_size=%d", c.baseURL, page, c.pageSize)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, types.Fatal("vendor fetch", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, types.Transient("vendor fetch", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 500 {
		return nil, types.Transient("vendor fetch", fmt.Errorf("vendor API returned %d", res.StatusCode))
	}
	if res.StatusCode != http.StatusOK {
		return nil, types.Fatal("vendor fetch", fmt.Errorf("vendor API returned %d", res.StatusCode))
	}

	var pageData vendorPage
	if err := json.NewDecoder(res.Body).Decode(&pageData); err != nil {
		return nil, types.Fatal("vendor fetch", fmt.Errorf("can not unmarshal response data: %v", err))
	}
	return &pageData, nil
}

func mapVendorRecord(recordSet model.RecordSet, item vendorRecord, ordinal int) (*model.Recommendation, *types.RowError) {
	if item.Recommendation == "" {
		return nil, &types.RowError{Row: ordinal, Column: "recommendation", Reason: "empty"}
	}

	updatedDate, err := utils.ParseFlexibleTime(item.UpdatedDate)
	if err != nil {
		return nil, &types.RowError{Row: ordinal, Column: "updated_date", Reason: err.Error()}
	}

	savings := 0.0
	if item.AnnualSavings != "" {
		savings, err = item.AnnualSavings.Float64()
		if err != nil || savings < 0 {
			return nil, &types.RowError{Row: ordinal, Column: "potential_annual_cost_savings", Reason: fmt.Sprintf("unreadable amount %q", item.AnnualSavings)}
		}
	}

	classified := classify.Classify(item.Recommendation+" "+item.Description, item.Benefits)
	if !classified.ReservationKind.SavingsEligible() {
		savings = 0
	}

	category := classified.Category
	if item.Category != "" {
		parsed, err := types.ParseCategory(item.Category)
		if err != nil {
			return nil, &types.RowError{Row: ordinal, Column: "category", Reason: err.Error()}
		}
		category = parsed
	}
	impact := classified.Impact
	if item.Impact != "" {
		if parsed, err := types.ParseImpact(item.Impact); err == nil {
			impact = parsed
		}
	}

	// An explicit term from the API wins over one inferred from text. Only
	// the sold denominations count; anything else stays unknown.
	term := classified.CommitmentTerm
	if item.TermMonths != nil {
		if *item.TermMonths == 12 || *item.TermMonths == 36 {
			term = types.TermOfYears(int16(*item.TermMonths / 12))
		} else {
			term = types.TermUnknown
		}
	}

	resourceName := item.ResourceName
	if resourceName == "" {
		resourceName = "unknown"
	}
	resourceType := item.ResourceType
	if resourceType == "" {
		resourceType = "unknown"
	}

	vendorID := item.ID
	if vendorID == "" {
		vendorID = deriveVendorID(item.Recommendation, item.SubscriptionID, item.ResourceGroup, resourceName)
	}

	var retirement *time.Time
	if item.RetirementDate != "" {
		if t, err := utils.ParseFlexibleTime(item.RetirementDate); err == nil {
			retirement = &t
		}
	}

	rec := &model.Recommendation{
		RecordSetID:      recordSet.ID,
		Source:           recordSet.Source,
		VendorID:         vendorID,
		Category:         category,
		Impact:           impact,
		Recommendation:   item.Recommendation,
		Description:      item.Description,
		Benefits:         item.Benefits,
		SubscriptionID:   item.SubscriptionID,
		SubscriptionName: item.SubscriptionName,
		ResourceGroup:    item.ResourceGroup,
		ResourceName:     resourceName,
		ResourceType:     resourceType,
		AnnualSavings:    savings,
		SavingsCurrency:  item.SavingsCurrency,
		RetirementDate:   retirement,
		RetiringFeature:  item.RetiringFeature,
		CommitmentTerm:   term,
		ReservationKind:  classified.ReservationKind,
		UpdatedDate:      updatedDate,
	}
	return rec, nil
}
