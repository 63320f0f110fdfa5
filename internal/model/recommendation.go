package model

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	database "github.com/cloudratio/advisor-report-backend/internal/db"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

type Recommendation struct {
	ID               uint                  `gorm:"primaryKey;not null;autoIncrement"`
	RecordSetID      string                `gorm:"type:uuid;uniqueIndex:idx_recommendations_identity"`
	RecordSet        RecordSet             `gorm:"foreignKey:RecordSetID"`
	Source           types.Source          `gorm:"type:text;uniqueIndex:idx_recommendations_identity"`
	VendorID         string                `gorm:"type:text;uniqueIndex:idx_recommendations_identity"`
	Category         types.Category        `gorm:"type:text;index"`
	Impact           types.Impact          `gorm:"type:text"`
	Recommendation   string                `gorm:"type:text"`
	Description      string                `gorm:"type:text"`
	Benefits         string                `gorm:"type:text"`
	SubscriptionID   string                `gorm:"type:text"`
	SubscriptionName string                `gorm:"type:text"`
	ResourceGroup    string                `gorm:"type:text"`
	ResourceName     string                `gorm:"type:text"`
	ResourceType     string                `gorm:"type:text"`
	AnnualSavings    float64               `gorm:"not null;default:0"`
	SavingsCurrency  string                `gorm:"type:text"`
	CarbonReduction  string                `gorm:"type:text"`
	CostImplication  string                `gorm:"type:text"`
	RetirementDate   *time.Time            `gorm:"type:timestamp"`
	RetiringFeature  string                `gorm:"type:text"`
	CommitmentTerm   types.CommitmentTerm  `gorm:"type:smallint"`
	ReservationKind  types.ReservationKind `gorm:"type:text"`
	UpdatedDate      time.Time             `gorm:"type:timestamp;index"`
	CreatedAt        time.Time
}

// MultiYearSavings projects savings over the commitment term. The second
// return is false when the term is unknown and no projection is possible.
func (r *Recommendation) MultiYearSavings() (float64, bool) {
	years, known := r.CommitmentTerm.Years()
	if !known {
		return 0, false
	}
	return r.AnnualSavings * float64(years), true
}

var recommendationUpdateColumns = []string{
	"category", "impact", "recommendation", "description", "benefits",
	"subscription_id", "subscription_name", "resource_group", "resource_name",
	"resource_type", "annual_savings", "savings_currency", "carbon_reduction",
	"cost_implication", "retirement_date", "retiring_feature",
	"commitment_term", "reservation_kind", "updated_date",
}

// BulkUpsertRecommendations writes normalized records in fixed-size batches.
// Re-ingesting the same export updates rows in place instead of duplicating
// them, keyed on (record_set_id, source, vendor_id).
func BulkUpsertRecommendations(recommendations []Recommendation, batchSize int) error {
	if len(recommendations) == 0 {
		return nil
	}
	db := database.GetDB()
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_set_id"}, {Name: "source"}, {Name: "vendor_id"}},
		DoUpdates: clause.AssignmentColumns(recommendationUpdateColumns),
	}).CreateInBatches(recommendations, batchSize)

	if result.Error != nil {
		dbError.Inc()
		return result.Error
	}
	return nil
}

func GetRecommendationByID(id string) (Recommendation, error) {
	db := database.GetDB()
	var recommendation Recommendation
	result := db.Preload("RecordSet").First(&recommendation, "id = ?", id)
	if result.Error != nil {
		if result.Error != gorm.ErrRecordNotFound {
			dbError.Inc()
		}
		return recommendation, result.Error
	}
	return recommendation, nil
}

func GetRecommendations(opts GetRecommendationOptions) ([]Recommendation, int64, error) {
	db := database.GetDB()
	var recommendations []Recommendation
	var count int64

	query := db.Model(&Recommendation{})
	for column, value := range opts.QueryParams {
		query = query.Where(column+" = ?", value)
	}
	if err := query.Count(&count).Error; err != nil {
		dbError.Inc()
		return nil, 0, err
	}
	if opts.OrderQuery != "" {
		query = query.Order(opts.OrderQuery)
	}
	result := query.Limit(opts.Limit).Offset(opts.Offset).Find(&recommendations)
	if result.Error != nil {
		dbError.Inc()
		return nil, 0, result.Error
	}
	return recommendations, count, nil
}

// GetRecommendationsInWindow returns records whose vendor update date falls
// inside the half-open interval [start, end).
func GetRecommendationsInWindow(recordSetID string, start time.Time, end time.Time) ([]Recommendation, error) {
	db := database.GetDB()
	var recommendations []Recommendation
	result := db.Where("record_set_id = ? AND updated_date >= ? AND updated_date < ?", recordSetID, start, end).
		Order("updated_date").Find(&recommendations)
	if result.Error != nil {
		dbError.Inc()
		return nil, result.Error
	}
	return recommendations, nil
}
