package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	database "github.com/cloudratio/advisor-report-backend/internal/db"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

// RecordSet is one named stream of advisory records, usually a subscription
// export. Version increments on every successful ingestion so cached
// aggregations keyed on it fall away without explicit invalidation.
type RecordSet struct {
	ID         string       `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Name       string       `gorm:"type:text;uniqueIndex:idx_record_sets_name_source"`
	Source     types.Source `gorm:"type:text;uniqueIndex:idx_record_sets_name_source"`
	Version    uint         `gorm:"not null;default:1"`
	LastIngest datatypes.JSON
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r *RecordSet) CreateRecordSet() error {
	db := database.GetDB()
	result := db.Where(RecordSet{Name: r.Name, Source: r.Source}).FirstOrCreate(r)
	if result.Error != nil {
		dbError.Inc()
		return result.Error
	}
	if result.RowsAffected > 0 {
		recordSetCreated.Inc()
	}
	return nil
}

func GetRecordSetByID(id string) (RecordSet, error) {
	db := database.GetDB()
	var recordSet RecordSet
	result := db.First(&recordSet, "id = ?", id)
	if result.Error != nil {
		if result.Error != gorm.ErrRecordNotFound {
			dbError.Inc()
		}
		return recordSet, result.Error
	}
	return recordSet, nil
}

func GetRecordSets() ([]RecordSet, error) {
	db := database.GetDB()
	var recordSets []RecordSet
	result := db.Order("name").Find(&recordSets)
	if result.Error != nil {
		dbError.Inc()
		return nil, result.Error
	}
	return recordSets, nil
}

// BumpVersion marks the record set changed after an ingestion pass and
// stores the ingestion report alongside it.
func (r *RecordSet) BumpVersion(ingestReport datatypes.JSON) error {
	db := database.GetDB()
	updates := map[string]interface{}{
		"version":     gorm.Expr("version + ?", 1),
		"last_ingest": ingestReport,
		"updated_at":  time.Now().UTC(),
	}
	result := db.Model(r).UpdateColumns(updates)
	if result.Error != nil {
		dbError.Inc()
		return result.Error
	}
	if err := db.First(r, "id = ?", r.ID).Error; err != nil {
		dbError.Inc()
		return err
	}
	return nil
}
