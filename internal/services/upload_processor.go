package services

import (
	"context"
	"encoding/json"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/cloudratio/advisor-report-backend/internal/aggregate"
	"github.com/cloudratio/advisor-report-backend/internal/config"
	"github.com/cloudratio/advisor-report-backend/internal/ingest"
	"github.com/cloudratio/advisor-report-backend/internal/logging"
	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/render"
	"github.com/cloudratio/advisor-report-backend/internal/types"
	"github.com/cloudratio/advisor-report-backend/internal/utils"
)

var cfg *config.Config = config.GetConfig()

// ProcessUpload handles one message from the uploads topic: resolve the
// record set, pull the export (flat files or the vendor API), normalize and
// classify the rows, upsert them and bump the record set version. When the
// message asks for render outputs, a render job is submitted once ingestion
// has landed.
func ProcessUpload(msg *kafka.Message) {
	var log logrus.FieldLogger = logging.GetLogger()
	cfg = config.GetConfig()
	validate := validator.New()

	var uploadMsg types.UploadMsg
	if !json.Valid(msg.Value) {
		log.Errorf("Received message on kafka topic is not valid JSON: %s", msg.Value)
		uploadErrors.Inc()
		return
	}
	if err := json.Unmarshal(msg.Value, &uploadMsg); err != nil {
		log.Errorf("Unable to decode kafka message: %s", msg.Value)
		uploadErrors.Inc()
		return
	}
	if err := validate.Struct(uploadMsg); err != nil {
		log.Errorf("Invalid kafka message: %s", err)
		uploadErrors.Inc()
		return
	}

	log = logging.Set_request_details(uploadMsg)

	source, err := types.ParseSource(uploadMsg.Metadata.Source)
	if err != nil {
		log.Errorf("Unsupported upload source: %v", err)
		uploadErrors.Inc()
		return
	}

	recordSet := model.RecordSet{
		Name:   uploadMsg.Metadata.Record_set_name,
		Source: source,
	}
	if err := recordSet.CreateRecordSet(); err != nil {
		log.Errorf("unable to get or add record to record_sets table: %v. Error: %v", recordSet, err)
		uploadErrors.Inc()
		return
	}

	switch source {
	case types.SourceVendorAPI:
		if err := ingestVendor(log, &recordSet); err != nil {
			uploadErrors.Inc()
			return
		}
	default:
		if len(uploadMsg.Files) == 0 {
			log.Errorf("upload for record set %s carries no files", recordSet.ID)
			uploadErrors.Inc()
			return
		}
		for _, file := range uploadMsg.Files {
			data, err := utils.ReadCSVFromUrl(file)
			if err != nil {
				log.Errorf("Unable to read CSV from URL. Error: %s", err)
				uploadErrors.Inc()
				return
			}
			if err := ingestExport(log, &recordSet, data); err != nil {
				uploadErrors.Inc()
				return
			}
		}
	}
	uploadsProcessed.Inc()

	if len(uploadMsg.Render_outputs) > 0 {
		submitRender(log, &recordSet, uploadMsg.Render_outputs)
	}
}

func ingestExport(log logrus.FieldLogger, recordSet *model.RecordSet, data [][]string) error {
	records, report, err := ingest.NormalizeCSV(*recordSet, data)
	if err != nil {
		log.Errorf("unable to normalize export for record set %s: %v", recordSet.ID, err)
		return err
	}
	return PersistIngest(log, recordSet, records, report)
}

func ingestVendor(log logrus.FieldLogger, recordSet *model.RecordSet) error {
	client := ingest.NewVendorClient()
	records, report, err := client.FetchAll(context.Background(), *recordSet)
	if err != nil {
		log.Errorf("unable to fetch recommendations from vendor API for record set %s: %v", recordSet.ID, err)
		return err
	}
	return PersistIngest(log, recordSet, records, report)
}

// PersistIngest upserts the normalized rows, bumps the record set version and
// drops the stale aggregation cache entries. Re-running the same export is a
// no-op at the row level; the version bump still invalidates readers.
func PersistIngest(log logrus.FieldLogger, recordSet *model.RecordSet, records []model.Recommendation, report *ingest.Report) error {
	if err := model.BulkUpsertRecommendations(records, cfg.IngestBatchSize); err != nil {
		log.Errorf("unable to upsert recommendations for record set %s: %v", recordSet.ID, err)
		return err
	}

	summary, err := json.Marshal(report)
	if err != nil {
		log.Errorf("unable to encode ingest summary: %v", err)
		summary = []byte("{}")
	}
	if err := recordSet.BumpVersion(datatypes.JSON(summary)); err != nil {
		log.Errorf("unable to bump version of record set %s: %v", recordSet.ID, err)
		return err
	}
	aggregate.GetEngine().Invalidate(recordSet.ID)

	log.Infof("record set %s at version %d: %d row(s) persisted, %d rejected",
		recordSet.ID, recordSet.Version, report.RowsPersisted, report.RowsRejected)
	return nil
}

func submitRender(log logrus.FieldLogger, recordSet *model.RecordSet, outputs []string) {
	kinds := make([]types.OutputKind, 0, len(outputs))
	for _, output := range outputs {
		kind, err := types.ParseOutputKind(output)
		if err != nil {
			log.Errorf("ignoring render output: %v", err)
			continue
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		log.Errorf("upload requested a render but no output kind was recognized")
		return
	}

	window := aggregate.DefaultWindow(cfg.ReportWindowDays)
	job, attached, err := render.GetOrchestrator().Submit(recordSet.ID, kinds, window)
	if err != nil {
		log.Errorf("unable to submit render job for record set %s: %v", recordSet.ID, err)
		return
	}
	if attached {
		log.Infof("render request attached to active job %s", job.ID)
	} else {
		log.Infof("render job %s queued for record set %s", job.ID, recordSet.ID)
	}
}
