package api

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cloudratio/advisor-report-backend/internal/aggregate"
	"github.com/cloudratio/advisor-report-backend/internal/ingest"
	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/render"
	"github.com/cloudratio/advisor-report-backend/internal/services"
	"github.com/cloudratio/advisor-report-backend/internal/storage"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

type reportRequest struct {
	Record_set_id string   `json:"record_set_id"`
	Output_kinds  []string `json:"output_kinds"`
}

func SubmitReport(c echo.Context) error {
	var request reportRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "malformed request body"})
	}
	if request.Record_set_id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "record_set_id is required"})
	}
	if _, err := uuid.Parse(request.Record_set_id); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "bad record_set_id"})
	}

	kinds := make([]types.OutputKind, 0, len(request.Output_kinds))
	for _, raw := range request.Output_kinds {
		kind, err := types.ParseOutputKind(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": err.Error()})
		}
		kinds = append(kinds, kind)
	}

	if _, err := model.GetRecordSetByID(request.Record_set_id); err != nil {
		if model.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, echo.Map{"status": "error", "message": "record set not found"})
		}
		log.Error("unable to fetch record set from database", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "unable to fetch record set"})
	}

	window, err := windowFromParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": err.Error()})
	}

	job, attached, err := render.GetOrchestrator().Submit(request.Record_set_id, kinds, window)
	if err != nil {
		if types.IsTransient(err) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "error", "message": err.Error()})
		}
		log.Error("unable to submit render job", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "unable to submit render job"})
	}

	status := http.StatusAccepted
	if attached {
		status = http.StatusOK
	}
	return c.JSON(status, echo.Map{
		"job_id":   job.ID,
		"state":    job.State,
		"attached": attached,
	})
}

func GetReport(c echo.Context) error {
	jobID := c.Param("job-id")
	if _, err := uuid.Parse(jobID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "bad job_id"})
	}

	job, err := model.GetRenderJobByID(jobID)
	if err != nil {
		if model.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, echo.Map{"status": "error", "message": "render job not found"})
		}
		log.Error("unable to fetch render job from database", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "unable to fetch render job"})
	}

	response := echo.Map{
		"job_id":        job.ID,
		"record_set_id": job.RecordSetID,
		"state":         job.State,
		"output_kinds":  job.OutputKinds,
		"attempts":      job.Attempts,
		"window_start":  job.WindowStart,
		"window_end":    job.WindowEnd,
		"created_at":    job.CreatedAt,
	}
	if job.FailureReason != "" {
		response["failure_reason"] = job.FailureReason
	}
	if job.StartedAt != nil {
		response["started_at"] = job.StartedAt
	}
	if job.CompletedAt != nil {
		response["completed_at"] = job.CompletedAt
	}
	if len(job.WaitSummary) > 0 {
		response["wait_summary"] = json.RawMessage(job.WaitSummary)
	}
	return c.JSON(http.StatusOK, response)
}

func GetReportArtifacts(c echo.Context) error {
	jobID := c.Param("job-id")
	if _, err := uuid.Parse(jobID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "bad job_id"})
	}

	job, err := model.GetRenderJobByID(jobID)
	if err != nil {
		if model.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, echo.Map{"status": "error", "message": "render job not found"})
		}
		log.Error("unable to fetch render job from database", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "unable to fetch render job"})
	}

	artifacts := make([]map[string]interface{}, 0, len(job.Artifacts))
	for _, artifact := range job.Artifacts {
		artifacts = append(artifacts, map[string]interface{}{
			"kind":         artifact.Kind,
			"storage_key":  artifact.StorageKey,
			"content_hash": artifact.ContentHash,
			"byte_size":    artifact.ByteSize,
			"degraded":     artifact.Degraded,
			"created_at":   artifact.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"job_id":    job.ID,
		"state":     job.State,
		"artifacts": artifacts,
	})
}

func CancelReport(c echo.Context) error {
	jobID := c.Param("job-id")
	if _, err := uuid.Parse(jobID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "bad job_id"})
	}

	if err := render.GetOrchestrator().Cancel(jobID); err != nil {
		if model.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, echo.Map{"status": "error", "message": "render job not found"})
		}
		if errors.Is(err, render.ErrJobFinished) {
			return c.JSON(http.StatusConflict, echo.Map{"status": "error", "message": err.Error()})
		}
		log.Error("unable to cancel render job", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "unable to cancel render job"})
	}
	return c.JSON(http.StatusAccepted, echo.Map{"job_id": jobID, "status": "cancel requested"})
}

func GetRecommendationList(c echo.Context) error {
	var orderHow string
	var orderBy string
	// Default values
	var limit int = 10
	var offset int = 0

	orderBy = c.QueryParam("order_by")
	if orderBy != "" {
		var orderByOptions = map[string]string{
			"category":       "category",
			"impact":         "impact",
			"annual_savings": "annual_savings",
			"resource":       "resource_name",
			"updated_date":   "updated_date",
		}
		orderByOption, keyError := orderByOptions[orderBy]

		if !keyError {
			return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "invalid order_by value"})
		}
		orderBy = orderByOption
	} else {
		orderBy = "updated_date"
	}

	orderHow = c.QueryParam("order_how")
	if orderHow != "" {
		orderHowUpper := strings.ToUpper(orderHow)
		if (orderHowUpper != "ASC") && (orderHowUpper != "DESC") {
			return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "invalid order_how value"})
		}
		orderHow = orderHowUpper
	} else {
		orderHow = "DESC"
	}

	orderQuery := orderBy + " " + orderHow

	limitStr := c.QueryParam("limit")
	if limitStr != "" {
		limitInt, err := strconv.Atoi(limitStr)
		if err == nil {
			limit = limitInt
		}
	}

	offsetStr := c.QueryParam("offset")

	if offsetStr != "" {
		offsetInt, err := strconv.Atoi(offsetStr)
		if err == nil {
			offset = offsetInt
		}
	}

	queryParams, err := MapQueryParameters(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": err.Error()})
	}

	recommendations, count, err := model.GetRecommendations(model.GetRecommendationOptions{
		OrderQuery:  orderQuery,
		Limit:       limit,
		Offset:      offset,
		QueryParams: queryParams,
	})
	if err != nil {
		log.Error("unable to fetch records from database", err)
	}

	allRecommendations := []map[string]interface{}{}
	for _, recommendation := range recommendations {
		allRecommendations = append(allRecommendations, recommendationRow(recommendation))
	}

	interfaceSlice := make([]interface{}, len(allRecommendations))
	for i, v := range allRecommendations {
		interfaceSlice[i] = v
	}
	results := CollectionResponse(interfaceSlice, c.Request(), int(count), limit, offset)
	return c.JSON(http.StatusOK, results)
}

func GetRecommendation(c echo.Context) error {
	recommendationIDStr := c.Param("recommendation-id")
	if _, err := strconv.Atoi(recommendationIDStr); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "bad recommendation_id"})
	}

	recommendation, err := model.GetRecommendationByID(recommendationIDStr)
	if err != nil {
		if model.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, echo.Map{"status": "error", "message": "recommendation not found"})
		}
		log.Error("unable to fetch records from database", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "unable to fetch recommendation"})
	}

	return c.JSON(http.StatusOK, recommendationDetail(recommendation))
}

func GetRecordSetList(c echo.Context) error {
	recordSets, err := model.GetRecordSets()
	if err != nil {
		log.Error("unable to fetch record sets from database", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "unable to fetch record sets"})
	}

	rows := []map[string]interface{}{}
	for _, recordSet := range recordSets {
		row := map[string]interface{}{
			"id":         recordSet.ID,
			"name":       recordSet.Name,
			"source":     recordSet.Source,
			"version":    recordSet.Version,
			"created_at": recordSet.CreatedAt,
			"updated_at": recordSet.UpdatedAt,
		}
		if len(recordSet.LastIngest) > 0 {
			row["last_ingest"] = json.RawMessage(recordSet.LastIngest)
		}
		rows = append(rows, row)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// IngestRecordSet takes a multipart CSV export and runs the same
// normalize-persist pass the kafka consumer runs, synchronously. The
// response carries the ingestion report with per-row rejections.
func IngestRecordSet(c echo.Context) error {
	recordSetID := c.Param("record-set-id")
	if _, err := uuid.Parse(recordSetID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "bad record_set_id"})
	}

	recordSet, err := model.GetRecordSetByID(recordSetID)
	if err != nil {
		if model.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, echo.Map{"status": "error", "message": "record set not found"})
		}
		log.Error("unable to fetch record set from database", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "unable to fetch record set"})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "multipart field 'file' is required"})
	}
	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "unable to open uploaded file"})
	}
	defer src.Close()

	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	data, err := reader.ReadAll()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "unreadable CSV upload"})
	}

	records, report, err := ingest.NormalizeCSV(recordSet, data)
	if err != nil {
		var validation *types.ValidationError
		if errors.As(err, &validation) {
			return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": validation.Error()})
		}
		log.Error("unable to normalize export", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "unable to normalize export"})
	}

	if err := services.PersistIngest(log, &recordSet, records, report); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "unable to persist export"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"record_set_id": recordSet.ID,
		"version":       recordSet.Version,
		"report":        report,
	})
}

func GetRecordSetSummary(c echo.Context) error {
	recordSetID := c.Param("record-set-id")
	if _, err := uuid.Parse(recordSetID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "bad record_set_id"})
	}
	window, err := windowFromParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": err.Error()})
	}

	snapshot, err := aggregate.GetEngine().Summary(recordSetID, window)
	if err != nil {
		if model.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, echo.Map{"status": "error", "message": "record set not found"})
		}
		log.Error("unable to compute summary", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "unable to compute summary"})
	}
	return c.JSON(http.StatusOK, snapshot)
}

func GetRecordSetTrend(c echo.Context) error {
	recordSetID := c.Param("record-set-id")
	if _, err := uuid.Parse(recordSetID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "bad record_set_id"})
	}
	window, err := windowFromParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": err.Error()})
	}

	granularity := types.GranularityWeek
	if granularityStr := c.QueryParam("granularity"); granularityStr != "" {
		granularity, err = types.ParseGranularity(granularityStr)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": err.Error()})
		}
	}

	series, err := aggregate.GetEngine().Trend(recordSetID, window, granularity)
	if err != nil {
		if model.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, echo.Map{"status": "error", "message": "record set not found"})
		}
		log.Error("unable to compute trend", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "unable to compute trend"})
	}
	return c.JSON(http.StatusOK, series)
}

func GetRecordSetComparison(c echo.Context) error {
	recordSetID := c.Param("record-set-id")
	if _, err := uuid.Parse(recordSetID); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "bad record_set_id"})
	}
	window, err := windowFromParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": err.Error()})
	}

	comparison, err := aggregate.GetEngine().Comparison(recordSetID, window)
	if err != nil {
		if model.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, echo.Map{"status": "error", "message": "record set not found"})
		}
		log.Error("unable to compute comparison", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "unable to compute comparison"})
	}
	return c.JSON(http.StatusOK, comparison)
}

// GetArtifact streams a stored artifact by its full storage key, as listed
// on the job's artifact endpoint.
func GetArtifact(c echo.Context) error {
	key := c.Param("*")
	if key == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "artifact key is required"})
	}

	data, contentType, err := storage.GetStore().Get(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"status": "error", "message": "artifact not found"})
		}
		log.Error("unable to read artifact from storage", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": "error", "message": "unable to read artifact"})
	}
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return c.Blob(http.StatusOK, contentType, data)
}

func GetAppStatus(c echo.Context) error {
	status := map[string]string{
		"api-server": "working",
	}
	return c.JSON(http.StatusOK, status)
}
