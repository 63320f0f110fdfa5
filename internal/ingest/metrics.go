package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	invalidCSV = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_invalid_csv_total",
		Help: "The total number of unreadable CSV uploads",
	})
	invalidRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_invalid_rows_total",
		Help: "The total number of rows rejected during ingestion",
	})
	ingestedRows = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_ingested_rows_total",
		Help: "The total number of rows normalized and persisted",
	})
	vendorAPIError = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_vendor_api_error_total",
		Help: "The total number of vendor API fetch failures",
	})
)
