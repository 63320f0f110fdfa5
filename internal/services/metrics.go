package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_uploads_processed_total",
		Help: "The total number of upload messages ingested end to end",
	})
	uploadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_upload_errors_total",
		Help: "The total number of upload messages dropped before ingestion completed",
	})
)
