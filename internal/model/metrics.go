package model

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dbError = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_db_error_total",
		Help: "The total number of DB error",
	})
	recordSetCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_record_set_created_total",
		Help: "The total number of record sets created",
	})
)
