package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/cloudratio/advisor-report-backend/internal/config"
	"github.com/cloudratio/advisor-report-backend/internal/logging"
)

var log *logrus.Logger = logging.GetLogger()
var cfg *config.Config = config.GetConfig()

func StartAPIServer() {
	app := echo.New()
	app.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem: "advisor",
		LabelFuncs: map[string]echoprometheus.LabelValueFunc{
			"url": func(c echo.Context, err error) string {
				return c.Path()
			},
		},
	}))

	app.Use(middleware.Logger())
	app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
	}))

	app.GET("/status", GetAppStatus)
	app.GET("/metrics", echoprometheus.NewHandler())

	v1 := app.Group("/api/advisor/v1")
	v1.POST("/reports", SubmitReport)
	v1.GET("/reports/:job-id", GetReport)
	v1.GET("/reports/:job-id/artifacts", GetReportArtifacts)
	v1.DELETE("/reports/:job-id", CancelReport)

	v1.GET("/recommendations", GetRecommendationList)
	v1.GET("/recommendations/:recommendation-id", GetRecommendation)

	v1.GET("/record-sets", GetRecordSetList)
	v1.POST("/record-sets/:record-set-id/ingest", IngestRecordSet)
	v1.GET("/record-sets/:record-set-id/summary", GetRecordSetSummary)
	v1.GET("/record-sets/:record-set-id/trend", GetRecordSetTrend)
	v1.GET("/record-sets/:record-set-id/comparison", GetRecordSetComparison)

	v1.GET("/artifacts/*", GetArtifact)

	s := http.Server{
		Addr:              ":" + cfg.API_PORT,
		Handler:           app,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeout) * time.Second,
	}
	if err := s.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
