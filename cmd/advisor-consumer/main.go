package main

import (
	"github.com/cloudratio/advisor-report-backend/internal/config"
	"github.com/cloudratio/advisor-report-backend/internal/db"
	"github.com/cloudratio/advisor-report-backend/internal/kafka"
	"github.com/cloudratio/advisor-report-backend/internal/logging"
	"github.com/cloudratio/advisor-report-backend/internal/services"
)

func main() {
	logging.InitLogger()
	cfg := config.GetConfig()
	db.InitDB()
	kafka.StartConsumer(cfg.UploadTopic, services.ProcessUpload)
}
