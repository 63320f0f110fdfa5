package logging

import (
	"os"

	"github.com/cloudratio/advisor-report-backend/internal/config"
	"github.com/cloudratio/advisor-report-backend/internal/types"
	"github.com/sirupsen/logrus"
)

var log *logrus.Logger = logrus.New()

func InitLogger() {
	cfg := config.GetConfig()
	var logLevel logrus.Level

	switch cfg.LogLevel {
	case "DEBUG":
		logLevel = logrus.DebugLevel
	case "ERROR":
		logLevel = logrus.ErrorLevel
	default:
		logLevel = logrus.InfoLevel
	}

	log.Level = logLevel
	log.Out = os.Stdout
	log.ReportCaller = true
}

func GetLogger() *logrus.Logger {
	return log
}

func Set_request_details(msg types.UploadMsg) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"request_id": msg.Request_id,
		"record_set": msg.Metadata.Record_set_name,
		"source":     msg.Metadata.Source,
	})
}
