package main

import (
	"github.com/cloudratio/advisor-report-backend/cmd"
	"github.com/cloudratio/advisor-report-backend/internal/logging"
)

func main() {
	logging.InitLogger()
	cmd.Execute()
}
