package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cloudratio/advisor-report-backend/internal/api"
	"github.com/cloudratio/advisor-report-backend/internal/config"
	"github.com/cloudratio/advisor-report-backend/internal/db"
	"github.com/cloudratio/advisor-report-backend/internal/kafka"
	"github.com/cloudratio/advisor-report-backend/internal/logging"
	"github.com/cloudratio/advisor-report-backend/internal/render"
	"github.com/cloudratio/advisor-report-backend/internal/services"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

var startCmd = &cobra.Command{Use: "start", Short: "Use to start advisor-report-backend services"}

var processorCmd = &cobra.Command{
	Use:   "processor",
	Short: "starts advisor upload processor",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("starting advisor upload processor")
		cfg := config.GetConfig()
		db.InitDB()
		kafka.StartConsumer(cfg.UploadTopic, services.ProcessUpload)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "starts advisor render workers",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("starting advisor render workers")
		db.InitDB()
		runWorkers(signalContext())
	},
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "starts advisor api server",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("starting advisor api server")
		db.InitDB()
		api.StartAPIServer()
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "starts processor, render workers and api server in one process",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("starting advisor all-in-one")
		cfg := config.GetConfig()
		db.InitDB()

		go kafka.StartConsumer(cfg.UploadTopic, services.ProcessUpload)
		go runWorkers(signalContext())
		api.StartAPIServer()
	},
}

func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	return ctx
}

func runWorkers(ctx context.Context) {
	log := logging.GetLogger()
	cfg := config.GetConfig()

	orchestrator := render.GetOrchestrator()
	orchestrator.SetNotify(publishReportEvent)
	if err := orchestrator.Recover(); err != nil {
		log.Errorf("render job recovery failed: %v", err)
	}

	if err := orchestrator.StartWorkers(ctx, cfg.RenderWorkers); err != nil && err != context.Canceled {
		log.Errorf("render workers stopped: %v", err)
	}
	orchestrator.Shutdown()
}

// publishReportEvent pushes job state changes to the reports topic keyed by
// record set, so consumers see one record set's events in order.
func publishReportEvent(event types.ReportEventMsg) {
	log := logging.GetLogger()
	msg, err := json.Marshal(event)
	if err != nil {
		log.Errorf("unable to encode report event for job %s: %v", event.Job_id, err)
		return
	}
	cfg := config.GetConfig()
	if err := kafka.SendMessage(msg, cfg.ReportsTopic, event.Record_set_id); err != nil {
		log.Errorf("unable to publish report event for job %s: %v", event.Job_id, err)
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.AddCommand(processorCmd)
	startCmd.AddCommand(workerCmd)
	startCmd.AddCommand(apiCmd)
	startCmd.AddCommand(allCmd)
}
