package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudratio/advisor-report-backend/internal/config"
	"github.com/cloudratio/advisor-report-backend/internal/db"
	"github.com/cloudratio/advisor-report-backend/internal/services/housekeeper"
)

// Runs once and exits, so deployments can drive it from a cron schedule.
var housekeeperCmd = &cobra.Command{
	Use:   "housekeeper",
	Short: "Use to delete render jobs past their retention period",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("starting advisor housekeeper")
		config.GetConfig()
		db.InitDB()
		housekeeper.DeleteExpiredRenderJobs()
	},
}

func init() {
	rootCmd.AddCommand(housekeeperCmd)
}
