package cmd

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudratio/advisor-report-backend/internal/ingest"
	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

var validateCmd = &cobra.Command{Use: "validate", Short: "Validate advisory export data"}

var validateCSV = &cobra.Command{
	Use:   "csv [input csv file path]",
	Short: "Validate an advisory export CSV file",
	Long:  "Validate an advisory export CSV file without persisting anything",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		input_file := args[0]
		if _, err := os.Stat(input_file); os.IsNotExist(err) {
			fmt.Printf("CSV file: %s does not exist\n", input_file)
			os.Exit(1)
		}
		f, err := os.Open(input_file)
		if err != nil {
			panic(err.Error())
		}
		defer f.Close()

		reader := csv.NewReader(f)
		reader.FieldsPerRecord = -1
		records, err := reader.ReadAll()
		if err != nil {
			panic(err.Error())
		}

		recordSet := model.RecordSet{Name: input_file, Source: types.SourceCSVExport}
		_, report, err := ingest.NormalizeCSV(recordSet, records)
		if err != nil {
			fmt.Printf("Export is not usable: %v\n", err)
			os.Exit(1)
		}

		if report.RowsPersisted > 0 {
			fmt.Printf("Number of valid rows - %v \n", report.RowsPersisted)
		} else {
			fmt.Println("No valid rows found")
		}
		if report.RowsRejected > 0 {
			fmt.Printf("Number of rejected rows - %v \n", report.RowsRejected)
			for i := range report.Errors {
				fmt.Printf("  %v\n", &report.Errors[i])
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.AddCommand(validateCSV)
}
