package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cloudratio/advisor-report-backend/internal/aggregate"
	"github.com/cloudratio/advisor-report-backend/internal/cache"
	"github.com/cloudratio/advisor-report-backend/internal/config"
	"github.com/cloudratio/advisor-report-backend/internal/ingest"
	"github.com/cloudratio/advisor-report-backend/internal/model"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

// fileSource feeds the aggregation engine from an already-normalized export,
// so summaries can be computed without a database.
type fileSource struct {
	set     model.RecordSet
	records []model.Recommendation
}

func (s fileSource) RecordSet(id string) (model.RecordSet, error) {
	return s.set, nil
}

func (s fileSource) Records(id string, window aggregate.Window) ([]model.Recommendation, error) {
	inWindow := make([]model.Recommendation, 0, len(s.records))
	for _, record := range s.records {
		if !record.UpdatedDate.Before(window.Start) && record.UpdatedDate.Before(window.End) {
			inWindow = append(inWindow, record)
		}
	}
	return inWindow, nil
}

var (
	outputDir    string
	windowDays   int
	summarizeCmd = &cobra.Command{
		Use:   "summarize [input csv file path]",
		Short: "summarizes an advisory export offline",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			input_file := args[0]
			if _, err := os.Stat(input_file); os.IsNotExist(err) {
				fmt.Printf("CSV file: %s does not exist\n", input_file)
				os.Exit(1)
			}
			if outputDir != "" {
				if _, err := os.Stat(outputDir); os.IsNotExist(err) {
					if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
						panic(err.Error())
					}
				}
			} else {
				outputDir, _ = os.Getwd()
			}
			outputFile := outputDir + "/summary.json"
			f, err := os.Open(input_file)
			if err != nil {
				panic(err.Error())
			}
			defer func() {
				_ = f.Close()
			}()

			reader := csv.NewReader(f)
			reader.FieldsPerRecord = -1
			data, err := reader.ReadAll()
			if err != nil {
				panic(err.Error())
			}

			recordSet := model.RecordSet{
				ID:      uuid.New().String(),
				Name:    input_file,
				Source:  types.SourceCSVExport,
				Version: 1,
			}
			records, report, err := ingest.NormalizeCSV(recordSet, data)
			if err != nil {
				fmt.Printf("Unable to normalize export: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%d row(s) normalized, %d rejected\n", report.RowsPersisted, report.RowsRejected)

			if windowDays == 0 {
				windowDays = config.GetConfig().ReportWindowDays
			}
			window := aggregate.DefaultWindow(windowDays)
			engine := aggregate.NewEngine(fileSource{set: recordSet, records: records}, cache.New(time.Minute))
			snapshot, err := engine.Summary(recordSet.ID, window)
			if err != nil {
				panic(err.Error())
			}

			encoded, err := json.MarshalIndent(snapshot, "", "  ")
			if err != nil {
				panic(err.Error())
			}
			if err := os.WriteFile(outputFile, encoded, 0644); err != nil {
				panic(err.Error())
			}
			fmt.Printf("Summary created at: %s \n", outputFile)
		},
	}
)

func init() {
	summarizeCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "o", "", "Path to output directory")
	summarizeCmd.PersistentFlags().IntVarP(&windowDays, "days", "d", 0, "Reporting window length in days")
	rootCmd.AddCommand(summarizeCmd)
}
