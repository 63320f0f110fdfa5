package report

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cloudratio/advisor-report-backend/internal/aggregate"
	"github.com/cloudratio/advisor-report-backend/internal/types"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var funcMap = template.FuncMap{
	"money":    formatMoney,
	"date":     formatDate,
	"percent":  formatPercent,
	"category": func(c types.Category) string { return c.String() },
	"impact":   func(i types.Impact) string { return i.String() },
}

var reportTemplate = template.Must(
	template.New("report.html.tmpl").Funcs(funcMap).ParseFS(templateFS, "templates/*.tmpl"),
)

// Data is everything the report template needs. The template is fully
// self-contained: no external stylesheets, fonts or scripts, so rendering it
// in a browser touches no network.
type Data struct {
	Title    string
	Snapshot *aggregate.Snapshot
	Trend    *aggregate.TrendSeries
}

type chartPoint struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Savings float64 `json:"savings"`
}

type templateData struct {
	Data
	TrendJSON template.JS
}

// Render executes the report template into a standalone HTML document.
func Render(data Data) ([]byte, error) {
	if data.Snapshot == nil {
		return nil, fmt.Errorf("report data has no snapshot")
	}
	if data.Title == "" {
		data.Title = fmt.Sprintf("Advisory report - %s", data.Snapshot.RecordSetName)
	}

	points := []chartPoint{}
	if data.Trend != nil {
		for _, bucket := range data.Trend.Buckets {
			points = append(points, chartPoint{
				Label:   bucket.Start.Format("Jan 02"),
				Count:   bucket.Count,
				Savings: bucket.AnnualSavings,
			})
		}
	}
	trendJSON, err := json.Marshal(points)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal trend data: %v", err)
	}

	var buf bytes.Buffer
	err = reportTemplate.Execute(&buf, templateData{
		Data:      data,
		TrendJSON: template.JS(trendJSON),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to execute report template: %v", err)
	}
	return buf.Bytes(), nil
}

// formatMoney renders an amount with thousands separators and two decimals.
func formatMoney(amount float64) string {
	whole := int64(math.Abs(amount))
	frac := int64(math.Round((math.Abs(amount) - float64(whole)) * 100))
	if frac == 100 {
		whole++
		frac = 0
	}

	digits := strconv.FormatInt(whole, 10)
	var grouped strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		grouped.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if grouped.Len() > 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteString(digits[i : i+3])
	}

	sign := ""
	if amount < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%s.%02d", sign, grouped.String(), frac)
}

func formatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func formatPercent(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.1f%%", *p)
}
